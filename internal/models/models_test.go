package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagMapValueScan(t *testing.T) {
	m := TagMap{"12": "ADR_2024", "3": "CSR"}
	v, err := m.Value()
	require.NoError(t, err)

	var back TagMap
	require.NoError(t, back.Scan(v))
	assert.Equal(t, m, back)
	assert.Equal(t, []string{"12", "3"}, back.Keys())
	assert.True(t, back.Has("3"))
	assert.False(t, back.Has("4"))

	var empty TagMap
	v, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	require.NoError(t, back.Scan(nil))
	assert.Empty(t, back)
	require.NoError(t, back.Scan([]byte(`{"7":"x"}`)))
	assert.Equal(t, TagMap{"7": "x"}, back)
	assert.Error(t, back.Scan(42))
}

func TestLogicalPath(t *testing.T) {
	assert.Equal(t, "CompoundX/StudyY/DBR1", LogicalPath("root/PROD/CompoundX/StudyY/DBR1/file.pdf"))
	assert.Equal(t, "CompoundX", LogicalPath("root/PREPROD/CompoundX/file.pdf"))
	assert.Equal(t, "file.pdf", LogicalPath("root/PROD/file.pdf"))
	assert.Equal(t, "file.pdf", LogicalPath("a/b/file.pdf"))
	assert.Equal(t, "root", LogicalPath("root/file.pdf"))
	assert.Equal(t, "file.pdf", LogicalPath("file.pdf"))
}

func TestAuditObjectType(t *testing.T) {
	id := uint(1)
	o := OutputDetail{CompoundID: &id}
	assert.Equal(t, "COMPOUND_output_details", o.AuditObjectType())
	o.DatabaseReleaseID = &id
	assert.Equal(t, "DBR_output_details", o.AuditObjectType())
	o.ReportingEffortID = &id
	assert.Equal(t, "RE_output_details", o.AuditObjectType())
	assert.Equal(t, "output_details", (&OutputDetail{}).AuditObjectType())

	assert.Equal(t, "reporting_effort_tag", (&Tag{Scope: ScopeReportingEffort}).AuditObjectType())
	assert.Equal(t, "database_release_tag", TagObjectType(ScopeDatabaseRelease))
	assert.Equal(t, "42", TagKey(42))
}

func TestDistributionListCanEdit(t *testing.T) {
	dl := DistributionList{CreatedBy: "owner", CoOwners: []string{"co"}}
	assert.True(t, dl.CanEdit("owner"))
	assert.True(t, dl.CanEdit("co"))
	assert.False(t, dl.CanEdit("someone"))
	assert.True(t, IsTagReason("CSR"))
	assert.False(t, IsTagReason("csr"))
}
