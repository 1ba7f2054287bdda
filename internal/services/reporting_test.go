package services

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportSharedMetrics(t *testing.T) {
	f := newFixture(t)
	o1 := f.output("OUT-1")
	o2 := f.output("OUT-2")

	var tag *TagResponse
	f.audited(t0, models.ActionCreate, EntityTag, 0, func() uint {
		tag = f.createTag("export", []string{"alice", "bob"}, o1.ID, o2.ID)
		return tag.ID
	})
	f.audited(t0.Add(time.Hour), models.ActionUpdate, EntityTag, tag.ID, func() uint {
		_, err := f.tags.RemoveRecords(programmer, models.ScopeDatabaseRelease, f.h.DBR.ID, tag.ID,
			RecordsRequest{RecordIDs: flexIDs(o2.ID)})
		require.NoError(t, err)
		return 0
	})

	reporting := NewReportingService(f.db, f.log)
	var buf bytes.Buffer
	n, err := reporting.ExportSharedMetrics(&buf, MetricFilter{TagID: tag.ID})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, metricColumns, records[0])
	assert.Equal(t, "export", records[1][2])
	assert.Equal(t, "prog", records[1][3])
	assert.Equal(t, "2024-03-02T09:00:00Z", records[1][5])
	assert.Equal(t, "1", records[1][15])

	active := false
	buf.Reset()
	n, err = reporting.ExportSharedMetrics(&buf, MetricFilter{TagID: tag.ID, Active: &active})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	for _, r := range records[1:] {
		assert.Equal(t, "2024-03-02T10:00:00Z", r[6])
	}

	rows, err := reporting.SharedMetrics(MetricFilter{User: "bob", OutputID: o1.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Open())
}

func TestAuditLogsFilter(t *testing.T) {
	f := newFixture(t)
	o := f.output("OUT-1")

	var tag *TagResponse
	f.audited(t0, models.ActionCreate, EntityTag, 0, func() uint {
		tag = f.createTag("audited", []string{"alice"}, o.ID)
		return tag.ID
	})
	reason := "TLR"
	f.audited(t0.Add(time.Minute), models.ActionUpdate, EntityTag, tag.ID, func() uint {
		_, err := f.tags.Update(programmer, models.ScopeDatabaseRelease, f.h.DBR.ID, tag.ID, TagUpdate{Reason: &reason})
		require.NoError(t, err)
		return 0
	})

	reporting := NewReportingService(f.db, f.log)
	all, err := reporting.AuditLogs(AuditLogFilter{ObjectType: "database_release_tag", ObjectKey: tag.Key()})
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Greater(t, all[0].ID, all[len(all)-1].ID)

	updates, err := reporting.AuditLogs(AuditLogFilter{ObjectKey: tag.Key(), Action: models.ActionUpdate, UserName: "prog"})
	require.NoError(t, err)
	props := make(map[string]string)
	for _, e := range updates {
		require.NotNil(t, e.ObjectProperty)
		if e.NewValue != nil {
			props[*e.ObjectProperty] = *e.NewValue
		}
	}
	assert.Equal(t, "TLR", props["reason"])

	limited, err := reporting.AuditLogs(AuditLogFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
