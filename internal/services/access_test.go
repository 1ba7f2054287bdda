package services

import (
	"testing"

	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessibleOutputs(t *testing.T) {
	f := newFixture(t)
	o1 := f.output("OUT-1")
	o2 := f.output("OUT-2")

	dl, err := f.lists.Create(programmer, DistributionListCreate{
		Name:    "reviewers",
		StudyID: types.FlexID(f.h.Study.ID),
		Users:   []string{"bob"},
	})
	require.NoError(t, err)

	f.createTag("direct", []string{"alice"}, o1.ID)
	_, err = f.tags.Create(programmer, models.ScopeDatabaseRelease, f.h.DBR.ID, TagCreate{
		TagName:             "via-list",
		DistributionListIDs: flexIDs(dl.ID),
		OutputIDs:           flexIDs(o2.ID),
	})
	require.NoError(t, err)

	got, err := AccessibleOutputs(f.db, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[uint]struct{}{o1.ID: {}}, got)

	got, err = AccessibleOutputs(f.db, "bob")
	require.NoError(t, err)
	assert.Equal(t, map[uint]struct{}{o2.ID: {}}, got)

	got, err = AccessibleOutputs(f.db, "carol")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAccessFollowsLatestVersion(t *testing.T) {
	f := newFixture(t)
	o := f.output("OUT-1")
	f.createTag("direct", []string{"alice"}, o.ID)

	promote(t, f, o.ID, 2)
	got, err := AccessibleOutputs(f.db, "alice")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAuthorizeOrDeny(t *testing.T) {
	f := newFixture(t)
	o1 := f.output("OUT-1")
	o2 := f.output("OUT-2")
	f.createTag("direct", []string{"alice"}, o1.ID)

	assert.NoError(t, AuthorizeOrDeny(f.db, "alice", models.RoleReviewer, []uint{o1.ID}))
	assert.NoError(t, AuthorizeOrDeny(f.db, "prog", models.RoleProgrammer, []uint{o1.ID, o2.ID}))
	assert.NoError(t, AuthorizeOrDeny(f.db, "alice", models.RoleReviewer, nil))

	err := AuthorizeOrDeny(f.db, "alice", models.RoleReviewer, []uint{o2.ID})
	assert.ErrorIs(t, err, types.ErrForbidden)
	assert.EqualError(t, err, "403: You do not have access to this file: OUT-2 [type: forbidden]")

	err = AuthorizeOrDeny(f.db, "alice", models.RoleReviewer, []uint{o1.ID, o2.ID})
	assert.EqualError(t, err, "403: You do not have access to one or more files. [type: forbidden]")

	// repeated ids still count as a bulk request
	err = AuthorizeOrDeny(f.db, "alice", models.RoleReviewer, []uint{o2.ID, o2.ID})
	assert.EqualError(t, err, "403: You do not have access to one or more files. [type: forbidden]")
	assert.NoError(t, AuthorizeOrDeny(f.db, "alice", models.RoleReviewer, []uint{o1.ID, o1.ID}))
}
