package services

import (
	"testing"

	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributionListCreate(t *testing.T) {
	f := newFixture(t)
	study := types.FlexID(f.h.Study.ID)

	dl, err := f.lists.Create(programmer, DistributionListCreate{
		Name:     " Core team ",
		StudyID:  study,
		CoOwners: []string{"carol"},
		Users:    []string{"alice, bob", "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Core team", dl.Name)
	assert.Equal(t, []string{"prog", "carol"}, []string(dl.CoOwners))
	assert.Equal(t, []string{"alice", "bob"}, []string(dl.Users))
	assert.Equal(t, "prog", dl.CreatedBy)

	_, err = f.lists.Create(programmer, DistributionListCreate{Name: "Core team", StudyID: study})
	assert.ErrorIs(t, err, types.ErrConflict)

	_, err = f.lists.Create(programmer, DistributionListCreate{Name: "overlap", StudyID: study, Users: []string{"prog"}})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = f.lists.Create(programmer, DistributionListCreate{Name: "", StudyID: study})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = f.lists.Create(programmer, DistributionListCreate{Name: "orphan", StudyID: 9999})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDistributionListOwnership(t *testing.T) {
	f := newFixture(t)
	dl, err := f.lists.Create(programmer, DistributionListCreate{
		Name:     "owners",
		StudyID:  types.FlexID(f.h.Study.ID),
		CoOwners: []string{"alice"},
	})
	require.NoError(t, err)

	users := types.FlexList[string]{"bob"}
	updated, err := f.lists.Update(alice, dl.ID, DistributionListUpdate{Users: &users})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, []string(updated.Users))
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, "alice", *updated.UpdatedBy)

	_, err = f.lists.Update(bob, dl.ID, DistributionListUpdate{Users: &users})
	assert.ErrorIs(t, err, types.ErrForbidden)
	assert.ErrorIs(t, f.lists.Delete(bob, dl.ID), types.ErrForbidden)

	require.NoError(t, f.lists.Delete(programmer, dl.ID))
	_, err = f.lists.Get(dl.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDistributionListDeleteUnlinksTags(t *testing.T) {
	f := newFixture(t)
	o := f.output("OUT-1")
	dl, err := f.lists.Create(programmer, DistributionListCreate{Name: "members", StudyID: types.FlexID(f.h.Study.ID)})
	require.NoError(t, err)

	tag, err := f.tags.Create(programmer, models.ScopeDatabaseRelease, f.h.DBR.ID, TagCreate{
		TagName:             "list-tag",
		Users:               []string{"alice"},
		DistributionListIDs: flexIDs(dl.ID),
		OutputIDs:           flexIDs(o.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, []uint{dl.ID}, tag.DistributionListIDs)

	require.NoError(t, f.lists.Delete(programmer, dl.ID))
	got, err := f.tags.Get(models.ScopeDatabaseRelease, f.h.DBR.ID, tag.ID)
	require.NoError(t, err)
	assert.Empty(t, got.DistributionListIDs)
}

func TestDistributionListFilter(t *testing.T) {
	f := newFixture(t)
	_, err := f.lists.Create(programmer, DistributionListCreate{Name: "Alpha", StudyID: types.FlexID(f.h.Study.ID)})
	require.NoError(t, err)
	_, err = f.lists.Create(programmer, DistributionListCreate{Name: "Beta", StudyID: types.FlexID(f.h.Study.ID)})
	require.NoError(t, err)

	all, err := f.lists.List(DistributionListFilter{DatabaseReleaseID: f.h.DBR.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	named, err := f.lists.List(DistributionListFilter{CompoundID: f.h.Compound.ID, Name: "alp"})
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "Alpha", named[0].Name)

	_, err = f.lists.List(DistributionListFilter{DatabaseReleaseID: 9999})
	assert.ErrorIs(t, err, types.ErrNotFound)
}
