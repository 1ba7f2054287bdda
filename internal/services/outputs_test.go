package services

import (
	"context"
	"testing"

	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/testutil"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOutputs(t *testing.T, f *fixture) *OutputService {
	t.Helper()
	store, err := NewLocalStore(f.cfg.S3LocalPath)
	require.NoError(t, err)
	return NewOutputService(f.cfg, f.db, store, f.log)
}

func TestOutputCreatePlacesInHierarchy(t *testing.T) {
	f := newFixture(t)
	outputs := newOutputs(t, f)
	path := "root/PROD/ADR_2024/ADR_2024-STUDY/ADR_2024-DBR/t_14_1.rtf"
	putFile(t, f, path, "0123456789")

	re := types.FlexID(f.h.RE.ID)
	o, err := outputs.Create(context.Background(), OutputCreate{
		Identifier:        " t_14_1 ",
		Title:             "Demographics",
		FilePath:          path,
		ReportingEffortID: &re,
	})
	require.NoError(t, err)
	assert.Equal(t, "t_14_1", o.Identifier)
	assert.Equal(t, "ADR_2024/ADR_2024-STUDY/ADR_2024-DBR", o.LogicalPath)
	assert.Equal(t, "ADR_2024", o.CompoundName)
	assert.Equal(t, "ADR_2024-STUDY", o.StudyName)
	assert.Equal(t, "ADR_2024-DBR", o.DatabaseReleaseName)
	assert.Equal(t, "ADR_2024-RE", o.ReportingEffortName)
	assert.Equal(t, models.SourceProd, o.SourceName)

	latest := testutil.LatestVersion(t, f.db, o.ID)
	assert.Equal(t, "1.0.0", latest.Version())
	assert.EqualValues(t, 10, latest.FileSize)
	assert.Empty(t, latest.Tags)

	_, err = outputs.Create(context.Background(), OutputCreate{Identifier: "x", FilePath: "root/PROD/a/b/c/missing.rtf"})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = outputs.Create(context.Background(), OutputCreate{FilePath: path})
	assert.ErrorIs(t, err, types.ErrValidation)

	missing := types.FlexID(9999)
	size := int64(1)
	_, err = outputs.Create(context.Background(), OutputCreate{
		Identifier: "x", FilePath: path, FileSize: &size, DatabaseReleaseID: &missing,
	})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestOutputPromoteAndSync(t *testing.T) {
	f := newFixture(t)
	outputs := newOutputs(t, f)
	o := f.output("OUT-1")
	tag := f.createTag("carry", []string{"alice"}, o.ID)

	size := int64(42)
	v, err := outputs.Promote(context.Background(), o.ID, VersionCreate{
		VersionMajor: 1, VersionMinor: 1, FilePath: o.FilePath, FileSize: &size,
	})
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v.Version())

	_, err = outputs.Promote(context.Background(), o.ID, VersionCreate{VersionMajor: 1, VersionMinor: 1, FilePath: o.FilePath, FileSize: &size})
	assert.ErrorIs(t, err, types.ErrConflict)

	got, err := outputs.Get(programmer, o.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOutOfSync)
	require.Len(t, got.Versions, 2)

	_, err = outputs.Sync(context.Background(), alice, SyncRequest{TagID: types.FlexID(tag.ID)})
	assert.ErrorIs(t, err, types.ErrForbidden)

	res, err := outputs.Sync(context.Background(), programmer, SyncRequest{TagID: types.FlexID(tag.ID)})
	require.NoError(t, err)
	assert.Equal(t, []uint{o.ID}, res.SyncedOutputIDs)
	assert.Equal(t, "Tag synced to latest versions.", res.Message)

	res, err = outputs.Sync(context.Background(), programmer, SyncRequest{TagID: types.FlexID(tag.ID)})
	require.NoError(t, err)
	assert.Empty(t, res.SyncedOutputIDs)

	_, err = outputs.Sync(context.Background(), programmer, SyncRequest{TagID: 9999})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestOutputListForReviewers(t *testing.T) {
	f := newFixture(t)
	outputs := newOutputs(t, f)
	o1 := f.output("OUT-1")
	f.output("OUT-2")
	f.createTag("alice-only", []string{"alice"}, o1.ID)

	all, err := outputs.List(programmer, OutputFilter{DatabaseReleaseID: f.h.DBR.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	require.Len(t, all[0].Versions, 1)

	mine, err := outputs.List(alice, OutputFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "OUT-1", mine[0].Identifier)

	none, err := outputs.List(bob, OutputFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = outputs.Get(bob, o1.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestOutputBulkDeleteDropsOrphanTags(t *testing.T) {
	f := newFixture(t)
	outputs := newOutputs(t, f)
	o1 := f.output("OUT-1")
	o2 := f.output("OUT-2")
	orphan := f.createTag("only-one", []string{"alice"}, o1.ID)
	var kept *TagResponse
	f.audited(t0, models.ActionCreate, EntityTag, 0, func() uint {
		kept = f.createTag("both", []string{"alice"}, o1.ID, o2.ID)
		return kept.ID
	})
	require.Len(t, testutil.OpenMetrics(t, f.db, kept.ID), 2)

	_, err := outputs.BulkDelete(context.Background(), alice, BulkDeleteRequest{IDs: flexIDs(o1.ID)})
	assert.ErrorIs(t, err, types.ErrForbidden)

	res, err := outputs.BulkDelete(context.Background(), programmer, BulkDeleteRequest{IDs: flexIDs(o1.ID)})
	require.NoError(t, err)
	assert.Equal(t, []uint{o1.ID}, res.DeletedIDs)
	assert.Equal(t, []uint{orphan.ID}, res.DeletedTagIDs)

	_, err = f.tags.Get(models.ScopeDatabaseRelease, f.h.DBR.ID, orphan.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	still, err := f.tags.Get(models.ScopeDatabaseRelease, f.h.DBR.ID, kept.ID)
	require.NoError(t, err)
	require.Len(t, still.OutputDetails, 1)
	assert.Equal(t, o2.ID, still.OutputDetails[0].OutputID)

	open := testutil.OpenMetrics(t, f.db, kept.ID)
	require.Len(t, open, 1)
	assert.Equal(t, o2.ID, open[0].OutputDetailID)

	var versions int64
	require.NoError(t, f.db.Model(&models.OutputDetailVersion{}).Where("output_id = ?", o1.ID).Count(&versions).Error)
	assert.Zero(t, versions)

	_, err = outputs.BulkDelete(context.Background(), programmer, BulkDeleteRequest{IDs: flexIDs(o1.ID)})
	assert.ErrorIs(t, err, types.ErrNotFound)
}
