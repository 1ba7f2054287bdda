package services

import (
	"testing"

	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/testutil"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promote(t *testing.T, f *fixture, outputID uint, major int) *models.OutputDetailVersion {
	t.Helper()
	next := &models.OutputDetailVersion{
		VersionMajor: major,
		FilePath:     testutil.LatestVersion(t, f.db, outputID).FilePath,
	}
	require.NoError(t, PromoteVersion(f.db, outputID, next))
	return next
}

func TestAttachTagOnlyTouchesLatest(t *testing.T) {
	f := newFixture(t)
	o := f.output("OUT-1")
	promote(t, f, o.ID, 2)

	attached, err := AttachTag(f.db, 7, "shared", []uint{o.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{o.ID}, attached)

	var versions []models.OutputDetailVersion
	require.NoError(t, f.db.Where("output_id = ?", o.ID).Order("version_major").Find(&versions).Error)
	require.Len(t, versions, 2)
	assert.Empty(t, versions[0].Tags)
	assert.Equal(t, models.TagMap{"7": "shared"}, versions[1].Tags)

	again, err := AttachTag(f.db, 7, "shared", []uint{o.ID})
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestDetachTagRemovesFromEveryVersion(t *testing.T) {
	f := newFixture(t)
	o1 := f.output("OUT-1")
	o2 := f.output("OUT-2")

	_, err := AttachTag(f.db, 3, "t3", []uint{o1.ID, o2.ID})
	require.NoError(t, err)
	promote(t, f, o1.ID, 2)
	_, err = AttachTag(f.db, 3, "t3", []uint{o1.ID})
	require.NoError(t, err)

	detached, err := DetachTag(f.db, 3, []uint{o1.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{o1.ID}, detached)

	var carriers int64
	require.NoError(t, f.db.Model(&models.OutputDetailVersion{}).
		Where(hasTagKey("3")).Where("output_id = ?", o1.ID).Count(&carriers).Error)
	assert.Zero(t, carriers)
	assert.True(t, f.latestTags(o2.ID).Has("3"))

	detached, err = DetachTag(f.db, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{o2.ID}, detached)

	detached, err = DetachTag(f.db, 3, []uint{})
	require.NoError(t, err)
	assert.Empty(t, detached)
}

func TestRenameTagKeepsKey(t *testing.T) {
	f := newFixture(t)
	o := f.output("OUT-1")
	_, err := AttachTag(f.db, 5, "before", []uint{o.ID})
	require.NoError(t, err)

	n, err := RenameTag(f.db, 5, "after")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.TagMap{"5": "after"}, f.latestTags(o.ID))

	n, err = RenameTag(f.db, 5, "after")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPromoteVersion(t *testing.T) {
	f := newFixture(t)
	o := f.output("OUT-1")
	_, err := AttachTag(f.db, 9, "nine", []uint{o.ID})
	require.NoError(t, err)

	next := &models.OutputDetailVersion{
		VersionMajor: 1,
		VersionMinor: 1,
		FilePath:     "root/PROD/ADR_2024/ADR_2024-STUDY/ADR_2024-DBR/v2/OUT-1.pdf",
		Tags:         models.TagMap{"9": "nine"},
	}
	require.NoError(t, PromoteVersion(f.db, o.ID, next))

	latest := testutil.LatestVersion(t, f.db, o.ID)
	assert.Equal(t, "1.1.0", latest.Version())
	assert.Empty(t, latest.Tags)

	var latestCount int64
	require.NoError(t, f.db.Model(&models.OutputDetailVersion{}).
		Where("output_id = ? AND is_latest = ?", o.ID, true).Count(&latestCount).Error)
	assert.EqualValues(t, 1, latestCount)

	var reloaded models.OutputDetail
	require.NoError(t, f.db.First(&reloaded, o.ID).Error)
	assert.True(t, reloaded.IsOutOfSync)
	assert.Equal(t, next.FilePath, reloaded.FilePath)
	assert.Equal(t, "ADR_2024/ADR_2024-STUDY/ADR_2024-DBR/v2", reloaded.LogicalPath)

	dup := &models.OutputDetailVersion{VersionMajor: 1, VersionMinor: 1, FilePath: next.FilePath}
	err = PromoteVersion(f.db, o.ID, dup)
	assert.ErrorIs(t, err, types.ErrConflict)

	err = PromoteVersion(f.db, 9999, &models.OutputDetailVersion{VersionMajor: 1, FilePath: "x"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSyncTagsToLatest(t *testing.T) {
	f := newFixture(t)
	o1 := f.output("OUT-1")
	o2 := f.output("OUT-2")
	tag := f.createTag("sync-me", []string{"alice"}, o1.ID, o2.ID)

	promote(t, f, o1.ID, 2)
	promote(t, f, o2.ID, 2)

	synced, err := SyncTagsToLatest(f.db, tag.ID, []uint{o1.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{o1.ID}, synced)
	assert.True(t, f.latestTags(o1.ID).Has(tag.Key()))
	assert.False(t, f.latestTags(o2.ID).Has(tag.Key()))

	var o1Row, o2Row models.OutputDetail
	require.NoError(t, f.db.First(&o1Row, o1.ID).Error)
	require.NoError(t, f.db.First(&o2Row, o2.ID).Error)
	assert.False(t, o1Row.IsOutOfSync)
	assert.True(t, o2Row.IsOutOfSync)

	synced, err = SyncTagsToLatest(f.db, tag.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{o2.ID}, synced)
}

func TestLinkedOutputsPrefersLatest(t *testing.T) {
	f := newFixture(t)
	o1 := f.output("OUT-1")
	o2 := f.output("OUT-2")
	_, err := AttachTag(f.db, 4, "four", []uint{o1.ID, o2.ID})
	require.NoError(t, err)

	promote(t, f, o1.ID, 2)
	promote(t, f, o2.ID, 3)
	_, err = AttachTag(f.db, 4, "four", []uint{o2.ID})
	require.NoError(t, err)

	linked, err := LinkedOutputs(f.db, 4)
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, o1.ID, linked[0].OutputID)
	assert.Equal(t, "1.0.0", linked[0].Version)
	assert.Equal(t, o2.ID, linked[1].OutputID)
	assert.Equal(t, "3.0.0", linked[1].Version)
	assert.Equal(t, models.SourceProd, linked[1].SourceName)

	none, err := LinkedOutputs(f.db, 404)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUntaggedOutputs(t *testing.T) {
	f := newFixture(t)
	o1 := f.output("OUT-1")
	o2 := f.output("OUT-2")
	_, err := AttachTag(f.db, 1, "one", []uint{o1.ID})
	require.NoError(t, err)

	untagged, err := UntaggedOutputs(f.db, []uint{o1.ID, o2.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{o2.ID}, untagged)
}
