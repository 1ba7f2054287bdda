// tag_store.go
//
// Regulated output tagging and distribution data service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of orca-tagsdb.
// orca-tagsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// orca-tagsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with orca-tagsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"fmt"
	"sort"

	"github.com/Laisky/errors/v2"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// LinkedOutput is one output carrying a tag, at the newest version that carries it
type LinkedOutput struct {
	OutputID     uint   `json:"id"`
	Version      string `json:"version"`
	SourceName   string `json:"source_name"`
	VersionMajor int    `json:"-"`
	VersionMinor int    `json:"-"`
	VersionPatch int    `json:"-"`
}

func quiet(tx *gorm.DB) *gorm.DB {
	return tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)})
}

// hasTagKey matches versions whose tag map contains the key
func hasTagKey(tagKey string) clause.Expression {
	return datatypes.JSONQuery("tags").HasKey(tagKey)
}

// saveTags writes a mutated tag map back; there is no implicit change tracking on the map.
func saveTags(tx *gorm.DB, version *models.OutputDetailVersion) error {
	return tx.Model(version).Update("tags", version.Tags).Error
}

// AttachTag puts tagID -> tagName on the latest version of each output.
// Outputs whose latest version already carries the key are left alone.
// Returns the ids of outputs that changed.
func AttachTag(tx *gorm.DB, tagID uint, tagName string, outputIDs []uint) ([]uint, error) {
	if len(outputIDs) == 0 {
		return nil, nil
	}

	var latest []models.OutputDetailVersion
	if err := quiet(tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("output_id IN ? AND is_latest = ?", outputIDs, true).
		Find(&latest).Error; err != nil {
		return nil, errors.Wrap(err, "load latest versions")
	}

	key := models.TagKey(tagID)
	attached := make([]uint, 0, len(latest))
	for i := range latest {
		v := &latest[i]
		if v.Tags.Has(key) {
			continue
		}
		if v.Tags == nil {
			v.Tags = models.TagMap{}
		}
		v.Tags[key] = tagName
		if err := saveTags(tx, v); err != nil {
			return nil, errors.Wrapf(err, "attach tag %d to version %d", tagID, v.ID)
		}
		attached = append(attached, v.OutputID)
	}

	return attached, nil
}

// DetachTag removes the tag key from every version, latest or historical, of the given outputs.
// A nil outputIDs detaches the tag from every version that carries it.
// Returns the ids of outputs that carried the key.
func DetachTag(tx *gorm.DB, tagID uint, outputIDs []uint) ([]uint, error) {
	key := models.TagKey(tagID)

	q := quiet(tx).Clauses(clause.Locking{Strength: "UPDATE"}).Where(hasTagKey(key))
	if outputIDs != nil {
		if len(outputIDs) == 0 {
			return nil, nil
		}
		q = q.Where("output_id IN ?", outputIDs)
	}

	var versions []models.OutputDetailVersion
	if err := q.Find(&versions).Error; err != nil {
		return nil, errors.Wrap(err, "load tagged versions")
	}

	seen := make(map[uint]struct{})
	detached := make([]uint, 0, len(versions))
	for i := range versions {
		v := &versions[i]
		delete(v.Tags, key)
		if err := saveTags(tx, v); err != nil {
			return nil, errors.Wrapf(err, "detach tag %d from version %d", tagID, v.ID)
		}
		if _, ok := seen[v.OutputID]; !ok {
			seen[v.OutputID] = struct{}{}
			detached = append(detached, v.OutputID)
		}
	}

	return detached, nil
}

// RenameTag rewrites the tag name on every version carrying the key. The key is unchanged.
func RenameTag(tx *gorm.DB, tagID uint, newName string) (int, error) {
	key := models.TagKey(tagID)

	var versions []models.OutputDetailVersion
	if err := quiet(tx).Where(hasTagKey(key)).Find(&versions).Error; err != nil {
		return 0, errors.Wrap(err, "load tagged versions")
	}

	renamed := 0
	for i := range versions {
		v := &versions[i]
		if v.Tags[key] == newName {
			continue
		}
		v.Tags[key] = newName
		if err := saveTags(tx, v); err != nil {
			return renamed, errors.Wrapf(err, "rename tag %d on version %d", tagID, v.ID)
		}
		renamed++
	}

	return renamed, nil
}

// PromoteVersion makes next the latest version of its output. The prior latest loses the flag
// in the same transaction, and next starts with an empty tag map: tags have to be synced onto it.
// The output is flagged out of sync while older versions hold tags the new one lacks.
func PromoteVersion(db *gorm.DB, outputID uint, next *models.OutputDetailVersion) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var output models.OutputDetail
		if err := quiet(tx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&output, outputID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.NotFound(fmt.Sprintf("Output %d not found", outputID), idString(outputID))
			}
			return errors.Wrap(err, "load output")
		}

		var dup int64
		if err := tx.Model(&models.OutputDetailVersion{}).
			Where("output_id = ? AND version_major = ? AND version_minor = ? AND version_patch = ?",
				outputID, next.VersionMajor, next.VersionMinor, next.VersionPatch).
			Count(&dup).Error; err != nil {
			return errors.Wrap(err, "check version")
		}
		if dup > 0 {
			return types.Conflict("version",
				fmt.Sprintf("Version %s already exists for output %d", next.Version(), outputID))
		}

		if err := tx.Model(&models.OutputDetailVersion{}).
			Where("output_id = ? AND is_latest = ?", outputID, true).
			Update("is_latest", false).Error; err != nil {
			return errors.Wrap(err, "clear latest flag")
		}

		next.ID = 0
		next.OutputID = outputID
		next.IsLatest = true
		next.Tags = models.TagMap{}
		if err := tx.Create(next).Error; err != nil {
			return errors.Wrap(err, "create version")
		}

		if err := tx.Model(&output).Updates(map[string]interface{}{
			"file_path":    next.FilePath,
			"logical_path": models.LogicalPath(next.FilePath),
		}).Error; err != nil {
			return errors.Wrap(err, "update output path")
		}
		return refreshOutOfSync(tx, []uint{outputID})
	})
}

// refreshOutOfSync flags outputs whose older versions carry tag keys the latest version lacks
func refreshOutOfSync(tx *gorm.DB, outputIDs []uint) error {
	if len(outputIDs) == 0 {
		return nil
	}

	var versions []models.OutputDetailVersion
	if err := quiet(tx).Select("id", "output_id", "is_latest", "tags").
		Where("output_id IN ?", outputIDs).
		Find(&versions).Error; err != nil {
		return errors.Wrap(err, "load versions")
	}

	latest := make(map[uint]models.TagMap)
	for _, v := range versions {
		if v.IsLatest {
			latest[v.OutputID] = v.Tags
		}
	}
	stale := make(map[uint]bool)
	for _, v := range versions {
		if v.IsLatest {
			continue
		}
		for key := range v.Tags {
			if !latest[v.OutputID].Has(key) {
				stale[v.OutputID] = true
				break
			}
		}
	}

	for _, id := range uniqueIDs(outputIDs) {
		if err := tx.Model(&models.OutputDetail{}).
			Where("id = ?", id).
			Update("is_out_of_sync", stale[id]).Error; err != nil {
			return errors.Wrapf(err, "flag output %d", id)
		}
	}
	return nil
}

// SyncTagsToLatest copies the tag onto the latest version of every given output whose
// version chain carries the key somewhere. A nil outputIDs means every output carrying it.
// Historical versions keep their key. Returns the ids of outputs whose latest version changed.
func SyncTagsToLatest(tx *gorm.DB, tagID uint, outputIDs []uint) ([]uint, error) {
	key := models.TagKey(tagID)

	q := quiet(tx).Where(hasTagKey(key))
	if outputIDs != nil {
		if len(outputIDs) == 0 {
			return nil, nil
		}
		q = q.Where("output_id IN ?", outputIDs)
	}

	var carriers []models.OutputDetailVersion
	if err := q.Find(&carriers).Error; err != nil {
		return nil, errors.Wrap(err, "load tagged versions")
	}
	if len(carriers) == 0 {
		return nil, nil
	}

	name := ""
	var tag models.Tag
	err := quiet(tx).Select("id", "tag_name").First(&tag, tagID).Error
	switch {
	case err == nil:
		name = tag.TagName
	case errors.Is(err, gorm.ErrRecordNotFound):
		name = carriers[0].Tags[key]
	default:
		return nil, errors.Wrap(err, "load tag")
	}

	targets := make([]uint, 0, len(carriers))
	seen := make(map[uint]struct{})
	for _, v := range carriers {
		if _, ok := seen[v.OutputID]; ok {
			continue
		}
		seen[v.OutputID] = struct{}{}
		targets = append(targets, v.OutputID)
	}

	attached, err := AttachTag(tx, tagID, name, targets)
	if err != nil {
		return nil, err
	}
	return attached, refreshOutOfSync(tx, targets)
}

// LinkedOutputs lists the outputs carrying the tag on any version, one entry per output,
// at the newest version that carries it.
func LinkedOutputs(db *gorm.DB, tagID uint) ([]LinkedOutput, error) {
	key := models.TagKey(tagID)

	var versions []models.OutputDetailVersion
	if err := quiet(db).Where(hasTagKey(key)).Find(&versions).Error; err != nil {
		return nil, errors.Wrap(err, "load tagged versions")
	}
	if len(versions) == 0 {
		return []LinkedOutput{}, nil
	}

	newest := make(map[uint]models.OutputDetailVersion)
	for _, v := range versions {
		cur, ok := newest[v.OutputID]
		if !ok || newerVersion(v, cur) {
			newest[v.OutputID] = v
		}
	}

	ids := make([]uint, 0, len(newest))
	for id := range newest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var outputs []models.OutputDetail
	if err := quiet(db).Select("id", "source_name").Where("id IN ?", ids).Find(&outputs).Error; err != nil {
		return nil, errors.Wrap(err, "load outputs")
	}
	sources := make(map[uint]string, len(outputs))
	for _, o := range outputs {
		sources[o.ID] = o.SourceName
	}

	linked := make([]LinkedOutput, 0, len(ids))
	for _, id := range ids {
		v := newest[id]
		linked = append(linked, LinkedOutput{
			OutputID:     id,
			Version:      v.Version(),
			SourceName:   sources[id],
			VersionMajor: v.VersionMajor,
			VersionMinor: v.VersionMinor,
			VersionPatch: v.VersionPatch,
		})
	}

	return linked, nil
}

// UntaggedOutputs returns the given outputs none of whose versions carries any tag
func UntaggedOutputs(tx *gorm.DB, outputIDs []uint) ([]uint, error) {
	if len(outputIDs) == 0 {
		return nil, nil
	}

	var versions []models.OutputDetailVersion
	if err := quiet(tx).Select("id", "output_id", "tags").
		Where("output_id IN ?", outputIDs).
		Find(&versions).Error; err != nil {
		return nil, errors.Wrap(err, "load versions")
	}

	tagged := make(map[uint]bool)
	for _, v := range versions {
		if len(v.Tags) > 0 {
			tagged[v.OutputID] = true
		}
	}

	var untagged []uint
	for _, id := range outputIDs {
		if !tagged[id] {
			untagged = append(untagged, id)
		}
	}
	return untagged, nil
}

func newerVersion(a, b models.OutputDetailVersion) bool {
	if a.IsLatest != b.IsLatest {
		return a.IsLatest
	}
	if a.VersionMajor != b.VersionMajor {
		return a.VersionMajor > b.VersionMajor
	}
	if a.VersionMinor != b.VersionMinor {
		return a.VersionMinor > b.VersionMinor
	}
	return a.VersionPatch > b.VersionPatch
}
