package services

import (
	"fmt"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// ConflictScope names the release a tag is being placed in
type ConflictScope struct {
	CompoundName        string
	StudyName           string
	DatabaseReleaseName string
}

// ScopeOf returns the conflict scope of a resolved tag parent
func ScopeOf(p *TagParent) ConflictScope {
	return ConflictScope{
		CompoundName:        p.CompoundName,
		StudyName:           p.StudyName,
		DatabaseReleaseName: p.DatabaseReleaseName,
	}
}

// CheckTagConflict refuses a tag name that another source already uses, in the same
// compound/study/release, on outputs with the same identifier at the same logical path.
// Returns a Conflict carrying the offending identifiers.
func CheckTagConflict(db *gorm.DB, tagName string, sourceID uint, identifiers []string, scope ConflictScope, logicalPaths []string) error {
	if len(identifiers) == 0 || len(logicalPaths) == 0 {
		return nil
	}

	var candidates []models.Tag
	if err := quiet(db).
		Clauses(hints.Comment("select", "tag-conflict")).
		Select("id", "scope", "parent_id", "source_id").
		Where("tag_name = ? AND source_id <> ?", tagName, sourceID).
		Find(&candidates).Error; err != nil {
		return errors.Wrap(err, "load candidate tags")
	}

	found := make(map[string]struct{})
	for _, tag := range candidates {
		parent, err := ResolveTagParent(db, tag.Scope, tag.ParentID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			return err
		}
		if ScopeOf(parent) != scope {
			continue
		}

		var hits []string
		if err := quiet(db).
			Model(&models.OutputDetailVersion{}).
			Joins("JOIN output_details ON output_details.id = output_detail_versions.output_id").
			Where(hasTagKey(tag.Key())).
			Where("output_details.identifier IN ? AND output_details.logical_path IN ?", identifiers, logicalPaths).
			Distinct().
			Pluck("output_details.identifier", &hits).Error; err != nil {
			return errors.Wrap(err, "search conflicting outputs")
		}
		for _, h := range hits {
			found[h] = struct{}{}
		}
	}

	if len(found) == 0 {
		return nil
	}

	conflicting := sortedKeys(found)
	return types.Conflict("tag_name",
		fmt.Sprintf("Tag name '%s' is already linked with one or more outputs (%s) in another source.",
			tagName, strings.Join(conflicting, ", ")),
		conflicting...)
}

// candidatePaths collects the logical paths of every version of the given outputs
func candidatePaths(db *gorm.DB, outputIDs []uint) ([]string, error) {
	if len(outputIDs) == 0 {
		return nil, nil
	}

	var paths []string
	if err := quiet(db).Model(&models.OutputDetailVersion{}).
		Where("output_id IN ?", outputIDs).
		Pluck("file_path", &paths).Error; err != nil {
		return nil, errors.Wrap(err, "load version paths")
	}

	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[models.LogicalPath(p)] = struct{}{}
	}
	return sortedKeys(set), nil
}
