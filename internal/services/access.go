package services

import (
	"fmt"
	"strconv"

	"github.com/Laisky/errors/v2"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// AccessibleOutputs returns the outputs a user can read: those whose latest version carries
// a tag listing the user directly or through one of the tag's distribution lists.
func AccessibleOutputs(db *gorm.DB, username string) (map[uint]struct{}, error) {
	var latest []models.OutputDetailVersion
	if err := quiet(db).
		Clauses(hints.Comment("select", "access-resolver")).
		Select("id", "output_id", "tags").
		Where("is_latest = ?", true).
		Find(&latest).Error; err != nil {
		return nil, errors.Wrap(err, "load latest versions")
	}

	tagIDs := make(map[uint]struct{})
	tagged := latest[:0]
	for _, v := range latest {
		if len(v.Tags) == 0 {
			continue
		}
		tagged = append(tagged, v)
		for key := range v.Tags {
			if id, ok := parseID(key); ok {
				tagIDs[id] = struct{}{}
			}
		}
	}

	accessible := make(map[uint]struct{})
	if len(tagged) == 0 {
		return accessible, nil
	}

	ids := make([]uint, 0, len(tagIDs))
	for id := range tagIDs {
		ids = append(ids, id)
	}

	var tags []models.Tag
	if err := quiet(db).
		Preload("DistributionLists").
		Where("id IN ?", ids).
		Find(&tags).Error; err != nil {
		return nil, errors.Wrap(err, "load tags")
	}

	member := make(map[string]bool, len(tags))
	for i := range tags {
		if tagHasMember(&tags[i], username) {
			member[tags[i].Key()] = true
		}
	}

	for _, v := range tagged {
		for key := range v.Tags {
			if member[key] {
				accessible[v.OutputID] = struct{}{}
				break
			}
		}
	}

	return accessible, nil
}

// AuthorizeOrDeny fails when a reviewer asks for outputs outside their reach. A single
// denied output is named; bulk requests get a generic denial.
func AuthorizeOrDeny(db *gorm.DB, username, role string, outputIDs []uint) error {
	if role != models.RoleReviewer {
		return nil
	}

	bulk := len(outputIDs) > 1
	requested := uniqueIDs(outputIDs)
	if len(requested) == 0 {
		return nil
	}

	accessible, err := AccessibleOutputs(db, username)
	if err != nil {
		return err
	}

	var denied []uint
	for _, id := range requested {
		if _, ok := accessible[id]; !ok {
			denied = append(denied, id)
		}
	}
	if len(denied) == 0 {
		return nil
	}

	if bulk {
		return types.Forbidden("You do not have access to one or more files.")
	}

	identifier := strconv.FormatUint(uint64(denied[0]), 10)
	var output models.OutputDetail
	if err := quiet(db).Select("id", "identifier").First(&output, denied[0]).Error; err == nil {
		identifier = output.Identifier
	}
	return types.Forbidden(fmt.Sprintf("You do not have access to this file: %s", identifier))
}

// TagMembers resolves the direct users of a tag plus the users of its distribution lists
func TagMembers(tag *models.Tag) map[string]struct{} {
	members := make(map[string]struct{}, len(tag.Users))
	for _, u := range tag.Users {
		members[u] = struct{}{}
	}
	for _, dl := range tag.DistributionLists {
		for _, u := range dl.Users {
			members[u] = struct{}{}
		}
	}
	return members
}

func tagHasMember(tag *models.Tag, username string) bool {
	_, ok := TagMembers(tag)[username]
	return ok
}
