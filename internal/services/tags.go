package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tagNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// TagCreate is the body of a tag create
type TagCreate struct {
	TagName             string                       `json:"tag_name"`
	Reason              string                       `json:"reason"`
	Users               types.FlexList[string]       `json:"users"`
	DistributionListIDs types.FlexList[types.FlexID] `json:"distribution_list_ids"`
	OutputIDs           types.FlexList[types.FlexID] `json:"output_ids"`
	IdentifyAsDraft     *bool                        `json:"identify_as_draft"`
}

// TagUpdate carries the fields to change; absent fields are kept
type TagUpdate struct {
	TagName             *string                       `json:"tag_name"`
	Reason              *string                       `json:"reason"`
	Users               *types.FlexList[string]       `json:"users"`
	DistributionListIDs *types.FlexList[types.FlexID] `json:"distribution_list_ids"`
}

// RecordsRequest names outputs to attach to or detach from a tag
type RecordsRequest struct {
	RecordIDs       types.FlexList[types.FlexID] `json:"record_ids"`
	IdentifyAsDraft *bool                        `json:"identify_as_draft"`
}

// TagResponse is a tag with its edges
type TagResponse struct {
	models.Tag
	DistributionListIDs []uint         `json:"distribution_list_ids"`
	OutputDetails       []LinkedOutput `json:"output_details"`
}

type AddRecordsResult struct {
	Message             string   `json:"message"`
	TagID               uint     `json:"tag_id"`
	TagName             string   `json:"tag_name"`
	AddedRecords        []string `json:"added_records"`
	AlreadyAddedRecords []string `json:"already_added_records"`
}

type RemoveRecordsResult struct {
	Message              string   `json:"message"`
	TagID                uint     `json:"tag_id"`
	TagName              string   `json:"tag_name"`
	RemovedRecords       []string `json:"removed_records"`
	NotAssociatedRecords []string `json:"not_associated_records"`
}

type TagUsersResult struct {
	Message      string   `json:"message"`
	TagID        uint     `json:"tag_id"`
	Users        []string `json:"users"`
	AddedUsers   []string `json:"added_users,omitempty"`
	RemovedUsers []string `json:"removed_users,omitempty"`
	NotFound     []string `json:"not_found,omitempty"`
}

// TagService owns tag lifecycle for both scopes
type TagService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTagService(db *gorm.DB, log *zap.Logger) *TagService {
	return &TagService{db: db, log: log}
}

func validateTagName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	switch {
	case len(name) < 3 || len(name) > 255:
		return "", types.Validation("tag_name", "Tag name must be between 3 and 255 characters")
	case !tagNamePattern.MatchString(name):
		return "", types.Validation("tag_name",
			"Tag name may only contain letters, digits, underscores, dots and hyphens")
	}
	return name, nil
}

func validateReason(reason string) error {
	if reason != "" && !models.IsTagReason(reason) {
		return types.Validation("reason", fmt.Sprintf("'%s' is not a valid tag reason", reason))
	}
	return nil
}

func forbidReviewer(p Principal, verb string) error {
	if p.IsReviewer() {
		return types.Forbidden(fmt.Sprintf("Reviewers are not authorized to %s tags.", verb))
	}
	return nil
}

func duplicateTagName(parent *TagParent) error {
	return types.Conflict("tag_name",
		fmt.Sprintf("A tag with this name already exists for the selected %s.", parent.ScopeLabel()))
}

func nameTaken(tx *gorm.DB, scope string, parentID uint, nameKey string, except uint) (bool, error) {
	var count int64
	q := tx.Model(&models.Tag{}).Where("scope = ? AND parent_id = ? AND name_key = ?", scope, parentID, nameKey)
	if except != 0 {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "check tag name")
	}
	return count > 0, nil
}

func loadDistributionLists(tx *gorm.DB, ids []uint) ([]models.DistributionList, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	var lists []models.DistributionList
	if err := tx.Where("id IN ?", ids).Find(&lists).Error; err != nil {
		return nil, errors.Wrap(err, "load distribution lists")
	}
	found := make(map[uint]bool, len(lists))
	for _, dl := range lists {
		found[dl.ID] = true
	}
	if missing := missingIDs(ids, found); len(missing) > 0 {
		return nil, types.NotFound(
			fmt.Sprintf("DistributionList IDs not found: %s", strings.Join(idStrings(missing), ", ")),
			idStrings(missing)...)
	}
	return lists, nil
}

func loadOutputs(tx *gorm.DB, ids []uint) ([]models.OutputDetail, error) {
	ids = uniqueIDs(ids)
	var outputs []models.OutputDetail
	if len(ids) == 0 {
		return outputs, nil
	}
	if err := tx.Where("id IN ?", ids).Order("id").Find(&outputs).Error; err != nil {
		return nil, errors.Wrap(err, "load outputs")
	}
	found := make(map[uint]bool, len(outputs))
	for _, o := range outputs {
		found[o.ID] = true
	}
	if missing := missingIDs(ids, found); len(missing) > 0 {
		return nil, types.NotFound(
			fmt.Sprintf("OutputDetail IDs not found: %s", strings.Join(idStrings(missing), ", ")),
			idStrings(missing)...)
	}
	return outputs, nil
}

func outputIDsOf(outputs []models.OutputDetail) []uint {
	ids := make([]uint, 0, len(outputs))
	for _, o := range outputs {
		ids = append(ids, o.ID)
	}
	return ids
}

func identifiersOf(outputs []models.OutputDetail) []string {
	ids := make([]string, 0, len(outputs))
	for _, o := range outputs {
		ids = append(ids, o.Identifier)
	}
	return ids
}

// Create validates and stores a tag, then attaches it to the latest version of each output
func (s *TagService) Create(p Principal, scope string, parentID uint, in TagCreate) (*TagResponse, error) {
	if err := forbidReviewer(p, "create"); err != nil {
		return nil, err
	}
	name, err := validateTagName(in.TagName)
	if err != nil {
		return nil, err
	}
	if err := validateReason(in.Reason); err != nil {
		return nil, err
	}
	users := types.SplitNames(in.Users)
	dlIDs := types.IDs(in.DistributionListIDs)
	outputIDs := uniqueIDs(types.IDs(in.OutputIDs))
	if len(users) == 0 && len(dlIDs) == 0 {
		return nil, types.Validation("users", "At least one user or distribution list is required")
	}
	if len(outputIDs) == 0 {
		return nil, types.Validation("output_ids", "At least one output is required")
	}

	var tagID uint
	err = s.db.Transaction(func(tx *gorm.DB) error {
		parent, err := ResolveTagParent(tx, scope, parentID)
		if err != nil {
			return err
		}
		lists, err := loadDistributionLists(tx, dlIDs)
		if err != nil {
			return err
		}
		outputs, err := loadOutputs(tx, outputIDs)
		if err != nil {
			return err
		}

		taken, err := nameTaken(tx, scope, parentID, strings.ToLower(name), 0)
		if err != nil {
			return err
		}
		if taken {
			return duplicateTagName(parent)
		}

		paths, err := candidatePaths(tx, outputIDs)
		if err != nil {
			return err
		}
		if err := CheckTagConflict(tx, name, parent.SourceID, identifiersOf(outputs), ScopeOf(parent), paths); err != nil {
			return err
		}

		if parent.SourceName == models.SourceDocs {
			if err := markDraft(tx, outputs, in.IdentifyAsDraft == nil || *in.IdentifyAsDraft); err != nil {
				return err
			}
		}

		tag := models.Tag{
			Scope:             scope,
			ParentID:          parentID,
			TagName:           name,
			NameKey:           strings.ToLower(name),
			Reason:            in.Reason,
			Users:             users,
			SourceID:          parent.SourceID,
			DistributionLists: lists,
		}
		if err := tx.Omit(clause.Associations).Create(&tag).Error; err != nil {
			return errors.Wrap(err, "create tag")
		}
		tagID = tag.ID
		if err := linkDistributionLists(tx, tag.ID, lists); err != nil {
			return err
		}

		_, err = AttachTag(tx, tag.ID, tag.TagName, outputIDs)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tag created",
		zap.Uint("tag_id", tagID), zap.String("scope", scope), zap.String("by", p.Username))
	return s.Get(scope, parentID, tagID)
}

// loadScopedTag finds a tag by id under the given parent
func loadScopedTag(tx *gorm.DB, scope string, parentID, tagID uint) (*models.Tag, error) {
	var tag models.Tag
	err := tx.Preload("DistributionLists").
		Where("scope = ? AND parent_id = ?", scope, parentID).
		First(&tag, tagID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("Tag not found", idString(tagID))
		}
		return nil, errors.Wrap(err, "load tag")
	}
	return &tag, nil
}

// Get returns a tag with its distribution list ids and linked outputs
func (s *TagService) Get(scope string, parentID, tagID uint) (*TagResponse, error) {
	tag, err := loadScopedTag(s.db, scope, parentID, tagID)
	if err != nil {
		return nil, err
	}
	return tagResponse(s.db, tag)
}

func tagResponse(db *gorm.DB, tag *models.Tag) (*TagResponse, error) {
	linked, err := LinkedOutputs(db, tag.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(tag.DistributionLists))
	for _, dl := range tag.DistributionLists {
		ids = append(ids, dl.ID)
	}
	if tag.Users == nil {
		tag.Users = []string{}
	}
	return &TagResponse{Tag: *tag, DistributionListIDs: uniqueIDs(ids), OutputDetails: linked}, nil
}

// List returns the tags of a parent, newest first. Reviewers asking for tagged data only
// see tags they are a member of.
func (s *TagService) List(p Principal, scope string, parentID uint, taggedOnly bool) ([]TagResponse, error) {
	var tags []models.Tag
	if err := s.db.Preload("DistributionLists").
		Where("scope = ? AND parent_id = ?", scope, parentID).
		Order("id DESC").
		Find(&tags).Error; err != nil {
		return nil, errors.Wrap(err, "list tags")
	}

	out := make([]TagResponse, 0, len(tags))
	for i := range tags {
		if p.IsReviewer() && taggedOnly && !tagHasMember(&tags[i], p.Username) {
			continue
		}
		resp, err := tagResponse(s.db, &tags[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// Update changes name, reason, users, or distribution lists. A rename rewrites every version carrying the tag.
func (s *TagService) Update(p Principal, scope string, parentID, tagID uint, in TagUpdate) (*TagResponse, error) {
	if err := forbidReviewer(p, "update"); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		tag, err := loadScopedTag(tx, scope, parentID, tagID)
		if err != nil {
			return err
		}
		oldName := tag.TagName

		if in.TagName != nil {
			name, err := validateTagName(*in.TagName)
			if err != nil {
				return err
			}
			if key := strings.ToLower(name); key != tag.NameKey {
				taken, err := nameTaken(tx, scope, parentID, key, tag.ID)
				if err != nil {
					return err
				}
				if taken {
					parent, err := ResolveTagParent(tx, scope, parentID)
					if err != nil {
						return err
					}
					return duplicateTagName(parent)
				}
			}
			tag.TagName = name
			tag.NameKey = strings.ToLower(name)
		}
		if in.Reason != nil {
			if err := validateReason(*in.Reason); err != nil {
				return err
			}
			tag.Reason = *in.Reason
		}
		if in.Users != nil {
			tag.Users = types.SplitNames(*in.Users)
		}
		if in.DistributionListIDs != nil {
			lists, err := loadDistributionLists(tx, types.IDs(*in.DistributionListIDs))
			if err != nil {
				return err
			}
			if err := tx.Where("tag_id = ?", tag.ID).Delete(&models.TagDistributionList{}).Error; err != nil {
				return errors.Wrap(err, "unlink distribution lists")
			}
			if err := linkDistributionLists(tx, tag.ID, lists); err != nil {
				return err
			}
			tag.DistributionLists = lists
		}
		if len(tag.Users) == 0 && len(tag.DistributionLists) == 0 {
			return types.Validation("users", "At least one user or distribution list is required")
		}

		if err := tx.Omit(clause.Associations).Save(tag).Error; err != nil {
			return errors.Wrap(err, "save tag")
		}

		if tag.TagName != oldName {
			n, err := RenameTag(tx, tag.ID, tag.TagName)
			if err != nil {
				return err
			}
			s.log.Debug("tag renamed on versions", zap.Uint("tag_id", tag.ID), zap.Int("versions", n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(scope, parentID, tagID)
}

// Delete detaches the tag from every version, clears draft marks left without tags, then drops the tag
func (s *TagService) Delete(p Principal, scope string, parentID, tagID uint) error {
	if err := forbidReviewer(p, "delete"); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		tag, err := loadScopedTag(tx, scope, parentID, tagID)
		if err != nil {
			return err
		}
		detached, err := DetachTag(tx, tag.ID, nil)
		if err != nil {
			return err
		}
		if err := clearOrphanDrafts(tx, detached); err != nil {
			return err
		}
		return deleteTagRows(tx, []uint{tag.ID})
	})
}

func linkDistributionLists(tx *gorm.DB, tagID uint, lists []models.DistributionList) error {
	if len(lists) == 0 {
		return nil
	}
	links := make([]models.TagDistributionList, 0, len(lists))
	for _, dl := range lists {
		links = append(links, models.TagDistributionList{TagID: tagID, DistributionListID: dl.ID})
	}
	if err := tx.Create(&links).Error; err != nil {
		return errors.Wrap(err, "link distribution lists")
	}
	return nil
}

func deleteTagRows(tx *gorm.DB, tagIDs []uint) error {
	if len(tagIDs) == 0 {
		return nil
	}
	if err := tx.Where("tag_id IN ?", tagIDs).Delete(&models.TagDistributionList{}).Error; err != nil {
		return errors.Wrap(err, "delete tag distribution list links")
	}
	if err := tx.Where("id IN ?", tagIDs).Delete(&models.Tag{}).Error; err != nil {
		return errors.Wrap(err, "delete tags")
	}
	return nil
}

// AddRecords attaches outputs to a tag. Outputs already carrying the tag on any version are reported, not re-added.
func (s *TagService) AddRecords(p Principal, scope string, parentID, tagID uint, in RecordsRequest) (*AddRecordsResult, error) {
	if err := forbidReviewer(p, "update"); err != nil {
		return nil, err
	}
	requested := uniqueIDs(types.IDs(in.RecordIDs))
	if len(requested) == 0 {
		return nil, types.Validation("record_ids", "At least one record id is required")
	}

	var result *AddRecordsResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		tag, err := loadScopedTag(tx, scope, parentID, tagID)
		if err != nil {
			return err
		}
		parent, err := ResolveTagParent(tx, scope, parentID)
		if err != nil {
			return err
		}

		var outputs []models.OutputDetail
		if err := tx.Where("id IN ?", requested).Order("id").Find(&outputs).Error; err != nil {
			return errors.Wrap(err, "load outputs")
		}
		if len(outputs) == 0 {
			return types.NotFound("No matching records found.", idStrings(requested)...)
		}

		carrying, err := outputsCarrying(tx, tag.ID, outputIDsOf(outputs))
		if err != nil {
			return err
		}

		result = &AddRecordsResult{
			TagID:               tag.ID,
			TagName:             tag.TagName,
			AddedRecords:        []string{},
			AlreadyAddedRecords: []string{},
		}
		var fresh []models.OutputDetail
		for _, o := range outputs {
			if carrying[o.ID] {
				result.AlreadyAddedRecords = append(result.AlreadyAddedRecords, o.Identifier)
			} else {
				fresh = append(fresh, o)
			}
		}
		if len(fresh) == 0 {
			result.Message = "No new records added to the tag."
			return nil
		}

		paths, err := candidatePaths(tx, outputIDsOf(outputs))
		if err != nil {
			return err
		}
		if err := CheckTagConflict(tx, tag.TagName, tag.SourceID, identifiersOf(fresh), ScopeOf(parent), paths); err != nil {
			return err
		}
		if parent.SourceName == models.SourceDocs {
			if err := markDraft(tx, fresh, in.IdentifyAsDraft == nil || *in.IdentifyAsDraft); err != nil {
				return err
			}
		}
		if _, err := AttachTag(tx, tag.ID, tag.TagName, outputIDsOf(fresh)); err != nil {
			return err
		}

		result.Message = "Records added to tag."
		result.AddedRecords = identifiersOf(fresh)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveRecords detaches outputs from a tag, on every version that carries it
func (s *TagService) RemoveRecords(p Principal, scope string, parentID, tagID uint, in RecordsRequest) (*RemoveRecordsResult, error) {
	if err := forbidReviewer(p, "remove"); err != nil {
		return nil, err
	}
	requested := uniqueIDs(types.IDs(in.RecordIDs))
	if len(requested) == 0 {
		return nil, types.Validation("record_ids", "At least one record id is required")
	}

	var result *RemoveRecordsResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		tag, err := loadScopedTag(tx, scope, parentID, tagID)
		if err != nil {
			return err
		}

		var outputs []models.OutputDetail
		if err := tx.Where("id IN ?", requested).Order("id").Find(&outputs).Error; err != nil {
			return errors.Wrap(err, "load outputs")
		}
		if len(outputs) == 0 {
			return types.NotFound("No matching records found for removal.", idStrings(requested)...)
		}

		carrying, err := outputsCarrying(tx, tag.ID, outputIDsOf(outputs))
		if err != nil {
			return err
		}

		result = &RemoveRecordsResult{
			TagID:                tag.ID,
			TagName:              tag.TagName,
			RemovedRecords:       []string{},
			NotAssociatedRecords: []string{},
		}
		var removed []uint
		for _, o := range outputs {
			if carrying[o.ID] {
				removed = append(removed, o.ID)
				result.RemovedRecords = append(result.RemovedRecords, o.Identifier)
			} else {
				result.NotAssociatedRecords = append(result.NotAssociatedRecords, o.Identifier)
			}
		}
		if len(removed) == 0 {
			verr := types.Validation("record_ids", "No records had the specified tag associated.")
			verr.IDs = result.NotAssociatedRecords
			return verr
		}

		if _, err := DetachTag(tx, tag.ID, removed); err != nil {
			return err
		}
		if err := clearOrphanDrafts(tx, removed); err != nil {
			return err
		}
		result.Message = "Records removed from tag."
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddUsers appends comma separated usernames to the direct members of a tag
func (s *TagService) AddUsers(p Principal, scope string, parentID, tagID uint, usernames string) (*TagUsersResult, error) {
	if err := forbidReviewer(p, "update"); err != nil {
		return nil, err
	}
	names := types.SplitNames([]string{usernames})
	if len(names) == 0 {
		return nil, types.Validation("usernames", "No valid usernames provided")
	}

	var result *TagUsersResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		tag, err := loadScopedTag(tx, scope, parentID, tagID)
		if err != nil {
			return err
		}
		existing := nameSet(tag.Users)
		var added []string
		for _, n := range names {
			if _, ok := existing[n]; !ok {
				added = append(added, n)
			}
		}
		result = &TagUsersResult{TagID: tag.ID}
		if len(added) == 0 {
			result.Message = "No new users added"
			result.Users = tag.Users
			return nil
		}

		tag.Users = append(tag.Users, added...)
		if err := tx.Model(tag).Update("users", tag.Users).Error; err != nil {
			return errors.Wrap(err, "update tag users")
		}
		result.Message = "Users added to tag"
		result.Users = tag.Users
		result.AddedUsers = added
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveUsers drops comma separated usernames from the direct members of a tag
func (s *TagService) RemoveUsers(p Principal, scope string, parentID, tagID uint, usernames string) (*TagUsersResult, error) {
	if err := forbidReviewer(p, "update"); err != nil {
		return nil, err
	}
	names := types.SplitNames([]string{usernames})
	if len(names) == 0 {
		return nil, types.Validation("usernames", "No valid usernames provided")
	}

	var result *TagUsersResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		tag, err := loadScopedTag(tx, scope, parentID, tagID)
		if err != nil {
			return err
		}
		drop := nameSet(names)
		existing := nameSet(tag.Users)
		result = &TagUsersResult{TagID: tag.ID}
		for _, n := range names {
			if _, ok := existing[n]; ok {
				result.RemovedUsers = append(result.RemovedUsers, n)
			} else {
				result.NotFound = append(result.NotFound, n)
			}
		}
		if len(result.RemovedUsers) == 0 {
			result.Message = "No matching users found for removal"
			result.Users = tag.Users
			return nil
		}

		remaining := make([]string, 0, len(tag.Users))
		for _, u := range tag.Users {
			if _, ok := drop[u]; !ok {
				remaining = append(remaining, u)
			}
		}
		if len(remaining) == 0 && len(tag.DistributionLists) == 0 {
			return types.Validation("usernames", "A tag needs at least one user or distribution list")
		}
		if err := tx.Model(tag).Update("users", datatypes.JSONSlice[string](remaining)).Error; err != nil {
			return errors.Wrap(err, "update tag users")
		}
		result.Message = "Users removed from tag"
		result.Users = remaining
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// outputsCarrying reports which of the outputs carry the tag on any version
func outputsCarrying(tx *gorm.DB, tagID uint, outputIDs []uint) (map[uint]bool, error) {
	var ids []uint
	if err := quiet(tx).Model(&models.OutputDetailVersion{}).
		Where(hasTagKey(models.TagKey(tagID))).
		Where("output_id IN ?", outputIDs).
		Distinct().
		Pluck("output_id", &ids).Error; err != nil {
		return nil, errors.Wrap(err, "load tagged outputs")
	}
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// markDraft sets the docs shared-as marker on DOCS outputs, audited as a system change
func markDraft(tx *gorm.DB, outputs []models.OutputDetail, draft bool) error {
	value := models.SourceProd
	if draft {
		value = models.SourcePreprod
	}
	for i := range outputs {
		if err := setDocsSharedAs(tx, &outputs[i], &value); err != nil {
			return err
		}
	}
	return nil
}

// clearOrphanDrafts drops the draft marker from outputs no longer tagged on any version
func clearOrphanDrafts(tx *gorm.DB, outputIDs []uint) error {
	untagged, err := UntaggedOutputs(tx, outputIDs)
	if err != nil || len(untagged) == 0 {
		return err
	}

	var outputs []models.OutputDetail
	if err := tx.Where("id IN ? AND docs_shared_as IS NOT NULL", untagged).Find(&outputs).Error; err != nil {
		return errors.Wrap(err, "load draft outputs")
	}
	for i := range outputs {
		if err := setDocsSharedAs(tx, &outputs[i], nil); err != nil {
			return err
		}
	}
	return nil
}

func setDocsSharedAs(tx *gorm.DB, output *models.OutputDetail, value *string) error {
	old := output.DocsSharedAs
	if sameValue(old, value) {
		return nil
	}
	if err := tx.Model(output).Update("docs_shared_as", value).Error; err != nil {
		return errors.Wrapf(err, "update draft status of output %d", output.ID)
	}
	output.DocsSharedAs = value

	key := idString(output.ID)
	prop := "docs_shared_as"
	entry := models.AuditLog{
		UserName:       SystemUser,
		Action:         models.ActionUpdate,
		Timestamp:      time.Now().UTC(),
		ObjectType:     "output_details",
		ObjectKey:      &key,
		ObjectProperty: &prop,
		OldValue:       old,
		NewValue:       value,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return errors.Wrap(err, "audit draft status")
	}
	return nil
}
