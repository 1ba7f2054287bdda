package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"gorm.io/gorm"
)

// OutputCreate ingests an output with its first version
type OutputCreate struct {
	Identifier        string        `json:"identifier"`
	Title             string        `json:"title"`
	FilePath          string        `json:"file_path"`
	FileType          string        `json:"file_type"`
	FileSize          *int64        `json:"file_size"`
	AdrFilepath       string        `json:"adr_filepath"`
	SourceName        string        `json:"source_name"`
	CompoundID        *types.FlexID `json:"compound_id"`
	StudyID           *types.FlexID `json:"study_id"`
	DatabaseReleaseID *types.FlexID `json:"database_release_id"`
	ReportingEffortID *types.FlexID `json:"reporting_effort_id"`
	VersionMajor      int           `json:"version_major"`
	VersionMinor      int           `json:"version_minor"`
	VersionPatch      int           `json:"version_patch"`
}

// VersionCreate is a new physical revision of an output
type VersionCreate struct {
	VersionMajor int    `json:"version_major"`
	VersionMinor int    `json:"version_minor"`
	VersionPatch int    `json:"version_patch"`
	FilePath     string `json:"file_path"`
	FileSize     *int64 `json:"file_size"`
}

type SyncRequest struct {
	TagID     types.FlexID                 `json:"tag_id"`
	OutputIDs types.FlexList[types.FlexID] `json:"output_ids"`
}

type SyncResult struct {
	Message         string `json:"message"`
	TagID           uint   `json:"tag_id"`
	SyncedOutputIDs []uint `json:"synced_output_ids"`
}

type BulkDeleteRequest struct {
	IDs types.FlexList[types.FlexID] `json:"ids"`
}

type BulkDeleteResult struct {
	Message       string `json:"message"`
	DeletedIDs    []uint `json:"deleted_ids"`
	DeletedTagIDs []uint `json:"deleted_tag_ids"`
}

// OutputFilter narrows an output listing; zero values are ignored
type OutputFilter struct {
	CompoundID        uint
	StudyID           uint
	DatabaseReleaseID uint
	ReportingEffortID uint
	Identifier        string
	SourceName        string
}

type OutputService struct {
	cfg   *config.Config
	db    *gorm.DB
	store ObjectStore
	log   *zap.Logger
}

func NewOutputService(cfg *config.Config, db *gorm.DB, store ObjectStore, log *zap.Logger) *OutputService {
	return &OutputService{cfg: cfg, db: db, store: store, log: log}
}

func (s *OutputService) fileSize(ctx context.Context, given *int64, filePath string) (int64, error) {
	if given != nil {
		return *given, nil
	}
	if s.store == nil {
		return 0, nil
	}
	info, err := s.store.Stat(ctx, filePath)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// placeOutput fills the hierarchy pointers and names from the deepest level given
func placeOutput(tx *gorm.DB, o *models.OutputDetail, in OutputCreate) error {
	var dbr *models.DatabaseRelease

	switch {
	case in.ReportingEffortID != nil:
		var re models.ReportingEffort
		if err := tx.Preload("DatabaseRelease.Study.Compound.Source").First(&re, in.ReportingEffortID.Uint()).Error; err != nil {
			return notFoundOr(err, "ReportingEffort", in.ReportingEffortID.Uint())
		}
		id := re.ID
		o.ReportingEffortID, o.ReportingEffortName = &id, re.Name
		dbr = re.DatabaseRelease

	case in.DatabaseReleaseID != nil:
		var d models.DatabaseRelease
		if err := tx.Preload("Study.Compound.Source").First(&d, in.DatabaseReleaseID.Uint()).Error; err != nil {
			return notFoundOr(err, "DatabaseRelease", in.DatabaseReleaseID.Uint())
		}
		dbr = &d

	case in.StudyID != nil:
		var st models.Study
		if err := tx.Preload("Compound.Source").First(&st, in.StudyID.Uint()).Error; err != nil {
			return notFoundOr(err, "Study", in.StudyID.Uint())
		}
		placeStudy(o, &st)
		return nil

	case in.CompoundID != nil:
		var c models.Compound
		if err := tx.Preload("Source").First(&c, in.CompoundID.Uint()).Error; err != nil {
			return notFoundOr(err, "Compound", in.CompoundID.Uint())
		}
		placeCompound(o, &c)
		return nil

	default:
		return nil
	}

	if dbr != nil {
		id := dbr.ID
		o.DatabaseReleaseID, o.DatabaseReleaseName = &id, dbr.Name
		if dbr.Study != nil {
			placeStudy(o, dbr.Study)
		}
	}
	return nil
}

func placeStudy(o *models.OutputDetail, st *models.Study) {
	id := st.ID
	o.StudyID, o.StudyName = &id, st.Name
	if st.Compound != nil {
		placeCompound(o, st.Compound)
	}
}

func placeCompound(o *models.OutputDetail, c *models.Compound) {
	id := c.ID
	o.CompoundID, o.CompoundName = &id, c.Name
	o.SourceID = c.SourceID
	if c.Source != nil {
		o.SourceName = c.Source.Name
	}
}

func notFoundOr(err error, label string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NotFound(fmt.Sprintf("%s %d not found", label, id), idString(id))
	}
	return errors.Wrapf(err, "load %s", label)
}

// Create stores an output and its first version, latest with an empty tag map
func (s *OutputService) Create(ctx context.Context, in OutputCreate) (*models.OutputDetail, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" {
		return nil, types.Validation("identifier", "Identifier is required")
	}
	if strings.TrimSpace(in.FilePath) == "" {
		return nil, types.Validation("file_path", "File path is required")
	}
	size, err := s.fileSize(ctx, in.FileSize, in.FilePath)
	if err != nil {
		return nil, err
	}

	major, minor, patch := in.VersionMajor, in.VersionMinor, in.VersionPatch
	if major == 0 && minor == 0 && patch == 0 {
		major = 1
	}

	output := models.OutputDetail{
		Identifier:  identifier,
		Title:       in.Title,
		FilePath:    in.FilePath,
		LogicalPath: models.LogicalPath(in.FilePath),
		FileType:    in.FileType,
		AdrFilepath: in.AdrFilepath,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := placeOutput(tx, &output, in); err != nil {
			return err
		}
		if output.SourceName == "" {
			name := strings.ToUpper(in.SourceName)
			if name == "" {
				name = s.cfg.DefaultSource
			}
			var src models.Source
			if err := tx.Where("name = ?", name).First(&src).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return types.NotFound(fmt.Sprintf("Source '%s' not found", name), name)
				}
				return errors.Wrap(err, "load source")
			}
			output.SourceID, output.SourceName = src.ID, src.Name
		}

		output.Versions = []models.OutputDetailVersion{{
			VersionMajor: major,
			VersionMinor: minor,
			VersionPatch: patch,
			FilePath:     in.FilePath,
			FileSize:     size,
			IsLatest:     true,
			Tags:         models.TagMap{},
		}}
		if err := tx.Create(&output).Error; err != nil {
			return errors.Wrap(err, "create output")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("output ingested",
		zap.Uint("id", output.ID), zap.String("identifier", output.Identifier), zap.String("source", output.SourceName))
	return &output, nil
}

// Get returns one output with every version, gated for reviewers
func (s *OutputService) Get(p Principal, id uint) (*models.OutputDetail, error) {
	var output models.OutputDetail
	err := s.db.Preload("Versions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("version_major, version_minor, version_patch")
	}).First(&output, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Output", id)
	}
	if err := AuthorizeOrDeny(s.db, p.Username, p.Role, []uint{id}); err != nil {
		return nil, err
	}
	return &output, nil
}

// List returns outputs with their latest version. Reviewers only see what their tags reach.
func (s *OutputService) List(p Principal, f OutputFilter) ([]models.OutputDetail, error) {
	q := s.db.Preload("Versions", "is_latest = ?", true).Order("id")
	if f.CompoundID != 0 {
		q = q.Where("compound_id = ?", f.CompoundID)
	}
	if f.StudyID != 0 {
		q = q.Where("study_id = ?", f.StudyID)
	}
	if f.DatabaseReleaseID != 0 {
		q = q.Where("database_release_id = ?", f.DatabaseReleaseID)
	}
	if f.ReportingEffortID != 0 {
		q = q.Where("reporting_effort_id = ?", f.ReportingEffortID)
	}
	if f.Identifier != "" {
		q = q.Where("identifier = ?", f.Identifier)
	}
	if f.SourceName != "" {
		q = q.Where("source_name = ?", strings.ToUpper(f.SourceName))
	}

	if p.IsReviewer() {
		accessible, err := AccessibleOutputs(s.db, p.Username)
		if err != nil {
			return nil, err
		}
		if len(accessible) == 0 {
			return []models.OutputDetail{}, nil
		}
		ids := make([]uint, 0, len(accessible))
		for id := range accessible {
			ids = append(ids, id)
		}
		q = q.Where("id IN ?", ids)
	}

	var outputs []models.OutputDetail
	if err := q.Find(&outputs).Error; err != nil {
		return nil, errors.Wrap(err, "list outputs")
	}
	return outputs, nil
}

// Promote adds a new latest version, stat'ing storage for the size when it is not given
func (s *OutputService) Promote(ctx context.Context, outputID uint, in VersionCreate) (*models.OutputDetailVersion, error) {
	if strings.TrimSpace(in.FilePath) == "" {
		return nil, types.Validation("file_path", "File path is required")
	}
	size, err := s.fileSize(ctx, in.FileSize, in.FilePath)
	if err != nil {
		return nil, err
	}

	next := &models.OutputDetailVersion{
		VersionMajor: in.VersionMajor,
		VersionMinor: in.VersionMinor,
		VersionPatch: in.VersionPatch,
		FilePath:     in.FilePath,
		FileSize:     size,
	}
	if err := PromoteVersion(s.db.WithContext(ctx), outputID, next); err != nil {
		return nil, err
	}
	s.log.Info("version promoted",
		zap.Uint("output_id", outputID), zap.String("version", next.Version()))
	return next, nil
}

// Sync copies a tag onto the latest version of the outputs that carry it on an older version
func (s *OutputService) Sync(ctx context.Context, p Principal, in SyncRequest) (*SyncResult, error) {
	if p.IsReviewer() {
		return nil, types.Forbidden("Reviewers are not authorized to sync tags.")
	}
	tagID := in.TagID.Uint()
	if tagID == 0 {
		return nil, types.Validation("tag_id", "tag_id is required")
	}

	var outputIDs []uint
	if len(in.OutputIDs) > 0 {
		outputIDs = uniqueIDs(types.IDs(in.OutputIDs))
	}

	var synced []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &models.Tag{}, tagID, "Tag"); err != nil {
			return err
		}
		var err error
		synced, err = SyncTagsToLatest(tx, tagID, outputIDs)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &SyncResult{TagID: tagID, SyncedOutputIDs: uniqueIDs(synced)}
	if len(synced) == 0 {
		result.Message = "Latest versions already carry the tag."
	} else {
		result.Message = "Tag synced to latest versions."
	}
	return result, nil
}

// BulkDelete removes outputs with their versions. Tags left on no version are deleted, and
// open shared folder rows for the removed outputs are closed.
func (s *OutputService) BulkDelete(ctx context.Context, p Principal, in BulkDeleteRequest) (*BulkDeleteResult, error) {
	if p.IsReviewer() {
		return nil, types.Forbidden("Reviewers are not authorized to delete outputs.")
	}
	ids := uniqueIDs(types.IDs(in.IDs))
	if len(ids) == 0 {
		return nil, types.Validation("ids", "At least one output id is required")
	}

	result := &BulkDeleteResult{Message: "Outputs deleted", DeletedIDs: ids, DeletedTagIDs: []uint{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadOutputs(tx, ids); err != nil {
			return err
		}

		var versions []models.OutputDetailVersion
		if err := quiet(tx).Select("id", "output_id", "tags").Where("output_id IN ?", ids).Find(&versions).Error; err != nil {
			return errors.Wrap(err, "load versions")
		}
		touched := make(map[uint]struct{})
		for _, v := range versions {
			for key := range v.Tags {
				if id, ok := parseID(key); ok {
					touched[id] = struct{}{}
				}
			}
		}

		if err := tx.Where("output_id IN ?", ids).Delete(&models.OutputDetailVersion{}).Error; err != nil {
			return errors.Wrap(err, "delete versions")
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.OutputDetail{}).Error; err != nil {
			return errors.Wrap(err, "delete outputs")
		}

		now := time.Now().UTC()
		var orphans []uint
		for tagID := range touched {
			if err := closeOutputRows(tx, tagID, ids, now); err != nil {
				return err
			}
			var remaining int64
			if err := tx.Model(&models.OutputDetailVersion{}).
				Where(hasTagKey(models.TagKey(tagID))).
				Count(&remaining).Error; err != nil {
				return errors.Wrap(err, "count tagged versions")
			}
			if remaining == 0 {
				orphans = append(orphans, tagID)
			}
		}
		result.DeletedTagIDs = uniqueIDs(orphans)
		return deleteTagRows(tx, result.DeletedTagIDs)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("outputs deleted",
		zap.Int("outputs", len(ids)), zap.Int("orphan_tags", len(result.DeletedTagIDs)), zap.String("by", p.Username))
	return result, nil
}
