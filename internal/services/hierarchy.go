package services

import (
	"fmt"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"gorm.io/gorm"
)

// TagParent is the resolved placement of a tag: its parent row and the hierarchy names above it
type TagParent struct {
	Scope               string
	ID                  uint
	Name                string
	DatabaseReleaseID   uint
	DatabaseReleaseName string
	StudyID             uint
	StudyName           string
	CompoundID          uint
	CompoundName        string
	SourceID            uint
	SourceName          string
}

// ScopeLabel is the human name of the parent level, used in messages
func (p *TagParent) ScopeLabel() string {
	if p.Scope == models.ScopeReportingEffort {
		return "reporting effort"
	}
	return "database release"
}

// ResolveTagParent loads the database release or reporting effort a tag hangs off, with its ancestry
func ResolveTagParent(db *gorm.DB, scope string, parentID uint) (*TagParent, error) {
	switch scope {
	case models.ScopeDatabaseRelease:
		var dbr models.DatabaseRelease
		if err := quiet(db).Preload("Study.Compound.Source").First(&dbr, parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, types.NotFound(fmt.Sprintf("DatabaseRelease %d not found", parentID), idString(parentID))
			}
			return nil, errors.Wrap(err, "load database release")
		}
		return parentFromRelease(scope, dbr.ID, dbr.Name, &dbr), nil

	case models.ScopeReportingEffort:
		var re models.ReportingEffort
		if err := quiet(db).Preload("DatabaseRelease.Study.Compound.Source").First(&re, parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, types.NotFound(fmt.Sprintf("ReportingEffort %d not found", parentID), idString(parentID))
			}
			return nil, errors.Wrap(err, "load reporting effort")
		}
		if re.DatabaseRelease == nil {
			return nil, errors.Errorf("reporting effort %d has no database release", re.ID)
		}
		return parentFromRelease(scope, re.ID, re.Name, re.DatabaseRelease), nil
	}

	return nil, types.Validation("scope", fmt.Sprintf("unknown tag scope %q", scope))
}

func parentFromRelease(scope string, id uint, name string, dbr *models.DatabaseRelease) *TagParent {
	p := &TagParent{
		Scope:               scope,
		ID:                  id,
		Name:                name,
		DatabaseReleaseID:   dbr.ID,
		DatabaseReleaseName: dbr.Name,
	}
	if dbr.Study != nil {
		p.StudyID = dbr.Study.ID
		p.StudyName = dbr.Study.Name
		if c := dbr.Study.Compound; c != nil {
			p.CompoundID = c.ID
			p.CompoundName = c.Name
			p.SourceID = c.SourceID
			if c.Source != nil {
				p.SourceName = c.Source.Name
			}
		}
	}
	return p
}

// CreateCompound adds a compound under a source, looked up by name
func CreateCompound(db *gorm.DB, name, sourceName string) (*models.Compound, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.Validation("name", "Compound name is required")
	}

	var source models.Source
	if err := db.Where("name = ?", strings.ToUpper(sourceName)).First(&source).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound(fmt.Sprintf("Source '%s' not found", sourceName), sourceName)
		}
		return nil, errors.Wrap(err, "load source")
	}

	var count int64
	if err := db.Model(&models.Compound{}).Where("name = ? AND source_id = ?", name, source.ID).Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "check compound")
	}
	if count > 0 {
		return nil, types.Conflict("name", fmt.Sprintf("Compound '%s' already exists for source %s", name, source.Name))
	}

	compound := models.Compound{Name: name, SourceID: source.ID}
	if err := db.Create(&compound).Error; err != nil {
		return nil, errors.Wrap(err, "create compound")
	}
	compound.Source = &source
	return &compound, nil
}

// CreateStudy adds a study under an existing compound
func CreateStudy(db *gorm.DB, name string, compoundID uint) (*models.Study, error) {
	if err := requireRow(db, &models.Compound{}, compoundID, "Compound"); err != nil {
		return nil, err
	}
	study := models.Study{Name: strings.TrimSpace(name), CompoundID: compoundID}
	if study.Name == "" {
		return nil, types.Validation("name", "Study name is required")
	}
	if err := db.Create(&study).Error; err != nil {
		return nil, errors.Wrap(err, "create study")
	}
	return &study, nil
}

// CreateDatabaseRelease adds a database release under an existing study
func CreateDatabaseRelease(db *gorm.DB, name string, studyID uint) (*models.DatabaseRelease, error) {
	if err := requireRow(db, &models.Study{}, studyID, "Study"); err != nil {
		return nil, err
	}
	dbr := models.DatabaseRelease{Name: strings.TrimSpace(name), StudyID: studyID}
	if dbr.Name == "" {
		return nil, types.Validation("name", "Database release name is required")
	}
	if err := db.Create(&dbr).Error; err != nil {
		return nil, errors.Wrap(err, "create database release")
	}
	return &dbr, nil
}

// CreateReportingEffort adds a reporting effort under an existing database release
func CreateReportingEffort(db *gorm.DB, name string, dbrID uint) (*models.ReportingEffort, error) {
	if err := requireRow(db, &models.DatabaseRelease{}, dbrID, "DatabaseRelease"); err != nil {
		return nil, err
	}
	re := models.ReportingEffort{Name: strings.TrimSpace(name), DatabaseReleaseID: dbrID}
	if re.Name == "" {
		return nil, types.Validation("name", "Reporting effort name is required")
	}
	if err := db.Create(&re).Error; err != nil {
		return nil, errors.Wrap(err, "create reporting effort")
	}
	return &re, nil
}

// ListChildren lists rows of model, optionally filtered by a parent column
func ListChildren[T any](db *gorm.DB, parentColumn string, parentID uint) ([]T, error) {
	var rows []T
	q := db.Order("id")
	if parentID != 0 {
		q = q.Where(parentColumn+" = ?", parentID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list rows")
	}
	return rows, nil
}

func requireRow(db *gorm.DB, model interface{}, id uint, label string) error {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "check %s", label)
	}
	if count == 0 {
		return types.NotFound(fmt.Sprintf("%s %d not found", label, id), idString(id))
	}
	return nil
}

// LookupRole returns the local role of a user; unknown users are reviewers
func LookupRole(db *gorm.DB, username string) (string, error) {
	var user models.User
	err := quiet(db).Select("id", "role").Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoleReviewer, nil
		}
		return "", errors.Wrap(err, "load user")
	}
	if user.Role == "" {
		return models.RoleReviewer, nil
	}
	return user.Role, nil
}
