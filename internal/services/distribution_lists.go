package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"gorm.io/gorm"
)

type DistributionListCreate struct {
	Name     string                 `json:"name"`
	StudyID  types.FlexID           `json:"study_id"`
	CoOwners types.FlexList[string] `json:"co_owners"`
	Users    types.FlexList[string] `json:"users"`
}

type DistributionListUpdate struct {
	Name     *string                 `json:"name"`
	CoOwners *types.FlexList[string] `json:"co_owners"`
	Users    *types.FlexList[string] `json:"users"`
}

// DistributionListFilter narrows a listing; zero values are ignored
type DistributionListFilter struct {
	CompoundID        uint
	StudyID           uint
	DatabaseReleaseID uint
	Name              string
}

type DistributionListService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewDistributionListService(db *gorm.DB, log *zap.Logger) *DistributionListService {
	return &DistributionListService{db: db, log: log}
}

func validateListName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || len(name) > 100 {
		return "", types.Validation("name", "User List name must be between 1 and 100 characters")
	}
	return name, nil
}

func checkOverlap(coOwners, users []string) error {
	owners := nameSet(coOwners)
	var both []string
	for _, u := range users {
		if _, ok := owners[u]; ok {
			both = append(both, u)
		}
	}
	if len(both) == 0 {
		return nil
	}
	sort.Strings(both)
	return types.Validation("users",
		fmt.Sprintf("The following users cannot be both owners and members: %s", strings.Join(both, ", ")))
}

func listNameTaken(tx *gorm.DB, studyID uint, name string, except uint) error {
	var count int64
	q := tx.Model(&models.DistributionList{}).Where("study_id = ? AND name = ?", studyID, name)
	if except != 0 {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&count).Error; err != nil {
		return errors.Wrap(err, "check user list name")
	}
	if count > 0 {
		return types.Conflict("name", fmt.Sprintf("A User List with name '%s' already exists in this study.", name))
	}
	return nil
}

func verifyListOwner(dl *models.DistributionList, username string) error {
	if !dl.CanEdit(username) {
		return types.Forbidden(
			"You don't have permission to perform this action. Only the owners can modify this User List.")
	}
	return nil
}

// Create stores a list owned by the caller; the caller is always among the co-owners
func (s *DistributionListService) Create(p Principal, in DistributionListCreate) (*models.DistributionList, error) {
	name, err := validateListName(in.Name)
	if err != nil {
		return nil, err
	}
	coOwners := types.SplitNames(append([]string{p.Username}, in.CoOwners...))
	if p.Username == "" {
		coOwners = types.SplitNames(in.CoOwners)
	}
	if len(coOwners) == 0 {
		return nil, types.Validation("co_owners", "At least one owner is required")
	}
	users := types.SplitNames(in.Users)
	if err := checkOverlap(coOwners, users); err != nil {
		return nil, err
	}

	dl := models.DistributionList{
		Name:      name,
		StudyID:   in.StudyID.Uint(),
		CoOwners:  coOwners,
		Users:     users,
		CreatedBy: p.Username,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &models.Study{}, dl.StudyID, "Study"); err != nil {
			return err
		}
		if err := listNameTaken(tx, dl.StudyID, name, 0); err != nil {
			return err
		}
		if err := tx.Create(&dl).Error; err != nil {
			return errors.Wrap(err, "create user list")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dl, nil
}

func (s *DistributionListService) Get(id uint) (*models.DistributionList, error) {
	return loadList(s.db, id)
}

func loadList(tx *gorm.DB, id uint) (*models.DistributionList, error) {
	var dl models.DistributionList
	if err := tx.First(&dl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("User List not found", idString(id))
		}
		return nil, errors.Wrap(err, "load user list")
	}
	return &dl, nil
}

// List returns lists, filtered by study directly or through a compound or database release
func (s *DistributionListService) List(f DistributionListFilter) ([]models.DistributionList, error) {
	q := s.db.Model(&models.DistributionList{}).Order("id")

	studyID := f.StudyID
	if f.DatabaseReleaseID != 0 {
		var dbr models.DatabaseRelease
		if err := s.db.First(&dbr, f.DatabaseReleaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, types.NotFound(
					fmt.Sprintf("Database Release with id %d not found", f.DatabaseReleaseID), idString(f.DatabaseReleaseID))
			}
			return nil, errors.Wrap(err, "load database release")
		}
		if studyID != 0 && studyID != dbr.StudyID {
			return nil, types.Validation("database_release_id",
				fmt.Sprintf("Database Release %d does not belong to Study %d", dbr.ID, studyID))
		}
		studyID = dbr.StudyID
	}
	if studyID != 0 {
		q = q.Where("study_id = ?", studyID)
	}
	if f.CompoundID != 0 {
		q = q.Where("study_id IN (?)", s.db.Model(&models.Study{}).Select("id").Where("compound_id = ?", f.CompoundID))
	}
	if f.Name != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(f.Name)+"%")
	}

	var lists []models.DistributionList
	if err := q.Find(&lists).Error; err != nil {
		return nil, errors.Wrap(err, "list user lists")
	}
	return lists, nil
}

// Update changes name, owners, or members. Only the creator or a co-owner may do it.
func (s *DistributionListService) Update(p Principal, id uint, in DistributionListUpdate) (*models.DistributionList, error) {
	var dl *models.DistributionList
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if dl, err = loadList(tx, id); err != nil {
			return err
		}
		if err := verifyListOwner(dl, p.Username); err != nil {
			return err
		}

		if in.Name != nil {
			name, err := validateListName(*in.Name)
			if err != nil {
				return err
			}
			if err := listNameTaken(tx, dl.StudyID, name, dl.ID); err != nil {
				return err
			}
			dl.Name = name
		}
		if in.CoOwners != nil {
			dl.CoOwners = types.SplitNames(*in.CoOwners)
			if len(dl.CoOwners) == 0 {
				return types.Validation("co_owners", "At least one owner is required")
			}
		}
		if in.Users != nil {
			dl.Users = types.SplitNames(*in.Users)
		}
		if err := checkOverlap(dl.CoOwners, dl.Users); err != nil {
			return err
		}

		by := p.Username
		dl.UpdatedBy = &by
		dl.UpdatedAt = time.Now().UTC()
		if err := tx.Save(dl).Error; err != nil {
			return errors.Wrap(err, "save user list")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dl, nil
}

// Delete removes a list and its tag links
func (s *DistributionListService) Delete(p Principal, id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		dl, err := loadList(tx, id)
		if err != nil {
			return err
		}
		if err := verifyListOwner(dl, p.Username); err != nil {
			return err
		}
		if err := tx.Where("distribution_list_id = ?", id).Delete(&models.TagDistributionList{}).Error; err != nil {
			return errors.Wrap(err, "unlink user list from tags")
		}
		if err := tx.Delete(dl).Error; err != nil {
			return errors.Wrap(err, "delete user list")
		}
		s.log.Info("user list deleted", zap.Uint("id", id), zap.String("by", p.Username))
		return nil
	})
}
