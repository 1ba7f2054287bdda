package models

import (
	"time"

	"gorm.io/datatypes"
)

// DistributionList is a study scoped group of usernames, editable by its co-owners
type DistributionList struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	Name      string                      `gorm:"size:100;not null;uniqueIndex:idx_dl_study_name" json:"name"`
	StudyID   uint                        `gorm:"not null;uniqueIndex:idx_dl_study_name" json:"study_id"`
	CoOwners  datatypes.JSONSlice[string] `json:"co_owners"`
	Users     datatypes.JSONSlice[string] `json:"users"`
	CreatedBy string                      `gorm:"size:255;not null" json:"created_by"`
	UpdatedBy *string                     `gorm:"size:255" json:"updated_by"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// CanEdit reports whether username is the creator or a co-owner
func (d *DistributionList) CanEdit(username string) bool {
	if d.CreatedBy == username {
		return true
	}
	for _, owner := range d.CoOwners {
		if owner == username {
			return true
		}
	}
	return false
}
