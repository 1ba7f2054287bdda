package models

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Tag scopes
const (
	ScopeDatabaseRelease = "database_release"
	ScopeReportingEffort = "reporting_effort"
)

// Reasons a tag can be shared for
var TagReasons = []string{
	"First Dry Run",
	"Final Dry Run",
	"TLR",
	"CSR",
	"IA",
	"Ad-hoc/Exploratory",
	"Publication",
	"HAQ/Briefing Book",
	"SET/IDMC",
	"DSUR/PBRER/ACO/IB",
	"SCS/ISS/SCE/ISE/SCP/CO/RMP/ADR",
	"Other",
}

// IsTagReason reports whether reason is one of TagReasons
func IsTagReason(reason string) bool {
	for _, r := range TagReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// Tag groups output file versions under a name and grants read access to its members.
// Database release and reporting effort tags share this table; Scope plus ParentID say which.
type Tag struct {
	ID                uint                        `gorm:"primaryKey" json:"id"`
	Scope             string                      `gorm:"size:32;not null;uniqueIndex:idx_tag_scope_name" json:"scope"`
	ParentID          uint                        `gorm:"not null;uniqueIndex:idx_tag_scope_name" json:"parent_id"`
	TagName           string                      `gorm:"size:255;not null" json:"tag_name"`
	NameKey           string                      `gorm:"size:255;not null;uniqueIndex:idx_tag_scope_name" json:"-"`
	Reason            string                      `gorm:"size:64" json:"reason"`
	Users             datatypes.JSONSlice[string] `json:"users"`
	SourceID          uint                        `gorm:"not null;index" json:"source_id"`
	DistributionLists []DistributionList          `gorm:"many2many:tag_distribution_lists" json:"-"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

// Key is the tag map key for this tag
func (t *Tag) Key() string {
	return TagKey(t.ID)
}

// AuditObjectType is the object type recorded in audit entries for this tag
func (t *Tag) AuditObjectType() string {
	return TagObjectType(t.Scope)
}

// TagKey formats a tag id as a tag map key
func TagKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// TagObjectType maps a scope to its audit object type
func TagObjectType(scope string) string {
	if scope == ScopeReportingEffort {
		return "reporting_effort_tag"
	}
	return "database_release_tag"
}

// TagDistributionList is the join row between tags and distribution lists
type TagDistributionList struct {
	TagID              uint `gorm:"primaryKey"`
	DistributionListID uint `gorm:"primaryKey"`
}

func (TagDistributionList) TableName() string {
	return "tag_distribution_lists"
}
