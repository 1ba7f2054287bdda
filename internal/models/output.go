package models

import (
	"fmt"
	"strings"
	"time"
)

// OutputDetail is the identity record of a document; its content lives in versions.
type OutputDetail struct {
	ID                  uint    `gorm:"primaryKey" json:"id"`
	Identifier          string  `gorm:"size:255;not null;index" json:"identifier"`
	Title               string  `gorm:"size:512" json:"title"`
	FilePath            string  `gorm:"size:1024;not null" json:"file_path"`
	LogicalPath         string  `gorm:"size:1024;index" json:"logical_path"`
	FileType            string  `gorm:"size:32" json:"file_type"`
	CompoundID          *uint   `gorm:"index" json:"compound_id"`
	CompoundName        string  `gorm:"size:255" json:"compound_name"`
	StudyID             *uint   `gorm:"index" json:"study_id"`
	StudyName           string  `gorm:"size:255" json:"study_name"`
	DatabaseReleaseID   *uint   `gorm:"index" json:"database_release_id"`
	DatabaseReleaseName string  `gorm:"size:255" json:"database_release_name"`
	ReportingEffortID   *uint   `gorm:"index" json:"reporting_effort_id"`
	ReportingEffortName string  `gorm:"size:255" json:"reporting_effort_name"`
	SourceID            uint    `gorm:"index" json:"source_id"`
	SourceName          string  `gorm:"size:8" json:"source_name"`
	AdrFilepath         string  `gorm:"size:1024" json:"adr_filepath"`
	DocsSharedAs        *string `gorm:"size:16" json:"docs_shared_as"`
	IsOutOfSync         bool    `gorm:"not null;default:false" json:"is_out_of_sync"`

	Versions  []OutputDetailVersion `gorm:"foreignKey:OutputID;constraint:OnDelete:CASCADE" json:"versions,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// AuditObjectType names downloads by the deepest hierarchy level the output hangs off.
func (o *OutputDetail) AuditObjectType() string {
	switch {
	case o.ReportingEffortID != nil:
		return "RE_output_details"
	case o.DatabaseReleaseID != nil:
		return "DBR_output_details"
	case o.StudyID != nil:
		return "STUDY_output_details"
	case o.CompoundID != nil:
		return "COMPOUND_output_details"
	}
	return "output_details"
}

// OutputDetailVersion is one physical revision. Exactly one version per output has IsLatest set.
type OutputDetailVersion struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OutputID     uint      `gorm:"not null;index;uniqueIndex:idx_output_version" json:"output_id"`
	VersionMajor int       `gorm:"not null;uniqueIndex:idx_output_version" json:"version_major"`
	VersionMinor int       `gorm:"not null;uniqueIndex:idx_output_version" json:"version_minor"`
	VersionPatch int       `gorm:"not null;uniqueIndex:idx_output_version" json:"version_patch"`
	FilePath     string    `gorm:"size:1024;not null" json:"file_path"`
	FileSize     int64     `json:"file_size"`
	IsLatest     bool      `gorm:"not null;default:false;index" json:"is_latest"`
	Tags         TagMap    `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Version renders major.minor.patch
func (v *OutputDetailVersion) Version() string {
	return fmt.Sprintf("%d.%d.%d", v.VersionMajor, v.VersionMinor, v.VersionPatch)
}

// LogicalPath is the source independent folder position of a file:
// the first two segments and the file name are dropped, so
// "root/PROD/CompoundX/StudyY/DBR1/file.pdf" becomes "CompoundX/StudyY/DBR1".
// Each strip only applies when there is something left after it, so
// "root/PROD/file.pdf" keeps "file.pdf" and "root/file.pdf" keeps "root".
func LogicalPath(filePath string) string {
	parts := strings.Split(filePath, "/")
	if len(parts) > 2 {
		parts = parts[2:]
	}
	if len(parts) > 1 {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, "/")
}
