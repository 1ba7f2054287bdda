package models

import "time"

// Source names
const (
	SourceProd    = "PROD"
	SourcePreprod = "PREPROD"
	SourceDocs    = "DOCS"
)

// Roles
const (
	RoleProgrammer = "programmer"
	RoleReviewer   = "reviewer"
)

// Source is the provenance of a compound's files
type Source struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:8;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Compound struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:idx_compound_source" json:"name"`
	SourceID  uint      `gorm:"not null;uniqueIndex:idx_compound_source" json:"source_id"`
	Source    *Source   `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Study struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	CompoundID uint      `gorm:"not null;index" json:"compound_id"`
	Compound   *Compound `json:"compound,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type DatabaseRelease struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	StudyID   uint      `gorm:"not null;index" json:"study_id"`
	Study     *Study    `json:"study,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ReportingEffort struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	Name              string           `gorm:"size:255;not null" json:"name"`
	DatabaseReleaseID uint             `gorm:"not null;index" json:"database_release_id"`
	DatabaseRelease   *DatabaseRelease `json:"database_release,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// User holds the local role of a principal; authentication happens elsewhere.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:255;not null;uniqueIndex" json:"username"`
	Email     string    `gorm:"size:255" json:"email"`
	Role      string    `gorm:"size:32;not null;default:reviewer" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
