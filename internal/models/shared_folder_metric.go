package models

import "time"

// SharedFolderMetric records that a user could read an output through a tag between two instants.
// FileSharedToTS is nil while the grant is still open.
type SharedFolderMetric struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	TagID            uint       `gorm:"not null;index:idx_sfm_open" json:"tag_id"`
	TagName          string     `gorm:"size:255" json:"tag_name"`
	OutputDetailID   uint       `gorm:"not null;index:idx_sfm_open" json:"output_detail_id"`
	FileSharedTo     string     `gorm:"size:255;not null;index:idx_sfm_open" json:"file_shared_to"`
	FileSharedBy     string     `gorm:"size:255" json:"file_shared_by"`
	FileSharedFromTS time.Time  `gorm:"not null" json:"file_shared_from_ts"`
	FileSharedToTS   *time.Time `gorm:"index" json:"file_shared_to_ts"`
	Comment          *string    `gorm:"size:255" json:"comment"`
	Compound         string     `gorm:"size:255" json:"compound"`
	Study            string     `gorm:"size:255" json:"study"`
	DBR              string     `gorm:"column:dbr;size:255" json:"dbr"`
	RE               string     `gorm:"column:re;size:255" json:"re"`
	FileShared       string     `gorm:"size:1024" json:"file_shared"`
	FileName         string     `gorm:"size:255" json:"file_name"`
	FileVersionMajor *int       `json:"file_version_major"`
	FileVersionMinor *int       `json:"file_version_minor"`
	FileVersionPatch *int       `json:"file_version_patch"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Open reports whether the grant has not been closed
func (m *SharedFolderMetric) Open() bool {
	return m.FileSharedToTS == nil
}
