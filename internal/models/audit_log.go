package models

import "time"

// Audit actions
const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionSync     = "SYNC"
	ActionDownload = "DOWNLOAD"
)

// AuditLog is one changed field of one entity in one request
type AuditLog struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	RequestID         string    `gorm:"size:36;index" json:"request_id"`
	UserName          string    `gorm:"size:255;not null" json:"user_name"`
	Action            string    `gorm:"size:16;not null;index" json:"action"`
	Timestamp         time.Time `gorm:"not null;index" json:"timestamp"`
	ObjectType        string    `gorm:"size:64;not null;index:idx_audit_object" json:"object_type"`
	ObjectKey         *string   `gorm:"size:64;index:idx_audit_object" json:"object_key"`
	ObjectProperty    *string   `gorm:"size:128" json:"object_property"`
	OldValue          *string   `gorm:"type:text" json:"old_value"`
	NewValue          *string   `gorm:"type:text" json:"new_value"`
	ProgrammingPlanID *string   `gorm:"size:64" json:"programming_plan_id"`
}
