package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions recorded for personal data operations.
const (
	ActionSavePersonalData   = "save_personal_data"
	ActionReadPersonalData   = "read_personal_data"
	ActionDeletePersonalData = "delete_personal_data"
	ActionAnonymizeData      = "anonymize_data"
	ActionExportData         = "export_data"
)

// AuditLog is an append-only trail entry. Entries reference visitors
// by value and outlive the personal data they describe; nothing in
// the service updates or deletes them.
type AuditLog struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	VisitorID string            `gorm:"size:64;index;not null" json:"visitor_id"`
	Action    string            `gorm:"size:50;not null" json:"action"`
	Details   datatypes.JSONMap `json:"details,omitempty"`
	IPAddress string            `gorm:"size:45" json:"ip_address,omitempty"`
	Timestamp time.Time         `gorm:"autoCreateTime" json:"timestamp"`
}
