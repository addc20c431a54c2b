package dto

import (
	"time"

	"github.com/anama-app/personal-data-api/internal/models"
)

// BirthDateLayout is the wire format for birth dates.
const BirthDateLayout = "2006-01-02"

// SavePersonalDataRequest is the upsert payload. Every field except
// the visitor id is optional; absent fields are stored as NULL.
type SavePersonalDataRequest struct {
	VisitorID      string  `json:"visitorId" validate:"required,max=64"`
	FullName       *string `json:"fullName" validate:"omitempty,max=255"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	BirthDate      *string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	ParentFullName *string `json:"parentFullName" validate:"omitempty,max=255"`
	ParentPhone    *string `json:"parentPhone" validate:"omitempty,max=32"`
}

// PersonalDataResponse is the decrypted view returned by Get.
type PersonalDataResponse struct {
	VisitorID      string  `json:"visitorId"`
	FullName       *string `json:"fullName"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	BirthDate      *string `json:"birthDate"`
	ParentFullName *string `json:"parentFullName"`
	ParentPhone    *string `json:"parentPhone"`
	IsAnonymized   bool    `json:"isAnonymized"`
}

// ExportedPersonalData is the portability view of a record. Scrubbed
// fields stay null; lifecycle timestamps are included so the subject
// can see when the record was created, changed and deleted.
type ExportedPersonalData struct {
	VisitorID      *string    `json:"visitorId"`
	FullName       *string    `json:"fullName"`
	Email          *string    `json:"email"`
	Phone          *string    `json:"phone"`
	BirthDate      *string    `json:"birthDate"`
	ParentFullName *string    `json:"parentFullName"`
	ParentPhone    *string    `json:"parentPhone"`
	IsAnonymized   bool       `json:"isAnonymized"`
	CreatedAt      *time.Time `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt"`
	DeletedAt      *time.Time `json:"deletedAt"`
}

// ActivityLogEntry is one audit trail line in an export.
type ActivityLogEntry struct {
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ExportResponse is the combined right-to-portability payload.
type ExportResponse struct {
	PersonalData ExportedPersonalData `json:"personalData"`
	ActivityLog  []ActivityLogEntry   `json:"activityLog"`
	ExportedAt   time.Time            `json:"exportedAt"`
}

// FormatBirthDate renders a stored birth date for responses.
func FormatBirthDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(BirthDateLayout)
	return &formatted
}

// ActivityLogFromModels converts audit rows, preserving order.
func ActivityLogFromModels(entries []models.AuditLog) []ActivityLogEntry {
	log := make([]ActivityLogEntry, 0, len(entries))
	for _, entry := range entries {
		var details map[string]interface{}
		if len(entry.Details) > 0 {
			details = map[string]interface{}(entry.Details)
		}
		log = append(log, ActivityLogEntry{
			Action:    entry.Action,
			Details:   details,
			Timestamp: entry.Timestamp,
		})
	}
	return log
}
