package models

import "time"

// PersonalData is the single record stored per visitor. Sensitive
// columns hold hex(iv):hex(ciphertext) tokens produced by the field
// cipher, never plaintext.
type PersonalData struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	VisitorID               string     `gorm:"size:64;uniqueIndex;not null" json:"visitor_id"`
	FullNameEncrypted       *string    `gorm:"type:text" json:"-"`
	EmailEncrypted          *string    `gorm:"type:text" json:"-"`
	PhoneEncrypted          *string    `gorm:"type:text" json:"-"`
	BirthDate               *time.Time `gorm:"type:date" json:"birth_date"`
	ParentFullNameEncrypted *string    `gorm:"type:text" json:"-"`
	ParentPhoneEncrypted    *string    `gorm:"type:text" json:"-"`
	IsAnonymized            bool       `gorm:"default:false" json:"is_anonymized"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
	// DeletedAt is a plain timestamp, not gorm.DeletedAt: the scrub
	// semantics are explicit and rows must stay visible to Export.
	DeletedAt *time.Time `json:"deleted_at"`
}
