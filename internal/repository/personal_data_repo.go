package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anama-app/personal-data-api/internal/models"
)

// PersonalDataRepository persists visitor records. One row per
// visitor, keyed by the unique visitor_id; rows are never hard
// deleted.
type PersonalDataRepository interface {
	Upsert(ctx context.Context, record *models.PersonalData) error
	FindActive(ctx context.Context, visitorID string) (*models.PersonalData, error)
	Find(ctx context.Context, visitorID string) (*models.PersonalData, error)
	ScrubAndDelete(ctx context.Context, visitorID string, deletedAt time.Time) error
	ScrubAndAnonymize(ctx context.Context, visitorID string) error
}

type personalDataRepository struct {
	db *gorm.DB
}

// NewPersonalDataRepository constructs a repository backed by GORM.
func NewPersonalDataRepository(db *gorm.DB) PersonalDataRepository {
	return &personalDataRepository{db: db}
}

// Upsert inserts the record or, when the visitor already has a row,
// overwrites its columns in place. Concurrent upserts for the same
// visitor are resolved by the database; last committed wins.
func (r *personalDataRepository) Upsert(ctx context.Context, record *models.PersonalData) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "visitor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"full_name_encrypted",
			"email_encrypted",
			"phone_encrypted",
			"birth_date",
			"parent_full_name_encrypted",
			"parent_phone_encrypted",
			"updated_at",
		}),
	}).Create(record).Error
}

// FindActive returns the visitor's row unless it was soft deleted.
func (r *personalDataRepository) FindActive(ctx context.Context, visitorID string) (*models.PersonalData, error) {
	var record models.PersonalData
	err := r.db.WithContext(ctx).
		Where("visitor_id = ? AND deleted_at IS NULL", visitorID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Find returns the visitor's row regardless of deletion state, so
// exports still work on scrubbed records.
func (r *personalDataRepository) Find(ctx context.Context, visitorID string) (*models.PersonalData, error) {
	var record models.PersonalData
	err := r.db.WithContext(ctx).
		Where("visitor_id = ?", visitorID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ScrubAndDelete marks the row deleted and destroys the ciphertext
// columns. Updating a missing visitor is a no-op, not an error.
func (r *personalDataRepository) ScrubAndDelete(ctx context.Context, visitorID string, deletedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PersonalData{}).
		Where("visitor_id = ?", visitorID).
		Updates(map[string]interface{}{
			"deleted_at":                 deletedAt,
			"full_name_encrypted":        nil,
			"email_encrypted":            nil,
			"phone_encrypted":            nil,
			"parent_full_name_encrypted": nil,
			"parent_phone_encrypted":     nil,
		}).Error
}

// ScrubAndAnonymize destroys the ciphertext columns and flags the row
// anonymized, leaving deleted_at untouched. Idempotent.
func (r *personalDataRepository) ScrubAndAnonymize(ctx context.Context, visitorID string) error {
	return r.db.WithContext(ctx).
		Model(&models.PersonalData{}).
		Where("visitor_id = ?", visitorID).
		Updates(map[string]interface{}{
			"is_anonymized":              true,
			"full_name_encrypted":        nil,
			"email_encrypted":            nil,
			"phone_encrypted":            nil,
			"parent_full_name_encrypted": nil,
			"parent_phone_encrypted":     nil,
			"updated_at":                 time.Now().UTC(),
		}).Error
}
