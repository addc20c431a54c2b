package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/anama-app/personal-data-api/internal/models"
)

// AuditLogRepository appends and reads the audit trail. There is
// deliberately no update or delete path.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	ListByVisitor(ctx context.Context, visitorID string) ([]models.AuditLog, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository constructs the audit trail repository.
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByVisitor returns the visitor's trail newest first. The id
// tiebreak keeps insertion order stable when two entries share a
// timestamp tick.
func (r *auditLogRepository) ListByVisitor(ctx context.Context, visitorID string) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("visitor_id = ?", visitorID).
		Order("timestamp DESC").
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
