package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/anama-app/personal-data-api/internal/cryptox"
	"github.com/anama-app/personal-data-api/internal/dto"
	"github.com/anama-app/personal-data-api/internal/models"
	"github.com/anama-app/personal-data-api/internal/observability"
	"github.com/anama-app/personal-data-api/internal/repository"
)

// ErrPersonalDataNotFound indicates no active record exists for the visitor.
var ErrPersonalDataNotFound = errors.New("personal data not found")

// PersonalDataService owns the visitor record lifecycle. Every
// operation appends exactly one audit entry; an operation whose audit
// write fails is reported as failed.
type PersonalDataService interface {
	Save(ctx context.Context, req dto.SavePersonalDataRequest, ipAddress string) error
	Get(ctx context.Context, visitorID, ipAddress string) (dto.PersonalDataResponse, error)
	Delete(ctx context.Context, visitorID, ipAddress string) error
	Anonymize(ctx context.Context, visitorID, ipAddress string) error
	Export(ctx context.Context, visitorID, ipAddress string) (dto.ExportResponse, error)
}

type personalDataService struct {
	records   repository.PersonalDataRepository
	audits    repository.AuditLogRepository
	cipher    *cryptox.FieldCipher
	publisher AuditPublisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewPersonalDataService constructs the store. The publisher is
// optional; pass nil when no audit event stream is configured.
func NewPersonalDataService(
	records repository.PersonalDataRepository,
	audits repository.AuditLogRepository,
	cipher *cryptox.FieldCipher,
	publisher AuditPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) PersonalDataService {
	return &personalDataService{
		records:   records,
		audits:    audits,
		cipher:    cipher,
		publisher: publisher,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "personal_data_service").Logger(),
		tracer:    otel.Tracer("github.com/anama-app/personal-data-api/internal/service/personaldata"),
	}
}

func (s *personalDataService) Save(ctx context.Context, req dto.SavePersonalDataRequest, ipAddress string) error {
	ctx, span := s.tracer.Start(ctx, "personaldata.save",
		trace.WithAttributes(attribute.String("visitor.id", req.VisitorID)))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return err
	}

	record := models.PersonalData{VisitorID: strings.TrimSpace(req.VisitorID)}

	var err error
	if record.FullNameEncrypted, err = s.cipher.Encrypt(s.cleanName(req.FullName)); err != nil {
		return s.fail(span, record.VisitorID, models.ActionSavePersonalData, fmt.Errorf("encrypt full name: %w", err))
	}
	if record.EmailEncrypted, err = s.cipher.Encrypt(trimmed(req.Email)); err != nil {
		return s.fail(span, record.VisitorID, models.ActionSavePersonalData, fmt.Errorf("encrypt email: %w", err))
	}
	if record.PhoneEncrypted, err = s.cipher.Encrypt(trimmed(req.Phone)); err != nil {
		return s.fail(span, record.VisitorID, models.ActionSavePersonalData, fmt.Errorf("encrypt phone: %w", err))
	}
	if record.ParentFullNameEncrypted, err = s.cipher.Encrypt(s.cleanName(req.ParentFullName)); err != nil {
		return s.fail(span, record.VisitorID, models.ActionSavePersonalData, fmt.Errorf("encrypt parent full name: %w", err))
	}
	if record.ParentPhoneEncrypted, err = s.cipher.Encrypt(trimmed(req.ParentPhone)); err != nil {
		return s.fail(span, record.VisitorID, models.ActionSavePersonalData, fmt.Errorf("encrypt parent phone: %w", err))
	}

	if req.BirthDate != nil {
		birthDate, parseErr := time.Parse(dto.BirthDateLayout, *req.BirthDate)
		if parseErr != nil {
			span.RecordError(parseErr)
			return fmt.Errorf("parse birth date: %w", parseErr)
		}
		record.BirthDate = &birthDate
	}

	if err := s.records.Upsert(ctx, &record); err != nil {
		return s.fail(span, record.VisitorID, models.ActionSavePersonalData, fmt.Errorf("upsert personal data: %w", err))
	}

	if err := s.appendAudit(ctx, record.VisitorID, models.ActionSavePersonalData, nil, ipAddress); err != nil {
		return s.fail(span, record.VisitorID, models.ActionSavePersonalData, err)
	}

	observability.DataOperations().WithLabelValues(models.ActionSavePersonalData, "success").Inc()
	return nil
}

func (s *personalDataService) Get(ctx context.Context, visitorID, ipAddress string) (dto.PersonalDataResponse, error) {
	ctx, span := s.tracer.Start(ctx, "personaldata.get",
		trace.WithAttributes(attribute.String("visitor.id", visitorID)))
	defer span.End()

	record, err := s.records.FindActive(ctx, visitorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "not found")
			return dto.PersonalDataResponse{}, ErrPersonalDataNotFound
		}
		return dto.PersonalDataResponse{}, s.fail(span, visitorID, models.ActionReadPersonalData, fmt.Errorf("find personal data: %w", err))
	}

	view, err := s.decryptRecord(record)
	if err != nil {
		return dto.PersonalDataResponse{}, s.fail(span, visitorID, models.ActionReadPersonalData, err)
	}

	if err := s.appendAudit(ctx, visitorID, models.ActionReadPersonalData, nil, ipAddress); err != nil {
		return dto.PersonalDataResponse{}, s.fail(span, visitorID, models.ActionReadPersonalData, err)
	}

	observability.DataOperations().WithLabelValues(models.ActionReadPersonalData, "success").Inc()
	return view, nil
}

// Delete soft-deletes the record: the row survives for audit
// provenance, the ciphertext columns do not. Missing visitors are a
// no-op so repeated GDPR deletion requests stay harmless.
func (s *personalDataService) Delete(ctx context.Context, visitorID, ipAddress string) error {
	ctx, span := s.tracer.Start(ctx, "personaldata.delete",
		trace.WithAttributes(attribute.String("visitor.id", visitorID)))
	defer span.End()

	if err := s.records.ScrubAndDelete(ctx, visitorID, time.Now().UTC()); err != nil {
		return s.fail(span, visitorID, models.ActionDeletePersonalData, fmt.Errorf("soft delete personal data: %w", err))
	}

	details := datatypes.JSONMap{"gdprRequest": true}
	if err := s.appendAudit(ctx, visitorID, models.ActionDeletePersonalData, details, ipAddress); err != nil {
		return s.fail(span, visitorID, models.ActionDeletePersonalData, err)
	}

	observability.DataOperations().WithLabelValues(models.ActionDeletePersonalData, "success").Inc()
	return nil
}

// Anonymize scrubs the ciphertext columns but keeps the row active;
// deleted_at is untouched so "anonymized" and "deleted" remain
// independent states.
func (s *personalDataService) Anonymize(ctx context.Context, visitorID, ipAddress string) error {
	ctx, span := s.tracer.Start(ctx, "personaldata.anonymize",
		trace.WithAttributes(attribute.String("visitor.id", visitorID)))
	defer span.End()

	if err := s.records.ScrubAndAnonymize(ctx, visitorID); err != nil {
		return s.fail(span, visitorID, models.ActionAnonymizeData, fmt.Errorf("anonymize personal data: %w", err))
	}

	if err := s.appendAudit(ctx, visitorID, models.ActionAnonymizeData, nil, ipAddress); err != nil {
		return s.fail(span, visitorID, models.ActionAnonymizeData, err)
	}

	observability.DataOperations().WithLabelValues(models.ActionAnonymizeData, "success").Inc()
	return nil
}

// Export returns whatever the service still holds for the visitor,
// soft-deleted or not, together with the full audit history newest
// first. A visitor without a record receives an all-null payload
// rather than an error.
func (s *personalDataService) Export(ctx context.Context, visitorID, ipAddress string) (dto.ExportResponse, error) {
	ctx, span := s.tracer.Start(ctx, "personaldata.export",
		trace.WithAttributes(attribute.String("visitor.id", visitorID)))
	defer span.End()

	var exported dto.ExportedPersonalData

	record, err := s.records.Find(ctx, visitorID)
	switch {
	case err == nil:
		view, decryptErr := s.decryptRecord(record)
		if decryptErr != nil {
			return dto.ExportResponse{}, s.fail(span, visitorID, models.ActionExportData, decryptErr)
		}
		exported = dto.ExportedPersonalData{
			VisitorID:      &record.VisitorID,
			FullName:       view.FullName,
			Email:          view.Email,
			Phone:          view.Phone,
			BirthDate:      view.BirthDate,
			ParentFullName: view.ParentFullName,
			ParentPhone:    view.ParentPhone,
			IsAnonymized:   record.IsAnonymized,
			CreatedAt:      &record.CreatedAt,
			UpdatedAt:      &record.UpdatedAt,
			DeletedAt:      record.DeletedAt,
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Export is best-effort portability, not an existence check.
	default:
		return dto.ExportResponse{}, s.fail(span, visitorID, models.ActionExportData, fmt.Errorf("find personal data: %w", err))
	}

	history, err := s.audits.ListByVisitor(ctx, visitorID)
	if err != nil {
		return dto.ExportResponse{}, s.fail(span, visitorID, models.ActionExportData, fmt.Errorf("list audit log: %w", err))
	}

	if err := s.appendAudit(ctx, visitorID, models.ActionExportData, nil, ipAddress); err != nil {
		return dto.ExportResponse{}, s.fail(span, visitorID, models.ActionExportData, err)
	}

	observability.DataOperations().WithLabelValues(models.ActionExportData, "success").Inc()
	return dto.ExportResponse{
		PersonalData: exported,
		ActivityLog:  dto.ActivityLogFromModels(history),
		ExportedAt:   time.Now().UTC(),
	}, nil
}

func (s *personalDataService) decryptRecord(record *models.PersonalData) (dto.PersonalDataResponse, error) {
	view := dto.PersonalDataResponse{
		VisitorID:    record.VisitorID,
		BirthDate:    dto.FormatBirthDate(record.BirthDate),
		IsAnonymized: record.IsAnonymized,
	}

	fields := []struct {
		name  string
		token *string
		out   **string
	}{
		{"full_name", record.FullNameEncrypted, &view.FullName},
		{"email", record.EmailEncrypted, &view.Email},
		{"phone", record.PhoneEncrypted, &view.Phone},
		{"parent_full_name", record.ParentFullNameEncrypted, &view.ParentFullName},
		{"parent_phone", record.ParentPhoneEncrypted, &view.ParentPhone},
	}

	for _, field := range fields {
		plain, err := s.cipher.Decrypt(field.token)
		if err != nil {
			// No partial records: one undecryptable field aborts the read.
			return dto.PersonalDataResponse{}, fmt.Errorf("decrypt %s: %w", field.name, err)
		}
		*field.out = plain
	}

	return view, nil
}

func (s *personalDataService) appendAudit(ctx context.Context, visitorID, action string, details datatypes.JSONMap, ipAddress string) error {
	entry := models.AuditLog{
		VisitorID: visitorID,
		Action:    action,
		Details:   details,
		IPAddress: ipAddress,
	}

	if err := s.audits.Append(ctx, &entry); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, entry)
	}

	return nil
}

// fail records the error on the span and in the operation counter,
// logs it with enough context to diagnose, and passes it through.
// Plaintext field values are never logged.
func (s *personalDataService) fail(span trace.Span, visitorID, action string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, action)
	observability.DataOperations().WithLabelValues(action, "error").Inc()
	s.logger.Error().Err(err).Str("visitor_id", visitorID).Str("action", action).Msg("personal data operation failed")
	return err
}

func (s *personalDataService) cleanName(value *string) *string {
	if value == nil {
		return nil
	}
	clean := strings.TrimSpace(s.sanitizer.Sanitize(*value))
	return &clean
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	clean := strings.TrimSpace(*value)
	return &clean
}
