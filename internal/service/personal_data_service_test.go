package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anama-app/personal-data-api/internal/cryptox"
	"github.com/anama-app/personal-data-api/internal/dto"
	"github.com/anama-app/personal-data-api/internal/models"
	"github.com/anama-app/personal-data-api/internal/repository"
)

type serviceFixture struct {
	db      *gorm.DB
	service PersonalDataService
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PersonalData{}, &models.AuditLog{}))

	key, err := cryptox.KeyFromHex(strings.Repeat("0f", cryptox.KeySize))
	require.NoError(t, err)
	fieldCipher, err := cryptox.NewFieldCipher(key)
	require.NoError(t, err)

	svc := NewPersonalDataService(
		repository.NewPersonalDataRepository(db),
		repository.NewAuditLogRepository(db),
		fieldCipher,
		nil,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.Nop(),
	)

	return serviceFixture{db: db, service: svc}
}

func strPtr(s string) *string { return &s }

func saveRequest(visitorID string) dto.SavePersonalDataRequest {
	return dto.SavePersonalDataRequest{
		VisitorID:      visitorID,
		FullName:       strPtr("Aigerim"),
		Email:          strPtr("aigerim@example.kz"),
		Phone:          strPtr("77011234567"),
		BirthDate:      strPtr("2015-04-12"),
		ParentFullName: strPtr("Dana"),
		ParentPhone:    strPtr("77017654321"),
	}
}

func auditActions(t *testing.T, db *gorm.DB, visitorID string) []string {
	t.Helper()
	var entries []models.AuditLog
	require.NoError(t, db.Where("visitor_id = ?", visitorID).Order("id ASC").Find(&entries).Error)
	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

func TestPersonalDataServiceSaveAndGet(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Save(ctx, saveRequest("v1"), "10.0.0.1"))

	record, err := f.service.Get(ctx, "v1", "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "v1", record.VisitorID)
	require.Equal(t, "Aigerim", *record.FullName)
	require.Equal(t, "aigerim@example.kz", *record.Email)
	require.Equal(t, "77011234567", *record.Phone)
	require.Equal(t, "2015-04-12", *record.BirthDate)
	require.Equal(t, "Dana", *record.ParentFullName)
	require.Equal(t, "77017654321", *record.ParentPhone)
	require.False(t, record.IsAnonymized)

	// At rest, only tokens are stored.
	var stored models.PersonalData
	require.NoError(t, f.db.Where("visitor_id = ?", "v1").First(&stored).Error)
	require.NotNil(t, stored.FullNameEncrypted)
	require.NotEqual(t, "Aigerim", *stored.FullNameEncrypted)
	require.Contains(t, *stored.FullNameEncrypted, ":")

	require.Equal(t, []string{models.ActionSavePersonalData, models.ActionReadPersonalData}, auditActions(t, f.db, "v1"))
}

func TestPersonalDataServiceUpsertOverwrites(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Save(ctx, saveRequest("v1"), ""))

	updated := saveRequest("v1")
	updated.FullName = strPtr("Aigerim Serikova")
	updated.Phone = nil
	require.NoError(t, f.service.Save(ctx, updated, ""))

	var count int64
	require.NoError(t, f.db.Model(&models.PersonalData{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	record, err := f.service.Get(ctx, "v1", "")
	require.NoError(t, err)
	require.Equal(t, "Aigerim Serikova", *record.FullName)
	require.Nil(t, record.Phone)
}

func TestPersonalDataServiceSaveRequiresVisitorID(t *testing.T) {
	f := newServiceFixture(t)

	err := f.service.Save(context.Background(), dto.SavePersonalDataRequest{FullName: strPtr("Aigerim")}, "")
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)

	var count int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).Count(&count).Error)
	require.Zero(t, count, "rejected input must not reach the audit trail")
}

func TestPersonalDataServiceSaveSanitizesNames(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	req := saveRequest("v1")
	req.FullName = strPtr("<script>alert(1)</script>Aigerim")
	require.NoError(t, f.service.Save(ctx, req, ""))

	record, err := f.service.Get(ctx, "v1", "")
	require.NoError(t, err)
	require.Equal(t, "Aigerim", *record.FullName)
}

func TestPersonalDataServiceGetMissing(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Get(context.Background(), "ghost", "")
	require.ErrorIs(t, err, ErrPersonalDataNotFound)

	require.Empty(t, auditActions(t, f.db, "ghost"), "failed reads leave no audit entry")
}

func TestPersonalDataServiceGetAbortsOnUndecryptableField(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Save(ctx, saveRequest("v1"), ""))
	require.NoError(t, f.db.Model(&models.PersonalData{}).
		Where("visitor_id = ?", "v1").
		Update("email_encrypted", "not-a-token").Error)

	_, err := f.service.Get(ctx, "v1", "")
	require.ErrorIs(t, err, cryptox.ErrMalformedToken)
}

func TestPersonalDataServiceDelete(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Save(ctx, saveRequest("v1"), "10.0.0.1"))
	require.NoError(t, f.service.Delete(ctx, "v1", "10.0.0.1"))

	_, err := f.service.Get(ctx, "v1", "10.0.0.1")
	require.ErrorIs(t, err, ErrPersonalDataNotFound)

	payload, err := f.service.Export(ctx, "v1", "10.0.0.1")
	require.NoError(t, err)
	require.Nil(t, payload.PersonalData.FullName)
	require.Nil(t, payload.PersonalData.Email)
	require.Nil(t, payload.PersonalData.Phone)
	require.Nil(t, payload.PersonalData.ParentFullName)
	require.Nil(t, payload.PersonalData.ParentPhone)
	require.NotNil(t, payload.PersonalData.DeletedAt)

	var deleteEntry models.AuditLog
	require.NoError(t, f.db.Where("visitor_id = ? AND action = ?", "v1", models.ActionDeletePersonalData).First(&deleteEntry).Error)
	require.Equal(t, true, deleteEntry.Details["gdprRequest"])
}

func TestPersonalDataServiceDeleteMissingVisitorIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Delete(ctx, "ghost", ""))
	require.NoError(t, f.service.Delete(ctx, "ghost", ""))

	require.Equal(t, []string{models.ActionDeletePersonalData, models.ActionDeletePersonalData}, auditActions(t, f.db, "ghost"))
}

func TestPersonalDataServiceAnonymize(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Save(ctx, saveRequest("v1"), ""))
	require.NoError(t, f.service.Anonymize(ctx, "v1", ""))

	// Anonymized rows are not deleted, so Get still serves them.
	record, err := f.service.Get(ctx, "v1", "")
	require.NoError(t, err)
	require.True(t, record.IsAnonymized)
	require.Nil(t, record.FullName)
	require.Nil(t, record.Email)
	require.Nil(t, record.Phone)
	require.Equal(t, "2015-04-12", *record.BirthDate, "birth date is not a scrubbed field")

	payload, err := f.service.Export(ctx, "v1", "")
	require.NoError(t, err)
	require.True(t, payload.PersonalData.IsAnonymized)
	require.Nil(t, payload.PersonalData.FullName)
	require.Nil(t, payload.PersonalData.DeletedAt)
}

func TestPersonalDataServiceExport(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Save(ctx, saveRequest("v1"), "10.0.0.1"))
	_, err := f.service.Get(ctx, "v1", "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, f.service.Delete(ctx, "v1", "10.0.0.1"))

	payload, err := f.service.Export(ctx, "v1", "10.0.0.1")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().UTC(), payload.ExportedAt, 2*time.Second)

	// Newest first; the export's own entry is appended after the
	// history is read, so it is not part of this payload.
	require.Len(t, payload.ActivityLog, 3)
	require.Equal(t, models.ActionDeletePersonalData, payload.ActivityLog[0].Action)
	require.Equal(t, models.ActionReadPersonalData, payload.ActivityLog[1].Action)
	require.Equal(t, models.ActionSavePersonalData, payload.ActivityLog[2].Action)

	// A second export sees the first one.
	payload, err = f.service.Export(ctx, "v1", "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, payload.ActivityLog, 4)
	require.Equal(t, models.ActionExportData, payload.ActivityLog[0].Action)
}

func TestPersonalDataServiceExportMissingVisitor(t *testing.T) {
	f := newServiceFixture(t)

	payload, err := f.service.Export(context.Background(), "ghost", "")
	require.NoError(t, err, "export is best-effort, not an existence check")
	require.Nil(t, payload.PersonalData.VisitorID)
	require.Nil(t, payload.PersonalData.FullName)
	require.Empty(t, payload.ActivityLog)

	require.Equal(t, []string{models.ActionExportData}, auditActions(t, f.db, "ghost"))
}

type failingAuditRepo struct{}

func (failingAuditRepo) Append(ctx context.Context, entry *models.AuditLog) error {
	return errors.New("audit storage unavailable")
}

func (failingAuditRepo) ListByVisitor(ctx context.Context, visitorID string) ([]models.AuditLog, error) {
	return nil, nil
}

func TestPersonalDataServiceAuditWriteFailureFailsOperation(t *testing.T) {
	f := newServiceFixture(t)

	key, err := cryptox.KeyFromHex(strings.Repeat("0f", cryptox.KeySize))
	require.NoError(t, err)
	fieldCipher, err := cryptox.NewFieldCipher(key)
	require.NoError(t, err)

	svc := NewPersonalDataService(
		repository.NewPersonalDataRepository(f.db),
		failingAuditRepo{},
		fieldCipher,
		nil,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.Nop(),
	)

	err = svc.Save(context.Background(), saveRequest("v1"), "")
	require.Error(t, err, "an operation without a persisted audit entry is a failed operation")
	require.Contains(t, err.Error(), "append audit log")
}

type recordingPublisher struct {
	entries []models.AuditLog
}

func (p *recordingPublisher) Publish(ctx context.Context, entry models.AuditLog) {
	p.entries = append(p.entries, entry)
}

func TestPersonalDataServicePublishesAuditEvents(t *testing.T) {
	f := newServiceFixture(t)
	publisher := &recordingPublisher{}

	key, err := cryptox.KeyFromHex(strings.Repeat("0f", cryptox.KeySize))
	require.NoError(t, err)
	fieldCipher, err := cryptox.NewFieldCipher(key)
	require.NoError(t, err)

	svc := NewPersonalDataService(
		repository.NewPersonalDataRepository(f.db),
		repository.NewAuditLogRepository(f.db),
		fieldCipher,
		publisher,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.Nop(),
	)

	require.NoError(t, svc.Save(context.Background(), saveRequest("v1"), "10.0.0.1"))
	require.NoError(t, svc.Delete(context.Background(), "v1", "10.0.0.1"))

	require.Len(t, publisher.entries, 2)
	require.Equal(t, models.ActionSavePersonalData, publisher.entries[0].Action)
	require.Equal(t, models.ActionDeletePersonalData, publisher.entries[1].Action)
	require.Equal(t, "10.0.0.1", publisher.entries[1].IPAddress)
}
