package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/anama-app/personal-data-api/internal/models"
	"github.com/anama-app/personal-data-api/internal/observability"
)

// AuditPublisher mirrors committed audit entries onto an event stream
// for downstream compliance consumers. Publication is best-effort:
// the database row is the source of truth, so a publish failure is
// logged and counted but never fails the operation.
type AuditPublisher interface {
	Publish(ctx context.Context, entry models.AuditLog)
}

type auditEvent struct {
	VisitorID string                 `json:"visitor_id"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	SentAt    time.Time              `json:"sent_at"`
}

type natsAuditPublisher struct {
	conn        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
}

// NewNATSAuditPublisher publishes audit events to
// "<subjectBase>.<action>" subjects.
func NewNATSAuditPublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) AuditPublisher {
	return &natsAuditPublisher{
		conn:        conn,
		subjectBase: subjectBase,
		logger:      logger.With().Str("component", "audit_publisher").Logger(),
	}
}

func (p *natsAuditPublisher) Publish(_ context.Context, entry models.AuditLog) {
	event := auditEvent{
		VisitorID: entry.VisitorID,
		Action:    entry.Action,
		IPAddress: entry.IPAddress,
		Timestamp: entry.Timestamp,
		SentAt:    time.Now().UTC(),
	}
	if len(entry.Details) > 0 {
		event.Details = map[string]interface{}(entry.Details)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("action", entry.Action).Msg("failed to encode audit event")
		observability.AuditStreamEvents().WithLabelValues("error").Inc()
		return
	}

	subject := fmt.Sprintf("%s.%s", p.subjectBase, entry.Action)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish audit event")
		observability.AuditStreamEvents().WithLabelValues("error").Inc()
		return
	}

	observability.AuditStreamEvents().WithLabelValues("success").Inc()
}
