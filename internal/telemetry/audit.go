package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	ActionTakeOver   = "support_chat.take_over"
	ActionClaim      = "support_chat.claim"
	ActionAuditProbe = "audit.probe"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string `json:"level"`
	Text   string `json:"text"`
	Action string `json:"action"`
	ChatID string `json:"chat_id,omitempty"`
}

// AuditRecord is one auditable admin action.
type AuditRecord struct {
	Level     string
	Text      string
	Action    string
	ChatID    string
	RequestID string
	UserID    *string
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit publishes the record. Failures are logged; auditing never fails the
// request that triggered it.
func (e *AuditEmitter) Emit(ctx context.Context, record AuditRecord) {
	if e == nil || e.publisher == nil {
		return
	}
	if record.Level == "" {
		record.Level = "INFO"
	}

	log.Debug().
		Str("action", record.Action).
		Str("chat_id", record.ChatID).
		Str("request_id", record.RequestID).
		Msg("audit emit")

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     record.RequestID,
		UserID:        record.UserID,
		Payload: AuditPayload{
			Level:  record.Level,
			Text:   record.Text,
			Action: record.Action,
			ChatID: record.ChatID,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Error().Err(err).Str("action", record.Action).Msg("audit publish failed")
	}
}
