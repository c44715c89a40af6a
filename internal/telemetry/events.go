package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"messaging-service/internal/rabbitmq"
)

// Routing keys for message lifecycle events.
const (
	KeyMessageStored = "messages.stored"
	KeyPushDelivered = "messages.push_delivered"
	KeyPushFailed    = "messages.push_failed"
	KeyLiveConnect   = "live.connect"
	KeyLiveClose     = "live.disconnect"
)

// EventEnvelope is the versioned wrapper around every published event.
type EventEnvelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	Environment   string `json:"environment"`
	RequestID     string `json:"request_id,omitempty"`
	Payload       any    `json:"payload"`
}

// MessagePayload describes a stored or pushed message.
type MessagePayload struct {
	MessageID  int64  `json:"message_id"`
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Type       string `json:"type"`
	Reason     string `json:"reason,omitempty"`
}

// LivePayload describes a live-channel lifecycle event.
type LivePayload struct {
	UserID     string `json:"user_id"`
	Transport  string `json:"transport"`
	ConnID     string `json:"conn_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

// Emitter publishes event envelopes through the injected publisher.
// A nil Emitter is safe to call.
type Emitter struct {
	publisher   rabbitmq.Publisher
	service     string
	environment string
	logger      *zap.Logger
}

// NewEmitter constructs an Emitter.
func NewEmitter(publisher rabbitmq.Publisher, service, environment string, logger *zap.Logger) *Emitter {
	return &Emitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
		logger:      logger,
	}
}

// Emit publishes a payload under the routing key. Failures are logged, never
// propagated: events are observability, not control flow.
func (e *Emitter) Emit(ctx context.Context, routingKey, requestID string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := EventEnvelope{
		SchemaVersion: 1,
		EventType:     routingKey,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, routingKey, envelope); err != nil {
		e.logger.Warn("event publish failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
