package nats

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "CREATOR_EVENTS"
	StreamNotify = "CREATOR_NOTIFY"
)

// Subject constants.
const (
	SubjectAuditEvent     = "creator.events.audit"
	SubjectAnalyticsEvent = "creator.events.analytics"
	SubjectNotifyPush     = "creator.notify.push"
)

// AuditEvent is published once per generation attempt and persisted by the
// audit consumer. Its shape mirrors generation.AuditEntry.
type AuditEvent struct {
	RequestID  uuid.UUID             `json:"request_id"`
	UserID     uuid.UUID             `json:"user_id"`
	Capability string                `json:"capability"`
	ProviderID string                `json:"provider_id"`
	Outcome    string                `json:"outcome"`
	CostUnits  int                   `json:"cost_units"`
	LatencyMs  int64                 `json:"latency_ms"`
	CreatedAt  time.Time             `json:"created_at"`
}

// AnalyticsEvent is fire-and-forget product telemetry.
type AnalyticsEvent struct {
	Event      string         `json:"event"`
	UserID     uuid.UUID      `json:"user_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NotificationEvent is consumed by the push-delivery service.
type NotificationEvent struct {
	UserID uuid.UUID         `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}
