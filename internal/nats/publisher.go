package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishAuditEvent publishes an audit event for durable persistence.
func (p *Publisher) PublishAuditEvent(ctx context.Context, event AuditEvent) error {
	return p.publish(ctx, SubjectAuditEvent, event)
}

// PublishAnalyticsEvent publishes a telemetry event.
func (p *Publisher) PublishAnalyticsEvent(ctx context.Context, event AnalyticsEvent) error {
	return p.publish(ctx, SubjectAnalyticsEvent, event)
}

// PublishNotification publishes a push notification dispatch request.
func (p *Publisher) PublishNotification(ctx context.Context, event NotificationEvent) error {
	return p.publish(ctx, SubjectNotifyPush, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
