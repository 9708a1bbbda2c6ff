package audit

import (
	"context"

	"github.com/mantled-app/creator-api/internal/generation"
	inats "github.com/mantled-app/creator-api/internal/nats"
)

// Sink implements generation.AuditSink by publishing attempt records to
// JetStream; the Consumer persists them out of band so a slow database
// never sits on the generation path.
type Sink struct {
	publisher *inats.Publisher
}

func NewSink(publisher *inats.Publisher) *Sink {
	return &Sink{publisher: publisher}
}

func (s *Sink) Append(ctx context.Context, entry generation.AuditEntry) error {
	return s.publisher.PublishAuditEvent(ctx, inats.AuditEvent{
		RequestID:  entry.RequestID,
		UserID:     entry.UserID,
		Capability: string(entry.Capability),
		ProviderID: entry.ProviderID,
		Outcome:    entry.Outcome,
		CostUnits:  entry.CostUnits,
		LatencyMs:  entry.LatencyMs,
		CreatedAt:  entry.CreatedAt,
	})
}
