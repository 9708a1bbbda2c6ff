package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	inats "github.com/mantled-app/creator-api/internal/nats"
)

// Emitter implements generation.Analytics over JetStream. It is strictly
// best-effort: publish failures are logged at debug level and swallowed,
// so telemetry can never affect a generation call.
type Emitter struct {
	publisher *inats.Publisher
	now       func() time.Time
}

func NewEmitter(publisher *inats.Publisher) *Emitter {
	return &Emitter{publisher: publisher, now: time.Now}
}

func (e *Emitter) Emit(ctx context.Context, event string, userID uuid.UUID, props map[string]any) {
	err := e.publisher.PublishAnalyticsEvent(ctx, inats.AnalyticsEvent{
		Event:      event,
		UserID:     userID,
		Properties: props,
		Timestamp:  e.now().UTC(),
	})
	if err != nil {
		slog.Debug("analytics emit dropped", "event", event, "error", err)
	}
}
