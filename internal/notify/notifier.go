package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mantled-app/creator-api/internal/generation"
	inats "github.com/mantled-app/creator-api/internal/nats"
)

// Notifier implements generation.Notifier by publishing a dispatch request
// for the external push-delivery service. Best-effort: a missed
// notification never fails a produced artifact.
type Notifier struct {
	publisher *inats.Publisher
}

func NewNotifier(publisher *inats.Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

var completionTitles = map[generation.Capability]string{
	generation.CapabilityText:   "Your content is ready",
	generation.CapabilityImage:  "Your image is ready",
	generation.CapabilityAvatar: "Your avatar is ready",
	generation.CapabilityVideo:  "Your video is ready",
}

func (n *Notifier) GenerationCompleted(ctx context.Context, userID uuid.UUID, c generation.Capability, res generation.Result) {
	title, ok := completionTitles[c]
	if !ok {
		title = "Your creation is ready"
	}

	err := n.publisher.PublishNotification(ctx, inats.NotificationEvent{
		UserID: userID,
		Title:  title,
		Body:   fmt.Sprintf("Generated with %s. Tap to view.", res.Model),
		Data: map[string]string{
			"capability":   string(c),
			"artifact_ref": res.ArtifactRef,
		},
	})
	if err != nil {
		slog.Warn("completion notification dropped", "user_id", userID, "capability", c, "error", err)
	}
}
