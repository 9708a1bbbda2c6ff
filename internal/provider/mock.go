package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/mantled-app/creator-api/internal/generation"
)

// Mock is the deterministic, zero-cost fallback. The same capability and
// style key always map to the same placeholder artifact, which keeps tests
// and offline builds reproducible.
type Mock struct {
	jitter func() time.Duration
}

// NewMock creates the placeholder generator. jitter simulates provider
// latency; pass nil for zero latency (tests).
func NewMock(jitter func() time.Duration) *Mock {
	return &Mock{jitter: jitter}
}

func (m *Mock) Descriptor() generation.Descriptor {
	return generation.Descriptor{
		ID:              "mock",
		Priority:        1000,
		Configured:      true,
		ApproxCostUnits: 0,
	}
}

func (m *Mock) Generate(ctx context.Context, req generation.Request) (generation.Result, error) {
	if m.jitter != nil {
		select {
		case <-time.After(m.jitter()):
		case <-ctx.Done():
			return generation.Result{}, ctx.Err()
		}
	}

	return generation.Result{
		ArtifactRef: fmt.Sprintf("mock://%s/%s", req.Capability, req.Style.Key()),
		Model:       "mock-v1",
		CostUnits:   0,
	}, nil
}
