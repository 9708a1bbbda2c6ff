package provider

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantled-app/creator-api/internal/generation"
)

func TestMock_Deterministic(t *testing.T) {
	m := NewMock(nil)
	req := generation.Request{
		UserID:     uuid.New(),
		Capability: generation.CapabilityImage,
		Prompt:     "sunrise over hills",
		Style:      generation.StyleOptions{Style: "watercolor", Width: 1024, Height: 768},
	}

	first, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := m.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ArtifactRef, second.ArtifactRef)
	assert.Contains(t, first.ArtifactRef, "mock://image/")
	assert.Equal(t, "mock-v1", first.Model)
	assert.Zero(t, first.CostUnits)
}

func TestMock_StyleChangesArtifact(t *testing.T) {
	m := NewMock(nil)
	req := generation.Request{
		UserID:     uuid.New(),
		Capability: generation.CapabilityImage,
		Style:      generation.StyleOptions{Style: "watercolor"},
	}
	other := req
	other.Style.Style = "oil"

	a, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	b, err := m.Generate(context.Background(), other)
	require.NoError(t, err)

	assert.NotEqual(t, a.ArtifactRef, b.ArtifactRef)
}

func TestMock_RespectsCancellation(t *testing.T) {
	m := NewMock(func() time.Duration { return time.Minute })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Generate(ctx, generation.Request{Capability: generation.CapabilityText})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMock_Descriptor(t *testing.T) {
	d := NewMock(nil).Descriptor()
	assert.Equal(t, "mock", d.ID)
	assert.True(t, d.Configured)
	assert.Zero(t, d.ApproxCostUnits)
}
