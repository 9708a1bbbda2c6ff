package generation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Capability identifies one kind of generation task.
type Capability string

const (
	CapabilityText   Capability = "text"
	CapabilityImage  Capability = "image"
	CapabilityAvatar Capability = "avatar"
	CapabilityVideo  Capability = "video"
)

// Capabilities lists all capabilities in their canonical order.
var Capabilities = []Capability{CapabilityText, CapabilityImage, CapabilityAvatar, CapabilityVideo}

func (c Capability) Valid() bool {
	switch c {
	case CapabilityText, CapabilityImage, CapabilityAvatar, CapabilityVideo:
		return true
	}
	return false
}

// Index returns the capability's position in the canonical order.
// Used to address per-tier limit rows.
func (c Capability) Index() int {
	for i, cap := range Capabilities {
		if cap == c {
			return i
		}
	}
	return -1
}

// StyleOptions carries capability-specific generation parameters.
// Only the fields relevant to the request's capability are consulted.
type StyleOptions struct {
	Style       string   `json:"style,omitempty"`
	Tone        string   `json:"tone,omitempty"`
	Width       int      `json:"width,omitempty"`
	Height      int      `json:"height,omitempty"`
	Voice       string   `json:"voice,omitempty"`
	InputImages []string `json:"input_images,omitempty"`
}

// Key returns a stable digest of the style options. The same style key
// always maps to the same mock artifact, which keeps placeholder
// generation reproducible.
func (s StyleOptions) Key() string {
	parts := []string{
		s.Style, s.Tone, s.Voice,
		fmt.Sprintf("%dx%d", s.Width, s.Height),
		fmt.Sprintf("%d", len(s.InputImages)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:8])
}

// Request is an immutable generation request. It is created per call and
// never persisted beyond the audit digest.
type Request struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Capability   Capability
	Prompt       string
	Style        StyleOptions
	ConsentGiven bool
	FaithMode    bool
}

// Result is produced once per successful generation attempt.
type Result struct {
	ArtifactRef string `json:"artifact_ref"`
	ProviderID  string `json:"provider_id"`
	CostUnits   int    `json:"cost_units"`
	LatencyMs   int64  `json:"latency_ms"`
	Model       string `json:"model"`
}

// Attempt outcomes recorded in the audit trail.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

// AuditEntry is one append-only record of a generation attempt. Entries
// for the same call share a RequestID, so a failed-then-recovered fallback
// walk shows up as a pair.
type AuditEntry struct {
	RequestID  uuid.UUID  `json:"request_id"`
	UserID     uuid.UUID  `json:"user_id"`
	Capability Capability `json:"capability"`
	ProviderID string     `json:"provider_id"`
	Outcome    string     `json:"outcome"`
	CostUnits  int        `json:"cost_units"`
	LatencyMs  int64      `json:"latency_ms"`
	CreatedAt  time.Time  `json:"created_at"`
}
