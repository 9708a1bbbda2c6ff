package audit

import (
	"time"

	"github.com/google/uuid"
)

// Log matches the audit_logs table schema. Entries are append-only; this
// subsystem never mutates or deletes them.
type Log struct {
	ID         uuid.UUID `json:"id"`
	RequestID  uuid.UUID `json:"request_id"`
	UserID     uuid.UUID `json:"user_id"`
	Capability string    `json:"capability"`
	ProviderID string    `json:"provider_id,omitempty"`
	Outcome    string    `json:"outcome"`
	CostUnits  int       `json:"cost_units"`
	LatencyMs  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListParams holds pagination and filtering parameters for audit log queries.
type ListParams struct {
	Capability string
	Outcome    string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// DefaultListParams returns sensible defaults.
func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}
