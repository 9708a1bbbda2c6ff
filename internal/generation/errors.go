package generation

import "fmt"

// ValidationError reports a malformed or policy-violating request. It is
// returned before any provider is attempted and before any quota unit is
// consumed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// QuotaExceededError is returned when the user's tier allowance for the
// capability is exhausted. No provider is attempted.
type QuotaExceededError struct {
	Capability Capability
	Limit      int
	Remaining  int
	Reason     string
}

func (e *QuotaExceededError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("%s quota exceeded: %d of %d remaining this period", e.Capability, e.Remaining, e.Limit)
}

// ProviderError wraps a single provider's failure during the fallback walk.
type ProviderError struct {
	ProviderID string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.ProviderID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NoProviderConfiguredError is terminal: no configured provider exists for
// the capability and mock mode is not permitted.
type NoProviderConfiguredError struct {
	Capability Capability
}

func (e *NoProviderConfiguredError) Error() string {
	return fmt.Sprintf("no provider configured for capability %s", e.Capability)
}

// PersistenceError reports a failed ledger or audit write. It is logged at
// the orchestration boundary and never fails a produced artifact.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
