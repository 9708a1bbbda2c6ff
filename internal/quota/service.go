package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mantled-app/creator-api/internal/generation"
)

// UsageStore persists durable per-period attempt counters. The Redis
// ledger is authoritative for enforcement; the store is the auditable
// mirror.
type UsageStore interface {
	RecordAttempt(ctx context.Context, userID uuid.UUID, period string, c generation.Capability, outcome string) error
}

// Service implements generation.Ledger: atomic check-and-reserve against
// the tier policy plus durable attempt accounting.
type Service struct {
	policy *Policy
	ledger *Ledger
	store  UsageStore
	now    func() time.Time
}

func NewService(policy *Policy, ledger *Ledger, store UsageStore) *Service {
	return &Service{
		policy: policy,
		ledger: ledger,
		store:  store,
		now:    time.Now,
	}
}

// WithClock overrides the wall clock, for rollover tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CheckAndReserve atomically reserves one generation unit if the user is
// under the tier's period limit. Storage errors are returned to the caller,
// which denies the request: the policy here is fail closed.
func (s *Service) CheckAndReserve(ctx context.Context, userID uuid.UUID, tier string, c generation.Capability) (generation.Decision, error) {
	now := s.now()
	period := Period(now)
	limit := s.policy.Limit(tier, c)

	if limit == Unlimited {
		if _, err := s.ledger.Increment(ctx, userID, period, c, periodEnd(now)); err != nil {
			return generation.Decision{}, err
		}
		return generation.Decision{Allowed: true, Limit: Unlimited, Remaining: UnlimitedRemaining}, nil
	}

	if limit <= 0 {
		return generation.Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("%s generation is not included in the %s plan", c, tier),
			Limit:   limit,
		}, nil
	}

	allowed, count, err := s.ledger.Reserve(ctx, userID, period, c, limit, periodEnd(now))
	if err != nil {
		return generation.Decision{}, err
	}
	if !allowed {
		return generation.Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("monthly %s limit of %d reached", c, limit),
			Limit:   limit,
		}, nil
	}

	return generation.Decision{Allowed: true, Limit: limit, Remaining: limit - count}, nil
}

// RecordUsage mirrors one attempt into the durable usage store. Failures
// here do not revoke the Redis reservation; they surface as warnings and
// repeated occurrences threaten quota integrity, so callers log them.
func (s *Service) RecordUsage(ctx context.Context, userID uuid.UUID, c generation.Capability, outcome string) error {
	if s.store == nil {
		return nil
	}
	return s.store.RecordAttempt(ctx, userID, Period(s.now()), c, outcome)
}

// GetRemaining returns the caller's remaining allowance for the current
// period. Unlimited tiers report the UnlimitedRemaining sentinel.
func (s *Service) GetRemaining(ctx context.Context, userID uuid.UUID, tier string, c generation.Capability) (int, error) {
	limit := s.policy.Limit(tier, c)
	if limit == Unlimited {
		return UnlimitedRemaining, nil
	}

	used, err := s.ledger.Count(ctx, userID, Period(s.now()), c)
	if err != nil {
		return 0, err
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// CapabilityStatus is one row of the quota status API response.
type CapabilityStatus struct {
	Capability generation.Capability `json:"capability"`
	Used       int                   `json:"used"`
	Limit      int                   `json:"limit"`
	Remaining  int                   `json:"remaining"`
	Unlimited  bool                  `json:"unlimited"`
}

// Status reports current-period usage against the tier's limits for every
// capability. Counter read errors degrade to zero usage rather than
// failing the status call; enforcement does not run through this path.
func (s *Service) Status(ctx context.Context, userID uuid.UUID, tier string) []CapabilityStatus {
	period := Period(s.now())
	out := make([]CapabilityStatus, 0, len(generation.Capabilities))

	for _, c := range generation.Capabilities {
		limit := s.policy.Limit(tier, c)

		used, err := s.ledger.Count(ctx, userID, period, c)
		if err != nil {
			slog.Warn("quota status: reading counter", "user_id", userID, "capability", c, "error", err)
			used = 0
		}

		st := CapabilityStatus{Capability: c, Used: used, Limit: limit}
		if limit == Unlimited {
			st.Unlimited = true
			st.Remaining = UnlimitedRemaining
		} else {
			st.Remaining = limit - used
			if st.Remaining < 0 {
				st.Remaining = 0
			}
		}
		out = append(out, st)
	}

	return out
}
