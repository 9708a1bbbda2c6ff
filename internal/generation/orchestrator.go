package generation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mantled-app/creator-api/internal/metrics"
)

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool
	Reason    string
	Limit     int
	Remaining int
}

// Ledger enforces and records per-user generation allowances. The check
// must be an atomic increment-with-ceiling: concurrent callers for the same
// (user, period, capability) key can never jointly exceed the limit.
type Ledger interface {
	CheckAndReserve(ctx context.Context, userID uuid.UUID, tier string, c Capability) (Decision, error)
	RecordUsage(ctx context.Context, userID uuid.UUID, c Capability, outcome string) error
}

// AuditSink receives append-only attempt records. Append failures are
// logged by the orchestrator but never fail the generation call.
type AuditSink interface {
	Append(ctx context.Context, entry AuditEntry) error
}

// Analytics is a best-effort telemetry sink. Implementations must swallow
// their own failures; nothing emitted here may affect the caller.
type Analytics interface {
	Emit(ctx context.Context, event string, userID uuid.UUID, props map[string]any)
}

// Notifier dispatches a completion notification on success. Best-effort.
type Notifier interface {
	GenerationCompleted(ctx context.Context, userID uuid.UUID, c Capability, res Result)
}

// Orchestrator turns a generation request into a result: quota check,
// aggregating backend, ordered provider fallback, mock fallback, and the
// accounting trail. One instance serves every capability.
type Orchestrator struct {
	registry   *Registry
	aggregator Provider // tried before any direct provider; may be nil
	mock       Provider // used only when the registry permits mock mode; may be nil
	ledger     Ledger
	audit      AuditSink
	analytics  Analytics
	notifier   Notifier
	timeout    time.Duration
	now        func() time.Time
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithAggregator sets the primary aggregating backend.
func WithAggregator(p Provider) Option {
	return func(o *Orchestrator) { o.aggregator = p }
}

// WithMock sets the deterministic placeholder generator.
func WithMock(p Provider) Option {
	return func(o *Orchestrator) { o.mock = p }
}

// WithProviderTimeout bounds each outbound provider call.
func WithProviderTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(registry *Registry, ledger Ledger, audit AuditSink, analytics Analytics, notifier Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:  registry,
		ledger:    ledger,
		audit:     audit,
		analytics: analytics,
		notifier:  notifier,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate runs the full orchestration for one request.
//
// Validation and quota denials return before any network cost and consume
// nothing. Every other outcome records exactly one usage attempt, at least
// one audit entry, and one analytics event, even on the error path.
func (o *Orchestrator) Generate(ctx context.Context, tier string, req Request) (Result, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	if err := ValidateRequest(req); err != nil {
		return Result{}, err
	}

	dec, err := o.ledger.CheckAndReserve(ctx, req.UserID, tier, req.Capability)
	if err != nil {
		// Fail closed: an unreachable ledger denies paid capabilities
		// rather than silently handing out unmetered generations.
		slog.Warn("quota check unavailable, denying request",
			"user_id", req.UserID, "capability", req.Capability, "error", err)
		metrics.QuotaDenialsTotal.WithLabelValues(string(req.Capability), "unavailable").Inc()
		return Result{}, &QuotaExceededError{
			Capability: req.Capability,
			Reason:     "quota service unavailable, please retry",
		}
	}
	if !dec.Allowed {
		metrics.QuotaDenialsTotal.WithLabelValues(string(req.Capability), "exhausted").Inc()
		o.emit(ctx, "generation_denied", req, map[string]any{
			"reason": dec.Reason,
			"limit":  dec.Limit,
		})
		return Result{}, &QuotaExceededError{
			Capability: req.Capability,
			Limit:      dec.Limit,
			Remaining:  0,
			Reason:     dec.Reason,
		}
	}

	req = EnrichRequest(req)

	res, genErr := o.walk(ctx, req)

	outcome := OutcomeSuccess
	switch {
	case genErr != nil && ctx.Err() != nil:
		outcome = OutcomeCancelled
	case genErr != nil:
		outcome = OutcomeFailure
	}

	// Accounting must survive a cancelled caller: a cancelled attempt is
	// still an attempt, so the writes run detached from ctx's cancellation.
	acctCtx := context.WithoutCancel(ctx)

	if err := o.ledger.RecordUsage(acctCtx, req.UserID, req.Capability, outcome); err != nil {
		perr := &PersistenceError{Op: "record usage", Err: err}
		slog.Warn("usage accounting failed", "user_id", req.UserID, "capability", req.Capability, "error", perr)
	}

	o.emit(acctCtx, "generation_attempted", req, map[string]any{
		"outcome":     outcome,
		"provider_id": res.ProviderID,
		"cost_units":  res.CostUnits,
		"latency_ms":  res.LatencyMs,
	})

	if genErr != nil {
		return Result{}, genErr
	}

	if o.notifier != nil {
		o.notifier.GenerationCompleted(ctx, req.UserID, req.Capability, res)
	}
	return res, nil
}

// walk tries the aggregating backend, then each configured provider in
// ascending priority order exactly once, then the mock path. The first
// success short-circuits. There are no per-provider retries.
func (o *Orchestrator) walk(ctx context.Context, req Request) (Result, error) {
	var lastErr error
	attempted := false

	if o.aggregator != nil && o.aggregator.Descriptor().Configured {
		attempted = true
		if res, err := o.attempt(ctx, req, o.aggregator); err == nil {
			return res, nil
		} else {
			lastErr = err
		}
	}

	for _, p := range o.registry.Configured(req.Capability) {
		if ctx.Err() != nil {
			break
		}
		attempted = true
		if res, err := o.attempt(ctx, req, p); err == nil {
			return res, nil
		} else {
			lastErr = err
		}
	}

	if ctx.Err() == nil && o.registry.MockAllowed() && o.mock != nil {
		return o.attempt(ctx, req, o.mock)
	}

	// Cancellation before the first attempt is a cancelled call, not a
	// missing-provider condition.
	if !attempted && ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	if !attempted {
		err := &NoProviderConfiguredError{Capability: req.Capability}
		o.append(ctx, AuditEntry{
			RequestID:  req.ID,
			UserID:     req.UserID,
			Capability: req.Capability,
			Outcome:    OutcomeFailure,
			CreatedAt:  o.now().UTC(),
		})
		return Result{}, err
	}
	return Result{}, lastErr
}

// attempt calls a single provider under the per-call timeout and appends
// one audit entry for it, success or not.
func (o *Orchestrator) attempt(ctx context.Context, req Request, p Provider) (Result, error) {
	d := p.Descriptor()

	callCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := o.now()
	res, err := p.Generate(callCtx, req)
	latency := o.now().Sub(start).Milliseconds()

	entry := AuditEntry{
		RequestID:  req.ID,
		UserID:     req.UserID,
		Capability: req.Capability,
		ProviderID: d.ID,
		LatencyMs:  latency,
		CreatedAt:  o.now().UTC(),
	}

	if err != nil {
		entry.Outcome = OutcomeFailure
		if ctx.Err() != nil {
			entry.Outcome = OutcomeCancelled
		}
		o.append(ctx, entry)
		metrics.GenerationAttemptsTotal.WithLabelValues(string(req.Capability), d.ID, entry.Outcome).Inc()
		slog.Warn("provider attempt failed",
			"request_id", req.ID, "provider", d.ID, "capability", req.Capability, "error", err)
		return Result{}, &ProviderError{ProviderID: d.ID, Err: err}
	}

	res.ProviderID = d.ID
	if res.CostUnits == 0 {
		res.CostUnits = d.ApproxCostUnits
	}
	res.LatencyMs = latency

	entry.Outcome = OutcomeSuccess
	entry.CostUnits = res.CostUnits
	o.append(ctx, entry)
	metrics.GenerationAttemptsTotal.WithLabelValues(string(req.Capability), d.ID, OutcomeSuccess).Inc()
	metrics.GenerationLatency.WithLabelValues(string(req.Capability), d.ID).Observe(float64(latency) / 1000)

	return res, nil
}

// append writes one audit entry. The write is detached from ctx's
// cancellation so entries for cancelled attempts still land.
func (o *Orchestrator) append(ctx context.Context, entry AuditEntry) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Append(context.WithoutCancel(ctx), entry); err != nil {
		perr := &PersistenceError{Op: "audit append", Err: err}
		slog.Warn("audit append failed", "request_id", entry.RequestID, "error", perr)
	}
}

func (o *Orchestrator) emit(ctx context.Context, event string, req Request, props map[string]any) {
	if o.analytics == nil {
		return
	}
	props["capability"] = string(req.Capability)
	props["request_id"] = req.ID.String()
	o.analytics.Emit(ctx, event, req.UserID, props)
}
