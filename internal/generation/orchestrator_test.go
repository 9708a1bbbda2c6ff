package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	mu       sync.Mutex
	decision Decision
	checkErr error
	checks   int
	recorded []string
}

func (f *fakeLedger) CheckAndReserve(_ context.Context, _ uuid.UUID, _ string, _ Capability) (Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.checkErr != nil {
		return Decision{}, f.checkErr
	}
	return f.decision, nil
}

func (f *fakeLedger) RecordUsage(_ context.Context, _ uuid.UUID, _ Capability, outcome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, outcome)
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (f *fakeSink) Append(_ context.Context, entry AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

type fakeAnalytics struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAnalytics) Emit(_ context.Context, event string, _ uuid.UUID, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeNotifier) GenerationCompleted(_ context.Context, _ uuid.UUID, _ Capability, _ Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

type stubProvider struct {
	descriptor Descriptor
	result     Result
	err        error
	calls      int
	generate   func(ctx context.Context, req Request) (Result, error)
}

func (s *stubProvider) Descriptor() Descriptor {
	return s.descriptor
}

func (s *stubProvider) Generate(ctx context.Context, req Request) (Result, error) {
	s.calls++
	if s.generate != nil {
		return s.generate(ctx, req)
	}
	if s.err != nil {
		return Result{}, s.err
	}
	return s.result, nil
}

func allowAll() *fakeLedger {
	return &fakeLedger{decision: Decision{Allowed: true, Limit: 10, Remaining: 9}}
}

func textRequest() Request {
	return Request{
		UserID:     uuid.New(),
		Capability: CapabilityText,
		Prompt:     "write a short devotional",
	}
}

func newTestOrchestrator(t *testing.T, registry *Registry, ledger *fakeLedger, opts ...Option) (*Orchestrator, *fakeSink, *fakeAnalytics, *fakeNotifier) {
	t.Helper()
	sink := &fakeSink{}
	anl := &fakeAnalytics{}
	ntf := &fakeNotifier{}
	return NewOrchestrator(registry, ledger, sink, anl, ntf, opts...), sink, anl, ntf
}

func TestOrchestrator_SingleProviderSuccess(t *testing.T) {
	registry := NewRegistry(false)
	p := &stubProvider{
		descriptor: Descriptor{ID: "alpha", Capability: CapabilityText, Priority: 1, Configured: true, ApproxCostUnits: 1},
		result:     Result{ArtifactRef: "ref://1", Model: "alpha-1"},
	}
	registry.Register(p)

	ledger := allowAll()
	o, sink, anl, ntf := newTestOrchestrator(t, registry, ledger)

	res, err := o.Generate(context.Background(), "rooted", textRequest())
	require.NoError(t, err)
	assert.Equal(t, "ref://1", res.ArtifactRef)
	assert.Equal(t, "alpha", res.ProviderID)
	assert.Equal(t, 1, res.CostUnits, "zero cost defaults to the descriptor estimate")

	require.Len(t, sink.entries, 1)
	assert.Equal(t, OutcomeSuccess, sink.entries[0].Outcome)
	assert.Equal(t, []string{OutcomeSuccess}, ledger.recorded)
	assert.Equal(t, []string{"generation_attempted"}, anl.events)
	assert.Equal(t, 1, ntf.calls)
}

func TestOrchestrator_FallbackToSecondProvider(t *testing.T) {
	registry := NewRegistry(false)
	failing := &stubProvider{
		descriptor: Descriptor{ID: "primary", Capability: CapabilityText, Priority: 1, Configured: true},
		err:        errors.New("upstream 500"),
	}
	backup := &stubProvider{
		descriptor: Descriptor{ID: "backup", Capability: CapabilityText, Priority: 2, Configured: true},
		result:     Result{ArtifactRef: "ref://backup"},
	}
	registry.Register(backup)
	registry.Register(failing)

	ledger := allowAll()
	o, sink, _, _ := newTestOrchestrator(t, registry, ledger)

	req := textRequest()
	res, err := o.Generate(context.Background(), "rooted", req)
	require.NoError(t, err)
	assert.Equal(t, "backup", res.ProviderID)
	assert.Equal(t, 1, failing.calls, "no per-provider retries")
	assert.Equal(t, 1, backup.calls)

	// Both attempts audited under the same request ID.
	require.Len(t, sink.entries, 2)
	assert.Equal(t, OutcomeFailure, sink.entries[0].Outcome)
	assert.Equal(t, "primary", sink.entries[0].ProviderID)
	assert.Equal(t, OutcomeSuccess, sink.entries[1].Outcome)
	assert.Equal(t, "backup", sink.entries[1].ProviderID)
	assert.Equal(t, sink.entries[0].RequestID, sink.entries[1].RequestID)

	// One usage attempt for the whole walk, not one per provider.
	assert.Equal(t, []string{OutcomeSuccess}, ledger.recorded)
}

func TestOrchestrator_PriorityOrder(t *testing.T) {
	registry := NewRegistry(false)
	var order []string
	for _, tc := range []struct {
		id       string
		priority int
	}{
		{"third", 30}, {"first", 10}, {"second", 20},
	} {
		id := tc.id
		registry.Register(&stubProvider{
			descriptor: Descriptor{ID: id, Capability: CapabilityText, Priority: tc.priority, Configured: true},
			generate: func(ctx context.Context, req Request) (Result, error) {
				order = append(order, id)
				return Result{}, errors.New("down")
			},
		})
	}

	o, _, _, _ := newTestOrchestrator(t, registry, allowAll())

	_, err := o.Generate(context.Background(), "rooted", textRequest())
	require.Error(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, order)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "third", perr.ProviderID, "last failure wins")
}

func TestOrchestrator_AggregatorTriedFirst(t *testing.T) {
	registry := NewRegistry(false)
	direct := &stubProvider{
		descriptor: Descriptor{ID: "direct", Capability: CapabilityText, Priority: 1, Configured: true},
		result:     Result{ArtifactRef: "ref://direct"},
	}
	registry.Register(direct)

	agg := &stubProvider{
		descriptor: Descriptor{ID: "aggregator", Capability: CapabilityText, Priority: 0, Configured: true},
		result:     Result{ArtifactRef: "ref://agg"},
	}

	o, _, _, _ := newTestOrchestrator(t, registry, allowAll(), WithAggregator(agg))

	res, err := o.Generate(context.Background(), "rooted", textRequest())
	require.NoError(t, err)
	assert.Equal(t, "aggregator", res.ProviderID)
	assert.Equal(t, 0, direct.calls)
}

func TestOrchestrator_AggregatorFailureFallsThrough(t *testing.T) {
	registry := NewRegistry(false)
	direct := &stubProvider{
		descriptor: Descriptor{ID: "direct", Capability: CapabilityText, Priority: 1, Configured: true},
		result:     Result{ArtifactRef: "ref://direct"},
	}
	registry.Register(direct)

	agg := &stubProvider{
		descriptor: Descriptor{ID: "aggregator", Capability: CapabilityText, Priority: 0, Configured: true},
		err:        errors.New("aggregator down"),
	}

	o, sink, _, _ := newTestOrchestrator(t, registry, allowAll(), WithAggregator(agg))

	res, err := o.Generate(context.Background(), "rooted", textRequest())
	require.NoError(t, err)
	assert.Equal(t, "direct", res.ProviderID)
	require.Len(t, sink.entries, 2)
}

func TestOrchestrator_MockIsLastResort(t *testing.T) {
	registry := NewRegistry(true)
	failing := &stubProvider{
		descriptor: Descriptor{ID: "real", Capability: CapabilityText, Priority: 1, Configured: true},
		err:        errors.New("down"),
	}
	registry.Register(failing)

	mock := &stubProvider{
		descriptor: Descriptor{ID: "mock", Capability: CapabilityText, Priority: 1000, Configured: true},
		result:     Result{ArtifactRef: "mock://text/abc"},
	}

	o, _, _, _ := newTestOrchestrator(t, registry, allowAll(), WithMock(mock))

	res, err := o.Generate(context.Background(), "rooted", textRequest())
	require.NoError(t, err)
	assert.Equal(t, "mock", res.ProviderID)
	assert.Equal(t, 1, failing.calls)
}

func TestOrchestrator_MockDisabled(t *testing.T) {
	registry := NewRegistry(false)
	mock := &stubProvider{
		descriptor: Descriptor{ID: "mock", Capability: CapabilityText, Priority: 1000, Configured: true},
		result:     Result{ArtifactRef: "mock://text/abc"},
	}

	ledger := allowAll()
	o, sink, _, _ := newTestOrchestrator(t, registry, ledger, WithMock(mock))

	_, err := o.Generate(context.Background(), "rooted", textRequest())

	var npErr *NoProviderConfiguredError
	require.ErrorAs(t, err, &npErr)
	assert.Equal(t, CapabilityText, npErr.Capability)
	assert.Equal(t, 0, mock.calls)

	// Terminal failure still leaves an accounting trail.
	require.Len(t, sink.entries, 1)
	assert.Equal(t, OutcomeFailure, sink.entries[0].Outcome)
	assert.Empty(t, sink.entries[0].ProviderID)
	assert.Equal(t, []string{OutcomeFailure}, ledger.recorded)
}

func TestOrchestrator_ValidationRejectsBeforeQuota(t *testing.T) {
	registry := NewRegistry(true)
	ledger := allowAll()
	o, sink, anl, _ := newTestOrchestrator(t, registry, ledger)

	req := textRequest()
	req.Prompt = ""

	_, err := o.Generate(context.Background(), "rooted", req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "prompt", verr.Field)

	assert.Zero(t, ledger.checks, "invalid requests never reach the ledger")
	assert.Empty(t, ledger.recorded)
	assert.Empty(t, sink.entries)
	assert.Empty(t, anl.events)
}

func TestOrchestrator_QuotaDenied(t *testing.T) {
	registry := NewRegistry(false)
	p := &stubProvider{
		descriptor: Descriptor{ID: "alpha", Capability: CapabilityText, Priority: 1, Configured: true},
		result:     Result{ArtifactRef: "ref://1"},
	}
	registry.Register(p)

	ledger := &fakeLedger{decision: Decision{Allowed: false, Reason: "monthly text limit of 10 reached", Limit: 10}}
	o, sink, anl, ntf := newTestOrchestrator(t, registry, ledger)

	_, err := o.Generate(context.Background(), "seed", textRequest())

	var qerr *QuotaExceededError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, 10, qerr.Limit)
	assert.Zero(t, qerr.Remaining)

	assert.Equal(t, 0, p.calls, "denied requests never reach a provider")
	assert.Empty(t, sink.entries)
	assert.Empty(t, ledger.recorded, "denied requests consume nothing")
	assert.Equal(t, []string{"generation_denied"}, anl.events)
	assert.Zero(t, ntf.calls)
}

func TestOrchestrator_LedgerUnavailableFailsClosed(t *testing.T) {
	registry := NewRegistry(false)
	p := &stubProvider{
		descriptor: Descriptor{ID: "alpha", Capability: CapabilityText, Priority: 1, Configured: true},
		result:     Result{ArtifactRef: "ref://1"},
	}
	registry.Register(p)

	ledger := &fakeLedger{checkErr: errors.New("redis: connection refused")}
	o, _, _, _ := newTestOrchestrator(t, registry, ledger)

	_, err := o.Generate(context.Background(), "rooted", textRequest())

	var qerr *QuotaExceededError
	require.ErrorAs(t, err, &qerr)
	assert.Contains(t, qerr.Reason, "unavailable")
	assert.Equal(t, 0, p.calls)
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	registry := NewRegistry(true)
	p := &stubProvider{
		descriptor: Descriptor{ID: "slow", Capability: CapabilityText, Priority: 1, Configured: true},
		generate: func(ctx context.Context, req Request) (Result, error) {
			<-ctx.Done()
			return Result{}, ctx.Err()
		},
	}
	registry.Register(p)

	mock := &stubProvider{
		descriptor: Descriptor{ID: "mock", Capability: CapabilityText, Priority: 1000, Configured: true},
		result:     Result{ArtifactRef: "mock://text/abc"},
	}

	ledger := allowAll()
	o, sink, _, _ := newTestOrchestrator(t, registry, ledger, WithMock(mock))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := o.Generate(ctx, "rooted", textRequest())
	require.Error(t, err)
	assert.Equal(t, 0, mock.calls, "mock never runs after cancellation")

	require.Len(t, sink.entries, 1)
	assert.Equal(t, OutcomeCancelled, sink.entries[0].Outcome)
	assert.Equal(t, []string{OutcomeCancelled}, ledger.recorded)
}

// ctxCheckedLedger and ctxCheckedSink refuse cancelled contexts the way
// the real Redis, Postgres, and JetStream clients do.
type ctxCheckedLedger struct {
	fakeLedger
}

func (f *ctxCheckedLedger) RecordUsage(ctx context.Context, userID uuid.UUID, c Capability, outcome string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.fakeLedger.RecordUsage(ctx, userID, c, outcome)
}

type ctxCheckedSink struct {
	fakeSink
}

func (f *ctxCheckedSink) Append(ctx context.Context, entry AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.fakeSink.Append(ctx, entry)
}

func TestOrchestrator_CancelledAttemptStillAccounted(t *testing.T) {
	registry := NewRegistry(false)
	p := &stubProvider{
		descriptor: Descriptor{ID: "slow", Capability: CapabilityText, Priority: 1, Configured: true},
		generate: func(ctx context.Context, req Request) (Result, error) {
			<-ctx.Done()
			return Result{}, ctx.Err()
		},
	}
	registry.Register(p)

	ledger := &ctxCheckedLedger{fakeLedger{decision: Decision{Allowed: true, Limit: 10, Remaining: 9}}}
	sink := &ctxCheckedSink{}
	o := NewOrchestrator(registry, ledger, sink, &fakeAnalytics{}, &fakeNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := o.Generate(ctx, "rooted", textRequest())
	require.Error(t, err)

	// The writes run detached from the caller's cancellation, so the
	// cancelled attempt still reaches both the audit trail and the ledger.
	require.Len(t, sink.entries, 1)
	assert.Equal(t, OutcomeCancelled, sink.entries[0].Outcome)
	assert.Equal(t, []string{OutcomeCancelled}, ledger.recorded)
}

func TestOrchestrator_CancelledBeforeFirstAttempt(t *testing.T) {
	registry := NewRegistry(false)
	p := &stubProvider{
		descriptor: Descriptor{ID: "alpha", Capability: CapabilityText, Priority: 1, Configured: true},
		result:     Result{ArtifactRef: "ref://1"},
	}
	registry.Register(p)

	ledger := allowAll()
	o, _, _, _ := newTestOrchestrator(t, registry, ledger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Generate(ctx, "rooted", textRequest())
	assert.ErrorIs(t, err, context.Canceled)

	var npErr *NoProviderConfiguredError
	assert.False(t, errors.As(err, &npErr), "a cancelled call is not a missing-provider condition")
	assert.Equal(t, 0, p.calls)
	assert.Equal(t, []string{OutcomeCancelled}, ledger.recorded)
}

func TestOrchestrator_ProviderTimeout(t *testing.T) {
	registry := NewRegistry(false)
	slow := &stubProvider{
		descriptor: Descriptor{ID: "slow", Capability: CapabilityText, Priority: 1, Configured: true},
		generate: func(ctx context.Context, req Request) (Result, error) {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(5 * time.Second):
				return Result{ArtifactRef: "ref://late"}, nil
			}
		},
	}
	fast := &stubProvider{
		descriptor: Descriptor{ID: "fast", Capability: CapabilityText, Priority: 2, Configured: true},
		result:     Result{ArtifactRef: "ref://fast"},
	}
	registry.Register(slow)
	registry.Register(fast)

	o, _, _, _ := newTestOrchestrator(t, registry, allowAll(), WithProviderTimeout(20*time.Millisecond))

	res, err := o.Generate(context.Background(), "rooted", textRequest())
	require.NoError(t, err)
	assert.Equal(t, "fast", res.ProviderID, "per-call timeout only fails the slow provider")
}

func TestOrchestrator_AssignsRequestID(t *testing.T) {
	registry := NewRegistry(false)
	p := &stubProvider{
		descriptor: Descriptor{ID: "alpha", Capability: CapabilityText, Priority: 1, Configured: true},
		result:     Result{ArtifactRef: "ref://1"},
	}
	registry.Register(p)

	o, sink, _, _ := newTestOrchestrator(t, registry, allowAll())

	req := textRequest()
	require.Equal(t, uuid.Nil, req.ID)

	_, err := o.Generate(context.Background(), "rooted", req)
	require.NoError(t, err)
	require.Len(t, sink.entries, 1)
	assert.NotEqual(t, uuid.Nil, sink.entries[0].RequestID)
}
