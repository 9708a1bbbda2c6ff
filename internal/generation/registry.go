package generation

import (
	"context"
	"sort"
)

// Descriptor describes one generation backend. Static per process lifetime.
type Descriptor struct {
	ID              string     `json:"id"`
	Capability      Capability `json:"capability"`
	Priority        int        `json:"priority"`
	Configured      bool       `json:"configured"`
	ApproxCostUnits int        `json:"approx_cost_units"`
}

// Provider is a generation backend. Implementations live in the provider
// package; the interface is declared on the consumer side so the
// orchestrator has no dependency on concrete backends.
type Provider interface {
	Descriptor() Descriptor
	Generate(ctx context.Context, req Request) (Result, error)
}

// Registry holds, per capability, a priority-ordered list of providers.
// Built once at startup; never mutated afterwards.
type Registry struct {
	providers   map[Capability][]Provider
	mockAllowed bool
}

func NewRegistry(mockAllowed bool) *Registry {
	return &Registry{
		providers:   make(map[Capability][]Provider),
		mockAllowed: mockAllowed,
	}
}

// Register adds a provider for its declared capability, keeping the list
// sorted by ascending priority (lower is tried first).
func (r *Registry) Register(p Provider) {
	c := p.Descriptor().Capability
	r.providers[c] = append(r.providers[c], p)
	sort.SliceStable(r.providers[c], func(i, j int) bool {
		return r.providers[c][i].Descriptor().Priority < r.providers[c][j].Descriptor().Priority
	})
}

// Configured returns the capability's configured providers in walk order.
func (r *Registry) Configured(c Capability) []Provider {
	var out []Provider
	for _, p := range r.providers[c] {
		if p.Descriptor().Configured {
			out = append(out, p)
		}
	}
	return out
}

// IsAvailable reports whether a generation for the capability can be served
// at all: at least one configured provider, or a permitted mock path.
func (r *Registry) IsAvailable(c Capability) bool {
	return len(r.Configured(c)) > 0 || r.mockAllowed
}

// MockAllowed reports whether deterministic placeholder generation may be
// used when every real provider is exhausted.
func (r *Registry) MockAllowed() bool {
	return r.mockAllowed
}

// Descriptors returns all registered descriptors for introspection.
func (r *Registry) Descriptors() []Descriptor {
	var out []Descriptor
	for _, c := range Capabilities {
		for _, p := range r.providers[c] {
			out = append(out, p.Descriptor())
		}
	}
	return out
}
