package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantled-app/creator-api/internal/auth"
)

func authedRequest(t *testing.T, body any, tier string) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewReader(payload))
	claims := &auth.AccessClaims{UserID: uuid.New().String(), Tier: tier}
	return req.WithContext(context.WithValue(req.Context(), auth.UserClaimsKey, claims))
}

func newHandlerFixture(t *testing.T, ledger *fakeLedger) (*Handler, *stubProvider) {
	t.Helper()
	registry := NewRegistry(false)
	p := &stubProvider{
		descriptor: Descriptor{ID: "alpha", Capability: CapabilityText, Priority: 1, Configured: true, ApproxCostUnits: 1},
		result:     Result{ArtifactRef: "ref://1", Model: "alpha-1"},
	}
	registry.Register(p)

	o := NewOrchestrator(registry, ledger, &fakeSink{}, &fakeAnalytics{}, &fakeNotifier{})
	return NewHandler(o, registry), p
}

func TestHandler_Generate(t *testing.T) {
	h, _ := newHandlerFixture(t, allowAll())

	req := authedRequest(t, map[string]any{
		"capability": "text",
		"prompt":     "write a welcome message",
	}, "rooted")
	rec := httptest.NewRecorder()

	h.Generate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ref://1", body.Data.ArtifactRef)
	assert.Equal(t, "alpha", body.Data.ProviderID)
}

func TestHandler_GenerateValidationError(t *testing.T) {
	h, p := newHandlerFixture(t, allowAll())

	req := authedRequest(t, map[string]any{
		"capability": "text",
	}, "rooted")
	rec := httptest.NewRecorder()

	h.Generate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, p.calls)
	assert.Contains(t, rec.Body.String(), "prompt")
}

func TestHandler_GenerateQuotaExceeded(t *testing.T) {
	ledger := &fakeLedger{decision: Decision{Allowed: false, Reason: "monthly text limit of 10 reached", Limit: 10}}
	h, p := newHandlerFixture(t, ledger)

	req := authedRequest(t, map[string]any{
		"capability": "text",
		"prompt":     "hello",
	}, "seed")
	rec := httptest.NewRecorder()

	h.Generate(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 0, p.calls)
	assert.Contains(t, rec.Body.String(), "upgrade")
}

func TestHandler_GenerateUnknownCapability(t *testing.T) {
	h, _ := newHandlerFixture(t, allowAll())

	req := authedRequest(t, map[string]any{
		"capability": "hologram",
		"prompt":     "hello",
	}, "rooted")
	rec := httptest.NewRecorder()

	h.Generate(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_GenerateUnauthenticated(t *testing.T) {
	h, _ := newHandlerFixture(t, allowAll())

	payload, _ := json.Marshal(map[string]any{"capability": "text", "prompt": "hi"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewReader(payload))
	rec := httptest.NewRecorder()

	h.Generate(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_GenerateProviderOutage(t *testing.T) {
	registry := NewRegistry(false)
	h := NewHandler(NewOrchestrator(registry, allowAll(), &fakeSink{}, &fakeAnalytics{}, &fakeNotifier{}), registry)

	req := authedRequest(t, map[string]any{
		"capability": "video",
		"prompt":     "recording://1",
	}, "mantled_pro")
	rec := httptest.NewRecorder()

	h.Generate(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_Providers(t *testing.T) {
	h, _ := newHandlerFixture(t, allowAll())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	rec := httptest.NewRecorder()

	h.Providers(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []Descriptor `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "alpha", body.Data[0].ID)
}
