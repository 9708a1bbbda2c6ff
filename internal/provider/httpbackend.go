package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mantled-app/creator-api/internal/config"
	"github.com/mantled-app/creator-api/internal/generation"
)

// HTTPBackend is a direct generation provider with a plain JSON contract:
// send prompt and style parameters, receive an artifact URL. Avatar and
// video backends share this shape and differ only in endpoint and model.
type HTTPBackend struct {
	id         string
	capability generation.Capability
	baseURL    string
	apiKey     string
	model      string
	priority   int
	costUnits  int
	configured bool
	client     *http.Client
}

func NewHTTPBackend(id string, c generation.Capability, cfg config.HTTPBackendConfig, priority, costUnits int) *HTTPBackend {
	return &HTTPBackend{
		id:         id,
		capability: c,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		priority:   priority,
		costUnits:  costUnits,
		configured: cfg.Configured(),
		client:     &http.Client{},
	}
}

func (b *HTTPBackend) Descriptor() generation.Descriptor {
	return generation.Descriptor{
		ID:              b.id,
		Capability:      b.capability,
		Priority:        b.priority,
		Configured:      b.configured,
		ApproxCostUnits: b.costUnits,
	}
}

type backendRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	Style       string   `json:"style,omitempty"`
	Voice       string   `json:"voice,omitempty"`
	InputImages []string `json:"input_images,omitempty"`
}

type backendResponse struct {
	ArtifactURL string `json:"artifact_url"`
	Model       string `json:"model"`
	Error       string `json:"error"`
}

func (b *HTTPBackend) Generate(ctx context.Context, req generation.Request) (generation.Result, error) {
	payload, err := json.Marshal(backendRequest{
		Model:       b.model,
		Prompt:      req.Prompt,
		Style:       req.Style.Style,
		Voice:       req.Style.Voice,
		InputImages: req.Style.InputImages,
	})
	if err != nil {
		return generation.Result{}, fmt.Errorf("marshaling %s request: %w", b.id, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return generation.Result{}, fmt.Errorf("building %s request: %w", b.id, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return generation.Result{}, fmt.Errorf("calling %s: %w", b.id, err)
	}
	defer resp.Body.Close()

	var body backendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return generation.Result{}, fmt.Errorf("decoding %s response: %w", b.id, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := body.Error
		if msg == "" {
			msg = resp.Status
		}
		return generation.Result{}, fmt.Errorf("%s returned %d: %s", b.id, resp.StatusCode, msg)
	}
	if body.ArtifactURL == "" {
		return generation.Result{}, fmt.Errorf("%s returned empty artifact", b.id)
	}

	model := body.Model
	if model == "" {
		model = b.model
	}

	return generation.Result{
		ArtifactRef: body.ArtifactURL,
		Model:       model,
		CostUnits:   b.costUnits,
	}, nil
}
