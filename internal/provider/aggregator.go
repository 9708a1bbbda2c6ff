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

// Aggregator is the primary centralized generation backend. It mirrors the
// inbound request shape plus an auth token and is tried before any direct
// provider.
type Aggregator struct {
	baseURL    string
	token      string
	configured bool
	client     *http.Client
}

func NewAggregator(cfg config.AggregatorConfig) *Aggregator {
	return &Aggregator{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		configured: cfg.Configured(),
		client:     &http.Client{},
	}
}

func (a *Aggregator) Descriptor() generation.Descriptor {
	return generation.Descriptor{
		ID:              "aggregator",
		Priority:        0,
		Configured:      a.configured,
		ApproxCostUnits: 1,
	}
}

type aggregatorRequest struct {
	Capability string                  `json:"capability"`
	UserID     string                  `json:"user_id"`
	Prompt     string                  `json:"prompt"`
	Style      generation.StyleOptions `json:"style"`
	FaithMode  bool                    `json:"faith_mode"`
}

type aggregatorResponse struct {
	ArtifactRef string `json:"artifact_ref"`
	Model       string `json:"model"`
	CostUnits   int    `json:"cost_units"`
	Error       string `json:"error"`
}

func (a *Aggregator) Generate(ctx context.Context, req generation.Request) (generation.Result, error) {
	payload, err := json.Marshal(aggregatorRequest{
		Capability: string(req.Capability),
		UserID:     req.UserID.String(),
		Prompt:     req.Prompt,
		Style:      req.Style,
		FaithMode:  req.FaithMode,
	})
	if err != nil {
		return generation.Result{}, fmt.Errorf("marshaling aggregator request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/generate", bytes.NewReader(payload))
	if err != nil {
		return generation.Result{}, fmt.Errorf("building aggregator request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return generation.Result{}, fmt.Errorf("calling aggregator: %w", err)
	}
	defer resp.Body.Close()

	var body aggregatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return generation.Result{}, fmt.Errorf("decoding aggregator response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := body.Error
		if msg == "" {
			msg = resp.Status
		}
		return generation.Result{}, fmt.Errorf("aggregator returned %d: %s", resp.StatusCode, msg)
	}
	if body.ArtifactRef == "" {
		return generation.Result{}, fmt.Errorf("aggregator returned empty artifact")
	}

	return generation.Result{
		ArtifactRef: body.ArtifactRef,
		Model:       body.Model,
		CostUnits:   body.CostUnits,
	}, nil
}
