package generation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mantled-app/creator-api/internal/api"
	"github.com/mantled-app/creator-api/internal/auth"
)

// Handler provides the inbound generation endpoint.
type Handler struct {
	orchestrator *Orchestrator
	registry     *Registry
	validate     *validator.Validate
}

func NewHandler(orchestrator *Orchestrator, registry *Registry) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		registry:     registry,
		validate:     validator.New(),
	}
}

type generateRequest struct {
	Capability   string       `json:"capability" validate:"required,oneof=text image avatar video"`
	Prompt       string       `json:"prompt" validate:"max=8000"`
	Style        StyleOptions `json:"style"`
	ConsentGiven bool         `json:"consent_given"`
	FaithMode    bool         `json:"faith_mode"`
}

// Generate handles POST /api/v1/generate.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid JSON body"))
		return
	}
	if err := h.validate.Struct(body); err != nil {
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}

	req := Request{
		ID:           uuid.New(),
		UserID:       userID,
		Capability:   Capability(body.Capability),
		Prompt:       body.Prompt,
		Style:        body.Style,
		ConsentGiven: body.ConsentGiven,
		FaithMode:    body.FaithMode,
	}

	res, err := h.orchestrator.Generate(r.Context(), claims.Tier, req)
	if err != nil {
		writeGenerationError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, res)
}

// Providers handles GET /api/v1/providers: backend introspection for
// support tooling.
func (h *Handler) Providers(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.registry.Descriptors())
}

// writeGenerationError maps the domain error taxonomy onto HTTP. A denied
// request shows the limit; a fully-failed generation shows a generic
// retry-later message; a validation failure names the offending field.
func writeGenerationError(w http.ResponseWriter, err error) {
	var (
		validationErr *ValidationError
		quotaErr      *QuotaExceededError
		noProviderErr *NoProviderConfiguredError
		providerErr   *ProviderError
	)

	switch {
	case errors.As(err, &validationErr):
		api.JSONErrorPayload(w, http.StatusBadRequest, validationErr.Error(), map[string]string{
			"field": validationErr.Field,
		})
	case errors.As(err, &quotaErr):
		api.JSONErrorPayload(w, http.StatusTooManyRequests, quotaErr.Error(), map[string]any{
			"capability": quotaErr.Capability,
			"limit":      quotaErr.Limit,
			"remaining":  quotaErr.Remaining,
			"upgrade":    "upgrade your plan for a higher monthly allowance",
		})
	case errors.As(err, &noProviderErr):
		api.JSONErrorMessage(w, http.StatusServiceUnavailable, "generation is not available right now")
	case errors.As(err, &providerErr):
		api.JSONErrorMessage(w, http.StatusBadGateway, "generation failed, please try again later")
	default:
		api.HandleError(w, err)
	}
}
