package quota

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mantled-app/creator-api/internal/api"
	"github.com/mantled-app/creator-api/internal/auth"
)

// Handler provides HTTP handlers for quota endpoints.
type Handler struct {
	svc  *Service
	repo *Repository
}

func NewHandler(svc *Service, repo *Repository) *Handler {
	return &Handler{svc: svc, repo: repo}
}

// GetQuota returns the authenticated user's current-period allowances.
func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
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

	api.JSON(w, http.StatusOK, h.svc.Status(r.Context(), userID, claims.Tier))
}

// GetUsage returns the durable usage record for a period, defaulting to
// the current one.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
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

	period := r.URL.Query().Get("period")
	if period == "" {
		period = Period(h.svc.now())
	}

	rec, err := h.repo.Get(r.Context(), userID, period)
	if err != nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, rec)
}
