package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mantled-app/creator-api/internal/api"
	"github.com/mantled-app/creator-api/internal/auth"
)

// Handler provides HTTP handlers for recording sessions.
type Handler struct {
	store    *Store
	validate *validator.Validate
}

func NewHandler(store *Store) *Handler {
	return &Handler{
		store:    store,
		validate: validator.New(),
	}
}

type createRequest struct {
	DurationSec int `json:"duration_sec" validate:"omitempty,min=1,max=3600"`
}

type updateRequest struct {
	Status      string `json:"status" validate:"required,oneof=recording processing ready"`
	MediaRef    string `json:"media_ref" validate:"omitempty,max=2048"`
	DurationSec int    `json:"duration_sec" validate:"omitempty,min=1,max=3600"`
}

// Create starts a new recording session for the authenticated user.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}

	now := time.Now().UTC()
	rec := Recording{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      StatusRecording,
		DurationSec: req.DurationSec,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.Put(r.Context(), rec); err != nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, rec)
}

// Get returns a recording session owned by the caller.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	api.JSON(w, http.StatusOK, rec)
}

// Update transitions a recording session's state.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}

	rec.Status = req.Status
	if req.MediaRef != "" {
		rec.MediaRef = req.MediaRef
	}
	if req.DurationSec != 0 {
		rec.DurationSec = req.DurationSec
	}
	rec.UpdatedAt = time.Now().UTC()

	if err := h.store.Put(r.Context(), *rec); err != nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, rec)
}

// Delete discards a recording session.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), rec.ID); err != nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "session deleted")
}

func (h *Handler) ownedSession(w http.ResponseWriter, r *http.Request) (*Recording, bool) {
	userID, ok := callerID(w, r)
	if !ok {
		return nil, false
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid session id"))
		return nil, false
	}

	rec, err := h.store.Get(r.Context(), sessionID)
	if err != nil {
		api.HandleError(w, api.ErrInternalServer)
		return nil, false
	}
	if rec == nil || rec.UserID != userID {
		// Treat other users' sessions as missing rather than forbidden.
		api.HandleError(w, api.NewNotFoundError("session not found"))
		return nil, false
	}
	return rec, true
}

func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}
