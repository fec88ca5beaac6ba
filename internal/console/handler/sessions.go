package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/pamwatch/internal/domain"
)

// SessionService — машина состояний сессий
type SessionService interface {
	Register(ctx context.Context, st domain.SessionState) (domain.SessionState, error)
	Get(sessionID string) (domain.SessionState, error)
	List() []domain.SessionState
}

type SessionHandler struct {
	service SessionService
}

func NewSessionHandler(s SessionService) *SessionHandler {
	return &SessionHandler{service: s}
}

type registerRequest struct {
	SessionID string `json:"session_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// Register вызывается порталом после успешного OAuth входа
// POST /api/sessions
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "email and role are required")
		return
	}

	st, err := h.service.Register(r.Context(), domain.SessionState{
		SessionID: req.SessionID,
		UserEmail: req.Email,
		Role:      req.Role,
	})
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// List GET /api/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.List())
}

// Get GET /api/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Access проверяется порталом перед выдачей страницы: 200 доступ есть, 403 отозван
// GET /api/sessions/{id}/access
func (h *SessionHandler) Access(w http.ResponseWriter, r *http.Request) {
	st, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if st.AccessRevoked {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":          "Portal access revoked",
			"access_revoked": true,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"access_revoked": false})
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (domain.SessionState, bool) {
	st, err := h.service.Get(chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return domain.SessionState{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return domain.SessionState{}, false
	}
	return st, true
}
