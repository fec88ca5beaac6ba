package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/xela07ax/pamwatch/internal/domain"
	"github.com/xela07ax/pamwatch/internal/infra/auth"
	"go.uber.org/zap"
)

// SettingsService описывает хранилище настроек
type SettingsService interface {
	Current() domain.Settings
	Update(ctx context.Context, patch []byte) (domain.Settings, error)
}

type SettingsHandler struct {
	service SettingsService
	logger  *zap.Logger
}

func NewSettingsHandler(s SettingsService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{service: s, logger: logger}
}

// Get GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Current())
}

// Update принимает частичные или полные настройки
// POST /api/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	updated, err := h.service.Update(r.Context(), body)
	if errors.Is(err, domain.ErrInvalidSettings) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("settings update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}

	actor := "anonymous"
	if c, ok := auth.ClaimsFromContext(r.Context()); ok {
		actor = c.Email
	}
	h.logger.Info("SETTINGS_UPDATED", zap.String("by", actor), zap.ByteString("patch", body))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "Settings updated successfully",
		"settings": updated,
	})
}
