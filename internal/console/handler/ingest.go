package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/pamwatch/internal/domain"
	"go.uber.org/zap"
)

// EventProcessor — конвейер скоринга
type EventProcessor interface {
	ProcessEvent(ctx context.Context, ev domain.LogEvent) domain.ScoredEvent
}

type IngestHandler struct {
	core   EventProcessor
	logger *zap.Logger
}

func NewIngestHandler(core EventProcessor, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{core: core, logger: logger}
}

// Analyze принимает события от watcher и портала.
// POST /analyze
func (h *IngestHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var ev domain.LogEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		h.logger.Warn("undecodable analyze payload", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scored := h.core.ProcessEvent(r.Context(), ev)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "analyzed",
		"id":        scored.ID,
		"riskScore": scored.RiskScore,
	})
}
