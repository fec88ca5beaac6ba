package handler

import (
	"net/http"

	"github.com/xela07ax/pamwatch/internal/domain"
)

// EventReader — то, что дашборду нужно от хранилищ
type EventReader interface {
	Events() []domain.ScoredEvent
	Alerts() []domain.ScoredEvent
	Clear()
}

type EventsHandler struct {
	reader EventReader
}

func NewEventsHandler(r EventReader) *EventsHandler {
	return &EventsHandler{reader: r}
}

// ListEvents отдает события новыми первыми, с лимитом dashboard.max_events
// GET /api/events
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reader.Events())
}

// ListAlerts отдает последние 50 алертов
// GET /api/alerts
func (h *EventsHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reader.Alerts())
}

// Clear очищает in-memory события и алерты
// POST /api/clear-events
func (h *EventsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.reader.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "All events cleared"})
}
