package engine

import (
	"context"
	"time"

	"github.com/xela07ax/pamwatch/internal/domain"
	"github.com/xela07ax/pamwatch/internal/risk"
	"github.com/xela07ax/pamwatch/internal/session"
	"github.com/xela07ax/pamwatch/internal/store"
	"go.uber.org/zap"
)

// SettingsSource — актуальные настройки, читаются на каждый вызов
type SettingsSource interface {
	Current() domain.Settings
}

// StrikeTracker учитывает страйки сессий
type StrikeTracker interface {
	RecordRisk(ctx context.Context, sessionID string, score int, s domain.Settings) session.Outcome
}

// Auditor — асинхронный след событий
type Auditor interface {
	Log(ev domain.ScoredEvent)
}

// Core — конвейер скоринга: событие -> балл -> страйки сессии -> хранилища.
// Потокобезопасен, вызывается синхронно из watcher и HTTP-ручки /analyze.
type Core struct {
	settings SettingsSource
	sessions StrikeTracker
	events   *store.EventStore
	alerts   *store.AlertStore
	auditor  Auditor
	ids      *IDGenerator
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewCore(
	settings SettingsSource,
	sessions StrikeTracker,
	events *store.EventStore,
	alerts *store.AlertStore,
	auditor Auditor,
	metrics *Metrics,
	logger *zap.Logger,
) *Core {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Core{
		settings: settings,
		sessions: sessions,
		events:   events,
		alerts:   alerts,
		auditor:  auditor,
		ids:      NewIDGenerator(),
		metrics:  metrics,
		logger:   logger.Named("engine"),
		now:      time.Now,
	}
}

// ProcessEvent оценивает и сохраняет событие. Отказа для корректного события нет:
// неизвестное действие и неизвестная сессия штатны.
func (c *Core) ProcessEvent(ctx context.Context, ev domain.LogEvent) domain.ScoredEvent {
	start := time.Now()

	// Один снимок настроек на весь вызов: пороги страйков и алертов согласованы
	s := c.settings.Current()

	score, category := risk.Score(ev, s)
	scored := &domain.ScoredEvent{
		ID:           c.ids.Next(),
		OccurredAt:   c.now(),
		RiskScore:    score,
		RiskCategory: category,
		Action:       ev.ActionType,
		User:         domain.EventUser{Role: ev.UserRole},
		SessionID:    ev.SessionID,
		Source:       ev.Source,
		Details:      ev.Details,
	}

	// 1. Страйки. Переписываем событие до сохранения: после Append оно неизменно
	out := c.sessions.RecordRisk(ctx, ev.SessionID, score, s)
	if out.StrikeAdded {
		c.metrics.Strikes.Inc()
	}
	if out.Revoked {
		scored.Action = domain.ActionPortalAccessRevoked
		scored.RiskScore = risk.MaxScore
		scored.RiskCategory = risk.Categorize(risk.MaxScore, s.RiskThresholds)
		c.metrics.Revocations.Inc()
	}

	// 2. Хранилища
	if c.events.Append(scored) {
		c.metrics.StoreEvictions.WithLabelValues("events").Inc()
	}
	if c.alerts.Offer(scored, s.RiskThresholds.Medium) {
		c.metrics.Alerts.Inc()
	}
	c.metrics.StoreSize.WithLabelValues("events").Set(float64(c.events.Len()))
	c.metrics.StoreSize.WithLabelValues("alerts").Set(float64(c.alerts.Len()))

	// 3. Асинхронный след
	if c.auditor != nil {
		c.auditor.Log(*scored)
	}

	c.metrics.ScoredEvents.WithLabelValues(string(scored.RiskCategory), string(ev.Source)).Inc()
	c.metrics.ScoringDuration.Observe(time.Since(start).Seconds())

	c.logger.Debug("event analyzed",
		zap.String("trace_id", extractTraceID(ctx)),
		zap.String("action", scored.Action),
		zap.String("role", scored.User.Role),
		zap.Int("risk_score", scored.RiskScore))

	return *scored
}

// Events отдает события дашборду с лимитом dashboard.max_events
func (c *Core) Events() []domain.ScoredEvent {
	return c.events.Recent(c.settings.Current().Dashboard.MaxEvents)
}

// Alerts отдает последние алерты
func (c *Core) Alerts() []domain.ScoredEvent {
	return c.alerts.Recent()
}

// Clear очищает in-memory хранилища (админская очистка журналов)
func (c *Core) Clear() {
	c.events.Clear()
	c.alerts.Clear()
	c.metrics.StoreSize.WithLabelValues("events").Set(0)
	c.metrics.StoreSize.WithLabelValues("alerts").Set(0)
	c.logger.Warn("in-memory event and alert stores cleared")
}
