package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: оцененные события по категории и журналу
	ScoredEvents *prometheus.CounterVec

	// Latency: время скоринга одного события
	ScoringDuration prometheus.Histogram

	// Сессии
	Strikes     prometheus.Counter
	Revocations prometheus.Counter

	// Хранилища
	Alerts         prometheus.Counter
	StoreSize      *prometheus.GaugeVec
	StoreEvictions *prometheus.CounterVec

	// Watcher: строки по результату (forwarded, malformed, failed)
	WatcherLines *prometheus.CounterVec
	// Saturation: состояние Circuit Breaker форвардера (0 - ок, 1 - выбило)
	CircuitBreakerState prometheus.Gauge

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ScoredEvents: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pam_scored_events_total",
			Help: "Total number of scored events.",
		}, []string{"category", "source"}),

		ScoringDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "pam_scoring_duration_seconds",
			Help:    "Histogram of scoring pipeline latencies.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),

		Strikes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pam_session_strikes_total",
			Help: "Total number of strikes recorded against sessions.",
		}),

		Revocations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pam_session_revocations_total",
			Help: "Total number of sessions whose portal access was revoked.",
		}),

		Alerts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pam_alerts_total",
			Help: "Total number of events stored as alerts.",
		}),

		StoreSize: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "pam_store_entries",
			Help: "Current number of retained entries per store.",
		}, []string{"store"}),

		StoreEvictions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pam_store_evictions_total",
			Help: "Entries evicted from bounded stores.",
		}, []string{"store"}),

		WatcherLines: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pam_watcher_lines_total",
			Help: "Log lines seen by the watcher by result.",
		}, []string{"stream", "result"}),

		CircuitBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pam_forwarder_circuit_breaker_state",
			Help: "Current state of the forwarder circuit breaker (0=closed, 1=open).",
		}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pam_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}
