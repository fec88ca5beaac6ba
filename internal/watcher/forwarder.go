package watcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/pamwatch/internal/domain"
	"github.com/xela07ax/pamwatch/internal/engine"
	"github.com/xela07ax/pamwatch/internal/infra"
	"golang.org/x/time/rate"
)

// EngineForwarder — доставка в скоринг того же процесса
type EngineForwarder struct {
	core *engine.Core
}

func NewEngineForwarder(core *engine.Core) *EngineForwarder {
	return &EngineForwarder{core: core}
}

func (f *EngineForwarder) Forward(ctx context.Context, ev domain.LogEvent) error {
	f.core.ProcessEvent(ctx, ev)
	return nil
}

// StatusError — скоринг ответил не 2xx
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scoring endpoint returned status %d", e.Code)
}

// HTTPForwarder отправляет события в удаленный /analyze.
// Rate limiter -> Circuit Breaker -> ограниченные повторы с таймаутом на попытку.
// При RetryAttempts == 1 доставка at-most-once: упавшая отправка не повторяется.
type HTTPForwarder struct {
	endpoint string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	attempts uint
	timeout  time.Duration
	metrics  *engine.Metrics
}

func NewHTTPForwarder(cfg infra.WatcherConfig, client *http.Client, metrics *engine.Metrics) *HTTPForwarder {
	if client == nil {
		client = &http.Client{}
	}
	if metrics == nil {
		metrics = engine.NewMetrics(nil)
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100
	}
	if cfg.RateBurst < 1 {
		cfg.RateBurst = 1
	}

	f := &HTTPForwarder{
		endpoint: cfg.Endpoint,
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		attempts: cfg.RetryAttempts,
		timeout:  cfg.RequestTimeout,
		metrics:  metrics,
	}

	f.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pam-scoring-endpoint",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Более 5 ошибок подряд: скоринг недоступен, перестаем долбить
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				f.metrics.CircuitBreakerState.Set(1)
			} else {
				f.metrics.CircuitBreakerState.Set(0)
			}
		},
	})
	return f
}

func (f *HTTPForwarder) Forward(ctx context.Context, ev domain.LogEvent) error {
	// 1. Rate Limiter
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// 2. Circuit Breaker
	_, err = f.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(f.attempts),
			retry.DelayType(retry.BackOffDelay),
		)
		return nil, r.Do(func() error {
			return f.post(ctx, body)
		})
	})
	return err
}

func (f *HTTPForwarder) post(ctx context.Context, body []byte) error {
	tCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(tCtx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// IsStatusError помогает отличить ответ скоринга от сетевого сбоя
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
