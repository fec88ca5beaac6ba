package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/pamwatch/internal/domain"
	"github.com/xela07ax/pamwatch/internal/engine"
	"github.com/xela07ax/pamwatch/internal/infra"
	"github.com/xela07ax/pamwatch/internal/watcher"
)

// Отдельный процесс наблюдения за журналами: строки уходят в POST /analyze
func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	// Экспортируем метрики для Prometheus
	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	fwd := watcher.NewHTTPForwarder(cfg.Watcher, &http.Client{}, metrics)
	w := watcher.New([]watcher.Stream{
		{Path: cfg.Watcher.AuthLogPath, Kind: domain.StreamAuth},
		{Path: cfg.Watcher.ActionLogPath, Kind: domain.StreamAction},
	}, fwd, cfg.Watcher.PollInterval, metrics, logger)

	if err := w.Init(); err != nil {
		logger.Fatal("failed to init watcher", zap.Error(err))
	}

	logger.Info("log watcher started",
		zap.String("auth_log", cfg.Watcher.AuthLogPath),
		zap.String("action_log", cfg.Watcher.ActionLogPath),
		zap.String("endpoint", cfg.Watcher.Endpoint))

	w.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		metricsSrv.Shutdown(shutdownCtx)
	}
	logger.Info("log watcher stopped")
}
