package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xela07ax/pamwatch/internal/audit"
	"github.com/xela07ax/pamwatch/internal/console/handler"
	"github.com/xela07ax/pamwatch/internal/console/server"
	"github.com/xela07ax/pamwatch/internal/domain"
	"github.com/xela07ax/pamwatch/internal/engine"
	"github.com/xela07ax/pamwatch/internal/infra"
	"github.com/xela07ax/pamwatch/internal/infra/auth"
	"github.com/xela07ax/pamwatch/internal/session"
	"github.com/xela07ax/pamwatch/internal/settings"
	"github.com/xela07ax/pamwatch/internal/store"
	"github.com/xela07ax/pamwatch/internal/watcher"
)

func main() {
	// 1. Конфиг и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Redis опционален: без него сигналы отзыва и обновления настроек не публикуются
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(appCtx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, signals will be retried by the listeners", zap.Error(err))
		}
		pingCancel()
	}

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 3. Control Plane: настройки и сессии
	var settingsNotifier settings.ChangeNotifier
	var revocationNotifier session.Notifier
	if rdb != nil {
		settingsNotifier = settings.NewRedisNotifier(rdb)
		revocationNotifier = session.NewRedisNotifier(rdb)
	}

	settingsStore, err := settings.NewStore(appCtx, settings.NewFilePersister(cfg.Settings.Path), settingsNotifier, logger)
	if err != nil {
		logger.Fatal("failed to load settings", zap.Error(err))
	}
	if rdb != nil {
		go settingsStore.StartListener(appCtx, rdb)
	}

	sessions := session.NewManager(revocationNotifier, logger)

	// 4. След скоринга (лог + live-канал дашборда)
	sink := audit.MultiSink{audit.NewLogSink(logger)}
	if rdb != nil {
		sink = append(sink, audit.NewRedisSink(rdb))
	}
	trail := audit.NewTrail(sink, cfg.Engine.AuditBufferSize, cfg.Engine.AuditFlushInterval, logger)
	trail.Start()
	go reportAuditFill(appCtx, trail, metrics)

	// 5. Core
	core := engine.NewCore(
		settingsStore,
		sessions,
		store.NewEventStore(cfg.Engine.EventCapacity),
		store.NewAlertStore(cfg.Engine.AlertCapacity),
		trail,
		metrics,
		logger,
	)

	// 6. HTTP Server
	deps := server.Deps{
		Logger:      logger,
		AdminRoles:  cfg.Auth.AdminRoles,
		Gatherer:    reg,
		Revocations: sessions,
		Ingest:      handler.NewIngestHandler(core, logger.Named("ingest")),
		Events:      handler.NewEventsHandler(core),
		Settings:    handler.NewSettingsHandler(settingsStore, logger.Named("settings-api")),
		Sessions:    handler.NewSessionHandler(sessions),
	}
	if len(cfg.Auth.PublicKey) > 0 {
		pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			logger.Fatal("invalid auth public key", zap.Error(err))
		}
		deps.Validator = auth.NewRS256Validator(pubKey, cfg.Auth.Issuer)
	} else {
		logger.Warn("auth public key not configured, admin endpoints are open")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.NewConsoleServer(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 7. Встроенный watcher: строки идут в Core без HTTP
	if cfg.Watcher.Enabled {
		w := watcher.New([]watcher.Stream{
			{Path: cfg.Watcher.AuthLogPath, Kind: domain.StreamAuth},
			{Path: cfg.Watcher.ActionLogPath, Kind: domain.StreamAction},
		}, watcher.NewEngineForwarder(core), cfg.Watcher.PollInterval, metrics, logger)
		if err := w.Init(); err != nil {
			logger.Fatal("failed to init watcher", zap.Error(err))
		}
		go w.Run(appCtx)
	}

	// 8. gRPC health
	var grpcSrv *grpc.Server
	if cfg.GRPC.Addr != "" {
		var hs *health.Server
		grpcSrv, hs = engine.NewHealthServer()
		go func() {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				logger.Fatal("failed to listen gRPC", zap.Error(err))
			}
			hs.SetServingStatus(engine.ScoringServiceName, healthpb.HealthCheckResponse_SERVING)
			logger.Info("gRPC health server started", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("gRPC server stopped", zap.Error(err))
			}
		}()
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("PAM scoring service started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("PAM scoring service stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	// Дописываем хвост следа после остановки входящих запросов
	trail.Stop()
	logger.Info("PAM scoring service exited properly")
}

func reportAuditFill(ctx context.Context, trail *audit.Trail, metrics *engine.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.AuditBufferFill.Set(float64(trail.Pending()))
		}
	}
}
