package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xela07ax/pamwatch/internal/console/handler"
	"github.com/xela07ax/pamwatch/internal/engine"
	"github.com/xela07ax/pamwatch/internal/infra/auth"
	"go.uber.org/zap"
)

// Deps собирает зависимости консоли. Validator == nil отключает проверку токенов
// (демо-режим без портала), админские ручки тогда открыты.
type Deps struct {
	Logger     *zap.Logger
	Validator  auth.TokenValidator
	AdminRoles []string
	Gatherer   prometheus.Gatherer

	Revocations engine.RevocationChecker
	Ingest      *handler.IngestHandler
	Events      *handler.EventsHandler
	Settings    *handler.SettingsHandler
	Sessions    *handler.SessionHandler
}

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	deps   Deps
}

// NewConsoleServer собирает роутер консоли и точки входа скоринга
func NewConsoleServer(deps Deps) *ConsoleServer {
	s := &ConsoleServer{
		router: chi.NewRouter(),
		logger: deps.Logger.Named("console-api"),
		deps:   deps,
	}
	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(engine.TracingMiddleware)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// --- 2. Служебные роуты ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// --- 3. Вход скоринга (watcher и портал). Отказа для корректного события нет ---
	r.Post("/analyze", s.deps.Ingest.Analyze)

	r.Route("/api", func(r chi.Router) {
		// Сессии: портал регистрирует вход и спрашивает флаг отзыва
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.deps.Sessions.List)
			r.Post("/", s.deps.Sessions.Register)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.deps.Sessions.Get)
				r.Get("/access", s.deps.Sessions.Access)
			})
		})

		// --- 4. API дашборда: сессия с отозванным доступом сюда не попадает ---
		r.Group(func(r chi.Router) {
			r.Use(engine.RevocationMiddleware(s.deps.Revocations, s.logger))

			r.Get("/events", s.deps.Events.ListEvents)
			r.Get("/alerts", s.deps.Events.ListAlerts)
			r.Get("/settings", s.deps.Settings.Get)

			// --- 5. Админский периметр ---
			r.Group(func(r chi.Router) {
				if s.deps.Validator != nil {
					r.Use(auth.NewMiddleware(s.deps.Validator, s.logger, s.deps.AdminRoles...))
				}
				r.Post("/settings", s.deps.Settings.Update)
				r.Post("/clear-events", s.deps.Events.Clear)
			})
		})
	})
}

func (s *ConsoleServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
