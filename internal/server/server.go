// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"

	"WardWatchAPI/internal/config"
	"WardWatchAPI/internal/handler"
	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/metrics"
	"WardWatchAPI/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	router     *mux.Router
	cfg        *config.Config
	log        *logger.Logger
	metrics    *metrics.Metrics
}

// Handlers groups everything the router serves.
type Handlers struct {
	Alerts     *handler.AlertHandler
	Thresholds *handler.ThresholdHandler
	Vitals     *handler.VitalsHandler
	Ws         *handler.WsHandler
	Health     *handler.HealthHandler
}

func New(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *Server {
	router := mux.NewRouter()

	server := &Server{
		router:  router,
		cfg:     cfg,
		log:     log,
		metrics: m,
		httpServer: &http.Server{
			Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:        router,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
	}

	return server
}

// RegisterHandlers wires routes and middleware. ctx bounds background work
// owned by the middleware.
func (s *Server) RegisterHandlers(ctx context.Context, authn middleware.Authenticator, gatherer prometheus.Gatherer, h Handlers) {
	s.router.Use(middleware.Recovery(s.log))
	s.router.Use(middleware.RequestLogger(s.log.Component("http"), s.metrics))
	s.router.Use(middleware.CORS(s.cfg.Security.CORSAllowedOrigins, s.cfg.Security.CORSAllowedMethods))

	h.Health.RegisterRoutes(s.router)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	if s.cfg.Security.EnableRateLimit {
		api.Use(middleware.RateLimit(ctx, s.cfg.Security.RateLimitPerMinute))
	}
	api.Use(middleware.Auth(authn))

	h.Alerts.RegisterRoutes(api)
	h.Thresholds.RegisterRoutes(api)
	h.Vitals.RegisterRoutes(api)

	// Browsers pass the token as a query parameter on the websocket handshake.
	s.router.Handle("/ws", middleware.Auth(authn)(http.HandlerFunc(h.Ws.Serve))).Methods("GET")

	s.log.Info("All handlers registered")
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.log.Info("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}
