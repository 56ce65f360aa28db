package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/netvigil/vigil-core/internal/alerting"
	"github.com/netvigil/vigil-core/internal/api/handlers"
	"github.com/netvigil/vigil-core/internal/api/middleware"
	"github.com/netvigil/vigil-core/internal/config"
	"github.com/netvigil/vigil-core/internal/monitoring"
	"github.com/netvigil/vigil-core/pkg/cache"
	"github.com/netvigil/vigil-core/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	engine     *alerting.Engine
	cache      cache.Valkey
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(cfg *config.Config, log logger.Logger, engine *alerting.Engine, valkeyCache cache.Valkey) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config: cfg,
		logger: log,
		engine: engine,
		cache:  valkeyCache,
		router: gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())

	// CORS for dashboard consumers
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))

	// Request logging
	s.router.Use(middleware.RequestLogger(s.logger))

	// Prometheus request metrics
	s.router.Use(middleware.MetricsMiddleware())

	// Per-client request limiting backed by Valkey
	if s.cache != nil {
		s.router.Use(middleware.RateLimiter(s.cache))
	}

	// Prometheus scrape endpoint
	if s.config.Monitoring.Enabled {
		monitoring.SetupPrometheusMetrics(s.router, s.config.Monitoring.MetricsPath)
	}
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.cache, s.logger)
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	alertHandler := handlers.NewAlertHandler(s.engine, s.logger)

	v1 := s.router.Group("/api/v1")
	v1.GET("/health", healthHandler.HealthCheck)
	v1.GET("/ready", healthHandler.ReadinessCheck)

	v1.POST("/alerts", alertHandler.CreateAlert)
	v1.GET("/alerts", alertHandler.GetAlerts)
	v1.GET("/alerts/history", alertHandler.GetHistory)
	v1.GET("/alerts/metrics", alertHandler.GetMetrics)
	v1.PUT("/alerts/:id/acknowledge", alertHandler.AcknowledgeAlert)
	v1.PUT("/alerts/:id/resolve", alertHandler.ResolveAlert)
	v1.POST("/alerts/:id/silence", alertHandler.SilenceAlert)

	v1.GET("/channels", alertHandler.GetChannels)

	if s.config.WebSocket.Enabled {
		ws := handlers.NewWebSocketHandler(s.engine, s.config.WebSocket, s.logger)
		v1.GET("/alerts/stream", ws.HandleAlertStream)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("VIGIL-CORE REST API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down VIGIL-CORE gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}
