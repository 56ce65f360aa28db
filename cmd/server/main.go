package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netvigil/vigil-core/internal/alerting"
	"github.com/netvigil/vigil-core/internal/api"
	"github.com/netvigil/vigil-core/internal/channels"
	"github.com/netvigil/vigil-core/internal/config"
	"github.com/netvigil/vigil-core/internal/monitoring"
	"github.com/netvigil/vigil-core/internal/tracing"
	"github.com/netvigil/vigil-core/pkg/cache"
	"github.com/netvigil/vigil-core/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting VIGIL-CORE", "version", monitoring.Version, "environment", cfg.Environment)

	// Initialize Valkey caching, falling back to the in-process cache when
	// disabled or unreachable. The engine runs fully without it.
	var valkeyCache cache.Valkey
	if cfg.Cache.Enabled {
		valkeyCache, err = cache.NewValkey(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB,
			time.Duration(cfg.Cache.TTL)*time.Second, logger)
		if err != nil {
			logger.Warn("Valkey unavailable, using in-process cache", "error", err)
			valkeyCache = cache.NewNoopValkey(logger)
		} else {
			logger.Info("Valkey cache initialized", "addr", cfg.Cache.Addr)
		}
	} else {
		valkeyCache = cache.NewNoopValkey(logger)
	}

	// OpenTelemetry tracing
	if cfg.Tracing.Enabled {
		tracerProvider, err := tracing.NewTracerProvider("vigil-core", monitoring.Version, cfg.Tracing.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled, OTLP exporter init failed", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Tracer shutdown failed", "error", err)
				}
			}()
			logger.Info("OTLP tracing initialized", "endpoint", cfg.Tracing.OTLPEndpoint)
		}
	}

	// Notification channel adapters
	registry := channels.NewRegistryFromConfig(cfg.Channels, logger)
	logger.Info("Notification channels registered", "channels", registry.Names())

	// Suppression rules, correlation rules, and escalation policies
	rules, err := config.LoadRules(cfg.Engine.RulesPath)
	if err != nil {
		logger.Fatal("Failed to load alert rules", "path", cfg.Engine.RulesPath, "error", err)
	}

	// Alert engine
	engine := alerting.NewEngine(cfg.Engine, rules, registry, valkeyCache, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine.Start(ctx)

	// Hot reload of the rules file
	rulesWatcher := config.NewRulesWatcher(cfg.Engine.RulesPath, rules, logger)
	rulesWatcher.RegisterCallback(engine.ApplyRules)
	go func() {
		if err := rulesWatcher.Start(ctx); err != nil {
			logger.Warn("Rules hot reload unavailable", "error", err)
		}
	}()
	defer rulesWatcher.Stop()

	// API server
	apiServer := api.NewServer(cfg, logger, engine, valkeyCache)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := apiServer.Start(ctx); err != nil {
		logger.Fatal("Server failed to start", "error", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	engine.Shutdown(shutdownCtx)

	logger.Info("VIGIL-CORE shutdown complete")
}
