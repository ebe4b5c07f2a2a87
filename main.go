// nearword is the game server: many concurrent rooms, one secret target
// word each, guesses answered with semantic ranks and fanned out to every
// room member over WebSockets.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nearword/nearword/internal/config"
	"github.com/nearword/nearword/internal/game"
	"github.com/nearword/nearword/internal/health"
	"github.com/nearword/nearword/internal/httpapi"
	"github.com/nearword/nearword/internal/session"
	"github.com/nearword/nearword/internal/streaming"
	"github.com/nearword/nearword/internal/vocab"
	"github.com/nearword/nearword/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := streaming.NewHub(cfg.Limits.HistorySize, logger)
	pool := workers.New(cfg.Game.BuildWorkers, logger)
	cache := vocab.New(cfg.Vocab, logger)
	registry := game.NewRegistry(cache, hub, pool, cfg.Game, logger)
	sessions := session.NewManager(cfg.Limits, logger)
	api := httpapi.NewHandler(cfg, registry, sessions, hub, logger)

	// Warm the vocabulary cache off the serving path. Rooms created before
	// it finishes wait inside their own build tasks.
	pool.Submit(ctx, "vocab warmup", func(context.Context) {
		if err := cache.Ensure(nil); err != nil {
			logger.Fatal("Vocabulary cache initialization failed", zap.Error(err))
		}
	})

	// Admin mux: metrics and probes.
	hm := health.NewManager(logger)
	hm.Register(health.NewVocabChecker(cache))
	hm.Register(health.NewGameChecker(registry, sessions))
	adminMux := http.NewServeMux()
	health.NewHTTPHandler(hm, logger).RegisterRoutes(adminMux)
	adminMux.Handle("/metrics", promhttp.Handler())
	adminSrv := &http.Server{
		Addr:         cfg.Server.AdminAddr,
		Handler:      adminMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Admin HTTP server listening", zap.String("addr", cfg.Server.AdminAddr))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin HTTP server failed", zap.Error(err))
		}
	}()

	// Game mux: the WebSocket endpoint.
	gameMux := http.NewServeMux()
	api.RegisterRoutes(gameMux)
	gameSrv := &http.Server{
		Addr:        cfg.Server.BindAddr,
		Handler:     gameMux,
		ReadTimeout: cfg.Server.ReadTimeout,
		// No WriteTimeout: it would sever long-lived WebSockets.
	}
	go func() {
		logger.Info("Game server listening", zap.String("addr", cfg.Server.BindAddr))
		if err := gameSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Game server failed", zap.Error(err))
		}
	}()

	// Hot-reload the dynamic config subset when a config file is in use.
	if path := os.Getenv("NEARWORD_CONFIG"); path != "" {
		watcher, err := config.NewWatcher(path, logger)
		if err != nil {
			logger.Warn("Config watcher unavailable", zap.Error(err))
		} else {
			watcher.RegisterHandler(api.UpdateConfig)
			if err := watcher.Start(ctx); err != nil {
				logger.Warn("Config watcher failed to start", zap.Error(err))
			}
			defer func() { _ = watcher.Stop() }()
		}
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := gameSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Game server shutdown incomplete", zap.Error(err))
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Admin server shutdown incomplete", zap.Error(err))
	}
	pool.Wait()
	logger.Info("Shutdown complete")
}

// newLogger builds a production logger at the configured level; debug
// switches to the development encoder.
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if err := zcfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return zcfg.Build()
}
