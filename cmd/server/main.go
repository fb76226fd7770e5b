package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ad-orchestrator/internal/harness"
	"ad-orchestrator/internal/orchestrator"
	"ad-orchestrator/internal/platform/config"
	"ad-orchestrator/internal/platform/logger"
	"ad-orchestrator/internal/platform/metrics"
	"ad-orchestrator/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	policy, err := orchestrator.ParseSeekPolicy(cfg.SeekPolicy)
	if err != nil {
		log.Warn("falling back to skip seek policy", "error", err)
	}

	met := metrics.New()
	tracker := transport.NewTrackingClient(nil, logger.Component(log, "tracking"), met, transport.TrackingOptions{
		Attempts:   uint(max(cfg.TrackingAttempts, 1)),
		RetryDelay: cfg.TrackingRetryDelay,
		Timeout:    cfg.TrackingTimeout,
	})
	loader := transport.NewCreativeLoader(&http.Client{Timeout: cfg.ResolveTimeout})

	repo := harness.NewInMemoryRepository()
	svc := harness.NewService(repo, harness.Options{
		PollInterval:   cfg.PollInterval,
		SeekTolerance:  cfg.SeekTolerance,
		SeekPolicy:     policy,
		ResolveTimeout: cfg.ResolveTimeout,
		Loader:         loader,
		Tracking:       tracker,
	}, logger.Component(log, "session"), met)
	h := harness.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(svc.ActiveSessionCount()) }).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval,
		"seek_policy", policy.String(),
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	svc.Close(ctx)
	tracker.Close()

	log.Info("server stopped")
}
