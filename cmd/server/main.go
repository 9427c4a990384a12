package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/explorer/internal/config"
	"github.com/JonMunkholm/explorer/internal/core"
	"github.com/JonMunkholm/explorer/internal/logging"
	"github.com/JonMunkholm/explorer/internal/metrics"
	"github.com/JonMunkholm/explorer/internal/web"
)

func main() {
	// Load .env file if it exists; real environment variables win.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	m := metrics.New()
	service := core.NewService(core.Options{
		MaxFileSize:        cfg.Ingest.MaxFileSize,
		LoadTimeout:        cfg.Ingest.Timeout,
		SessionTTL:         cfg.Session.TTL,
		CleanupInterval:    cfg.Session.CleanupInterval,
		HistoryLimit:       cfg.Session.HistoryLimit,
		QueryLatency:       cfg.Query.Latency,
		SampleRows:         cfg.Ingest.SampleRows,
		SampleStepDelay:    cfg.Ingest.SampleStepDelay,
		MaxConcurrentLoads: cfg.Ingest.MaxConcurrent,
		MaxLoadWait:        cfg.Ingest.MaxWaitTime,
	}, m)

	server := web.NewServer(service, cfg, m)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight loads finish before closing connections.
		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for loads to complete", "active", status.Active)
			if err := service.WaitForLoads(shutdownCtx); err != nil {
				slog.Warn("loads did not complete in time", "error", err)
			} else {
				slog.Info("all loads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		service.Close()
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
