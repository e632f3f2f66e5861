package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/hospital-bulk/internal/config"
	"github.com/JonMunkholm/hospital-bulk/internal/core"
	"github.com/JonMunkholm/hospital-bulk/internal/history"
	"github.com/JonMunkholm/hospital-bulk/internal/hospitalapi"
	"github.com/JonMunkholm/hospital-bulk/internal/logging"
	"github.com/JonMunkholm/hospital-bulk/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"hospital_api", cfg.HospitalAPI.BaseURL,
		"max_rows", cfg.Import.MaxRows,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"history_enabled", cfg.Database.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	// Import history is optional; without a database batches are only returned.
	var (
		recorder core.HistoryRecorder
		reader   web.HistoryReader
	)
	if cfg.Database.Enabled() {
		pool, err := history.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to history database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := history.ApplyMigrations(ctx, pool); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}

		store := history.NewStore(pool)
		recorder, reader = store, store
		slog.Info("import history enabled")
	}

	client := hospitalapi.New(cfg.HospitalAPI.BaseURL, cfg.HospitalAPI.Timeout)
	importer := core.NewImporter(client, core.ImporterConfig{
		MaxRows:       cfg.Import.MaxRows,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWaitTime:   cfg.Import.MaxWaitTime,
		History:       recorder,
		RecordTimeout: cfg.Import.HistoryTimeout,
	})

	server := web.NewServer(importer, reader, cfg)

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

		if status := importer.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := importer.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
