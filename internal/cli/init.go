// Package cli provides common CLI initialization utilities shared by
// cmd/salestracker and cmd/salestracker-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"salestracker/internal/config"
	applog "salestracker/internal/log"
	"salestracker/internal/storage"
)

// SetupLogger initializes structured logging at the given level name and
// sets it as the process default.
func SetupLogger(level, component string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Component: component,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitQueue opens the local pending queue, running migrations.
// Exits the process on failure.
func InitQueue(dbPath string) *storage.SQLiteQueue {
	queue, err := storage.NewSQLiteQueue(dbPath)
	if err != nil {
		slog.Error("Failed to open pending queue", "error", err, "path", dbPath)
		os.Exit(1)
	}
	if version, dirty, err := queue.SchemaVersion(); err == nil {
		slog.Info("Pending queue ready", "path", dbPath, "schema_version", version, "dirty", dirty)
	}
	return queue
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM.
// After the signal, cleanup runs with a context bounded by timeout and the
// returned channel closes when it returns.
func GracefulShutdown(timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			slog.Warn("Shutdown timeout reached")
			return
		}
		slog.Info("Shutdown complete")
	}()

	return ctx, done
}
