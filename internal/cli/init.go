// Package cli provides the command tree of the smartexpense binary and the
// initialization helpers shared with cmd/smartexpense-mirror.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"smartexpense/internal/backend"
	"smartexpense/internal/config"
	"smartexpense/internal/log"
	"smartexpense/internal/services"
	"smartexpense/internal/storage"
)

// SetupLogger initializes structured logging on stderr at the given level
// and sets it as the default logger.
func SetupLogger(level string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentApp,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenManager loads the expense file and attaches the event notifier when
// AMQP is configured. The returned cleanup releases the notifier.
func OpenManager(ctx context.Context, cfg *config.Config, logger *log.Logger, factory backend.Factory) (*services.Manager, backend.CleanupFunc, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []services.Option{services.WithLogger(logger)}
	cleanup := func() error { return nil }

	notifier, err := factory.CreateNotifier(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create notifier: %w", err)
	}
	if notifier.Notifier != nil {
		opts = append(opts, services.WithNotifier(notifier.Notifier))
	}
	if notifier.Cleanup != nil {
		cleanup = notifier.Cleanup
	}

	m, err := services.NewManager(storage.NewFileStore(cfg.ExpensesFile), opts...)
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}

	logger.Debug("Expense manager ready",
		log.FieldFile, cfg.ExpensesFile,
		log.FieldCount, m.Len(),
		log.FieldSkipped, m.Skipped())
	return m, cleanup, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached", log.FieldOperation, log.OpShutdown)
		} else {
			logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
