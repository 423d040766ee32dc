package main

import (
	"context"
	"errors"
	"os"
	"time"

	"smartexpense/internal/amqp"
	"smartexpense/internal/cli"
	"smartexpense/internal/log"
	"smartexpense/internal/storage"
	"smartexpense/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting smartexpense-mirror")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required by the mirror worker")
		os.Exit(1)
	}

	mirror, err := storage.NewSQLiteMirror(cfg.SQLiteMirrorPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite mirror", log.FieldError, err, log.FieldFile, cfg.SQLiteMirrorPath)
		os.Exit(1)
	}
	defer mirror.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	w := worker.NewMirrorWorker(mirror, logger)

	// Catch up on events missed while the worker was down
	if err := w.StartupSync(ctx, storage.NewFileStore(cfg.ExpensesFile)); err != nil {
		logger.Error("Failed startup sync", log.FieldError, err)
	}

	if err := client.ConsumeExpenseEvents(ctx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Mirror worker stopped")
}
