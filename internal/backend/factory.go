package backend

import (
	"context"
	"fmt"

	"smartexpense/internal/amqp"
	"smartexpense/internal/log"
	gsheet "smartexpense/internal/sheets/google"
	"smartexpense/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentExport),
	}
}

// CreateExporter implements Factory.CreateExporter
func (f *DefaultFactory) CreateExporter(ctx context.Context, target Target, config Config) (*ExporterResult, error) {
	if err := config.Validate(target); err != nil {
		return nil, err
	}

	switch target {
	case CSVTarget:
		return &ExporterResult{Exporter: storage.CSVExporter{Path: config.CSVPath}}, nil
	case SQLiteTarget:
		return f.createSQLiteExporter(config)
	case SheetsTarget:
		return f.createSheetsExporter(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported export target: %s", target)
	}
}

func (f *DefaultFactory) createSQLiteExporter(config Config) (*ExporterResult, error) {
	mirror, err := storage.NewSQLiteMirror(config.SQLiteMirrorPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite mirror: %w", err)
	}

	f.logger.Info("Initialized SQLite mirror", log.FieldFile, config.SQLiteMirrorPath)

	return &ExporterResult{
		Exporter: mirror,
		Cleanup:  mirror.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsExporter(ctx context.Context, config Config) (*ExporterResult, error) {
	x, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		OAuthClientJSON:    config.GoogleOAuthClientJSON,
		OAuthClientFile:    config.GoogleOAuthClientFile,
		OAuthTokenFile:     config.GoogleOAuthTokenFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
	}

	f.logger.Info("Initialized Google Sheets exporter", log.FieldTarget, x.Name())

	return &ExporterResult{Exporter: x}, nil
}

// CreateNotifier implements Factory.CreateNotifier. Publishing is optional: a
// missing URL or an unreachable broker yields a nil Notifier, not an error.
func (f *DefaultFactory) CreateNotifier(ctx context.Context, config Config) (*NotifierResult, error) {
	if config.AMQPURL == "" {
		return &NotifierResult{}, nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		return &NotifierResult{}, nil
	}

	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	return &NotifierResult{
		Notifier: client,
		Cleanup:  client.Close,
	}, nil
}
