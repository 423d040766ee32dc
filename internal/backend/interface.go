package backend

import (
	"context"

	"smartexpense/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// ExporterResult contains the export target and optional cleanup function
type ExporterResult struct {
	Exporter services.Exporter
	Cleanup  CleanupFunc
}

// NotifierResult contains the event publisher and optional cleanup function.
// Notifier is nil when publishing is not configured.
type NotifierResult struct {
	Notifier services.Notifier
	Cleanup  CleanupFunc
}

// Factory builds the pluggable collaborators of the expense manager.
type Factory interface {
	CreateExporter(ctx context.Context, target Target, config Config) (*ExporterResult, error)
	CreateNotifier(ctx context.Context, config Config) (*NotifierResult, error)
}

// Config holds configuration for collaborator creation
type Config struct {
	// CSV export
	CSVPath string

	// SQLite mirror
	SQLiteMirrorPath string

	// AMQP notifications
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
}

// Target names an export destination.
type Target string

const (
	CSVTarget    Target = "csv"
	SQLiteTarget Target = "sqlite"
	SheetsTarget Target = "sheets"
)

// String implements fmt.Stringer
func (t Target) String() string {
	return string(t)
}

// IsValid returns true if the target is known
func (t Target) IsValid() bool {
	switch t {
	case CSVTarget, SQLiteTarget, SheetsTarget:
		return true
	default:
		return false
	}
}
