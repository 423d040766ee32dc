package cli

import (
	"context"
	"errors"
	"time"

	"github.com/alecthomas/kong"

	"smartexpense/internal/backend"
	"smartexpense/internal/config"
	"smartexpense/internal/log"
	"smartexpense/internal/services"
)

var (
	Version   = ""
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	File     string `help:"Expense file to read and write." short:"f" env:"EXPENSES_FILE" type:"path"`
	LogLevel string `help:"Log level: debug, info, warn or error." name:"log-level" env:"LOG_LEVEL" default:"warn"`
}

// Apply overrides cfg with the flags that were set.
func (g *Globals) Apply(cfg *config.Config) {
	if g.File != "" {
		cfg.ExpensesFile = g.File
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
}

// ParserOptions are the kong options every smartexpense parser needs.
// Flag values may start with a hyphen so "--amount -3" reads as a refund.
func ParserOptions() []kong.Option {
	return []kong.Option{
		kong.WithHyphenPrefixedParameters(true),
	}
}

type Commands struct {
	Globals

	Add        AddCmd        `cmd:"" help:"Record a new expense."`
	List       ListCmd       `cmd:"" aliases:"ls" help:"List expenses, optionally filtered."`
	Show       ShowCmd       `cmd:"" help:"Show one expense."`
	Edit       EditCmd       `cmd:"" help:"Change fields of an expense."`
	Rm         RmCmd         `cmd:"" aliases:"remove" help:"Remove an expense."`
	Total      TotalCmd      `cmd:"" help:"Sum the amounts of the matching expenses."`
	Summary    SummaryCmd    `cmd:"" help:"Show totals per month."`
	Categories CategoriesCmd `cmd:"" help:"List the categories in use."`
	Export     ExportCmd     `cmd:"" help:"Write a copy of all expenses to csv, sqlite or sheets."`
	Serve      ServeCmd      `cmd:"" help:"Serve the JSON API."`
	SheetsAuth SheetsAuthCmd `cmd:"" name:"sheets-auth" help:"Authorize Google Sheets export with your user account."`
}

// Session is bound into every command. It owns the configuration and opens
// the expense manager on first use.
type Session struct {
	Config  *config.Config
	Logger  *log.Logger
	Factory backend.Factory
	Now     func() time.Time
	Confirm func(question string) (bool, error)

	manager *services.Manager
	cleanup backend.CleanupFunc
}

func NewSession(cfg *config.Config, logger *log.Logger, factory backend.Factory) *Session {
	if logger == nil {
		logger = log.Discard()
	}
	if factory == nil {
		factory = backend.NewFactory(logger)
	}
	return &Session{
		Config:  cfg,
		Logger:  logger.WithComponent(log.ComponentCLI),
		Factory: factory,
		Now:     time.Now,
		Confirm: promptYesNo,
	}
}

// Manager loads the expense file once per session.
func (s *Session) Manager(ctx context.Context) (*services.Manager, error) {
	if s.manager != nil {
		return s.manager, nil
	}
	m, cleanup, err := OpenManager(ctx, s.Config, s.Logger, s.Factory)
	if err != nil {
		return nil, err
	}
	s.manager, s.cleanup = m, cleanup
	return m, nil
}

// Close releases what Manager opened.
func (s *Session) Close() error {
	if s.cleanup == nil {
		return nil
	}
	err := s.cleanup()
	s.cleanup = nil
	return err
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode()
	}
	return 1
}
