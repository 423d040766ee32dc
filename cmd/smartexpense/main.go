package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"smartexpense/internal/backend"
	"smartexpense/internal/cli"
	"smartexpense/internal/config"
	"smartexpense/internal/log"
)

var root struct {
	Version kong.VersionFlag `help:"Show version information"`
	cli.Commands
}

func main() {
	// Load .env before parsing so flag env defaults see it
	cli.LoadEnvFile()

	opts := append(cli.ParserOptions(),
		kong.Vars{
			"version": buildVersion(),
		},
		kong.Name("smartexpense"),
		kong.Description("A personal expense tracker backed by a flat file."),
		kong.UsageOnError(),
		kong.Bind(&root.Globals),
	)
	ctx := kong.Parse(&root, opts...)

	cfg := config.Load()
	root.Globals.Apply(cfg)

	logger := cli.SetupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	session := cli.NewSession(cfg, logger, backend.NewFactory(logger))
	err := ctx.Run(session)
	if closeErr := session.Close(); closeErr != nil {
		logger.Warn("Failed to release resources", log.FieldError, closeErr)
	}

	// Commands returning CommandError already printed their diagnostics
	var cmdErr *cli.CommandError
	if errors.As(err, &cmdErr) {
		os.Exit(cli.ExitCode(err))
	}
	ctx.FatalIfErrorf(err)
}

func buildVersion() string {
	if cli.Version == "" {
		cli.Version = "dev"
	}
	if cli.CommitSHA == "" {
		return cli.Version
	}
	return fmt.Sprintf("%s (%s)", cli.Version, cli.CommitSHA)
}
