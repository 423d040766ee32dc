package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/alecthomas/kong"

	"smartexpense/internal/backend"
	"smartexpense/internal/log"
	"smartexpense/internal/services"
)

type ExportCmd struct {
	To  []string `help:"Export targets: csv, sqlite, sheets." short:"t" default:"csv"`
	Out string   `help:"Output file for the csv target." short:"o" default:"export.csv" type:"path"`
}

func (cmd *ExportCmd) Run(kctx *kong.Context, s *Session) error {
	ctx := context.Background()

	targets, err := parseTargets(cmd.To)
	if err != nil {
		return err
	}

	bcfg, err := backend.FromAppConfig(s.Config)
	if err != nil {
		return err
	}
	bcfg.CSVPath = cmd.Out

	m, err := s.Manager(ctx)
	if err != nil {
		return err
	}

	exporters := make([]services.Exporter, 0, len(targets))
	for _, target := range targets {
		res, err := s.Factory.CreateExporter(ctx, target, bcfg)
		if err != nil {
			return err
		}
		if res.Cleanup != nil {
			defer func() {
				if err := res.Cleanup(); err != nil {
					s.Logger.Warn("Failed to release export target", log.FieldTarget, res.Exporter.Name(), log.FieldError, err)
				}
			}()
		}
		exporters = append(exporters, res.Exporter)
	}

	if err := services.ExportAll(ctx, m, exporters...); err != nil {
		return err
	}

	for _, x := range exporters {
		printSuccess(kctx.Stdout, fmt.Sprintf("Exported %d expense(s) to %s", m.Len(), x.Name()))
	}
	return nil
}

// parseTargets validates names and drops repeats, keeping first-seen order.
func parseTargets(names []string) ([]backend.Target, error) {
	var out []backend.Target
	for _, name := range names {
		t, err := backend.ParseTarget(name)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no export target given, use one of %v", backend.GetTargetStrings())
	}
	return out, nil
}
