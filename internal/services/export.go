package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"smartexpense/internal/log"
)

// ExportAll writes one snapshot of the collection to every exporter
// concurrently. The first failure cancels the others' context.
func ExportAll(ctx context.Context, m *Manager, exporters ...Exporter) error {
	if len(exporters) == 0 {
		return nil
	}
	if len(exporters) == 1 {
		return m.Export(ctx, exporters[0])
	}

	snapshot := m.List()
	g, gctx := errgroup.WithContext(ctx)
	for _, x := range exporters {
		g.Go(func() error {
			if err := x.Export(gctx, snapshot); err != nil {
				return fmt.Errorf("export to %s: %w", x.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.ErrorContext(ctx, "Export failed", log.FieldError, err)
		return err
	}
	m.logger.InfoContext(ctx, "Export completed", "targets", len(exporters), log.FieldCount, len(snapshot))
	return nil
}
