package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kong"

	apphttp "smartexpense/internal/http"
	"smartexpense/internal/log"
	"smartexpense/internal/middleware/ratelimit"
)

const shutdownTimeout = 30 * time.Second

type ServeCmd struct {
	Port string `help:"Port to listen on, overriding PORT." short:"p"`
}

func (cmd *ServeCmd) Run(kctx *kong.Context, s *Session) error {
	port := pick(cmd.Port, s.Config.Port)

	m, err := s.Manager(context.Background())
	if err != nil {
		return err
	}

	srv := apphttp.NewServer(":"+port, m, apphttp.Options{
		Logger:    s.Logger,
		CacheTTL:  s.Config.CacheTTL,
		RateLimit: ratelimit.DefaultConfig(),
	})

	ctx, done := GracefulShutdown(s.Logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			s.Logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	printInfof(kctx.Stdout, "Serving %s on http://localhost:%s", s.Config.ExpensesFile, port)
	s.Logger.Info("Starting server",
		"port", port,
		log.FieldFile, s.Config.ExpensesFile,
		log.FieldCount, m.Len(),
		log.FieldOperation, log.OpStartup)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error on port %s: %w", port, err)
	}

	WaitForShutdown(ctx, done)
	s.Logger.Info("Server stopped gracefully")
	return nil
}
