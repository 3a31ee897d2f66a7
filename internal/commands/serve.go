package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conciliar-dev/conciliar/internal/api"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := openEnv(ctx, root.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.pipeline()
			if err != nil {
				return err
			}
			app := api.New(api.Deps{
				Pipeline:       p,
				Engine:         e.engine(),
				Reports:        e.reports(),
				Banks:          e.registry.Banks(),
				Health:         e.store.Ping,
				Logger:         e.log,
				MaxUploadBytes: e.cfg.MaxUploadBytes(),
			})

			if addr == "" {
				addr = e.cfg.Server.Addr
			}
			errc := make(chan error, 1)
			go func() { errc <- app.Listen(addr) }()
			e.log.Info("serving API", "addr", addr, "driver", e.store.Driver())

			select {
			case err := <-errc:
				return fmt.Errorf("serving %s: %w", addr, err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			e.log.Info("shutting down")
			return app.ShutdownWithContext(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")

	return cmd
}
