package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relstack-labs/relstore/internal/httpapi"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts Options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record API over HTTP",
		Long: `Serve exposes every declared model over a JSON HTTP API: collection
queries driven by URL parameters, item lookup by primary key, and the
full mutation lifecycle including bulk operations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(opts)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			if addr == "" {
				addr = rt.cfg.HTTPAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := httpapi.NewServer(httpapi.Config{
				Access: rt.access,
				Addr:   addr,
				Logger: rt.logger,
			})
			if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
