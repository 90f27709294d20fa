package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"alarm-dashboard/internal/app"
)

var (
	// serveAddr overrides the configured listen address.
	serveAddr string
	// serveSeed inserts demo alarms before serving.
	serveSeed bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API and periodic refresh.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return withApp(ctx, func(ctx context.Context, a *app.App) error {
				if serveAddr != "" {
					a.Config.HTTP.Addr = serveAddr
				}
				if serveSeed {
					n, err := a.Seed(ctx, a.Service.Now())
					if err != nil {
						return err
					}
					a.Logger.Infow("demo alarms seeded", "count", n)
				}
				return a.Serve(ctx)
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address, overrides http.addr")
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "insert demo alarms at startup")
}
