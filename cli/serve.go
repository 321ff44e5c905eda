package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/socialflow/api"
)

func newServeCommand(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the review API over HTTP",
		Long: `Serve the HTTP API for generating posts and answering review requests.
Runs until interrupted.

Example:
  socialflow serve --addr localhost:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = app.settings.APIAddr
			}
			return app.withRuntime(cmd, func(rt *Runtime) error {
				srv, err := api.NewServer(api.ServerConfig{
					Addr:   addr,
					Runner: rt.Runner,
					Tracer: rt.Tracer,
					Logger: app.logger,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", srv.Addr())

				errCh := make(chan error, 1)
				go func() { errCh <- srv.Start() }()

				select {
				case err := <-errCh:
					return err
				case <-cmd.Context().Done():
				}

				ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 10*time.Second)
				defer cancel()
				if err := srv.Stop(ctx); err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
				return <-errCh
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address; defaults to api_addr")
	return cmd
}
