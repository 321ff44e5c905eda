package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/socialflow/api"
	sferrors "github.com/randalmurphal/socialflow/errors"
)

func newStatusCommand(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status <thread-id>",
		Short: "Show where a thread stands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return app.withRuntime(cmd, func(rt *Runtime) error {
				out, err := rt.Runner.Inspect(cmd.Context(), id)
				if err != nil {
					return sferrors.Wrap(err, id)
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(api.NewPostResponse(out))
				}
				renderOutcome(cmd.OutOrStdout(), app.styles, out)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the thread as JSON")
	return cmd
}

func newPendingCommand(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List threads waiting for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withRuntime(cmd, func(rt *Runtime) error {
				outs, err := rt.Runner.Pending(cmd.Context(), limit)
				if err != nil {
					return err
				}
				renderPending(cmd.OutOrStdout(), app.styles, outs, app.now())
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n threads")
	return cmd
}

func newRetryCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <thread-id>",
		Short: "Re-run a thread that stopped on a draft error",
		Long: `Re-run a thread whose last draft attempt failed while attempts remained.
The thread picks up at the step that failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return app.withRuntime(cmd, func(rt *Runtime) error {
				out, err := rt.Runner.Continue(cmd.Context(), id)
				if err != nil {
					return sferrors.Wrap(err, id)
				}
				return app.report(cmd, out)
			})
		},
	}
}
