package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	sferrors "github.com/randalmurphal/socialflow/errors"
	"github.com/randalmurphal/socialflow/graph"
	"github.com/randalmurphal/socialflow/workflow"
)

func newApproveCommand(app *App) *cobra.Command {
	var token, message string
	cmd := &cobra.Command{
		Use:   "approve <thread-id> [reply...]",
		Short: "Answer a review request",
		Long: `Answer a thread waiting for review. The reply defaults to 'approve'.

  approve           publish the draft as-is
  reject            throw the draft away and write a new one
  edit:<text>       publish <text> instead

Examples:
  socialflow approve post-1a2b
  socialflow approve post-1a2b reject --message "too formal"
  socialflow approve post-1a2b "edit: Shipping v2 today. #launch"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			reply := strings.TrimSpace(strings.Join(args[1:], " "))
			if reply == "" {
				reply = string(workflow.ActionApprove)
			}

			fb, recognized := parseReply(reply)
			var value any = reply
			if message != "" {
				if !recognized {
					return fmt.Errorf("--message needs a reply of approve, reject or edit:<text>, got %q", reply)
				}
				fb.Message = message
				value = fb
			}

			return app.withRuntime(cmd, func(rt *Runtime) error {
				ctx := cmd.Context()
				before, err := rt.Runner.Inspect(ctx, id)
				if err != nil {
					return sferrors.Wrap(err, id)
				}

				var opts []graph.ResumeOption
				if token != "" {
					opts = append(opts, graph.WithToken(token))
				}
				out, err := rt.Runner.Resume(ctx, id, value, opts...)
				if err != nil {
					return sferrors.Wrap(err, id)
				}

				if recognized && fb.Action == workflow.ActionEdit && before.State.Draft != nil && out.State.Draft != nil {
					fmt.Fprintln(cmd.OutOrStdout(), app.styles.faint.Render("Changes:"))
					fmt.Fprintln(cmd.OutOrStdout(), wordDiff(app.styles,
						before.State.Draft.RenderedText(), out.State.Draft.RenderedText()))
					fmt.Fprintln(cmd.OutOrStdout())
				}
				return app.report(cmd, out)
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "resume token from the review request")
	cmd.Flags().StringVarP(&message, "message", "m", "", "note for the writer or the thread history")
	return cmd
}

// parseReply reports whether reply is one of the recognized reply forms.
func parseReply(reply string) (workflow.Feedback, bool) {
	fb, err := workflow.ParseResume(reply, workflow.FailClosed)
	return fb, err == nil
}
