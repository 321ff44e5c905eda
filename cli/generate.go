package cli

import (
	"github.com/spf13/cobra"

	sferrors "github.com/randalmurphal/socialflow/errors"
	"github.com/randalmurphal/socialflow/platform"
	"github.com/randalmurphal/socialflow/workflow"
)

func newGenerateCommand(app *App) *cobra.Command {
	var (
		req         workflow.Request
		platformArg string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Draft a post and wait for review",
		Long: `Draft a post about a topic and suspend the thread until a reviewer
answers with 'socialflow approve'.

Example:
  socialflow generate --topic "Our v2 launch" --platform linkedin --tone excited`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if platformArg != "" {
				pl, err := platform.Parse(platformArg)
				if err != nil {
					return err
				}
				req.Platform = pl
			}
			return app.withRuntime(cmd, func(rt *Runtime) error {
				pl := req.Platform
				if pl == "" {
					pl = app.settings.Workflow.DefaultPlatform
				}
				if err := requirePublisher(rt.Publishers, pl); err != nil {
					return err
				}

				out, err := rt.Runner.Start(cmd.Context(), req)
				if err != nil {
					return sferrors.Wrap(err, req.ThreadID)
				}
				return app.report(cmd, out)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Topic, "topic", "", "what the post is about (required)")
	f.StringVar(&platformArg, "platform", "", "twitter (or x) or linkedin; defaults to default_platform")
	f.StringVar(&req.Tone, "tone", "", "tone of voice; defaults to default_tone")
	f.StringVar(&req.ExtraContext, "context", "", "extra context for the writer")
	f.IntVar(&req.MaxAttempts, "max-attempts", 0, "draft budget for this thread; defaults to max_attempts")
	f.StringVar(&req.ThreadID, "id", "", "thread id; generated when empty")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

// report prints an outcome. A failed thread exits non-zero.
func (a *App) report(cmd *cobra.Command, out workflow.Outcome) error {
	renderOutcome(cmd.OutOrStdout(), a.styles, out)
	if out.State.Status == workflow.StatusFailed {
		return NewExitError(ExitPostFailed)
	}
	return nil
}
