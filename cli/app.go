// Package cli implements the socialflow command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/socialflow/config"
	sferrors "github.com/randalmurphal/socialflow/errors"
)

// RuntimeBuilder builds the runtime a command drives. BuildRuntime is the
// production builder; tests substitute one over in-memory parts.
type RuntimeBuilder func(ctx context.Context, s config.Settings, opts RuntimeOptions) (*Runtime, error)

// App holds the state shared by every command.
type App struct {
	Out io.Writer
	Err io.Writer

	// ResolverConfig locates config files.
	ResolverConfig config.ResolverConfig

	// NewRuntime defaults to BuildRuntime.
	NewRuntime RuntimeBuilder

	// Now defaults to time.Now.
	Now func() time.Time

	flags    globalFlags
	resolver *config.Resolver
	resolved *config.Resolved
	settings config.Settings
	loadErr  error
	logger   *slog.Logger
	styles   styles
}

type globalFlags struct {
	debug     bool
	store     string
	storePath string
	dryRun    bool
	noColor   bool
	logFormat string
}

// NewApp creates an App writing to stdout and stderr.
func NewApp() *App {
	return &App{Out: os.Stdout, Err: os.Stderr}
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	return NewApp().Execute(ctx, args)
}

// Execute runs args against a fresh command tree and returns the exit code.
// Errors are printed to Err with a suggestion where one is known.
func (a *App) Execute(ctx context.Context, args []string) int {
	root := NewRootCommand(a)
	root.SetArgs(args)
	root.SetOut(a.Out)
	root.SetErr(a.Err)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if code, ok := IsExitError(err); ok {
		return code
	}
	fmt.Fprintf(a.Err, "%s %s\n", a.styles.bad.Render("Error:"), sferrors.Wrap(err, "").Error())
	return 1
}

// NewRootCommand builds the socialflow command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "socialflow",
		Short: "Draft, review and publish social media posts",
		Long: `socialflow drafts posts with an LLM, waits for a human to approve,
reject or edit each draft, and publishes the approved text to X or LinkedIn.

Threads are checkpointed, so a review can be answered hours later from any
process that shares the store.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&app.flags.debug, "debug", false, "enable debug logging")
	pf.StringVar(&app.flags.store, "store", "", "checkpoint store: memory, file, sqlite or redis")
	pf.StringVar(&app.flags.storePath, "store-path", "", "store directory or database path")
	pf.BoolVar(&app.flags.dryRun, "dry-run", false, "record posts instead of publishing them")
	pf.BoolVar(&app.flags.noColor, "no-color", false, "disable styled output")
	pf.StringVar(&app.flags.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newGenerateCommand(app),
		newApproveCommand(app),
		newRetryCommand(app),
		newStatusCommand(app),
		newPendingCommand(app),
		newServeCommand(app),
		newConfigCommand(app),
	)
	return root
}

// init resolves configuration once flags are parsed. A settings error is
// kept rather than returned so config commands can repair it.
func (a *App) init(cmd *cobra.Command) error {
	rc := a.ResolverConfig
	if rc.ErrWriter == nil {
		rc.ErrWriter = a.Err
	}
	a.resolver = config.NewResolver(rc)
	a.resolved = a.resolver.ResolveWithFlags(a.flagOverrides(cmd))
	a.settings, a.loadErr = config.Load(a.resolved)

	a.styles = newStyles(a.settings.NoColor)
	a.logger = newLogger(a.Err, a.settings)
	return nil
}

// flagOverrides maps the global flags that were set to config keys.
func (a *App) flagOverrides(cmd *cobra.Command) map[string]string {
	out := map[string]string{}
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("debug") && a.flags.debug {
		out[config.KeyLogLevel] = "debug"
	}
	if changed("store") {
		out[config.KeyStoreBackend] = a.flags.store
	}
	if changed("store-path") {
		out[config.KeyStorePath] = a.flags.storePath
	}
	if changed("dry-run") {
		out[config.KeyDryRun] = fmt.Sprint(a.flags.dryRun)
	}
	if changed("no-color") {
		out[config.KeyNoColor] = fmt.Sprint(a.flags.noColor)
	}
	if changed("log-format") {
		out[config.KeyLogFormat] = a.flags.logFormat
	}
	return out
}

func newLogger(w io.Writer, s config.Settings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.LogLevel}
	if s.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// runtime builds the runtime for one command. The caller closes it.
func (a *App) runtime(ctx context.Context) (*Runtime, error) {
	if a.loadErr != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", a.loadErr)
	}
	build := a.NewRuntime
	if build == nil {
		build = BuildRuntime
	}
	return build(ctx, a.settings, RuntimeOptions{
		Logger:      a.logger,
		ProjectDir:  a.resolver.GitRoot(),
		TraceWriter: a.Err,
	})
}

// withRuntime runs fn against a runtime and closes it afterwards.
func (a *App) withRuntime(cmd *cobra.Command, fn func(rt *Runtime) error) error {
	ctx := cmd.Context()
	rt, err := a.runtime(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// flush with a fresh context so a canceled command still exports spans
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if cerr := rt.Close(closeCtx); cerr != nil {
			a.logger.Warn("closing runtime", "error", cerr)
		}
	}()
	return fn(rt)
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
