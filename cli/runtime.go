package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/socialflow/auth"
	"github.com/randalmurphal/socialflow/checkpoint"
	"github.com/randalmurphal/socialflow/config"
	sferrors "github.com/randalmurphal/socialflow/errors"
	"github.com/randalmurphal/socialflow/generate"
	"github.com/randalmurphal/socialflow/graph"
	"github.com/randalmurphal/socialflow/notify"
	"github.com/randalmurphal/socialflow/platform"
	"github.com/randalmurphal/socialflow/prompt"
	"github.com/randalmurphal/socialflow/publish"
	"github.com/randalmurphal/socialflow/task"
	"github.com/randalmurphal/socialflow/tracing"
	"github.com/randalmurphal/socialflow/workflow"
)

// Runtime is everything a command needs to drive post threads.
type Runtime struct {
	Runner     *workflow.Runner
	Publishers *publish.Registry
	Tracer     trace.Tracer

	closers []func(context.Context) error
}

// Close releases stores and flushes traces.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (rt *Runtime) onClose(fn func(context.Context) error) {
	rt.closers = append(rt.closers, fn)
}

// RuntimeOptions carries what BuildRuntime needs besides settings.
type RuntimeOptions struct {
	Logger *slog.Logger

	// ProjectDir is searched for prompt overrides. Empty uses the
	// embedded prompts only.
	ProjectDir string

	// TraceWriter receives spans when the stdout exporter is selected.
	TraceWriter io.Writer
}

// BuildRuntime wires the store, generator, publishers, notifiers, resume
// tokens and tracing selected by s into a Runner. The caller must Close the
// returned runtime.
func BuildRuntime(ctx context.Context, s config.Settings, opts RuntimeOptions) (_ *Runtime, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close(ctx)
		}
	}()

	store, err := openStore(ctx, rt, s.Store)
	if err != nil {
		return nil, err
	}

	gen, err := newGenerator(s.LLM, opts.ProjectDir, logger)
	if err != nil {
		return nil, err
	}

	rt.Publishers, err = newPublishers(ctx, s.Publish, logger)
	if err != nil {
		return nil, err
	}

	policy, err := workflow.ParsePolicy(s.Workflow.ResumePolicy)
	if err != nil {
		return nil, err
	}

	graphOpts, err := tokenOptions(s.Workflow)
	if err != nil {
		return nil, err
	}

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Exporter: s.Tracing.Exporter,
		Endpoint: s.Tracing.Endpoint,
		Insecure: s.Tracing.Insecure,
		Writer:   opts.TraceWriter,
	})
	if err != nil {
		return nil, sferrors.WrapConnectionError(err, "the trace collector")
	}
	rt.onClose(tp.Shutdown)
	rt.Tracer = tp.Tracer()
	if tp.Enabled() {
		graphOpts = append(graphOpts, graph.WithTracer(rt.Tracer))
	}

	rt.Runner, err = workflow.NewRunner(workflow.RunnerConfig{
		Generator:      gen,
		Publishers:     rt.Publishers,
		Store:          store,
		Policy:         policy,
		MaxAttempts:    s.Workflow.MaxAttempts,
		DraftTimeout:   s.Workflow.DraftTimeout,
		PublishTimeout: s.Workflow.PublishTimeout,
		Notifier:       newNotifier(s.Notify, logger),
		Logger:         logger,
		GraphOptions:   graphOpts,
		Defaults: workflow.Defaults{
			Platform: s.Workflow.DefaultPlatform,
			Tone:     s.Workflow.DefaultTone,
		},
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func openStore(ctx context.Context, rt *Runtime, s config.StoreSettings) (checkpoint.Store, error) {
	switch s.Backend {
	case config.StoreMemory:
		return checkpoint.NewMemoryStore(), nil
	case config.StoreFile:
		return checkpoint.NewFileStore(s.Path)
	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		db, err := checkpoint.OpenSQLite(ctx, s.Path)
		if err != nil {
			return nil, err
		}
		rt.onClose(func(context.Context) error { return db.Close() })
		return db, nil
	case config.StoreRedis:
		rs, err := checkpoint.OpenRedis(ctx, s.RedisAddr, s.RedisPassword, s.RedisDB,
			checkpoint.WithRedisPrefix(s.RedisPrefix))
		if err != nil {
			return nil, sferrors.WrapConnectionError(err, "redis at "+s.RedisAddr)
		}
		rt.onClose(func(context.Context) error { return rs.Close() })
		return rs, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", s.Backend)
}

func newGenerator(s config.LLMSettings, projectDir string, logger *slog.Logger) (generate.Generator, error) {
	var completer generate.Completer
	switch s.Provider {
	case config.ProviderOpenAI:
		c, err := generate.NewOpenAICompleter(generate.OpenAISettings{
			APIKey:  s.APIKey,
			BaseURL: s.BaseURL,
			Model:   s.Model,
		})
		if err != nil {
			return nil, err
		}
		completer = c
	default:
		completer = generate.NewClaudeCompleter(s.Workdir)
	}

	var models task.Models = task.NewTieredModels()
	if s.Model != "" {
		models = task.FixedModel(s.Model)
	}
	prompts := prompt.NewLoader(projectDir)
	if err := prompts.Check(); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	return generate.NewLLMGenerator(completer,
		generate.WithPrompts(prompts),
		generate.WithModels(models),
		generate.WithLogger(logger),
	), nil
}

// newPublishers registers a publisher for every platform with a token. Dry
// runs record posts in memory instead.
func newPublishers(ctx context.Context, s config.PublishSettings, logger *slog.Logger) (*publish.Registry, error) {
	reg := publish.NewRegistry()
	if s.DryRun {
		for _, pl := range platform.All() {
			reg.Register(publish.NewRecorder(pl))
		}
		return reg, nil
	}

	if s.XAccessToken != "" {
		x, err := publish.NewX(ctx, publish.XConfig{AccessToken: s.XAccessToken, Logger: logger})
		if err != nil {
			return nil, err
		}
		reg.Register(x)
	}
	if s.LinkedInAccessToken != "" {
		li, err := publish.NewLinkedIn(ctx, publish.LinkedInConfig{
			AccessToken: s.LinkedInAccessToken,
			Visibility:  publish.Visibility(s.LinkedInVisibility),
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		reg.Register(li)
	}
	return reg, nil
}

// credentialKey names the config key holding pl's access token.
func credentialKey(pl platform.Platform) string {
	if pl == platform.LinkedIn {
		return config.KeyLinkedInAccessToken
	}
	return config.KeyXAccessToken
}

// requirePublisher fails early when no publisher can serve pl, rather than
// after a reviewer approves.
func requirePublisher(reg *publish.Registry, pl platform.Platform) error {
	if _, err := reg.Get(pl); err != nil {
		key := credentialKey(pl)
		return sferrors.NewMissingCredentialError(key, config.EnvName(key))
	}
	return nil
}

func newNotifier(s config.NotifySettings, logger *slog.Logger) notify.Notifier {
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	if s.SlackWebhookURL != "" {
		var opts []notify.SlackOption
		if s.SlackChannel != "" {
			opts = append(opts, notify.WithSlackChannel(s.SlackChannel))
		}
		notifiers = append(notifiers, notify.NewSlackNotifier(s.SlackWebhookURL, opts...))
	}
	if s.WebhookURL != "" {
		wh := notify.NewWebhookNotifier(s.WebhookURL, nil)
		if s.WebhookSecret != "" {
			wh = wh.WithSecret(s.WebhookSecret)
		}
		notifiers = append(notifiers, wh)
	}

	multi := notify.NewMultiNotifier(notifiers...)
	multi.Logger = logger

	types := make([]notify.EventType, len(s.Events))
	for i, e := range s.Events {
		types[i] = notify.EventType(e)
	}
	return notify.Only(multi, types...)
}

func tokenOptions(s config.WorkflowSettings) ([]graph.Option, error) {
	var opts []graph.Option
	if s.TokenSecret != "" {
		tokens, err := auth.NewResumeTokens(auth.JWTConfig{
			Secret: []byte(s.TokenSecret),
			TTL:    s.TokenTTL,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, graph.WithTokens(tokens))
	}
	if s.RequireToken {
		opts = append(opts, graph.WithRequiredToken())
	}
	return opts, nil
}
