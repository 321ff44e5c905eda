package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/socialflow/auth"
	"github.com/randalmurphal/socialflow/checkpoint"
	"github.com/randalmurphal/socialflow/generate"
	"github.com/randalmurphal/socialflow/graph"
	"github.com/randalmurphal/socialflow/notify"
	"github.com/randalmurphal/socialflow/platform"
	"github.com/randalmurphal/socialflow/publish"
)

// =============================================================================
// Requests and Outcomes
// =============================================================================

// Request starts a new post thread.
type Request struct {
	Topic        string
	Platform     platform.Platform
	Tone         string
	ExtraContext string

	// MaxAttempts bounds draft generation. Zero uses the runner default.
	MaxAttempts int

	// ThreadID is generated when empty.
	ThreadID string
}

// Outcome is where a thread stands after a call returns.
type Outcome struct {
	ThreadID string
	State    State

	// Approval is set while the thread waits for a reviewer.
	Approval *ApprovalRequest

	// Next is the node that runs next, or graph.END when finished.
	Next      string
	Version   int64
	UpdatedAt time.Time
}

// Done reports whether the thread finished.
func (o Outcome) Done() bool { return o.Next == graph.END }

// Waiting reports whether the thread is suspended for review.
func (o Outcome) Waiting() bool { return o.Approval != nil }

// =============================================================================
// Runner
// =============================================================================

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Generator  generate.Generator
	Publishers *publish.Registry
	Store      checkpoint.Store

	// Policy decides how unrecognized review replies are handled.
	Policy ResumePolicy

	// MaxAttempts is the default regeneration budget. Defaults to
	// DefaultMaxAttempts.
	MaxAttempts int

	DraftTimeout   time.Duration
	PublishTimeout time.Duration

	Notifier notify.Notifier
	Logger   *slog.Logger

	// GraphOptions are passed to graph compilation (tokens, tracer, locker).
	GraphOptions []graph.Option

	Now      func() time.Time
	NewID    func() (string, error)
	Defaults Defaults
}

// Defaults fill request fields left empty.
type Defaults struct {
	Platform platform.Platform
	Tone     string
}

// Runner is the entry point for starting, resuming and inspecting post
// threads. It is safe for concurrent use; calls on the same thread are
// serialized by the graph's locker.
type Runner struct {
	graph       *Graph
	store       checkpoint.Store
	notifier    notify.Notifier
	logger      *slog.Logger
	now         func() time.Time
	newID       func() (string, error)
	maxAttempts int
	defaults    Defaults
}

// NewRunner compiles the workflow graph and returns a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Store == nil {
		return nil, errors.New("workflow: checkpoint store is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("workflow: generator is required")
	}
	if cfg.Policy == "" {
		cfg.Policy = FailOpen
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = auth.NewThreadID
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NopNotifier{}
	}

	nodes := &Nodes{
		Generator:      cfg.Generator,
		Publishers:     cfg.Publishers,
		Policy:         cfg.Policy,
		DraftTimeout:   cfg.DraftTimeout,
		PublishTimeout: cfg.PublishTimeout,
		Logger:         cfg.Logger,
		Now:            cfg.Now,
	}
	opts := append([]graph.Option{graph.WithLogger(cfg.Logger), graph.WithClock(cfg.Now)}, cfg.GraphOptions...)
	g, err := Build(nodes, cfg.Store, opts...)
	if err != nil {
		return nil, fmt.Errorf("build workflow: %w", err)
	}

	return &Runner{
		graph:       g,
		store:       cfg.Store,
		notifier:    cfg.Notifier,
		logger:      cfg.Logger,
		now:         cfg.Now,
		newID:       cfg.NewID,
		maxAttempts: cfg.MaxAttempts,
		defaults:    cfg.Defaults,
	}, nil
}

// Graph returns the compiled workflow.
func (r *Runner) Graph() *Graph { return r.graph }

// Start creates a thread and runs it to the first review request (or to a
// terminal state if generation fails on every permitted attempt).
func (r *Runner) Start(ctx context.Context, req Request) (Outcome, error) {
	initial, err := r.initialState(req)
	if err != nil {
		return Outcome{}, err
	}

	r.logger.Info("starting post thread",
		"thread_id", initial.ThreadID,
		"platform", initial.Platform,
		"max_attempts", initial.MaxAttempts,
	)
	send(ctx, r.notifier, r.logger, notify.Event{
		Type:      notify.EventThreadStarted,
		ThreadID:  initial.ThreadID,
		Platform:  string(initial.Platform),
		Message:   fmt.Sprintf("Drafting a %s post about %q", initial.Platform, initial.Topic),
		Severity:  notify.SeverityInfo,
		Timestamp: r.now(),
	})

	res, err := r.graph.Start(ctx, initial.ThreadID, initial)
	return r.finish(ctx, res, err)
}

// Resume delivers a reviewer's reply to a suspended thread. Accepted reply
// forms are documented on ParseResume.
func (r *Runner) Resume(ctx context.Context, threadID string, value any, opts ...graph.ResumeOption) (Outcome, error) {
	res, err := r.graph.Resume(ctx, threadID, value, opts...)
	return r.finish(ctx, res, err)
}

// Continue re-runs a thread that stopped on a recoverable error, such as a
// failed draft with attempts left.
func (r *Runner) Continue(ctx context.Context, threadID string) (Outcome, error) {
	res, err := r.graph.Continue(ctx, threadID)
	return r.finish(ctx, res, err)
}

// Inspect returns the stored state of a thread without running anything.
func (r *Runner) Inspect(ctx context.Context, threadID string) (Outcome, error) {
	snap, err := r.graph.Get(ctx, threadID)
	if err != nil {
		return Outcome{}, err
	}
	return fromSnapshot(snap)
}

// Pending lists threads waiting for review, oldest first. The store must
// support listing.
func (r *Runner) Pending(ctx context.Context, limit int) ([]Outcome, error) {
	snaps, err := r.graph.List(ctx, checkpoint.Filter{SuspendedOnly: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]Outcome, 0, len(snaps))
	for _, snap := range snaps {
		o, err := fromSnapshot(snap)
		if err != nil {
			r.logger.Warn("skipping thread with unreadable review request", "thread_id", snap.ThreadID, "error", err)
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// Forget deletes a finished thread. Threads still in flight are kept.
func (r *Runner) Forget(ctx context.Context, threadID string) error {
	snap, err := r.graph.Get(ctx, threadID)
	if err != nil {
		return err
	}
	if !snap.Done() {
		return fmt.Errorf("%w: %s is at %s", ErrNotTerminal, threadID, snap.Next)
	}
	return r.store.Delete(ctx, threadID)
}

func (r *Runner) initialState(req Request) (State, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return State{}, fmt.Errorf("%w: topic is required", ErrInvalidRequest)
	}

	pl := req.Platform
	if pl == "" {
		pl = r.defaults.Platform
	}
	if _, err := platform.Lookup(pl); err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	maxAttempts := req.MaxAttempts
	switch {
	case maxAttempts < 0:
		return State{}, fmt.Errorf("%w: max attempts must be >= 1, got %d", ErrInvalidRequest, maxAttempts)
	case maxAttempts == 0:
		maxAttempts = r.maxAttempts
	}

	id := req.ThreadID
	if id == "" {
		var err error
		if id, err = r.newID(); err != nil {
			return State{}, err
		}
	}
	if err := checkpoint.ValidateThreadID(id); err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	tone := req.Tone
	if tone == "" {
		tone = r.defaults.Tone
	}

	return State{
		ThreadID:     id,
		Topic:        topic,
		Platform:     pl,
		Tone:         tone,
		ExtraContext: strings.TrimSpace(req.ExtraContext),
		Status:       StatusDraft,
		MaxAttempts:  maxAttempts,
		CreatedAt:    r.now().UTC(),
	}, nil
}

// finish turns a graph result into an Outcome and sends notifications.
func (r *Runner) finish(ctx context.Context, res graph.Result[State], runErr error) (Outcome, error) {
	out := fromResult(res)
	if res.Interrupt != nil {
		approval, err := decodeApproval(res.Interrupt)
		if err != nil {
			return out, err
		}
		out.Approval = approval
	}

	if runErr != nil {
		if IsGeneration(runErr) {
			send(ctx, r.notifier, r.logger, notify.Event{
				Type:      notify.EventGenerationFailed,
				ThreadID:  res.ThreadID,
				Platform:  string(res.State.Platform),
				Message:   runErr.Error(),
				Severity:  notify.SeverityWarning,
				Timestamp: r.now(),
			})
		}
		return out, runErr
	}

	if ev, ok := outcomeEvent(out, r.now()); ok {
		send(ctx, r.notifier, r.logger, ev)
	}
	return out, nil
}

func fromResult(res graph.Result[State]) Outcome {
	out := Outcome{ThreadID: res.ThreadID, State: res.State, Version: res.Version}
	switch {
	case res.Done:
		out.Next = graph.END
	case res.Interrupt != nil:
		out.Next = res.Interrupt.Node
	}
	return out
}

func fromSnapshot(snap graph.Snapshot[State]) (Outcome, error) {
	out := Outcome{
		ThreadID:  snap.ThreadID,
		State:     snap.State,
		Next:      snap.Next,
		Version:   snap.Version,
		UpdatedAt: snap.UpdatedAt,
	}
	if snap.Interrupt != nil {
		approval, err := decodeApproval(snap.Interrupt)
		if err != nil {
			return out, err
		}
		out.Approval = approval
	}
	return out, nil
}

func decodeApproval(in *graph.Interrupt) (*ApprovalRequest, error) {
	var a ApprovalRequest
	if err := in.Decode(&a); err != nil {
		return nil, fmt.Errorf("decode review request: %w", err)
	}
	a.ResumeToken = in.Token
	return &a, nil
}
