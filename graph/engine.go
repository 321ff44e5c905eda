package graph

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/socialflow/checkpoint"
)

// Compiled is an executable graph bound to a checkpoint store.
type Compiled[S, U any] struct {
	reduce   Reducer[S, U]
	nodes    map[string]NodeFunc[S, U]
	edges    map[string]string
	branches map[string]branch[S]
	entry    string
	terminal func(S) bool
	store    checkpoint.Store
	opts     options
}

// Result is returned by Start, Resume and Continue.
type Result[S any] struct {
	ThreadID string
	State    S

	// Interrupt is set when the thread stopped to wait for a resume value.
	Interrupt *Interrupt

	// Done is set when the thread reached END.
	Done bool

	Step    int
	Version int64
}

// Snapshot is a read-only view of a stored thread.
type Snapshot[S any] struct {
	ThreadID  string
	State     S
	Next      string
	Interrupt *Interrupt
	Step      int
	Version   int64
	UpdatedAt time.Time
}

// Done reports whether the thread finished.
func (s Snapshot[S]) Done() bool { return s.Next == END }

// Suspended reports whether the thread is waiting for a resume value.
func (s Snapshot[S]) Suspended() bool { return s.Interrupt != nil }

// Store returns the checkpoint store the graph persists to.
func (c *Compiled[S, U]) Store() checkpoint.Store {
	return c.store
}

// Start creates a thread and runs it until it suspends, finishes or fails.
// The initial checkpoint is written before the entry node runs.
func (c *Compiled[S, U]) Start(ctx context.Context, threadID string, initial S) (Result[S], error) {
	ctx, span := c.opts.tracer.Start(ctx, "graph.start", trace.WithAttributes(
		attribute.String("thread.id", threadID),
	))
	defer span.End()

	unlock, err := c.opts.locker.Lock(ctx, threadID)
	if err != nil {
		return c.fail(span, Result[S]{ThreadID: threadID, State: initial}, err)
	}
	defer unlock()

	_, err = c.store.Load(ctx, threadID)
	switch {
	case err == nil:
		return c.fail(span, Result[S]{ThreadID: threadID, State: initial},
			fmt.Errorf("%w: %s", ErrThreadExists, threadID))
	case !errors.Is(err, checkpoint.ErrNotFound):
		return c.fail(span, Result[S]{ThreadID: threadID, State: initial}, err)
	}

	cur := checkpoint.Cursor{Next: c.entry}
	version, err := c.save(ctx, threadID, initial, cur, 0)
	if err != nil {
		return c.fail(span, Result[S]{ThreadID: threadID, State: initial}, err)
	}

	c.opts.logger.Info("thread started", "thread_id", threadID, "entry", c.entry)
	res, err := c.loop(ctx, threadID, initial, cur, version, nil)
	if err != nil {
		return c.fail(span, res, err)
	}
	return res, nil
}

// Resume delivers value to the node a thread is suspended at and continues
// running. Resuming an unknown, finished or running thread fails with
// InvalidResumeError and changes nothing.
func (c *Compiled[S, U]) Resume(ctx context.Context, threadID string, value any, opts ...ResumeOption) (Result[S], error) {
	ctx, span := c.opts.tracer.Start(ctx, "graph.resume", trace.WithAttributes(
		attribute.String("thread.id", threadID),
	))
	defer span.End()

	var ro resumeOptions
	for _, opt := range opts {
		opt(&ro)
	}

	unlock, err := c.opts.locker.Lock(ctx, threadID)
	if err != nil {
		return c.fail(span, Result[S]{ThreadID: threadID}, err)
	}
	defer unlock()

	cp, err := c.store.Load(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return c.fail(span, Result[S]{ThreadID: threadID}, NewInvalidResume(threadID, "unknown thread"))
	}
	if err != nil {
		return c.fail(span, Result[S]{ThreadID: threadID}, err)
	}

	state, err := c.decode(cp)
	if err != nil {
		return c.fail(span, Result[S]{ThreadID: threadID}, err)
	}
	base := Result[S]{ThreadID: threadID, State: state, Step: cp.Cursor.Step, Version: cp.Version, Done: cp.Cursor.Done()}

	switch {
	case cp.Cursor.Done():
		return c.fail(span, base, NewInvalidResume(threadID, "thread already finished"))
	case !cp.Cursor.Suspended:
		return c.fail(span, base, NewInvalidResume(threadID, "thread is not waiting for input"))
	}
	if err := c.checkToken(threadID, cp.Cursor, ro.token); err != nil {
		return c.fail(span, base, err)
	}

	c.opts.logger.Info("thread resumed", "thread_id", threadID, "node", cp.Cursor.Next)
	cur := checkpoint.Cursor{Next: cp.Cursor.Next, Step: cp.Cursor.Step}
	res, err := c.loop(ctx, threadID, state, cur, cp.Version, &resumeBox{value: value})
	if err != nil {
		return c.fail(span, res, err)
	}
	return res, nil
}

// Continue re-runs a thread that stopped on a node error, starting from the
// node that failed.
func (c *Compiled[S, U]) Continue(ctx context.Context, threadID string) (Result[S], error) {
	ctx, span := c.opts.tracer.Start(ctx, "graph.continue", trace.WithAttributes(
		attribute.String("thread.id", threadID),
	))
	defer span.End()

	unlock, err := c.opts.locker.Lock(ctx, threadID)
	if err != nil {
		return c.fail(span, Result[S]{ThreadID: threadID}, err)
	}
	defer unlock()

	cp, err := c.store.Load(ctx, threadID)
	if err != nil {
		return c.fail(span, Result[S]{ThreadID: threadID}, err)
	}
	state, err := c.decode(cp)
	if err != nil {
		return c.fail(span, Result[S]{ThreadID: threadID}, err)
	}
	base := Result[S]{ThreadID: threadID, State: state, Step: cp.Cursor.Step, Version: cp.Version}

	switch {
	case cp.Cursor.Done():
		base.Done = true
		return c.fail(span, base, fmt.Errorf("%w: %s", ErrThreadDone, threadID))
	case cp.Cursor.Suspended:
		return c.fail(span, base, fmt.Errorf("%w: %s", ErrThreadSuspended, threadID))
	}

	c.opts.logger.Info("thread continued", "thread_id", threadID, "node", cp.Cursor.Next)
	res, err := c.loop(ctx, threadID, state, cp.Cursor, cp.Version, nil)
	if err != nil {
		return c.fail(span, res, err)
	}
	return res, nil
}

// Get loads a thread without running anything.
func (c *Compiled[S, U]) Get(ctx context.Context, threadID string) (Snapshot[S], error) {
	cp, err := c.store.Load(ctx, threadID)
	if err != nil {
		return Snapshot[S]{}, err
	}
	return c.snapshot(cp)
}

// List returns snapshots of stored threads. The store must implement
// checkpoint.Lister.
func (c *Compiled[S, U]) List(ctx context.Context, filter checkpoint.Filter) ([]Snapshot[S], error) {
	lister, ok := c.store.(checkpoint.Lister)
	if !ok {
		return nil, fmt.Errorf("graph: store %T cannot list threads", c.store)
	}
	cps, err := lister.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot[S], 0, len(cps))
	for _, cp := range cps {
		snap, err := c.snapshot(cp)
		if err != nil {
			c.opts.logger.Warn("skipping unreadable checkpoint", "thread_id", cp.ThreadID, "error", err)
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (c *Compiled[S, U]) snapshot(cp checkpoint.Checkpoint) (Snapshot[S], error) {
	state, err := c.decode(cp)
	if err != nil {
		return Snapshot[S]{}, err
	}
	snap := Snapshot[S]{
		ThreadID:  cp.ThreadID,
		State:     state,
		Next:      cp.Cursor.Next,
		Step:      cp.Cursor.Step,
		Version:   cp.Version,
		UpdatedAt: cp.UpdatedAt,
	}
	if cp.Cursor.Suspended {
		snap.Interrupt = &Interrupt{Node: cp.Cursor.Next, Payload: cp.Cursor.Payload, Token: cp.Cursor.Token}
	}
	return snap, nil
}

// =============================================================================
// Execution Loop
// =============================================================================

func (c *Compiled[S, U]) loop(ctx context.Context, threadID string, state S, cur checkpoint.Cursor, version int64, resume *resumeBox) (Result[S], error) {
	res := Result[S]{ThreadID: threadID, State: state, Step: cur.Step, Version: version}
	ctx = context.WithValue(ctx, threadKey, threadID)

	// The guard counts node runs in this call only. Cursor steps carry
	// across resumes and grow with every review round.
	for ran := 0; cur.Next != END; ran++ {
		if ran >= c.opts.maxSteps {
			return res, fmt.Errorf("%w: %d steps in one run of thread %s", ErrMaxSteps, c.opts.maxSteps, threadID)
		}

		name := cur.Next
		nctx := context.WithValue(ctx, stepKey, cur.Step)
		if resume != nil {
			nctx = withResume(nctx, resume.value)
			resume = nil
		}

		update, err := c.invoke(nctx, threadID, name, cur.Step, res.State)

		var sig *suspendSignal
		if errors.As(err, &sig) {
			return c.suspend(ctx, res, name, sig)
		}
		if err != nil {
			return res, &NodeError{Node: name, Step: cur.Step, Err: err}
		}

		next := c.reduce(res.State, update)
		target, err := c.route(ctx, name, next)
		if err != nil {
			return res, &NodeError{Node: name, Step: cur.Step, Err: err}
		}

		cur = checkpoint.Cursor{Next: target, Step: cur.Step + 1}
		v, err := c.save(ctx, threadID, next, cur, res.Version)
		if err != nil {
			return res, err
		}
		res.State, res.Step, res.Version = next, cur.Step, v
	}

	res.Done = true
	c.opts.logger.Info("thread finished", "thread_id", threadID, "steps", res.Step)
	return res, nil
}

func (c *Compiled[S, U]) suspend(ctx context.Context, res Result[S], node string, sig *suspendSignal) (Result[S], error) {
	payload, err := json.Marshal(sig.payload)
	if err != nil {
		return res, &NodeError{Node: node, Step: res.Step, Err: fmt.Errorf("marshal interrupt payload: %w", err)}
	}
	token, err := c.opts.tokens.Issue(res.ThreadID, res.Step)
	if err != nil {
		return res, &NodeError{Node: node, Step: res.Step, Err: fmt.Errorf("issue resume token: %w", err)}
	}

	cur := checkpoint.Cursor{Next: node, Suspended: true, Payload: payload, Token: token, Step: res.Step}
	v, err := c.save(ctx, res.ThreadID, res.State, cur, res.Version)
	if err != nil {
		return res, err
	}
	res.Version = v
	res.Interrupt = &Interrupt{Node: node, Payload: payload, Token: token}

	c.opts.logger.Info("thread suspended", "thread_id", res.ThreadID, "node", node, "step", res.Step)
	return res, nil
}

func (c *Compiled[S, U]) invoke(ctx context.Context, threadID, name string, step int, state S) (update U, err error) {
	ctx, span := c.opts.tracer.Start(ctx, "graph.node."+name, trace.WithAttributes(
		attribute.String("thread.id", threadID),
		attribute.String("node.name", name),
		attribute.Int("graph.step", step),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Node: name, Value: r, Stack: string(debug.Stack())}
		}

		var sig *suspendSignal
		switch {
		case errors.As(err, &sig):
			span.SetAttributes(attribute.Bool("node.suspended", true))
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.opts.logger.Warn("node failed",
				"thread_id", threadID, "node", name, "step", step,
				"duration_ms", time.Since(start).Milliseconds(), "error", err)
		default:
			c.opts.logger.Debug("node completed",
				"thread_id", threadID, "node", name, "step", step,
				"duration_ms", time.Since(start).Milliseconds())
		}
	}()

	return c.nodes[name](ctx, state)
}

func (c *Compiled[S, U]) route(ctx context.Context, from string, state S) (string, error) {
	if c.terminal != nil && c.terminal(state) {
		return END, nil
	}
	if to, ok := c.edges[from]; ok {
		return to, nil
	}
	b := c.branches[from]
	to := b.route(ctx, state)
	if to != END && c.nodes[to] == nil {
		return "", fmt.Errorf("%w: %s -> %q", ErrInvalidRoute, from, to)
	}
	if len(b.targets) > 0 && to != END && !contains(b.targets, to) {
		return "", fmt.Errorf("%w: %s -> %q", ErrInvalidRoute, from, to)
	}
	return to, nil
}

func (c *Compiled[S, U]) checkToken(threadID string, cur checkpoint.Cursor, presented string) error {
	if presented == "" {
		if c.opts.requireToken && cur.Token != "" {
			return NewInvalidResume(threadID, "resume token required")
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(cur.Token)) != 1 {
		return NewInvalidResume(threadID, "stale or unknown resume token")
	}
	if v, ok := c.opts.tokens.(TokenVerifier); ok {
		if err := v.Verify(presented, threadID, cur.Step); err != nil {
			return NewInvalidResume(threadID, err.Error())
		}
	}
	return nil
}

// save writes the next version of a thread and returns it.
func (c *Compiled[S, U]) save(ctx context.Context, threadID string, state S, cur checkpoint.Cursor, prev int64) (int64, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return prev, &checkpoint.PersistenceError{Op: "encode", ThreadID: threadID, Err: err}
	}
	cp := checkpoint.Checkpoint{
		ThreadID:  threadID,
		State:     data,
		Cursor:    cur,
		Version:   prev + 1,
		UpdatedAt: c.opts.now().UTC(),
	}
	if err := c.store.Save(ctx, cp); err != nil {
		var pe *checkpoint.PersistenceError
		if !errors.As(err, &pe) {
			err = &checkpoint.PersistenceError{Op: "save", ThreadID: threadID, Err: err}
		}
		return prev, err
	}
	return cp.Version, nil
}

func (c *Compiled[S, U]) decode(cp checkpoint.Checkpoint) (S, error) {
	var s S
	if err := json.Unmarshal(cp.State, &s); err != nil {
		return s, &checkpoint.PersistenceError{Op: "decode", ThreadID: cp.ThreadID, Err: err}
	}
	return s, nil
}

func (c *Compiled[S, U]) fail(span trace.Span, res Result[S], err error) (Result[S], error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return res, err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
