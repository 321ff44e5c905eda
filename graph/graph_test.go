package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/socialflow/checkpoint"
)

type counter struct {
	N      int      `json:"n"`
	Log    []string `json:"log,omitempty"`
	Answer string   `json:"answer,omitempty"`
}

type delta struct {
	Add    int
	Note   string
	Answer string
}

func merge(s counter, d delta) counter {
	out := s
	out.N += d.Add
	out.Log = append(append([]string(nil), s.Log...), d.Note)
	if d.Answer != "" {
		out.Answer = d.Answer
	}
	return out
}

func inc(note string) NodeFunc[counter, delta] {
	return func(ctx context.Context, s counter) (delta, error) {
		return delta{Add: 1, Note: note}, nil
	}
}

func ask(ctx context.Context, s counter) (delta, error) {
	v, ok := ResumeValue(ctx)
	if !ok {
		return delta{}, Suspend(map[string]any{"question": "continue?", "n": s.N})
	}
	return delta{Note: "ask", Answer: v.(string)}, nil
}

func askGraph() *Graph[counter, delta] {
	return New[counter, delta](merge).
		AddNode("a", inc("a")).
		AddNode("ask", ask).
		AddNode("b", inc("b")).
		AddEdge("a", "ask").
		AddEdge("ask", "b").
		AddEdge("b", END).
		SetEntry("a")
}

func TestCompileValidation(t *testing.T) {
	store := checkpoint.NewMemoryStore()

	tests := []struct {
		name  string
		build func() *Graph[counter, delta]
		want  error
	}{
		{"no entry", func() *Graph[counter, delta] {
			return New[counter, delta](merge).AddNode("a", inc("a")).AddEdge("a", END)
		}, ErrNoEntry},
		{"missing entry node", func() *Graph[counter, delta] {
			return New[counter, delta](merge).AddNode("a", inc("a")).AddEdge("a", END).SetEntry("zzz")
		}, ErrNodeNotFound},
		{"edge to missing node", func() *Graph[counter, delta] {
			return New[counter, delta](merge).AddNode("a", inc("a")).AddEdge("a", "b").SetEntry("a")
		}, ErrNodeNotFound},
		{"no outgoing", func() *Graph[counter, delta] {
			return New[counter, delta](merge).AddNode("a", inc("a")).SetEntry("a")
		}, ErrNoOutgoing},
		{"multiple outgoing", func() *Graph[counter, delta] {
			return New[counter, delta](merge).
				AddNode("a", inc("a")).
				AddEdge("a", END).
				AddConditionalEdge("a", func(context.Context, counter) string { return END }).
				SetEntry("a")
		}, ErrMultipleOutgoing},
		{"duplicate node", func() *Graph[counter, delta] {
			return New[counter, delta](merge).
				AddNode("a", inc("a")).
				AddNode("a", inc("a")).
				AddEdge("a", END).
				SetEntry("a")
		}, ErrDuplicateNode},
		{"reserved name", func() *Graph[counter, delta] {
			return New[counter, delta](merge).AddNode(END, inc("a")).SetEntry(END)
		}, ErrReservedName},
		{"branch to missing target", func() *Graph[counter, delta] {
			return New[counter, delta](merge).
				AddNode("a", inc("a")).
				AddConditionalEdge("a", func(context.Context, counter) string { return END }, "nope").
				SetEntry("a")
		}, ErrNodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Compile(store)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := askGraph().Compile(nil)
	assert.Error(t, err)
}

func TestLinearRun(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	g, err := New[counter, delta](merge).
		AddNode("a", inc("a")).
		AddNode("b", inc("b")).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile(store)
	require.NoError(t, err)

	res, err := g.Start(ctx, "t1", counter{})
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Nil(t, res.Interrupt)
	assert.Equal(t, 2, res.State.N)
	assert.Equal(t, []string{"a", "b"}, res.State.Log)
	assert.Equal(t, 2, res.Step)
	// initial checkpoint plus one per node
	assert.Equal(t, int64(3), res.Version)

	snap, err := g.Get(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, snap.Done())
	assert.Equal(t, 2, snap.State.N)
}

func TestStartExistingThread(t *testing.T) {
	ctx := context.Background()
	g, err := askGraph().Compile(checkpoint.NewMemoryStore())
	require.NoError(t, err)

	_, err = g.Start(ctx, "t1", counter{})
	require.NoError(t, err)
	_, err = g.Start(ctx, "t1", counter{})
	assert.ErrorIs(t, err, ErrThreadExists)
}

func TestInterruptAndResume(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	g, err := askGraph().Compile(store)
	require.NoError(t, err)

	res, err := g.Start(ctx, "t1", counter{})
	require.NoError(t, err)
	require.NotNil(t, res.Interrupt)
	assert.False(t, res.Done)
	assert.Equal(t, "ask", res.Interrupt.Node)
	assert.NotEmpty(t, res.Interrupt.Token)

	var payload struct {
		Question string `json:"question"`
		N        int    `json:"n"`
	}
	require.NoError(t, res.Interrupt.Decode(&payload))
	assert.Equal(t, "continue?", payload.Question)
	assert.Equal(t, 1, payload.N)

	snap, err := g.Get(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, snap.Suspended())
	assert.Equal(t, "ask", snap.Next)
	assert.Equal(t, 1, snap.State.N)

	res, err = g.Resume(ctx, "t1", "yes", WithToken(res.Interrupt.Token))
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, "yes", res.State.Answer)
	assert.Equal(t, []string{"a", "ask", "b"}, res.State.Log)
	assert.Equal(t, 2, res.State.N)
}

func TestResumeInvalid(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	g, err := askGraph().Compile(store)
	require.NoError(t, err)

	t.Run("unknown thread creates nothing", func(t *testing.T) {
		_, err := g.Resume(ctx, "ghost", "yes")
		assert.True(t, IsInvalidResume(err))
		_, err = store.Load(ctx, "ghost")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	})

	t.Run("finished thread", func(t *testing.T) {
		res, err := g.Start(ctx, "done", counter{})
		require.NoError(t, err)
		_, err = g.Resume(ctx, "done", "yes", WithToken(res.Interrupt.Token))
		require.NoError(t, err)

		before, err := store.Load(ctx, "done")
		require.NoError(t, err)
		_, err = g.Resume(ctx, "done", "again")
		assert.True(t, IsInvalidResume(err))
		after, err := store.Load(ctx, "done")
		require.NoError(t, err)
		assert.Equal(t, before.Version, after.Version)
	})

	t.Run("stale token", func(t *testing.T) {
		_, err := g.Start(ctx, "tok", counter{})
		require.NoError(t, err)
		_, err = g.Resume(ctx, "tok", "yes", WithToken("bogus"))
		assert.True(t, IsInvalidResume(err))

		snap, err := g.Get(ctx, "tok")
		require.NoError(t, err)
		assert.True(t, snap.Suspended())
	})
}

func TestRequiredToken(t *testing.T) {
	ctx := context.Background()
	g, err := askGraph().Compile(checkpoint.NewMemoryStore(), WithRequiredToken())
	require.NoError(t, err)

	res, err := g.Start(ctx, "t1", counter{})
	require.NoError(t, err)

	_, err = g.Resume(ctx, "t1", "yes")
	assert.True(t, IsInvalidResume(err))

	_, err = g.Resume(ctx, "t1", "yes", WithToken(res.Interrupt.Token))
	assert.NoError(t, err)
}

func TestConcurrentResumeOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	g, err := askGraph().Compile(checkpoint.NewMemoryStore())
	require.NoError(t, err)

	_, err = g.Start(ctx, "t1", counter{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.Resume(ctx, "t1", "yes")
		}(i)
	}
	wg.Wait()

	var ok, invalid int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case IsInvalidResume(err):
			invalid++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, len(errs)-1, invalid)
}

func TestMaxSteps(t *testing.T) {
	ctx := context.Background()
	g, err := New[counter, delta](merge).
		AddNode("loop", inc("loop")).
		AddConditionalEdge("loop", func(context.Context, counter) string { return "loop" }).
		SetEntry("loop").
		Compile(checkpoint.NewMemoryStore(), WithMaxSteps(5))
	require.NoError(t, err)

	res, err := g.Start(ctx, "t1", counter{})
	assert.ErrorIs(t, err, ErrMaxSteps)
	assert.Equal(t, 5, res.State.N)
}

func TestMaxStepsCountsEachCall(t *testing.T) {
	ctx := context.Background()
	g, err := New[counter, delta](merge).
		AddNode("a", inc("a")).
		AddNode("ask", ask).
		AddEdge("a", "ask").
		AddConditionalEdge("ask", func(_ context.Context, s counter) string {
			if s.Answer == "again" {
				return "a"
			}
			return END
		}, "a").
		SetEntry("a").
		Compile(checkpoint.NewMemoryStore(), WithMaxSteps(3))
	require.NoError(t, err)

	res, err := g.Start(ctx, "t1", counter{})
	require.NoError(t, err)
	require.NotNil(t, res.Interrupt)

	// Each round runs ask, then a, then suspends in ask again.
	for i := 0; i < 20; i++ {
		res, err = g.Resume(ctx, "t1", "again")
		require.NoError(t, err, "round %d", i)
		require.NotNil(t, res.Interrupt)
	}
	assert.Greater(t, res.Step, 3)
	assert.Equal(t, 21, res.State.N)

	res, err = g.Resume(ctx, "t1", "stop")
	require.NoError(t, err)
	assert.True(t, res.Done)
}

func TestTerminalPredicate(t *testing.T) {
	ctx := context.Background()
	g, err := New[counter, delta](merge).
		AddNode("loop", inc("loop")).
		AddConditionalEdge("loop", func(context.Context, counter) string { return "loop" }).
		SetEntry("loop").
		SetTerminal(func(s counter) bool { return s.N >= 3 }).
		Compile(checkpoint.NewMemoryStore())
	require.NoError(t, err)

	res, err := g.Start(ctx, "t1", counter{})
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, 3, res.State.N)
}

func TestInvalidRoute(t *testing.T) {
	ctx := context.Background()
	g, err := New[counter, delta](merge).
		AddNode("a", inc("a")).
		AddNode("b", inc("b")).
		AddConditionalEdge("a", func(context.Context, counter) string { return "c" }, "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile(checkpoint.NewMemoryStore())
	require.NoError(t, err)

	_, err = g.Start(ctx, "t1", counter{})
	assert.ErrorIs(t, err, ErrInvalidRoute)
}

func TestNodeErrorAndContinue(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	calls := 0
	flaky := func(ctx context.Context, s counter) (delta, error) {
		calls++
		if calls == 1 {
			return delta{}, errors.New("boom")
		}
		return delta{Add: 10, Note: "flaky"}, nil
	}
	g, err := New[counter, delta](merge).
		AddNode("a", inc("a")).
		AddNode("flaky", flaky).
		AddEdge("a", "flaky").
		AddEdge("flaky", END).
		SetEntry("a").
		Compile(store)
	require.NoError(t, err)

	_, err = g.Start(ctx, "t1", counter{})
	var ne *NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "flaky", ne.Node)

	snap, err := g.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "flaky", snap.Next)
	assert.Equal(t, 1, snap.State.N)

	_, err = g.Resume(ctx, "t1", "x")
	assert.True(t, IsInvalidResume(err))

	res, err := g.Continue(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, 11, res.State.N)

	_, err = g.Continue(ctx, "t1")
	assert.ErrorIs(t, err, ErrThreadDone)
}

func TestContinueSuspended(t *testing.T) {
	ctx := context.Background()
	g, err := askGraph().Compile(checkpoint.NewMemoryStore())
	require.NoError(t, err)
	_, err = g.Start(ctx, "t1", counter{})
	require.NoError(t, err)

	_, err = g.Continue(ctx, "t1")
	assert.ErrorIs(t, err, ErrThreadSuspended)
}

func TestPanicRecovered(t *testing.T) {
	ctx := context.Background()
	g, err := New[counter, delta](merge).
		AddNode("boom", func(context.Context, counter) (delta, error) { panic("kaboom") }).
		AddEdge("boom", END).
		SetEntry("boom").
		Compile(checkpoint.NewMemoryStore())
	require.NoError(t, err)

	_, err = g.Start(ctx, "t1", counter{})
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

// failingStore fails every save after the first n.
type failingStore struct {
	*checkpoint.MemoryStore
	n     int
	saves int
}

func (s *failingStore) Save(ctx context.Context, cp checkpoint.Checkpoint) error {
	s.saves++
	if s.saves > s.n {
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(ctx, cp)
}

func TestPersistenceFailureKeepsLastCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: checkpoint.NewMemoryStore(), n: 2}
	g, err := New[counter, delta](merge).
		AddNode("a", inc("a")).
		AddNode("b", inc("b")).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile(store)
	require.NoError(t, err)

	_, err = g.Start(ctx, "t1", counter{})
	require.Error(t, err)
	assert.True(t, checkpoint.IsPersistence(err))

	snap, err := g.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "b", snap.Next)
	assert.Equal(t, 1, snap.State.N)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	var seenThread string
	var seenStep int
	g, err := New[counter, delta](merge).
		AddNode("a", inc("a")).
		AddNode("probe", func(ctx context.Context, s counter) (delta, error) {
			seenThread = ThreadID(ctx)
			seenStep = Step(ctx)
			_, resumed := ResumeValue(ctx)
			assert.False(t, resumed)
			return delta{}, nil
		}).
		AddEdge("a", "probe").
		AddEdge("probe", END).
		SetEntry("a").
		Compile(checkpoint.NewMemoryStore())
	require.NoError(t, err)

	_, err = g.Start(ctx, "thread-x", counter{})
	require.NoError(t, err)
	assert.Equal(t, "thread-x", seenThread)
	assert.Equal(t, 1, seenStep)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	g, err := askGraph().Compile(checkpoint.NewMemoryStore())
	require.NoError(t, err)

	for _, id := range []string{"t1", "t2"} {
		_, err := g.Start(ctx, id, counter{})
		require.NoError(t, err)
	}
	_, err = g.Resume(ctx, "t1", "yes")
	require.NoError(t, err)

	pending, err := g.List(ctx, checkpoint.Filter{SuspendedOnly: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "t2", pending[0].ThreadID)
	assert.NotNil(t, pending[0].Interrupt)
}
