package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/socialflow/checkpoint"
)

// END is the pseudo-node that finishes a thread.
const END = checkpoint.End

// NodeFunc executes one step and returns a partial update.
type NodeFunc[S, U any] func(ctx context.Context, s S) (U, error)

// RouterFunc picks the next node after the source node's update is merged.
type RouterFunc[S any] func(ctx context.Context, s S) string

// Reducer merges a node's update into the state and returns the new state.
// It must not mutate s.
type Reducer[S, U any] func(s S, u U) S

type branch[S any] struct {
	route   RouterFunc[S]
	targets []string
}

// Graph is a mutable graph definition. Build it with the chained Add*
// methods and turn it into an executable graph with Compile.
type Graph[S, U any] struct {
	reduce   Reducer[S, U]
	nodes    map[string]NodeFunc[S, U]
	order    []string
	edges    map[string][]string
	branches map[string][]branch[S]
	entry    string
	terminal func(S) bool
	errs     []error
}

// New starts a graph definition.
func New[S, U any](reduce Reducer[S, U]) *Graph[S, U] {
	return &Graph[S, U]{
		reduce:   reduce,
		nodes:    make(map[string]NodeFunc[S, U]),
		edges:    make(map[string][]string),
		branches: make(map[string][]branch[S]),
	}
}

// AddNode registers a node.
func (g *Graph[S, U]) AddNode(name string, fn NodeFunc[S, U]) *Graph[S, U] {
	switch {
	case name == "" || name == END:
		g.errs = append(g.errs, fmt.Errorf("%w: %q", ErrReservedName, name))
	case g.nodes[name] != nil:
		g.errs = append(g.errs, fmt.Errorf("%w: %s", ErrDuplicateNode, name))
	case fn == nil:
		g.errs = append(g.errs, fmt.Errorf("node %s: nil func", name))
	default:
		g.nodes[name] = fn
		g.order = append(g.order, name)
	}
	return g
}

// AddEdge adds an unconditional edge.
func (g *Graph[S, U]) AddEdge(from, to string) *Graph[S, U] {
	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge routes from a node through fn. When targets are given,
// fn must return one of them (or END) and every target is checked at
// compile time.
func (g *Graph[S, U]) AddConditionalEdge(from string, fn RouterFunc[S], targets ...string) *Graph[S, U] {
	g.branches[from] = append(g.branches[from], branch[S]{route: fn, targets: targets})
	return g
}

// SetEntry sets the first node of every thread.
func (g *Graph[S, U]) SetEntry(name string) *Graph[S, U] {
	g.entry = name
	return g
}

// SetTerminal installs a predicate that ends the thread after any node whose
// merged state satisfies it, regardless of outgoing edges.
func (g *Graph[S, U]) SetTerminal(fn func(S) bool) *Graph[S, U] {
	g.terminal = fn
	return g
}

// Compile validates the definition and binds it to a checkpoint store.
func (g *Graph[S, U]) Compile(store checkpoint.Store, opts ...Option) (*Compiled[S, U], error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("graph: nil checkpoint store")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker == nil {
		o.locker = checkpoint.LockerFor(store)
	}

	c := &Compiled[S, U]{
		reduce:   g.reduce,
		nodes:    make(map[string]NodeFunc[S, U], len(g.nodes)),
		edges:    make(map[string]string, len(g.edges)),
		branches: make(map[string]branch[S], len(g.branches)),
		entry:    g.entry,
		terminal: g.terminal,
		store:    store,
		opts:     o,
	}
	for name, fn := range g.nodes {
		c.nodes[name] = fn
	}
	for from, tos := range g.edges {
		c.edges[from] = tos[0]
	}
	for from, bs := range g.branches {
		c.branches[from] = bs[0]
	}
	return c, nil
}

func (g *Graph[S, U]) validate() error {
	errs := append([]error(nil), g.errs...)

	if g.reduce == nil {
		errs = append(errs, errors.New("nil reducer"))
	}
	if g.entry == "" {
		errs = append(errs, ErrNoEntry)
	} else if g.nodes[g.entry] == nil {
		errs = append(errs, fmt.Errorf("entry %s: %w", g.entry, ErrNodeNotFound))
	}

	known := func(name string) bool {
		return name == END || g.nodes[name] != nil
	}

	for from, tos := range g.edges {
		if g.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("edge from %s: %w", from, ErrNodeNotFound))
		}
		for _, to := range tos {
			if !known(to) {
				errs = append(errs, fmt.Errorf("edge %s -> %s: %w", from, to, ErrNodeNotFound))
			}
		}
	}
	for from, bs := range g.branches {
		if g.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("branch from %s: %w", from, ErrNodeNotFound))
		}
		for _, b := range bs {
			if b.route == nil {
				errs = append(errs, fmt.Errorf("branch from %s: nil router", from))
			}
			for _, to := range b.targets {
				if !known(to) {
					errs = append(errs, fmt.Errorf("branch %s -> %s: %w", from, to, ErrNodeNotFound))
				}
			}
		}
	}

	for _, name := range g.order {
		n := len(g.edges[name]) + len(g.branches[name])
		switch {
		case n == 0:
			errs = append(errs, fmt.Errorf("%s: %w", name, ErrNoOutgoing))
		case n > 1:
			errs = append(errs, fmt.Errorf("%s: %w", name, ErrMultipleOutgoing))
		}
	}

	return errors.Join(errs...)
}
