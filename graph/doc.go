// Package graph runs durable, interruptible state machines.
//
// A graph is a set of named nodes joined by static or conditional edges.
// Each node reads the current state and returns a partial update; the
// engine merges the update with a caller-supplied reducer, picks the next
// node, and checkpoints state and cursor before moving on.
//
// A node may pause the thread by returning Suspend(payload). The engine
// saves the thread as suspended at that node and hands the payload back
// to the caller. Resume re-invokes the same node with the supplied value
// available through ResumeValue(ctx).
//
// Basic usage:
//
//	g := graph.New[State, Update](Merge).
//	    AddNode("draft", draft).
//	    AddNode("review", review).
//	    AddEdge("draft", "review").
//	    AddConditionalEdge("review", route, "draft", graph.END).
//	    SetEntry("draft")
//
//	compiled, err := g.Compile(store)
//	res, err := compiled.Start(ctx, "thread-1", State{})
//	if res.Interrupt != nil {
//	    res, err = compiled.Resume(ctx, "thread-1", "approve")
//	}
//
// Calls on the same thread are serialized. Different threads run
// independently.
package graph
