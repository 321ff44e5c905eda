package workflow

import (
	"github.com/randalmurphal/socialflow/checkpoint"
	"github.com/randalmurphal/socialflow/graph"
)

// Graph is the compiled post workflow.
type Graph = graph.Compiled[State, Update]

// Build wires the post workflow:
//
//	draft -> request_approval -> apply_feedback -+-> publish -> END
//	  ^                                          |
//	  +------------------ (rejected) ------------+-> END (failed)
//
// Any node that leaves the thread published or failed ends it.
func Build(nodes *Nodes, store checkpoint.Store, opts ...graph.Option) (*Graph, error) {
	return graph.New[State, Update](Merge).
		AddNode(NodeDraft, nodes.Draft).
		AddNode(NodeRequestApproval, nodes.RequestApproval).
		AddNode(NodeApplyFeedback, nodes.ApplyFeedback).
		AddNode(NodePublish, nodes.Publish).
		AddEdge(NodeDraft, NodeRequestApproval).
		AddEdge(NodeRequestApproval, NodeApplyFeedback).
		AddConditionalEdge(NodeApplyFeedback, Route, NodePublish, NodeDraft, graph.END).
		AddEdge(NodePublish, graph.END).
		SetEntry(NodeDraft).
		SetTerminal(State.Terminal).
		Compile(store, opts...)
}
