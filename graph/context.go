package graph

import (
	"context"
	"encoding/json"
	"fmt"
)

type contextKey string

const (
	resumeKey contextKey = "graph.resume"
	threadKey contextKey = "graph.thread"
	stepKey   contextKey = "graph.step"
)

type resumeBox struct {
	value any
}

func withResume(ctx context.Context, v any) context.Context {
	return context.WithValue(ctx, resumeKey, resumeBox{value: v})
}

// ResumeValue returns the value a suspended node is being resumed with.
// ok is false on a node's first invocation.
func ResumeValue(ctx context.Context) (value any, ok bool) {
	box, ok := ctx.Value(resumeKey).(resumeBox)
	if !ok {
		return nil, false
	}
	return box.value, true
}

// ThreadID returns the id of the thread executing the current node.
func ThreadID(ctx context.Context) string {
	id, _ := ctx.Value(threadKey).(string)
	return id
}

// Step returns the current step number.
func Step(ctx context.Context) int {
	n, _ := ctx.Value(stepKey).(int)
	return n
}

// =============================================================================
// Suspension
// =============================================================================

// suspendSignal is returned by nodes to pause the thread.
type suspendSignal struct {
	payload any
}

func (s *suspendSignal) Error() string {
	return "graph: thread suspended"
}

// Suspend pauses the thread at the calling node. The payload is serialized
// to JSON and returned to the caller as Interrupt.Payload.
func Suspend(payload any) error {
	return &suspendSignal{payload: payload}
}

// Interrupt describes a suspended thread.
type Interrupt struct {
	Node    string          `json:"node"`
	Payload json.RawMessage `json:"payload"`
	Token   string          `json:"token,omitempty"`
}

// Decode unmarshals the payload into v.
func (i *Interrupt) Decode(v any) error {
	if i == nil || len(i.Payload) == 0 {
		return fmt.Errorf("graph: no interrupt payload")
	}
	return json.Unmarshal(i.Payload, v)
}
