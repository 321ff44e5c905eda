// Package generate drafts post content through a language model.
//
// Core types:
//   - Generator: produces a post body and hashtags for a request
//   - Completer: a single prompt-in, text-out model call
//   - LLMGenerator: Generator built on a Completer, two calls per draft
//
// Completers:
//   - ClientCompleter: wraps a flowgraph llm.Client (Claude CLI or mocks)
//   - OpenAICompleter: OpenAI chat completions via openai-go
package generate

import (
	"context"
	"errors"

	"github.com/randalmurphal/socialflow/platform"
)

// ErrEmptyCompletion is returned when the model answers with no usable text.
var ErrEmptyCompletion = errors.New("model returned empty content")

// Request describes the post to draft.
type Request struct {
	Topic        string
	Platform     platform.Platform
	Tone         string
	ExtraContext string

	// Notes are reviewer comments on earlier drafts of the same thread.
	Notes []string
}

// Content is a drafted post.
type Content struct {
	Body     string
	Hashtags []string
}

// Generator drafts posts.
type Generator interface {
	Generate(ctx context.Context, req Request) (Content, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, req Request) (Content, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, req Request) (Content, error) {
	return f(ctx, req)
}

// Prompt is one model call.
type Prompt struct {
	System string
	User   string
	Model  string
}

// Completer runs a single prompt.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}
