package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/randalmurphal/socialflow/generate"
)

// Step is one scripted generator answer. Err takes precedence over Content.
type Step struct {
	Content generate.Content
	Err     error
}

// Draft is a Step that succeeds with body and hashtags.
func Draft(body string, hashtags ...string) Step {
	return Step{Content: generate.Content{Body: body, Hashtags: hashtags}}
}

// Fail is a Step that returns err.
func Fail(err error) Step {
	return Step{Err: err}
}

// Generator replays scripted steps in order and records every request.
// Once the script runs out it keeps producing numbered drafts.
type Generator struct {
	mu       sync.Mutex
	steps    []Step
	requests []generate.Request
}

// NewGenerator creates a Generator with the given script.
func NewGenerator(steps ...Step) *Generator {
	return &Generator{steps: steps}
}

// Generate implements generate.Generator.
func (g *Generator) Generate(ctx context.Context, req generate.Request) (generate.Content, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.requests = append(g.requests, req)
	if err := ctx.Err(); err != nil {
		return generate.Content{}, err
	}
	if len(g.steps) == 0 {
		return generate.Content{
			Body:     fmt.Sprintf("Draft %d about %s", len(g.requests), req.Topic),
			Hashtags: []string{"auto"},
		}, nil
	}
	s := g.steps[0]
	g.steps = g.steps[1:]
	if s.Err != nil {
		return generate.Content{}, s.Err
	}
	return s.Content, nil
}

// Calls returns how many times Generate ran.
func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// Requests returns a copy of the recorded requests.
func (g *Generator) Requests() []generate.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generate.Request(nil), g.requests...)
}
