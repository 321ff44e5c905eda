package generate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/randalmurphal/socialflow/platform"
	"github.com/randalmurphal/socialflow/prompt"
	"github.com/randalmurphal/socialflow/task"
)

// LLMGenerator drafts the post body, then asks for hashtags in a second call.
type LLMGenerator struct {
	completer Completer
	prompts   *prompt.Loader
	models    task.Models
	logger    *slog.Logger
}

// Option configures LLMGenerator.
type Option func(*LLMGenerator)

// WithPrompts sets the prompt loader. Defaults to embedded prompts only.
func WithPrompts(l *prompt.Loader) Option {
	return func(g *LLMGenerator) { g.prompts = l }
}

// WithModels sets per-task model selection.
func WithModels(m task.Models) Option {
	return func(g *LLMGenerator) { g.models = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *LLMGenerator) { g.logger = l }
}

// NewLLMGenerator creates a generator on top of c.
func NewLLMGenerator(c Completer, opts ...Option) *LLMGenerator {
	g := &LLMGenerator{
		completer: c,
		prompts:   prompt.NewLoader(""),
		models:    task.NewTieredModels(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements Generator.
func (g *LLMGenerator) Generate(ctx context.Context, req Request) (Content, error) {
	pol, err := platform.Lookup(req.Platform)
	if err != nil {
		return Content{}, err
	}

	system, err := g.systemPrompt(pol)
	if err != nil {
		return Content{}, err
	}
	user, err := g.prompts.LoadWithVars("draft", map[string]any{
		"Platform":     pol.DisplayName,
		"Topic":        req.Topic,
		"Tone":         req.Tone,
		"ExtraContext": req.ExtraContext,
		"Notes":        req.Notes,
	})
	if err != nil {
		return Content{}, err
	}

	kind := task.Draft
	if len(req.Notes) > 0 {
		kind = task.Revise
	}
	raw, err := g.completer.Complete(ctx, Prompt{System: system, User: user, Model: g.models.ModelFor(kind)})
	if err != nil {
		return Content{}, fmt.Errorf("draft post: %w", err)
	}
	body := CleanBody(raw)
	if body == "" {
		return Content{}, fmt.Errorf("draft post: %w", ErrEmptyCompletion)
	}

	tagPrompt, err := g.prompts.LoadWithVars("hashtags", map[string]any{
		"Platform": pol.DisplayName,
		"Body":     body,
		"Count":    pol.MaxHashtags,
	})
	if err != nil {
		return Content{}, err
	}
	rawTags, err := g.completer.Complete(ctx, Prompt{User: tagPrompt, Model: g.models.ModelFor(task.Hashtags)})
	if err != nil {
		return Content{}, fmt.Errorf("suggest hashtags: %w", err)
	}

	content := Content{
		Body:     body,
		Hashtags: pol.NormalizeHashtags(ParseHashtags(rawTags)),
	}
	g.logger.Debug("drafted post",
		"platform", pol.Platform,
		"body_chars", len([]rune(body)),
		"hashtags", len(content.Hashtags),
	)
	return content, nil
}

func (g *LLMGenerator) systemPrompt(pol platform.Policy) (string, error) {
	base, err := g.prompts.Load("system_" + string(pol.Platform))
	if err != nil {
		return "", err
	}
	return prompt.NewBuilder().
		Add(base).
		AddSection("Style", "Write in a way that is "+pol.Style+".").
		Build(), nil
}

// CleanBody trims whitespace and a single pair of wrapping quotes that
// models sometimes add around the whole post.
func CleanBody(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			inner := s[len(q[0]) : len(s)-len(q[1])]
			if !strings.Contains(inner, q[0]) {
				return strings.TrimSpace(inner)
			}
		}
	}
	return s
}

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// ParseHashtags splits a model answer into tags. One tag per line is
// expected; list bullets, numbering and commas are tolerated.
func ParseHashtags(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(listMarker.ReplaceAllString(part, ""))
			if part == "" {
				continue
			}
			out = append(out, part)
		}
	}
	return out
}
