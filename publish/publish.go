// Package publish posts approved content to social platforms.
//
// Core types:
//   - Publisher: one platform adapter
//   - Registry: publishers keyed by platform
//   - Result: URL and id of a published post
//
// Adapters:
//   - X: POST /2/tweets with an OAuth 2.0 user token
//   - LinkedIn: UGC posts API with an OAuth 2.0 member token
//   - Recorder: in-memory publisher for tests and dry runs
package publish

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/randalmurphal/socialflow/platform"
)

// ErrNoPublisher is returned when no publisher is registered for a platform.
var ErrNoPublisher = errors.New("no publisher registered")

// Result is the outcome of a successful publish.
type Result struct {
	URL string
	ID  string
}

// Publisher posts text to one platform.
type Publisher interface {
	Platform() platform.Platform
	MaxLength() int
	Publish(ctx context.Context, text string) (Result, error)
}

// ValidationError reports content the platform would reject.
type ValidationError struct {
	Platform platform.Platform
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid content: %s", e.Platform, e.Reason)
}

// ValidateContent checks text against the publisher's limits. Length is
// counted in runes.
func ValidateContent(p Publisher, text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Platform: p.Platform(), Reason: "content cannot be empty"}
	}
	if n := utf8.RuneCountInString(text); n > p.MaxLength() {
		return &ValidationError{
			Platform: p.Platform(),
			Reason:   fmt.Sprintf("%d characters exceeds the limit of %d", n, p.MaxLength()),
		}
	}
	return nil
}

// Registry holds publishers by platform. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	pubs map[platform.Platform]Publisher
}

// NewRegistry creates a registry containing pubs.
func NewRegistry(pubs ...Publisher) *Registry {
	r := &Registry{pubs: make(map[platform.Platform]Publisher)}
	for _, p := range pubs {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the publisher for p.Platform().
func (r *Registry) Register(p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pubs[p.Platform()] = p
}

// Get returns the publisher for pl.
func (r *Registry) Get(pl platform.Platform) (Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pubs[pl]
	if !ok {
		return nil, fmt.Errorf("%w for %q", ErrNoPublisher, pl)
	}
	return p, nil
}

// Platforms lists registered platforms in sorted order.
func (r *Registry) Platforms() []platform.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]platform.Platform, 0, len(r.pubs))
	for pl := range r.pubs {
		out = append(out, pl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
