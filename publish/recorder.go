package publish

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/randalmurphal/socialflow/platform"
)

// Post is one publish call seen by a Recorder.
type Post struct {
	ID   string
	Text string
}

// Recorder is an in-memory Publisher. It is used for dry runs and tests.
type Recorder struct {
	mu       sync.Mutex
	platform platform.Platform
	maxLen   int
	posts    []Post
	failWith error
}

// NewRecorder creates a Recorder for pl using the platform's length limit.
func NewRecorder(pl platform.Platform) *Recorder {
	return &Recorder{platform: pl, maxLen: platform.MustLookup(pl).MaxLength}
}

// FailWith makes every later Publish call return err. Nil restores success.
func (r *Recorder) FailWith(err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
	return r
}

// Platform implements Publisher.
func (r *Recorder) Platform() platform.Platform { return r.platform }

// MaxLength implements Publisher.
func (r *Recorder) MaxLength() int { return r.maxLen }

// Publish implements Publisher.
func (r *Recorder) Publish(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := ValidateContent(r, text); err != nil {
		return Result{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return Result{}, r.failWith
	}
	id := uuid.NewString()
	r.posts = append(r.posts, Post{ID: id, Text: text})
	return Result{ID: id, URL: "https://example.invalid/" + string(r.platform) + "/" + id}, nil
}

// Posts returns a copy of everything published so far.
func (r *Recorder) Posts() []Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Post(nil), r.posts...)
}
