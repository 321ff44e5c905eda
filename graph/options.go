package graph

import (
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/socialflow/checkpoint"
)

const (
	// DefaultMaxSteps bounds node executions in a single Start, Resume or
	// Continue call.
	DefaultMaxSteps = 100

	tracerName = "github.com/randalmurphal/socialflow/graph"
)

// TokenIssuer mints the resume token stored with a suspended thread.
type TokenIssuer interface {
	Issue(threadID string, step int) (string, error)
}

// TokenVerifier is optionally implemented by issuers whose tokens carry
// their own validity (signature, expiry).
type TokenVerifier interface {
	Verify(token, threadID string, step int) error
}

// RandomTokens issues opaque random tokens.
type RandomTokens struct{}

// Issue implements TokenIssuer.
func (RandomTokens) Issue(string, int) (string, error) {
	return gonanoid.New()
}

type options struct {
	logger       *slog.Logger
	tracer       trace.Tracer
	maxSteps     int
	tokens       TokenIssuer
	requireToken bool
	locker       checkpoint.Locker
	now          func() time.Time
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		maxSteps: DefaultMaxSteps,
		tokens:   RandomTokens{},
		now:      time.Now,
	}
}

// Option configures a compiled graph.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithMaxSteps caps node executions per Start, Resume or Continue call.
func WithMaxSteps(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithTokens sets the resume token issuer.
func WithTokens(t TokenIssuer) Option {
	return func(o *options) {
		if t != nil {
			o.tokens = t
		}
	}
}

// WithRequiredToken rejects resumes that don't present the thread's token.
func WithRequiredToken() Option {
	return func(o *options) { o.requireToken = true }
}

// WithLocker overrides the per-thread lock.
func WithLocker(l checkpoint.Locker) Option {
	return func(o *options) { o.locker = l }
}

// WithClock overrides time.Now for checkpoint timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// ResumeOption configures one Resume call.
type ResumeOption func(*resumeOptions)

type resumeOptions struct {
	token string
}

// WithToken presents the token returned with the interrupt.
func WithToken(token string) ResumeOption {
	return func(o *resumeOptions) { o.token = token }
}
