package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/randalmurphal/socialflow/checkpoint"
	"github.com/randalmurphal/socialflow/graph"
	sfhttp "github.com/randalmurphal/socialflow/http"
)

func TestCLIError(t *testing.T) {
	err := &CLIError{
		Err:        ErrNotAuthenticated,
		Message:    "Test message",
		Suggestion: "Test suggestion",
		Details:    "Test details",
	}

	want := "Test message\nTest details\n\nTest suggestion"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Error("expected error to unwrap to ErrNotAuthenticated")
	}
}

func TestCLIError_MinimalFields(t *testing.T) {
	err := &CLIError{
		Err:     ErrConnectionFailed,
		Message: "Connection failed",
	}

	if got := err.Error(); got != "Connection failed" {
		t.Errorf("expected 'Connection failed', got %q", got)
	}
}

func apiError(status int) error {
	return fmt.Errorf("publish: %w", &sfhttp.APIError{
		Service:    "x",
		StatusCode: status,
		Endpoint:   "/2/tweets",
		Message:    "denied by platform",
	})
}

func TestWrapAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantErr    error
		wantSubstr string
		unchanged  bool
	}{
		{name: "unauthorized", err: apiError(401), wantErr: ErrNotAuthenticated, wantSubstr: "x rejected the access token"},
		{name: "forbidden", err: apiError(403), wantErr: ErrPermissionDenied, wantSubstr: "tweet.write"},
		{name: "rate limited", err: apiError(429), wantErr: ErrRateLimited, wantSubstr: "rate limiting"},
		{name: "server error", err: apiError(503), unchanged: true},
		{name: "not an API error", err: errors.New("boom"), unchanged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapAPIError(tt.err)
			if tt.unchanged {
				if got != tt.err {
					t.Errorf("expected error unchanged, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.wantErr) {
				t.Errorf("expected errors.Is(%v), got %v", tt.wantErr, got)
			}
			if !strings.Contains(got.Error(), tt.wantSubstr) {
				t.Errorf("expected %q in %q", tt.wantSubstr, got.Error())
			}
			if !strings.Contains(got.Error(), "denied by platform") {
				t.Error("expected API message in details")
			}
			var apiErr *sfhttp.APIError
			if !errors.As(got, &apiErr) {
				t.Error("expected original APIError to remain reachable")
			}
		})
	}

	if WrapAPIError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestWrapThreadError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantErr    error
		wantSubstr string
	}{
		{"not found", checkpoint.ErrNotFound, ErrThreadNotFound, "No post thread named post-a"},
		{"finished", fmt.Errorf("resume: %w", graph.ErrThreadDone), ErrThreadFinished, "socialflow status post-a"},
		{"bad reply", graph.NewInvalidResume("post-a", "stale or unknown resume token"), ErrReplyRejected, "still waiting for review"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapThreadError(tt.err, "post-a")
			if !errors.Is(got, tt.wantErr) {
				t.Errorf("expected errors.Is(%v), got %v", tt.wantErr, got)
			}
			if !errors.Is(got, tt.err) && !graph.IsInvalidResume(got) {
				t.Error("expected original error to remain reachable")
			}
			if !strings.Contains(got.Error(), tt.wantSubstr) {
				t.Errorf("expected %q in %q", tt.wantSubstr, got.Error())
			}
		})
	}

	plain := errors.New("boom")
	if WrapThreadError(plain, "post-a") != plain {
		t.Error("expected unrelated error unchanged")
	}
}

func TestWrapConnectionError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantSub   string
		unchanged bool
	}{
		{name: "refused", err: errors.New("dial tcp 127.0.0.1:4317: connect: connection refused"), wantSub: "Cannot connect to collector"},
		{name: "timeout", err: errors.New("context deadline exceeded"), wantSub: "timed out"},
		{name: "other", err: errors.New("bad request"), unchanged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapConnectionError(tt.err, "collector")
			if tt.unchanged {
				if got != tt.err {
					t.Errorf("expected error unchanged, got %v", got)
				}
				return
			}
			if !errors.Is(got, ErrConnectionFailed) {
				t.Errorf("expected ErrConnectionFailed, got %v", got)
			}
			if !strings.Contains(got.Error(), tt.wantSub) {
				t.Errorf("expected %q in %q", tt.wantSub, got.Error())
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "post-a") != nil {
		t.Error("expected nil for nil error")
	}

	already := &CLIError{Err: ErrMissingCredential, Message: "set it"}
	if Wrap(already, "post-a") != error(already) {
		t.Error("expected CLIError to pass through")
	}

	if got := Wrap(checkpoint.ErrNotFound, "post-a"); !errors.Is(got, ErrThreadNotFound) {
		t.Errorf("expected thread error, got %v", got)
	}
	if got := Wrap(apiError(401), "post-a"); !errors.Is(got, ErrNotAuthenticated) {
		t.Errorf("expected auth error, got %v", got)
	}
	if got := Wrap(errors.New("dial tcp: no such host"), "post-a"); !errors.Is(got, ErrConnectionFailed) {
		t.Errorf("expected connection error, got %v", got)
	}
}

func TestNewMissingCredentialError(t *testing.T) {
	err := NewMissingCredentialError("x_access_token", "SOCIALFLOW_X_ACCESS_TOKEN")

	if !errors.Is(err, ErrMissingCredential) {
		t.Error("expected ErrMissingCredential")
	}
	for _, want := range []string{"x_access_token is not configured", "SOCIALFLOW_X_ACCESS_TOKEN", "--dry-run"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err.Error())
		}
	}
}

func TestCustomMessenger(t *testing.T) {
	err := WrapThreadError(checkpoint.ErrNotFound, "post-a", WithMessenger(&testMessenger{}))

	if !strings.Contains(err.Error(), "custom: post-a") {
		t.Errorf("expected custom message, got %q", err.Error())
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		fn   func(error) bool
		err  error
		want bool
	}{
		{"auth sentinel", IsAuthError, ErrNotAuthenticated, true},
		{"auth missing credential", IsAuthError, ErrMissingCredential, true},
		{"auth api 401", IsAuthError, apiError(401), true},
		{"auth other", IsAuthError, apiError(500), false},
		{"auth nil", IsAuthError, nil, false},
		{"connection refused", IsConnectionError, errors.New("connection refused"), true},
		{"connection sentinel", IsConnectionError, ErrConnectionFailed, true},
		{"connection other", IsConnectionError, errors.New("invalid json"), false},
		{"connection nil", IsConnectionError, nil, false},
		{"permission api 403", IsPermissionError, apiError(403), true},
		{"permission other", IsPermissionError, apiError(401), false},
		{"rate limited", IsRateLimited, apiError(429), true},
		{"rate limited nil", IsRateLimited, nil, false},
		{"thread wrapped", IsThreadError, WrapThreadError(checkpoint.ErrNotFound, "post-a"), true},
		{"thread raw", IsThreadError, errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// testMessenger overrides the thread messages only.
type testMessenger struct {
	DefaultMessenger
}

func (m *testMessenger) ThreadNotFoundMessage(threadID string) (string, string) {
	return "custom: " + threadID, "look elsewhere"
}
