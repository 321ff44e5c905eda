package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/socialflow/checkpoint"
	"github.com/randalmurphal/socialflow/graph"
	sfhttp "github.com/randalmurphal/socialflow/http"
)

// CLIError wraps an error with user-friendly context and suggestions.
type CLIError struct {
	// Err is the underlying error
	Err error

	// Message is a user-friendly description of what went wrong
	Message string

	// Suggestion is an actionable hint for the user
	Suggestion string

	// Details provides additional context (optional)
	Details string
}

func (e *CLIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Details)
	}

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// ErrorMessenger provides customizable error messages.
type ErrorMessenger interface {
	// AuthErrorMessage is used when service rejected a credential.
	AuthErrorMessage(service string) (message, suggestion string)

	// PermissionDeniedMessage is used when a credential lacks a scope.
	PermissionDeniedMessage(service string) (message, suggestion string)

	// RateLimitedMessage is used when service throttled the request.
	RateLimitedMessage(service string) (message, suggestion string)

	// MissingCredentialMessage is used when key is not configured. envVar
	// is the environment variable that can set it.
	MissingCredentialMessage(key, envVar string) (message, suggestion string)

	// ConnectionErrorMessage is used when target could not be reached.
	ConnectionErrorMessage(target string) (message, suggestion string)

	// TimeoutErrorMessage is used when a call to target timed out.
	TimeoutErrorMessage(target string) (message, suggestion string)

	// ThreadNotFoundMessage is used for an unknown thread id.
	ThreadNotFoundMessage(threadID string) (message, suggestion string)

	// ThreadFinishedMessage is used when replying to a finished thread.
	ThreadFinishedMessage(threadID string) (message, suggestion string)

	// ReplyRejectedMessage is used when a review reply was refused.
	ReplyRejectedMessage(threadID string) (message, suggestion string)
}

// DefaultMessenger provides the socialflow CLI's messages.
type DefaultMessenger struct{}

func (m DefaultMessenger) AuthErrorMessage(service string) (string, string) {
	return fmt.Sprintf("%s rejected the access token.", service),
		"The token may have expired. Generate a new one and save it with 'socialflow config set'."
}

func (m DefaultMessenger) PermissionDeniedMessage(service string) (string, string) {
	return fmt.Sprintf("The %s token is not allowed to publish.", service),
		"Check that the token was granted the posting scope (tweet.write for X, w_member_social for LinkedIn)."
}

func (m DefaultMessenger) RateLimitedMessage(service string) (string, string) {
	return fmt.Sprintf("%s is rate limiting requests.", service),
		"Wait a few minutes, then start a new post."
}

func (m DefaultMessenger) MissingCredentialMessage(key, envVar string) (string, string) {
	return fmt.Sprintf("%s is not configured.", key),
		fmt.Sprintf("Run 'socialflow config set %s <value>' or set %s.\nUse --dry-run to try the workflow without publishing.", key, envVar)
}

func (m DefaultMessenger) ConnectionErrorMessage(target string) (string, string) {
	return fmt.Sprintf("Cannot connect to %s", target),
		"Check that:\n  - The service is running\n  - The URL is correct\n  - Your network connection is working"
}

func (m DefaultMessenger) TimeoutErrorMessage(target string) (string, string) {
	return fmt.Sprintf("Request to %s timed out", target),
		"The service may be overloaded.\nRaise draft_timeout or publish_timeout, or try again in a moment."
}

func (m DefaultMessenger) ThreadNotFoundMessage(threadID string) (string, string) {
	return fmt.Sprintf("No post thread named %s.", threadID),
		"Run 'socialflow pending' to list threads waiting for review."
}

func (m DefaultMessenger) ThreadFinishedMessage(threadID string) (string, string) {
	return fmt.Sprintf("Post thread %s has already finished.", threadID),
		fmt.Sprintf("Run 'socialflow status %s' to see the result.", threadID)
}

func (m DefaultMessenger) ReplyRejectedMessage(threadID string) (string, string) {
	return fmt.Sprintf("The reply to %s was not applied.", threadID),
		"Reply with 'approve', 'reject' or 'edit: <text>'. The thread is still waiting for review."
}

// WrapConfig configures error wrapping behavior.
type WrapConfig struct {
	Messenger ErrorMessenger
}

// Option configures WrapConfig.
type Option func(*WrapConfig)

// WithMessenger sets a custom error messenger.
func WithMessenger(m ErrorMessenger) Option {
	return func(c *WrapConfig) {
		c.Messenger = m
	}
}

func getMessenger(opts []Option) ErrorMessenger {
	cfg := &WrapConfig{
		Messenger: DefaultMessenger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.Messenger
}

// Wrap applies the thread, API and connection wrappers in turn. Errors none
// of them recognize are returned unchanged.
func Wrap(err error, threadID string, opts ...Option) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}
	if wrapped := WrapThreadError(err, threadID, opts...); wrapped != err {
		return wrapped
	}
	if wrapped := WrapAPIError(err, opts...); wrapped != err {
		return wrapped
	}
	return WrapConnectionError(err, "the remote service", opts...)
}

// WrapThreadError wraps thread lookup and resume failures.
func WrapThreadError(err error, threadID string, opts ...Option) error {
	if err == nil {
		return nil
	}
	messenger := getMessenger(opts)

	var (
		msg, suggestion string
		sentinel        error
	)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		msg, suggestion = messenger.ThreadNotFoundMessage(threadID)
		sentinel = ErrThreadNotFound
	case errors.Is(err, graph.ErrThreadDone):
		msg, suggestion = messenger.ThreadFinishedMessage(threadID)
		sentinel = ErrThreadFinished
	case graph.IsInvalidResume(err):
		msg, suggestion = messenger.ReplyRejectedMessage(threadID)
		sentinel = ErrReplyRejected
	default:
		return err
	}
	return &CLIError{
		Err:        errors.Join(sentinel, err),
		Message:    msg,
		Details:    err.Error(),
		Suggestion: suggestion,
	}
}

// WrapAPIError wraps platform API failures by status.
func WrapAPIError(err error, opts ...Option) error {
	if err == nil {
		return nil
	}
	var apiErr *sfhttp.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	messenger := getMessenger(opts)
	service := apiErr.Service

	var (
		msg, suggestion string
		sentinel        error
	)
	switch {
	case errors.Is(err, sfhttp.ErrUnauthorized):
		msg, suggestion = messenger.AuthErrorMessage(service)
		sentinel = ErrNotAuthenticated
	case errors.Is(err, sfhttp.ErrForbidden):
		msg, suggestion = messenger.PermissionDeniedMessage(service)
		sentinel = ErrPermissionDenied
	case errors.Is(err, sfhttp.ErrRateLimited):
		msg, suggestion = messenger.RateLimitedMessage(service)
		sentinel = ErrRateLimited
	default:
		return err
	}
	return &CLIError{
		Err:        errors.Join(sentinel, err),
		Message:    msg,
		Details:    apiErr.Message,
		Suggestion: suggestion,
	}
}

// WrapConnectionError wraps connection-related errors with helpful guidance.
func WrapConnectionError(err error, target string, opts ...Option) error {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())
	messenger := getMessenger(opts)

	// Check for connection refused
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "dial tcp") {
		msg, suggestion := messenger.ConnectionErrorMessage(target)
		return &CLIError{
			Err:        errors.Join(ErrConnectionFailed, err),
			Message:    msg,
			Details:    err.Error(),
			Suggestion: suggestion,
		}
	}

	// Check for timeout
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		msg, suggestion := messenger.TimeoutErrorMessage(target)
		return &CLIError{
			Err:        errors.Join(ErrConnectionFailed, err),
			Message:    msg,
			Suggestion: suggestion,
		}
	}

	return err
}

// NewMissingCredentialError reports an unset credential key.
func NewMissingCredentialError(key, envVar string, opts ...Option) error {
	messenger := getMessenger(opts)
	msg, suggestion := messenger.MissingCredentialMessage(key, envVar)
	return &CLIError{
		Err:        ErrMissingCredential,
		Message:    msg,
		Suggestion: suggestion,
	}
}
