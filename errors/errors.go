package errors

import "errors"

// Common CLI errors with actionable guidance.
var (
	// ErrNotAuthenticated indicates a platform or LLM credential was rejected.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrMissingCredential indicates a required credential is not configured.
	ErrMissingCredential = errors.New("missing credential")

	// ErrPermissionDenied indicates the credential lacks a required scope.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrRateLimited indicates the platform throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrConnectionFailed indicates a remote service is unreachable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrThreadNotFound indicates no thread has the given id.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrThreadFinished indicates the thread already published or failed.
	ErrThreadFinished = errors.New("thread finished")

	// ErrReplyRejected indicates a review reply could not be applied.
	ErrReplyRejected = errors.New("reply rejected")
)
