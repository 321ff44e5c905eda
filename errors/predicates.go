package errors

import (
	"errors"
	"strings"

	sfhttp "github.com/randalmurphal/socialflow/http"
)

// IsAuthError checks if an error is authentication-related.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, sfhttp.ErrUnauthorized)
}

// IsConnectionError checks if an error is connection-related.
// This includes timeouts and network connectivity issues.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrConnectionFailed) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	// Network connectivity
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "dial tcp") {
		return true
	}
	// Timeout errors (consistent with WrapConnectionError)
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// IsPermissionError checks if an error is permission-related.
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, sfhttp.ErrForbidden)
}

// IsRateLimited checks if a platform throttled the request.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, sfhttp.ErrRateLimited)
}

// IsThreadError checks if an error concerns thread lookup or resumption.
func IsThreadError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrThreadNotFound) ||
		errors.Is(err, ErrThreadFinished) ||
		errors.Is(err, ErrReplyRejected)
}
