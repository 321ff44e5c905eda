package auth

import "errors"

// Token errors.
var (
	// ErrInvalidToken indicates the token is malformed or has an invalid signature.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates the token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMismatch indicates a valid token issued for another thread or
	// an earlier review round.
	ErrTokenMismatch = errors.New("token was issued for a different review request")

	// ErrSecretTooShort indicates the signing secret is too short.
	ErrSecretTooShort = errors.New("token secret must be at least 32 bytes")
)
