package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultResumeTokenTTL bounds how long a review request stays answerable
// with the same token.
const DefaultResumeTokenTTL = 7 * 24 * time.Hour

// DefaultIssuer is used when JWTConfig.Issuer is empty.
const DefaultIssuer = "socialflow"

// JWTConfig holds configuration for resume token signing.
type JWTConfig struct {
	// Secret is the HMAC signing key (must be at least 32 bytes).
	Secret []byte

	Issuer string

	// TTL is the lifetime of a resume token. Defaults to
	// DefaultResumeTokenTTL if zero.
	TTL time.Duration
}

func (c JWTConfig) ttl() time.Duration {
	if c.TTL == 0 {
		return DefaultResumeTokenTTL
	}
	return c.TTL
}

func (c JWTConfig) issuer() string {
	if c.Issuer == "" {
		return DefaultIssuer
	}
	return c.Issuer
}

// ResumeClaims binds a token to one suspension of one thread. The subject is
// the thread id.
type ResumeClaims struct {
	jwt.RegisteredClaims
	Step int `json:"stp"`
}

// ResumeTokens issues and verifies signed resume tokens. It satisfies the
// graph package's TokenIssuer and TokenVerifier.
type ResumeTokens struct {
	cfg JWTConfig
	now func() time.Time
}

// NewResumeTokens validates cfg and returns an issuer.
func NewResumeTokens(cfg JWTConfig) (*ResumeTokens, error) {
	if len(cfg.Secret) < 32 {
		return nil, ErrSecretTooShort
	}
	return &ResumeTokens{cfg: cfg, now: time.Now}, nil
}

// Issue signs a token for threadID suspended at step.
func (r *ResumeTokens) Issue(threadID string, step int) (string, error) {
	tokenID, err := nanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}

	now := r.now()
	claims := ResumeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    r.cfg.issuer(),
			Subject:   threadID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.cfg.ttl())),
			ID:        tokenID,
		},
		Step: step,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.cfg.Secret)
}

// Verify checks the signature, expiry and binding of token.
func (r *ResumeTokens) Verify(token, threadID string, step int) error {
	claims, err := r.Parse(token)
	if err != nil {
		return err
	}
	if claims.Subject != threadID || claims.Step != step {
		return ErrTokenMismatch
	}
	return nil
}

// Parse validates token and returns its claims.
func (r *ResumeTokens) Parse(token string) (*ResumeClaims, error) {
	claims := &ResumeClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return r.cfg.Secret, nil
	},
		jwt.WithIssuer(r.cfg.issuer()),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
