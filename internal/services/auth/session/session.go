// Package session issues and verifies signed bearer tokens for auth flows.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/meridian-exchange/meridian/internal/platform/errors"
)

// Scope restricts what a token can be redeemed for. A session token cannot
// verify an email and an email token cannot authenticate requests.
type Scope string

const (
	// ScopeAuth marks a long-lived login session token.
	ScopeAuth Scope = "auth"
	// ScopeEmailVerify marks a short-lived email verification token.
	ScopeEmailVerify Scope = "email-verify"
)

// ErrInvalidToken covers signature, expiry, scope, and malformation failures.
// Callers deliberately cannot tell the cases apart.
var ErrInvalidToken = apperrors.New(apperrors.CodeInvalidOrExpiredToken, "token is invalid or expired")

// tokenClaims is the internal claims type used for JWT signing and parsing.
type tokenClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// Issuer signs and verifies HS256 tokens bound to an account and scope.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewIssuer builds a token issuer. The clock hook keeps expiry deterministic
// under test.
func NewIssuer(secret []byte, issuer string, now func() time.Time) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: secret, issuer: issuer, now: now}, nil
}

// Issue signs a token for the account with the given scope and lifetime.
func (i *Issuer) Issue(accountID string, scope Scope, ttl time.Duration) (string, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", errors.New("account id is required")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	issuedAt := i.now().UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Scope: string(scope),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks the token signature, expiry, and scope, and returns the
// account ID it was issued for.
func (i *Issuer) Verify(token string, scope Scope) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return i.now().UTC() }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidOrExpiredToken, "token is invalid or expired", err)
	}

	if parsed.Scope != string(scope) {
		return "", ErrInvalidToken
	}
	if i.issuer != "" && parsed.Issuer != i.issuer {
		return "", ErrInvalidToken
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return "", ErrInvalidToken
	}
	return parsed.Subject, nil
}
