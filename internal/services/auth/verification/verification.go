// Package verification generates one-time codes for email and phone checks.
package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Kind identifies which contact method a code verifies. The kind is part of
// the storage key, so one account can hold codes for each method at once.
type Kind string

const (
	// KindEmail is reserved for code-based email confirmation. The current
	// email flow delivers a signed token link instead, so no handler issues
	// codes of this kind yet; stores and schema already accept it.
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
)

// CodeTTL is how long an issued code stays redeemable.
const CodeTTL = 10 * time.Minute

var codeSpace = big.NewInt(1000000)

// NewCode returns a uniformly random six-digit code with leading zeros kept.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n), nil
}
