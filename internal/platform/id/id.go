// Package id generates stable identifiers for auth records.
//
// IDs are UUIDv4 bytes encoded as lowercase unpadded base32, giving a
// 26-character token that is URL-safe and case-insensitive-filesystem-safe.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a new 26-character identifier.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}
