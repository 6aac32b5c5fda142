// Package account defines the auth account record and its validation rules.
package account

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/meridian-exchange/meridian/internal/platform/errors"
	"github.com/meridian-exchange/meridian/internal/platform/id"
)

// WalletType identifies the chain family a linked wallet belongs to.
type WalletType string

const (
	WalletTypeEVM    WalletType = "evm"
	WalletTypeSolana WalletType = "solana"
)

var (
	// ErrNoIdentifier indicates an account with no way to address it.
	ErrNoIdentifier = apperrors.New(apperrors.CodeInvalidInput, "at least one identifier is required")
	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = apperrors.New(apperrors.CodeInvalidInput, "email address is malformed")
	// ErrInvalidPhone indicates a phone number outside E.164 shape.
	ErrInvalidPhone = apperrors.New(apperrors.CodeInvalidInput, "phone number must be 7-15 digits with optional leading +")
	// ErrInvalidUsername indicates a username that does not match the required format.
	ErrInvalidUsername = apperrors.New(apperrors.CodeInvalidInput, "username must be 3-32 lowercase alphanumeric, dot, dash, or underscore characters")
	// ErrWeakPassword indicates a password below the minimum length.
	ErrWeakPassword = apperrors.New(apperrors.CodeInvalidInput, "password must be at least 8 characters")

	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	usernamePattern = regexp.MustCompile(`^[a-z0-9_.\-]{3,32}$`)
)

// Account represents a single exchange identity with its linked sign-in methods.
type Account struct {
	ID             string
	Email          string
	Phone          string
	Username       string
	PasswordHash   string
	EmailVerified  bool
	PhoneVerified  bool
	WalletAddress  string
	WalletType     WalletType
	PasskeyEnabled bool
	DisplayName    string
	PhotoURL       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateInput describes the identifier set for a new account. Exactly the
// fields the caller knows are set; empty fields stay unlinked.
type CreateInput struct {
	Email         string
	Phone         string
	Username      string
	PasswordHash  string
	WalletAddress string
	WalletType    WalletType
	DisplayName   string
}

// New builds a durable account from validated input. The clock and
// idGenerator hooks keep creation deterministic under test.
func New(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Account, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Account{}, err
	}

	accountID, err := idGenerator()
	if err != nil {
		return Account{}, fmt.Errorf("generate account id: %w", err)
	}

	createdAt := now().UTC()
	return Account{
		ID:            accountID,
		Email:         normalized.Email,
		Phone:         normalized.Phone,
		Username:      normalized.Username,
		PasswordHash:  normalized.PasswordHash,
		WalletAddress: normalized.WalletAddress,
		WalletType:    normalized.WalletType,
		DisplayName:   normalized.DisplayName,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}, nil
}

// NormalizeCreateInput trims and canonicalizes identifiers before validation.
// Email and username fold to lowercase so lookups are case-insensitive.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	input.Username = strings.ToLower(strings.TrimSpace(input.Username))
	input.WalletAddress = strings.TrimSpace(input.WalletAddress)
	input.DisplayName = strings.TrimSpace(input.DisplayName)

	if input.Email == "" && input.Phone == "" && input.Username == "" && input.WalletAddress == "" {
		return CreateInput{}, ErrNoIdentifier
	}
	if input.Email != "" {
		if err := ValidateEmail(input.Email); err != nil {
			return CreateInput{}, err
		}
	}
	if input.Phone != "" {
		if err := ValidatePhone(input.Phone); err != nil {
			return CreateInput{}, err
		}
	}
	if input.Username != "" {
		if err := ValidateUsername(input.Username); err != nil {
			return CreateInput{}, err
		}
	}
	return input, nil
}

// ValidateEmail enforces a pragmatic email shape. Deliverability is proven by
// the verification flow, not the pattern.
func ValidateEmail(s string) error {
	if !emailPattern.MatchString(s) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePhone enforces E.164-ish phone numbers.
func ValidatePhone(s string) error {
	if !phonePattern.MatchString(s) {
		return ErrInvalidPhone
	}
	return nil
}

// ValidateUsername enforces canonical username constraints shared by
// registration and profile updates.
func ValidateUsername(s string) error {
	if !usernamePattern.MatchString(s) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword enforces the minimum password policy before hashing.
func ValidatePassword(s string) error {
	if len(s) < 8 {
		return ErrWeakPassword
	}
	return nil
}
