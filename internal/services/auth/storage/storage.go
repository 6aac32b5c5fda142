package storage

import (
	"context"
	"time"

	"github.com/meridian-exchange/meridian/internal/platform/errors"
	"github.com/meridian-exchange/meridian/internal/services/auth/account"
	"github.com/meridian-exchange/meridian/internal/services/auth/verification"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrDuplicateIdentifier indicates a unique identifier collision on write.
var ErrDuplicateIdentifier = errors.New(errors.CodeDuplicateIdentifier, "identifier already in use")

// AccountStore persists exchange account records.
type AccountStore interface {
	CreateAccount(ctx context.Context, a account.Account) error
	GetAccount(ctx context.Context, accountID string) (account.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (account.Account, error)
	GetAccountByPhone(ctx context.Context, phone string) (account.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (account.Account, error)
	GetAccountByWallet(ctx context.Context, walletAddress string) (account.Account, error)
	UpdateAccount(ctx context.Context, a account.Account) error
	UsernameAvailable(ctx context.Context, username string) (bool, error)
}

// VerificationCode stores a pending one-time code for a contact method.
type VerificationCode struct {
	AccountID string
	Kind      verification.Kind
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// VerificationCodeStore persists one-time verification codes.
//
// PutVerificationCode replaces any outstanding code for the same account and
// kind, so only the most recent code is redeemable. ConsumeVerificationCode
// atomically deletes the matching unexpired code and reports whether one was
// found; a consumed or expired code can never match twice.
type VerificationCodeStore interface {
	PutVerificationCode(ctx context.Context, code VerificationCode) error
	ConsumeVerificationCode(ctx context.Context, accountID string, kind verification.Kind, code string, now time.Time) (bool, error)
	DeleteExpiredVerificationCodes(ctx context.Context, now time.Time) error
}

// PasskeyCredential stores a WebAuthn credential for an account.
type PasskeyCredential struct {
	CredentialID   string
	AccountID      string
	CredentialJSON string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastUsedAt     *time.Time
}

// PasskeySession stores a WebAuthn registration or login ceremony session.
type PasskeySession struct {
	ID          string
	Kind        string
	AccountID   string
	SessionJSON string
	ExpiresAt   time.Time
}

// PasskeyStore persists WebAuthn credential and ceremony session data.
type PasskeyStore interface {
	PutPasskeyCredential(ctx context.Context, credential PasskeyCredential) error
	GetPasskeyCredential(ctx context.Context, credentialID string) (PasskeyCredential, error)
	ListPasskeyCredentials(ctx context.Context, accountID string) ([]PasskeyCredential, error)
	DeletePasskeyCredential(ctx context.Context, credentialID string) error
	PutPasskeySession(ctx context.Context, session PasskeySession) error
	GetPasskeySession(ctx context.Context, id string) (PasskeySession, error)
	DeletePasskeySession(ctx context.Context, id string) error
	DeleteExpiredPasskeySessions(ctx context.Context, now time.Time) error
}
