package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-exchange/meridian/internal/services/auth/storage"
	"github.com/meridian-exchange/meridian/internal/services/auth/verification"
)

// PutVerificationCode stores a pending code, displacing any earlier code for
// the same account and kind. The primary key makes the replacement atomic.
func (s *Store) PutVerificationCode(ctx context.Context, code storage.VerificationCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(code.AccountID) == "" {
		return fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(code.Code) == "" {
		return fmt.Errorf("code is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO verification_codes (account_id, kind, code, created_at, expires_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(account_id, kind) DO UPDATE SET
	code = excluded.code,
	created_at = excluded.created_at,
	expires_at = excluded.expires_at
`,
		code.AccountID,
		string(code.Kind),
		code.Code,
		toMillis(code.CreatedAt),
		toMillis(code.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put verification code: %w", err)
	}
	return nil
}

// ConsumeVerificationCode deletes the matching unexpired code in a single
// statement and reports whether a row was removed. The delete doubles as the
// match check, so two concurrent submissions of the same code cannot both
// succeed.
func (s *Store) ConsumeVerificationCode(ctx context.Context, accountID string, kind verification.Kind, code string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM verification_codes
WHERE account_id = ? AND kind = ? AND code = ? AND expires_at > ?
`,
		accountID,
		string(kind),
		code,
		toMillis(now),
	)
	if err != nil {
		return false, fmt.Errorf("consume verification code: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume verification code rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteExpiredVerificationCodes removes codes whose expiry has passed.
func (s *Store) DeleteExpiredVerificationCodes(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM verification_codes WHERE expires_at <= ?", toMillis(now))
	if err != nil {
		return fmt.Errorf("delete expired verification codes: %w", err)
	}
	return nil
}
