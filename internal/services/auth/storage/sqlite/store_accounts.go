package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/meridian-exchange/meridian/internal/services/auth/account"
	"github.com/meridian-exchange/meridian/internal/services/auth/storage"
)

const accountColumns = `id, email, phone, username, password_hash, email_verified, phone_verified,
wallet_address, wallet_type, passkey_enabled, display_name, photo_url, created_at, updated_at`

// CreateAccount inserts a new account. Identifier collisions surface as
// ErrDuplicateIdentifier straight from the unique indexes, so concurrent
// registrations for the same identifier cannot both succeed.
func (s *Store) CreateAccount(ctx context.Context, a account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("account id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO accounts (`+accountColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		a.ID,
		a.Email,
		a.Phone,
		a.Username,
		a.PasswordHash,
		boolToInt(a.EmailVerified),
		boolToInt(a.PhoneVerified),
		a.WalletAddress,
		string(a.WalletType),
		boolToInt(a.PasskeyEnabled),
		a.DisplayName,
		a.PhotoURL,
		toMillis(a.CreatedAt),
		toMillis(a.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateIdentifier
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccount fetches an account by ID.
func (s *Store) GetAccount(ctx context.Context, accountID string) (account.Account, error) {
	return s.getAccountBy(ctx, "id", accountID)
}

// GetAccountByEmail fetches an account by its linked email.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	return s.getAccountBy(ctx, "email", email)
}

// GetAccountByPhone fetches an account by its linked phone number.
func (s *Store) GetAccountByPhone(ctx context.Context, phone string) (account.Account, error) {
	return s.getAccountBy(ctx, "phone", phone)
}

// GetAccountByUsername fetches an account by username.
func (s *Store) GetAccountByUsername(ctx context.Context, username string) (account.Account, error) {
	return s.getAccountBy(ctx, "username", username)
}

// GetAccountByWallet fetches an account by its linked wallet address.
func (s *Store) GetAccountByWallet(ctx context.Context, walletAddress string) (account.Account, error) {
	return s.getAccountBy(ctx, "wallet_address", walletAddress)
}

func (s *Store) getAccountBy(ctx context.Context, column, value string) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	if s == nil || s.sqlDB == nil {
		return account.Account{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(value) == "" {
		return account.Account{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE "+column+" = ?", value)
	return scanAccount(row)
}

// UpdateAccount rewrites the mutable account fields. Identifier collisions
// surface as ErrDuplicateIdentifier, missing rows as ErrNotFound.
func (s *Store) UpdateAccount(ctx context.Context, a account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("account id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE accounts SET
	email = ?,
	phone = ?,
	username = ?,
	password_hash = ?,
	email_verified = ?,
	phone_verified = ?,
	wallet_address = ?,
	wallet_type = ?,
	passkey_enabled = ?,
	display_name = ?,
	photo_url = ?,
	updated_at = ?
WHERE id = ?
`,
		a.Email,
		a.Phone,
		a.Username,
		a.PasswordHash,
		boolToInt(a.EmailVerified),
		boolToInt(a.PhoneVerified),
		a.WalletAddress,
		string(a.WalletType),
		boolToInt(a.PasskeyEnabled),
		a.DisplayName,
		a.PhotoURL,
		toMillis(a.UpdatedAt),
		a.ID,
	)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateIdentifier
	}
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UsernameAvailable reports whether no account currently holds the username.
func (s *Store) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(username) == "" {
		return false, fmt.Errorf("username is required")
	}

	var one int
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT 1 FROM accounts WHERE username = ?", username).Scan(&one)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return false, nil
}

func scanAccount(row *sql.Row) (account.Account, error) {
	var a account.Account
	var emailVerified, phoneVerified, passkeyEnabled int
	var walletType string
	var createdAt, updatedAt int64
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.Phone,
		&a.Username,
		&a.PasswordHash,
		&emailVerified,
		&phoneVerified,
		&a.WalletAddress,
		&walletType,
		&passkeyEnabled,
		&a.DisplayName,
		&a.PhotoURL,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return account.Account{}, storage.ErrNotFound
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.EmailVerified = emailVerified != 0
	a.PhoneVerified = phoneVerified != 0
	a.PasskeyEnabled = passkeyEnabled != 0
	a.WalletType = account.WalletType(walletType)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
