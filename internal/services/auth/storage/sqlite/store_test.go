package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/meridian-exchange/meridian/internal/services/auth/account"
	"github.com/meridian-exchange/meridian/internal/services/auth/storage"
	"github.com/meridian-exchange/meridian/internal/services/auth/verification"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func testAccount(id string) account.Account {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return account.Account{
		ID:        id,
		Email:     id + "@example.com",
		Username:  "user-" + id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestCreateAndGetAccount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created := testAccount("a1")
	created.Phone = "+15551234567"
	created.WalletAddress = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	created.WalletType = account.WalletTypeEVM
	created.DisplayName = "Alice"

	if err := store.CreateAccount(ctx, created); err != nil {
		t.Fatalf("create account: %v", err)
	}

	lookups := map[string]func() (account.Account, error){
		"id":       func() (account.Account, error) { return store.GetAccount(ctx, created.ID) },
		"email":    func() (account.Account, error) { return store.GetAccountByEmail(ctx, created.Email) },
		"phone":    func() (account.Account, error) { return store.GetAccountByPhone(ctx, created.Phone) },
		"username": func() (account.Account, error) { return store.GetAccountByUsername(ctx, created.Username) },
		"wallet":   func() (account.Account, error) { return store.GetAccountByWallet(ctx, created.WalletAddress) },
	}
	for name, lookup := range lookups {
		got, err := lookup()
		if err != nil {
			t.Fatalf("get account by %s: %v", name, err)
		}
		if got.ID != created.ID {
			t.Fatalf("get by %s returned account %q", name, got.ID)
		}
		if got.WalletType != account.WalletTypeEVM {
			t.Fatalf("get by %s lost wallet type", name)
		}
		if !got.CreatedAt.Equal(created.CreatedAt) {
			t.Fatalf("get by %s returned created_at %v", name, got.CreatedAt)
		}
	}
}

func TestGetAccountNotFound(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.GetAccount(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected %v, got %v", storage.ErrNotFound, err)
	}
	if _, err := store.GetAccountByEmail(ctx, "missing@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected %v, got %v", storage.ErrNotFound, err)
	}
}

func TestCreateAccountDuplicateIdentifiers(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := testAccount("a1")
	if err := store.CreateAccount(ctx, first); err != nil {
		t.Fatalf("create account: %v", err)
	}

	dupEmail := testAccount("a2")
	dupEmail.Email = first.Email
	if err := store.CreateAccount(ctx, dupEmail); !errors.Is(err, storage.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}

	dupUsername := testAccount("a3")
	dupUsername.Username = first.Username
	if err := store.CreateAccount(ctx, dupUsername); !errors.Is(err, storage.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate username error, got %v", err)
	}
}

func TestCreateAccountAllowsEmptyOptionalIdentifiers(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Two accounts with no phone or wallet must not collide on the empty
	// string thanks to the partial unique indexes.
	for _, id := range []string{"a1", "a2"} {
		if err := store.CreateAccount(ctx, testAccount(id)); err != nil {
			t.Fatalf("create account %s: %v", id, err)
		}
	}
}

func TestUpdateAccount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created := testAccount("a1")
	if err := store.CreateAccount(ctx, created); err != nil {
		t.Fatalf("create account: %v", err)
	}

	created.EmailVerified = true
	created.DisplayName = "Alice"
	created.PasskeyEnabled = true
	created.UpdatedAt = created.UpdatedAt.Add(time.Minute)
	if err := store.UpdateAccount(ctx, created); err != nil {
		t.Fatalf("update account: %v", err)
	}

	got, err := store.GetAccount(ctx, created.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !got.EmailVerified || !got.PasskeyEnabled || got.DisplayName != "Alice" {
		t.Fatalf("update not persisted: %+v", got)
	}
	if !got.UpdatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("expected updated_at %v, got %v", created.UpdatedAt, got.UpdatedAt)
	}

	missing := testAccount("ghost")
	if err := store.UpdateAccount(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected %v, got %v", storage.ErrNotFound, err)
	}
}

func TestUpdateAccountDuplicateIdentifier(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := testAccount("a1")
	second := testAccount("a2")
	for _, a := range []account.Account{first, second} {
		if err := store.CreateAccount(ctx, a); err != nil {
			t.Fatalf("create account: %v", err)
		}
	}

	second.Username = first.Username
	if err := store.UpdateAccount(ctx, second); !errors.Is(err, storage.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate identifier error, got %v", err)
	}
}

func TestUsernameAvailable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateAccount(ctx, testAccount("a1")); err != nil {
		t.Fatalf("create account: %v", err)
	}

	available, err := store.UsernameAvailable(ctx, "user-a1")
	if err != nil {
		t.Fatalf("check username: %v", err)
	}
	if available {
		t.Fatal("expected taken username to be unavailable")
	}

	available, err = store.UsernameAvailable(ctx, "someone-else")
	if err != nil {
		t.Fatalf("check username: %v", err)
	}
	if !available {
		t.Fatal("expected unused username to be available")
	}
}

func TestVerificationCodeConsumeOnce(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.CreateAccount(ctx, testAccount("a1")); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := store.PutVerificationCode(ctx, storage.VerificationCode{
		AccountID: "a1",
		Kind:      verification.KindPhone,
		Code:      "123456",
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}); err != nil {
		t.Fatalf("put code: %v", err)
	}

	consumed, err := store.ConsumeVerificationCode(ctx, "a1", verification.KindPhone, "999999", now)
	if err != nil {
		t.Fatalf("consume wrong code: %v", err)
	}
	if consumed {
		t.Fatal("expected wrong code not to consume")
	}

	consumed, err = store.ConsumeVerificationCode(ctx, "a1", verification.KindPhone, "123456", now)
	if err != nil {
		t.Fatalf("consume code: %v", err)
	}
	if !consumed {
		t.Fatal("expected matching code to consume")
	}

	consumed, err = store.ConsumeVerificationCode(ctx, "a1", verification.KindPhone, "123456", now)
	if err != nil {
		t.Fatalf("re-consume code: %v", err)
	}
	if consumed {
		t.Fatal("expected consumed code not to match twice")
	}
}

func TestVerificationCodeExpiry(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.CreateAccount(ctx, testAccount("a1")); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := store.PutVerificationCode(ctx, storage.VerificationCode{
		AccountID: "a1",
		Kind:      verification.KindEmail,
		Code:      "123456",
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}); err != nil {
		t.Fatalf("put code: %v", err)
	}

	late := now.Add(11 * time.Minute)
	consumed, err := store.ConsumeVerificationCode(ctx, "a1", verification.KindEmail, "123456", late)
	if err != nil {
		t.Fatalf("consume expired code: %v", err)
	}
	if consumed {
		t.Fatal("expected expired code not to consume")
	}

	if err := store.DeleteExpiredVerificationCodes(ctx, late); err != nil {
		t.Fatalf("delete expired codes: %v", err)
	}
}

func TestVerificationCodeReplacesPrior(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.CreateAccount(ctx, testAccount("a1")); err != nil {
		t.Fatalf("create account: %v", err)
	}

	for _, code := range []string{"111111", "222222"} {
		if err := store.PutVerificationCode(ctx, storage.VerificationCode{
			AccountID: "a1",
			Kind:      verification.KindPhone,
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(10 * time.Minute),
		}); err != nil {
			t.Fatalf("put code %s: %v", code, err)
		}
	}

	consumed, err := store.ConsumeVerificationCode(ctx, "a1", verification.KindPhone, "111111", now)
	if err != nil {
		t.Fatalf("consume stale code: %v", err)
	}
	if consumed {
		t.Fatal("expected superseded code not to consume")
	}

	consumed, err = store.ConsumeVerificationCode(ctx, "a1", verification.KindPhone, "222222", now)
	if err != nil {
		t.Fatalf("consume current code: %v", err)
	}
	if !consumed {
		t.Fatal("expected latest code to consume")
	}
}

func TestPasskeyCredentialLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.CreateAccount(ctx, testAccount("a1")); err != nil {
		t.Fatalf("create account: %v", err)
	}

	credential := storage.PasskeyCredential{
		CredentialID:   "cred-1",
		AccountID:      "a1",
		CredentialJSON: `{"id":"cred-1"}`,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.PutPasskeyCredential(ctx, credential); err != nil {
		t.Fatalf("put credential: %v", err)
	}

	got, err := store.GetPasskeyCredential(ctx, "cred-1")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.AccountID != "a1" || got.LastUsedAt != nil {
		t.Fatalf("unexpected credential %+v", got)
	}

	used := now.Add(time.Hour)
	credential.LastUsedAt = &used
	credential.UpdatedAt = used
	if err := store.PutPasskeyCredential(ctx, credential); err != nil {
		t.Fatalf("update credential: %v", err)
	}

	listed, err := store.ListPasskeyCredentials(ctx, "a1")
	if err != nil {
		t.Fatalf("list credentials: %v", err)
	}
	if len(listed) != 1 || listed[0].LastUsedAt == nil || !listed[0].LastUsedAt.Equal(used) {
		t.Fatalf("unexpected listing %+v", listed)
	}

	if err := store.DeletePasskeyCredential(ctx, "cred-1"); err != nil {
		t.Fatalf("delete credential: %v", err)
	}
	if err := store.DeletePasskeyCredential(ctx, "cred-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected %v, got %v", storage.ErrNotFound, err)
	}
}

func TestPasskeySessionLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	session := storage.PasskeySession{
		ID:          "sess-1",
		Kind:        "registration",
		AccountID:   "a1",
		SessionJSON: `{"challenge":"abc"}`,
		ExpiresAt:   now.Add(5 * time.Minute),
	}
	if err := store.PutPasskeySession(ctx, session); err != nil {
		t.Fatalf("put session: %v", err)
	}

	got, err := store.GetPasskeySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Kind != "registration" || !got.ExpiresAt.Equal(session.ExpiresAt) {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.DeleteExpiredPasskeySessions(ctx, now.Add(10*time.Minute)); err != nil {
		t.Fatalf("delete expired sessions: %v", err)
	}
	if _, err := store.GetPasskeySession(ctx, "sess-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected expired session swept, got %v", err)
	}
}
