package httpapi

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	apperrors "github.com/meridian-exchange/meridian/internal/platform/errors"
)

type walletSigner struct {
	address string
	chainID string
	sign    func(message string) string
}

func newTestEVMSigner(t *testing.T) walletSigner {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate evm key: %v", err)
	}
	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	return walletSigner{
		address: address,
		chainID: "1",
		sign: func(message string) string {
			prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
			sig, err := ethcrypto.Sign(ethcrypto.Keccak256([]byte(prefixed)), key)
			if err != nil {
				t.Fatalf("sign message: %v", err)
			}
			sig[64] += 27
			return "0x" + hex.EncodeToString(sig)
		},
	}
}

func newTestSolanaSigner(t *testing.T) walletSigner {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate solana key: %v", err)
	}
	return walletSigner{
		address: base58.Encode(pub),
		chainID: "solana",
		sign: func(message string) string {
			return base58.Encode(ed25519.Sign(priv, []byte(message)))
		},
	}
}

func (e *testEnv) walletAuth(t *testing.T, signer walletSigner) (*walletAuthResponse, int) {
	t.Helper()
	message := fmt.Sprintf("Sign in to Meridian with wallet %s", signer.address)
	rec := e.do(t, http.MethodPost, "/auth/wallet", map[string]any{
		"address":   signer.address,
		"signature": signer.sign(message),
		"message":   message,
		"chainId":   signer.chainID,
	}, nil)
	if rec.Code != http.StatusOK {
		return nil, rec.Code
	}
	body := decodeBody[walletAuthResponse](t, rec)
	return &body, rec.Code
}

func TestWalletAuthCreatesAccountOnFirstSight(t *testing.T) {
	env := newTestEnv(t)
	signer := newTestEVMSigner(t)

	body, code := env.walletAuth(t, signer)
	if code != http.StatusOK {
		t.Fatalf("wallet auth returned %d", code)
	}
	if !body.IsNewUser {
		t.Fatal("expected isNewUser on first wallet auth")
	}
	if body.Account.WalletAddress != strings.ToLower(signer.address) {
		t.Fatalf("stored address %q, want lowercased %q", body.Account.WalletAddress, strings.ToLower(signer.address))
	}
	if body.Account.WalletType != "evm" {
		t.Fatalf("wallet type %q", body.Account.WalletType)
	}
	if body.Token == "" {
		t.Fatal("expected session token")
	}
	if !strings.HasPrefix(body.Account.DisplayName, "Wallet ") {
		t.Fatalf("placeholder display name %q", body.Account.DisplayName)
	}

	verify := env.do(t, http.MethodGet, "/auth/verify-session", nil, bearer(body.Token))
	if verify.Code != http.StatusOK {
		t.Fatalf("session from wallet auth rejected: %d", verify.Code)
	}
}

func TestWalletAuthReturnsExistingAccount(t *testing.T) {
	env := newTestEnv(t)
	signer := newTestEVMSigner(t)

	first, _ := env.walletAuth(t, signer)
	second, code := env.walletAuth(t, signer)
	if code != http.StatusOK {
		t.Fatalf("second wallet auth returned %d", code)
	}
	if second.IsNewUser {
		t.Fatal("expected existing account on second auth")
	}
	if second.Account.ID != first.Account.ID {
		t.Fatalf("second auth resolved %q, want %q", second.Account.ID, first.Account.ID)
	}
}

func TestWalletAuthSolana(t *testing.T) {
	env := newTestEnv(t)
	signer := newTestSolanaSigner(t)

	body, code := env.walletAuth(t, signer)
	if code != http.StatusOK {
		t.Fatalf("solana wallet auth returned %d", code)
	}
	if body.Account.WalletType != "solana" {
		t.Fatalf("wallet type %q", body.Account.WalletType)
	}
	// Solana addresses are case-sensitive and stored as given.
	if body.Account.WalletAddress != signer.address {
		t.Fatalf("stored address %q, want %q", body.Account.WalletAddress, signer.address)
	}
}

func TestWalletAuthRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	signer := newTestEVMSigner(t)
	other := newTestEVMSigner(t)
	message := fmt.Sprintf("Sign in to Meridian with wallet %s", signer.address)

	rec := env.do(t, http.MethodPost, "/auth/wallet", map[string]any{
		"address":   signer.address,
		"signature": other.sign(message),
		"message":   message,
		"chainId":   "1",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("forged signature returned %d, want 400", rec.Code)
	}

	// The forged attempt must not have created an account.
	body, _ := env.walletAuth(t, signer)
	if !body.IsNewUser {
		t.Fatal("account existed before a valid signature was presented")
	}
}

func TestWalletAuthRejectsMessageWithoutAddress(t *testing.T) {
	env := newTestEnv(t)
	signer := newTestEVMSigner(t)
	message := "Sign in to Meridian"

	rec := env.do(t, http.MethodPost, "/auth/wallet", map[string]any{
		"address":   signer.address,
		"signature": signer.sign(message),
		"message":   message,
		"chainId":   "1",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("address-free message returned %d, want 400", rec.Code)
	}
}

func TestWalletAuthRequiresFields(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/auth/wallet", map[string]any{
		"address": "0xabc",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWalletAuthRejectsUnknownChain(t *testing.T) {
	env := newTestEnv(t)
	signer := newTestEVMSigner(t)
	message := fmt.Sprintf("hello %s", signer.address)

	rec := env.do(t, http.MethodPost, "/auth/wallet", map[string]any{
		"address":   signer.address,
		"signature": signer.sign(message),
		"message":   message,
		"chainId":   "bitcoin",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown chain returned %d, want 400", rec.Code)
	}
}

func TestWalletAuthRejectsChainAddressMismatch(t *testing.T) {
	env := newTestEnv(t)
	signer := newTestSolanaSigner(t)
	message := fmt.Sprintf("hello %s", signer.address)

	rec := env.do(t, http.MethodPost, "/auth/wallet", map[string]any{
		"address":   signer.address,
		"signature": signer.sign(message),
		"message":   message,
		"chainId":   "1",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("solana address on evm chain returned %d, want 400", rec.Code)
	}
	if body := decodeBody[errorResponse](t, rec); body.Error != string(apperrors.CodeInvalidInput) {
		t.Fatalf("expected invalid-input code, got %q", body.Error)
	}
}

func TestWalletAddressIsCaseInsensitiveForEVM(t *testing.T) {
	env := newTestEnv(t)
	signer := newTestEVMSigner(t)

	first, _ := env.walletAuth(t, signer)

	upper := signer
	upper.address = "0x" + strings.ToUpper(strings.TrimPrefix(signer.address, "0x"))
	message := fmt.Sprintf("Sign in to Meridian with wallet %s", upper.address)
	rec := env.do(t, http.MethodPost, "/auth/wallet", map[string]any{
		"address":   upper.address,
		"signature": signer.sign(message),
		"message":   message,
		"chainId":   "1",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("uppercased address returned %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[walletAuthResponse](t, rec)
	if body.IsNewUser || body.Account.ID != first.Account.ID {
		t.Fatalf("case variant resolved to a different account: %+v", body)
	}
}
