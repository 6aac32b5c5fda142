// Package wallet verifies chain wallet ownership through signed messages.
//
// EVM wallets sign with personal_sign (EIP-191); Solana wallets sign the raw
// message bytes with ed25519. In both cases the signed message must embed the
// claimed address so a signature captured for one address cannot be replayed
// to link another.
package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	apperrors "github.com/meridian-exchange/meridian/internal/platform/errors"
	"github.com/meridian-exchange/meridian/internal/services/auth/account"
)

// ErrInvalidSignature covers every verification failure: bad encoding, wrong
// key, address mismatch. Callers deliberately cannot tell the cases apart.
var ErrInvalidSignature = apperrors.New(apperrors.CodeInvalidSignature, "wallet signature verification failed")

// TypeForChain maps a caller-supplied chain identifier to a wallet type.
// EVM chains identify by numeric chain ID; Solana has no numeric ID in this
// scheme and is named outright.
func TypeForChain(chainID string) (account.WalletType, error) {
	chainID = strings.ToLower(strings.TrimSpace(chainID))
	if chainID == "" {
		return "", apperrors.New(apperrors.CodeInvalidInput, "chain id is required")
	}
	if strings.Contains(chainID, "sol") {
		return account.WalletTypeSolana, nil
	}
	for _, r := range chainID {
		if r < '0' || r > '9' {
			return "", apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("unsupported chain id %q", chainID))
		}
	}
	return account.WalletTypeEVM, nil
}

// TypeForAddress infers the chain family from the address shape.
func TypeForAddress(address string) (account.WalletType, error) {
	address = strings.TrimSpace(address)
	switch {
	case strings.HasPrefix(address, "0x") && len(address) == 42:
		return account.WalletTypeEVM, nil
	case len(address) >= 32 && len(address) <= 44:
		return account.WalletTypeSolana, nil
	default:
		return "", apperrors.New(apperrors.CodeInvalidInput, "unrecognized wallet address format")
	}
}

// Verify dispatches to the chain-specific check and enforces that the signed
// message names the address being linked.
func Verify(walletType account.WalletType, address, message, signature string) error {
	if !strings.Contains(strings.ToLower(message), strings.ToLower(strings.TrimSpace(address))) {
		return ErrInvalidSignature
	}
	switch walletType {
	case account.WalletTypeEVM:
		return VerifyEVM(address, message, signature)
	case account.WalletTypeSolana:
		return VerifySolana(address, message, signature)
	default:
		return apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("unsupported wallet type %q", walletType))
	}
}

// VerifyEVM recovers the signer of a personal_sign signature and compares it
// to the claimed address.
func VerifyEVM(address, message, signature string) error {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "0x"))
	if err != nil || len(sig) != 65 {
		return ErrInvalidSignature
	}

	// Wallets emit v as 27/28; secp256k1 recovery wants 0/1.
	recovery := make([]byte, 65)
	copy(recovery, sig)
	if recovery[64] >= 27 {
		recovery[64] -= 27
	}
	if recovery[64] > 1 {
		return ErrInvalidSignature
	}

	digest := personalSignHash(message)
	pub, err := ethcrypto.SigToPub(digest, recovery)
	if err != nil {
		return ErrInvalidSignature
	}

	recovered := ethcrypto.PubkeyToAddress(*pub).Hex()
	if !strings.EqualFold(recovered, strings.TrimSpace(address)) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifySolana checks an ed25519 signature over the raw message bytes against
// the base58-encoded public key that doubles as the address.
func VerifySolana(address, message, signature string) error {
	pub := base58.Decode(strings.TrimSpace(address))
	if len(pub) != ed25519.PublicKeySize {
		return ErrInvalidSignature
	}
	sig := base58.Decode(strings.TrimSpace(signature))
	if len(sig) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig) {
		return ErrInvalidSignature
	}
	return nil
}

// personalSignHash applies the EIP-191 personal message prefix before hashing.
func personalSignHash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return ethcrypto.Keccak256([]byte(prefixed))
}
