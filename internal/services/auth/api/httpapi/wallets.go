package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/meridian-exchange/meridian/internal/platform/errors"
	"github.com/meridian-exchange/meridian/internal/services/auth/account"
	"github.com/meridian-exchange/meridian/internal/services/auth/session"
	"github.com/meridian-exchange/meridian/internal/services/auth/storage"
	"github.com/meridian-exchange/meridian/internal/services/auth/wallet"
)

type walletAuthRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
	ChainID   string `json:"chainId"`
}

type walletAuthResponse struct {
	Account   accountPayload `json:"account"`
	Token     string         `json:"token"`
	IsNewUser bool           `json:"isNewUser"`
	Message   string         `json:"message"`
}

// handleWalletAuthenticate proves address ownership by signature, then logs
// in the owning account or creates one on first sight.
func (s *Service) handleWalletAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req walletAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, "wallet auth", err)
		return
	}
	if strings.TrimSpace(req.Address) == "" || strings.TrimSpace(req.Signature) == "" || strings.TrimSpace(req.Message) == "" {
		s.respondError(w, "wallet auth", apperrors.New(apperrors.CodeInvalidInput, "address, signature, and message are required"))
		return
	}

	walletType, err := wallet.TypeForChain(req.ChainID)
	if err != nil {
		s.respondError(w, "wallet auth", err)
		return
	}
	addressType, err := wallet.TypeForAddress(req.Address)
	if err != nil {
		s.respondError(w, "wallet auth", err)
		return
	}
	if addressType != walletType {
		s.respondError(w, "wallet auth", apperrors.WithMetadata(apperrors.CodeInvalidInput,
			"address does not match chain", map[string]string{"ChainID": req.ChainID}))
		return
	}

	if err := wallet.Verify(walletType, req.Address, req.Message, req.Signature); err != nil {
		s.respondError(w, "wallet auth", err)
		return
	}

	address := normalizeWalletAddress(walletType, req.Address)

	found, err := s.accounts.GetAccountByWallet(r.Context(), address)
	isNewUser := false
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		found, err = s.createWalletAccount(r, address, walletType)
		if err != nil {
			s.respondError(w, "wallet auth", err)
			return
		}
		isNewUser = true
	default:
		s.respondError(w, "wallet auth", apperrors.Wrap(apperrors.CodeUnknown, "lookup wallet account", err))
		return
	}

	token, err := s.sessions.Issue(found.ID, session.ScopeAuth, s.sessionCfg.SessionTTL)
	if err != nil {
		s.respondError(w, "wallet auth", apperrors.Wrap(apperrors.CodeUnknown, "issue session", err))
		return
	}

	message := "wallet login successful"
	if isNewUser {
		message = "wallet account created"
	}
	writeJSON(w, http.StatusOK, walletAuthResponse{
		Account:   accountToPayload(found),
		Token:     token,
		IsNewUser: isNewUser,
		Message:   message,
	})
}

func (s *Service) createWalletAccount(r *http.Request, address string, walletType account.WalletType) (account.Account, error) {
	created, err := account.New(account.CreateInput{
		WalletAddress: address,
		WalletType:    walletType,
		DisplayName:   placeholderDisplayName(address),
	}, s.clock, s.idGenerator)
	if err != nil {
		return account.Account{}, err
	}

	err = s.accounts.CreateAccount(r.Context(), created)
	if errors.Is(err, storage.ErrDuplicateIdentifier) {
		// Lost a race with a concurrent first login for the same wallet.
		// The other insert won; use its account.
		return s.accounts.GetAccountByWallet(r.Context(), address)
	}
	if err != nil {
		return account.Account{}, err
	}
	return created, nil
}

// normalizeWalletAddress lower-cases EVM addresses so lookups stay
// consistent with case-insensitive signature comparison. Solana addresses
// are case-sensitive base58 and stored as given.
func normalizeWalletAddress(walletType account.WalletType, address string) string {
	address = strings.TrimSpace(address)
	if walletType == account.WalletTypeEVM {
		return strings.ToLower(address)
	}
	return address
}

func placeholderDisplayName(address string) string {
	if len(address) <= 10 {
		return "Wallet " + address
	}
	return fmt.Sprintf("Wallet %s...%s", address[:6], address[len(address)-4:])
}
