package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	apperrors "github.com/meridian-exchange/meridian/internal/platform/errors"
	"github.com/meridian-exchange/meridian/internal/services/auth/account"
	"github.com/meridian-exchange/meridian/internal/services/auth/passkey"
	"github.com/meridian-exchange/meridian/internal/services/auth/session"
	"github.com/meridian-exchange/meridian/internal/services/auth/storage"
)

type passkeyRequest struct {
	Action    string          `json:"action"`
	Username  string          `json:"username"`
	SessionID string          `json:"sessionId"`
	Response  json.RawMessage `json:"response"`
}

type passkeyOptionsResponse struct {
	SessionID string          `json:"sessionId"`
	Options   json.RawMessage `json:"options"`
}

type passkeyVerifiedResponse struct {
	Verified bool            `json:"verified"`
	Account  *accountPayload `json:"account,omitempty"`
	Token    string          `json:"token,omitempty"`
}

// handlePasskey dispatches the four WebAuthn ceremony phases through one
// endpoint. Registration phases require an authenticated session; the
// authentication phases replace password login, so they take none.
func (s *Service) handlePasskey(w http.ResponseWriter, r *http.Request) {
	var req passkeyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, "passkey", err)
		return
	}

	switch req.Action {
	case "register-options":
		found, ok := s.authenticate(w, r, "passkey register-options")
		if !ok {
			return
		}
		s.passkeyRegisterOptions(w, r, found)
	case "register-verify":
		found, ok := s.authenticate(w, r, "passkey register-verify")
		if !ok {
			return
		}
		s.passkeyRegisterVerify(w, r, found, req)
	case "auth-options":
		s.passkeyAuthOptions(w, r, req)
	case "auth-verify":
		s.passkeyAuthVerify(w, r, req)
	default:
		s.respondError(w, "passkey", apperrors.New(apperrors.CodeInvalidInput,
			"action must be register-options, register-verify, auth-options, or auth-verify"))
	}
}

func (s *Service) passkeyRegisterOptions(w http.ResponseWriter, r *http.Request, found account.Account) {
	holder, err := s.loadPasskeyHolder(r.Context(), found)
	if err != nil {
		s.respondError(w, "passkey register-options", apperrors.Wrap(apperrors.CodeUnknown, "load passkey credentials", err))
		return
	}

	options := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	}
	if len(holder.credentials) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(holder.credentials).CredentialDescriptors()))
	}

	creation, ceremony, err := s.webAuthn.BeginRegistration(holder, options...)
	if err != nil {
		s.respondError(w, "passkey register-options", apperrors.Wrap(apperrors.CodeUnknown, "begin registration", err))
		return
	}

	s.writeCeremonyOptions(w, r, "passkey register-options", passkey.SessionKindRegistration, found.ID, ceremony, creation)
}

func (s *Service) passkeyRegisterVerify(w http.ResponseWriter, r *http.Request, found account.Account, req passkeyRequest) {
	ceremony, err := s.loadCeremony(r.Context(), req.SessionID, passkey.SessionKindRegistration)
	if err != nil {
		s.respondError(w, "passkey register-verify", err)
		return
	}
	if ceremony.AccountID != found.ID {
		s.respondError(w, "passkey register-verify", apperrors.New(apperrors.CodePasskeyVerificationFailed,
			"ceremony session belongs to a different account"))
		return
	}

	parsed, err := s.parser.ParseCredentialCreationResponseBytes(req.Response)
	if err != nil {
		s.respondError(w, "passkey register-verify", apperrors.Wrap(apperrors.CodeInvalidInput, "parse credential response", err))
		return
	}

	holder, err := s.loadPasskeyHolder(r.Context(), found)
	if err != nil {
		s.respondError(w, "passkey register-verify", apperrors.Wrap(apperrors.CodeUnknown, "load passkey credentials", err))
		return
	}

	credential, err := s.webAuthn.CreateCredential(holder, ceremony.Data, parsed)
	if err != nil {
		s.respondError(w, "passkey register-verify", apperrors.Wrap(apperrors.CodePasskeyVerificationFailed, "validate credential response", err))
		return
	}

	if err := s.storePasskeyCredential(r.Context(), found.ID, *credential, false); err != nil {
		s.respondError(w, "passkey register-verify", apperrors.Wrap(apperrors.CodeUnknown, "store credential", err))
		return
	}
	_ = s.passkeys.DeletePasskeySession(r.Context(), req.SessionID)

	if !found.PasskeyEnabled {
		found.PasskeyEnabled = true
		found.UpdatedAt = s.clock().UTC()
		if err := s.accounts.UpdateAccount(r.Context(), found); err != nil {
			s.respondError(w, "passkey register-verify", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, passkeyVerifiedResponse{Verified: true})
}

func (s *Service) passkeyAuthOptions(w http.ResponseWriter, r *http.Request, req passkeyRequest) {
	var (
		assertion *protocol.CredentialAssertion
		ceremony  *webauthn.SessionData
		accountID string
	)

	if username := strings.ToLower(strings.TrimSpace(req.Username)); username != "" {
		found, err := s.accounts.GetAccountByUsername(r.Context(), username)
		if err != nil {
			s.respondError(w, "passkey auth-options", err)
			return
		}
		if !found.PasskeyEnabled {
			s.respondError(w, "passkey auth-options", apperrors.WithMetadata(apperrors.CodePasskeyVerificationFailed,
				"account has no passkeys", map[string]string{"AccountID": found.ID}))
			return
		}
		holder, err := s.loadPasskeyHolder(r.Context(), found)
		if err != nil {
			s.respondError(w, "passkey auth-options", apperrors.Wrap(apperrors.CodeUnknown, "load passkey credentials", err))
			return
		}
		accountID = found.ID
		assertion, ceremony, err = s.webAuthn.BeginLogin(holder)
		if err != nil {
			s.respondError(w, "passkey auth-options", apperrors.Wrap(apperrors.CodeUnknown, "begin login", err))
			return
		}
	} else {
		var err error
		assertion, ceremony, err = s.webAuthn.BeginDiscoverableLogin()
		if err != nil {
			s.respondError(w, "passkey auth-options", apperrors.Wrap(apperrors.CodeUnknown, "begin discoverable login", err))
			return
		}
	}

	s.writeCeremonyOptions(w, r, "passkey auth-options", passkey.SessionKindLogin, accountID, ceremony, assertion)
}

func (s *Service) passkeyAuthVerify(w http.ResponseWriter, r *http.Request, req passkeyRequest) {
	ceremony, err := s.loadCeremony(r.Context(), req.SessionID, passkey.SessionKindLogin)
	if err != nil {
		s.respondError(w, "passkey auth-verify", err)
		return
	}

	parsed, err := s.parser.ParseCredentialRequestResponseBytes(req.Response)
	if err != nil {
		s.respondError(w, "passkey auth-verify", apperrors.Wrap(apperrors.CodeInvalidInput, "parse credential response", err))
		return
	}

	validatedUser, validatedCredential, err := s.webAuthn.ValidatePasskeyLogin(s.passkeyHolderHandler(r.Context()), ceremony.Data, parsed)
	if err != nil {
		s.respondError(w, "passkey auth-verify", apperrors.Wrap(apperrors.CodePasskeyVerificationFailed, "validate login", err))
		return
	}

	holder, ok := validatedUser.(*passkeyHolder)
	if !ok {
		s.respondError(w, "passkey auth-verify", apperrors.New(apperrors.CodeUnknown, "passkey user type mismatch"))
		return
	}

	if err := s.storePasskeyCredential(r.Context(), holder.account.ID, *validatedCredential, true); err != nil {
		s.respondError(w, "passkey auth-verify", apperrors.Wrap(apperrors.CodeUnknown, "store credential", err))
		return
	}
	_ = s.passkeys.DeletePasskeySession(r.Context(), req.SessionID)

	token, err := s.sessions.Issue(holder.account.ID, session.ScopeAuth, s.sessionCfg.SessionTTL)
	if err != nil {
		s.respondError(w, "passkey auth-verify", apperrors.Wrap(apperrors.CodeUnknown, "issue session", err))
		return
	}

	payload := accountToPayload(holder.account)
	writeJSON(w, http.StatusOK, passkeyVerifiedResponse{
		Verified: true,
		Account:  &payload,
		Token:    token,
	})
}

func (s *Service) handleListPasskeys(w http.ResponseWriter, r *http.Request) {
	found, ok := s.authenticate(w, r, "list passkeys")
	if !ok {
		return
	}

	credentials, err := s.passkeys.ListPasskeyCredentials(r.Context(), found.ID)
	if err != nil {
		s.respondError(w, "list passkeys", apperrors.Wrap(apperrors.CodeUnknown, "list credentials", err))
		return
	}

	type credentialPayload struct {
		ID         string     `json:"id"`
		CreatedAt  time.Time  `json:"createdAt"`
		LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	}
	payload := make([]credentialPayload, 0, len(credentials))
	for _, credential := range credentials {
		payload = append(payload, credentialPayload{
			ID:         credential.CredentialID,
			CreatedAt:  credential.CreatedAt,
			LastUsedAt: credential.LastUsedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"passkeys": payload})
}

func (s *Service) handleDeletePasskey(w http.ResponseWriter, r *http.Request) {
	found, ok := s.authenticate(w, r, "delete passkey")
	if !ok {
		return
	}

	credentialID := r.PathValue("id")
	credential, err := s.passkeys.GetPasskeyCredential(r.Context(), credentialID)
	if err != nil || credential.AccountID != found.ID {
		// A credential belonging to someone else reads as missing.
		writeJSONError(w, http.StatusNotFound, apperrors.CodeNotFound, "passkey not found")
		return
	}

	if err := s.passkeys.DeletePasskeyCredential(r.Context(), credentialID); err != nil {
		s.respondError(w, "delete passkey", err)
		return
	}

	remaining, err := s.passkeys.ListPasskeyCredentials(r.Context(), found.ID)
	if err != nil {
		s.respondError(w, "delete passkey", apperrors.Wrap(apperrors.CodeUnknown, "list credentials", err))
		return
	}
	if len(remaining) == 0 && found.PasskeyEnabled {
		found.PasskeyEnabled = false
		found.UpdatedAt = s.clock().UTC()
		if err := s.accounts.UpdateAccount(r.Context(), found); err != nil {
			s.respondError(w, "delete passkey", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "passkey deleted"})
}

// passkeyHolder adapts an account and its stored credentials to the
// webauthn.User contract.
type passkeyHolder struct {
	account     account.Account
	credentials []webauthn.Credential
}

func (h *passkeyHolder) WebAuthnID() []byte {
	return []byte(h.account.ID)
}

func (h *passkeyHolder) WebAuthnName() string {
	if h.account.Username != "" {
		return h.account.Username
	}
	return h.account.ID
}

func (h *passkeyHolder) WebAuthnDisplayName() string {
	return h.account.DisplayName
}

func (h *passkeyHolder) WebAuthnIcon() string {
	return ""
}

func (h *passkeyHolder) WebAuthnCredentials() []webauthn.Credential {
	return h.credentials
}

func (s *Service) loadPasskeyHolder(ctx context.Context, base account.Account) (*passkeyHolder, error) {
	records, err := s.passkeys.ListPasskeyCredentials(ctx, base.ID)
	if err != nil {
		return nil, err
	}
	credentials := make([]webauthn.Credential, 0, len(records))
	for _, record := range records {
		var credential webauthn.Credential
		if err := json.Unmarshal([]byte(record.CredentialJSON), &credential); err != nil {
			return nil, fmt.Errorf("decode credential %s: %w", record.CredentialID, err)
		}
		credentials = append(credentials, credential)
	}
	return &passkeyHolder{account: base, credentials: credentials}, nil
}

// passkeyHolderHandler resolves discoverable-login user handles back to
// accounts during assertion validation.
func (s *Service) passkeyHolderHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(rawID, userHandle []byte) (webauthn.User, error) {
		base, err := s.accounts.GetAccount(ctx, string(userHandle))
		if err != nil {
			return nil, err
		}
		return s.loadPasskeyHolder(ctx, base)
	}
}

func (s *Service) writeCeremonyOptions(w http.ResponseWriter, r *http.Request, op string, kind passkey.SessionKind, accountID string, ceremony *webauthn.SessionData, options any) {
	if ceremony == nil {
		s.respondError(w, op, apperrors.New(apperrors.CodeUnknown, "ceremony session data is missing"))
		return
	}

	sessionID, err := s.idGenerator()
	if err != nil {
		s.respondError(w, op, apperrors.Wrap(apperrors.CodeUnknown, "generate session id", err))
		return
	}
	ceremonyJSON, err := json.Marshal(ceremony)
	if err != nil {
		s.respondError(w, op, apperrors.Wrap(apperrors.CodeUnknown, "encode ceremony session", err))
		return
	}
	if err := s.passkeys.PutPasskeySession(r.Context(), storage.PasskeySession{
		ID:          sessionID,
		Kind:        string(kind),
		AccountID:   accountID,
		SessionJSON: string(ceremonyJSON),
		ExpiresAt:   s.clock().UTC().Add(s.passkeyConfig.SessionTTL),
	}); err != nil {
		s.respondError(w, op, apperrors.Wrap(apperrors.CodeUnknown, "store ceremony session", err))
		return
	}

	optionsJSON, err := json.Marshal(options)
	if err != nil {
		s.respondError(w, op, apperrors.Wrap(apperrors.CodeUnknown, "encode ceremony options", err))
		return
	}
	writeJSON(w, http.StatusOK, passkeyOptionsResponse{SessionID: sessionID, Options: optionsJSON})
}

type loadedCeremony struct {
	Data      webauthn.SessionData
	AccountID string
}

func (s *Service) loadCeremony(ctx context.Context, sessionID string, expected passkey.SessionKind) (loadedCeremony, error) {
	if strings.TrimSpace(sessionID) == "" {
		return loadedCeremony{}, apperrors.New(apperrors.CodeInvalidInput, "session id is required")
	}

	stored, err := s.passkeys.GetPasskeySession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return loadedCeremony{}, apperrors.New(apperrors.CodePasskeyVerificationFailed, "ceremony session not found")
	}
	if err != nil {
		return loadedCeremony{}, apperrors.Wrap(apperrors.CodeUnknown, "load ceremony session", err)
	}
	if stored.Kind != string(expected) {
		return loadedCeremony{}, apperrors.New(apperrors.CodePasskeyVerificationFailed, "ceremony session kind mismatch")
	}
	if !stored.ExpiresAt.After(s.clock().UTC()) {
		_ = s.passkeys.DeletePasskeySession(ctx, sessionID)
		return loadedCeremony{}, apperrors.New(apperrors.CodePasskeyVerificationFailed, "ceremony session expired")
	}

	var data webauthn.SessionData
	if err := json.Unmarshal([]byte(stored.SessionJSON), &data); err != nil {
		return loadedCeremony{}, apperrors.Wrap(apperrors.CodeUnknown, "decode ceremony session", err)
	}
	return loadedCeremony{Data: data, AccountID: stored.AccountID}, nil
}

func (s *Service) storePasskeyCredential(ctx context.Context, accountID string, credential webauthn.Credential, used bool) error {
	credentialID := encodeCredentialID(credential.ID)
	now := s.clock().UTC()

	stored, err := s.passkeys.GetPasskeyCredential(ctx, credentialID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if errors.Is(err, storage.ErrNotFound) && used {
		return fmt.Errorf("passkey credential not found")
	}

	createdAt := now
	if err == nil {
		createdAt = stored.CreatedAt
	}
	credentialJSON, err := json.Marshal(credential)
	if err != nil {
		return err
	}
	var lastUsed *time.Time
	if used {
		value := now
		lastUsed = &value
	}
	return s.passkeys.PutPasskeyCredential(ctx, storage.PasskeyCredential{
		CredentialID:   credentialID,
		AccountID:      accountID,
		CredentialJSON: string(credentialJSON),
		CreatedAt:      createdAt,
		UpdatedAt:      now,
		LastUsedAt:     lastUsed,
	})
}

func encodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}
