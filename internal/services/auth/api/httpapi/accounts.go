package httpapi

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/meridian-exchange/meridian/internal/platform/errors"
	"github.com/meridian-exchange/meridian/internal/services/auth/account"
	"github.com/meridian-exchange/meridian/internal/services/auth/session"
)

type registerRequest struct {
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type authResponse struct {
	Account      accountPayload       `json:"account"`
	Token        string               `json:"token"`
	LoginMethods []loginMethodPayload `json:"loginMethods,omitempty"`
	WalletInfo   *walletInfoPayload   `json:"walletInfo,omitempty"`
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, "register", err)
		return
	}

	if err := account.ValidatePassword(req.Password); err != nil {
		s.respondError(w, "register", err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.passwordCost)
	if err != nil {
		s.respondError(w, "register", apperrors.Wrap(apperrors.CodeUnknown, "hash password", err))
		return
	}

	created, err := account.New(account.CreateInput{
		Email:        req.Email,
		Phone:        req.Phone,
		Username:     req.Username,
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
	}, s.clock, s.idGenerator)
	if err != nil {
		s.respondError(w, "register", err)
		return
	}

	if err := s.accounts.CreateAccount(r.Context(), created); err != nil {
		s.respondError(w, "register", err)
		return
	}

	token, err := s.sessions.Issue(created.ID, session.ScopeAuth, s.sessionCfg.SessionTTL)
	if err != nil {
		s.respondError(w, "register", apperrors.Wrap(apperrors.CodeUnknown, "issue session", err))
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Account: accountToPayload(created),
		Token:   token,
	})
}

type loginRequest struct {
	Method struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"method"`
	Credential string `json:"credential"`
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, "login", err)
		return
	}

	found, err := s.lookupByMethod(r.Context(), req.Method.Type, req.Method.Identifier)
	if err != nil {
		s.respondError(w, "login", err)
		return
	}

	if found.PasswordHash == "" {
		s.respondError(w, "login", apperrors.WithMetadata(apperrors.CodeInvalidCredentials,
			"account has no password", map[string]string{"AccountID": found.ID}))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(req.Credential)); err != nil {
		s.respondError(w, "login", apperrors.WithMetadata(apperrors.CodeInvalidCredentials,
			"password mismatch", map[string]string{"AccountID": found.ID}))
		return
	}

	token, err := s.sessions.Issue(found.ID, session.ScopeAuth, s.sessionCfg.SessionTTL)
	if err != nil {
		s.respondError(w, "login", apperrors.Wrap(apperrors.CodeUnknown, "issue session", err))
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Account:      accountToPayload(found),
		Token:        token,
		LoginMethods: loginMethods(found),
		WalletInfo:   walletInfo(found),
	})
}

// lookupByMethod resolves an account through a closed method enum rather
// than a string comparison chain.
func (s *Service) lookupByMethod(ctx context.Context, methodType, identifier string) (account.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return account.Account{}, apperrors.New(apperrors.CodeInvalidInput, "identifier is required")
	}

	switch methodType {
	case "email":
		return s.accounts.GetAccountByEmail(ctx, strings.ToLower(identifier))
	case "phone":
		return s.accounts.GetAccountByPhone(ctx, identifier)
	case "username":
		return s.accounts.GetAccountByUsername(ctx, strings.ToLower(identifier))
	default:
		return account.Account{}, apperrors.New(apperrors.CodeInvalidInput, "method type must be email, phone, or username")
	}
}

type verifySessionResponse struct {
	Account      accountPayload       `json:"account"`
	LoginMethods []loginMethodPayload `json:"loginMethods,omitempty"`
	WalletInfo   *walletInfoPayload   `json:"walletInfo,omitempty"`
}

func (s *Service) handleVerifySession(w http.ResponseWriter, r *http.Request) {
	found, ok := s.authenticate(w, r, "verify session")
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, verifySessionResponse{
		Account:      accountToPayload(found),
		LoginMethods: loginMethods(found),
		WalletInfo:   walletInfo(found),
	})
}

// authenticate resolves the bearer token to an account. It writes the error
// response itself: 401 for token failures, 404 when the account behind a
// valid token no longer exists.
func (s *Service) authenticate(w http.ResponseWriter, r *http.Request, op string) (account.Account, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		writeJSONError(w, http.StatusUnauthorized, apperrors.CodeInvalidOrExpiredToken, "bearer token is required")
		return account.Account{}, false
	}

	accountID, err := s.sessions.Verify(token, session.ScopeAuth)
	if err != nil {
		s.logger.Printf("%s failed: code=%s err=%v", op, apperrors.GetCode(err), err)
		writeJSONError(w, http.StatusUnauthorized, apperrors.CodeInvalidOrExpiredToken, "token is invalid or expired")
		return account.Account{}, false
	}

	resolved, err := s.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		code := apperrors.GetCode(err)
		s.logger.Printf("%s failed: code=%s err=%v", op, code, err)
		if code == apperrors.CodeNotFound {
			writeJSONError(w, http.StatusNotFound, apperrors.CodeNotFound, "account not found")
		} else {
			writeJSONError(w, http.StatusInternalServerError, apperrors.CodeUnknown, "internal error")
		}
		return account.Account{}, false
	}
	return resolved, true
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

func (s *Service) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	found, ok := s.authenticate(w, r, "update profile")
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, "update profile", err)
		return
	}
	if req.DisplayName == nil && req.PhotoURL == nil {
		s.respondError(w, "update profile", apperrors.New(apperrors.CodeInvalidInput, "no profile fields to update"))
		return
	}

	if req.DisplayName != nil {
		found.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.PhotoURL != nil {
		found.PhotoURL = strings.TrimSpace(*req.PhotoURL)
	}
	found.UpdatedAt = s.clock().UTC()

	if err := s.accounts.UpdateAccount(r.Context(), found); err != nil {
		s.respondError(w, "update profile", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]accountPayload{"account": accountToPayload(found)})
}

func (s *Service) handleUsernameAvailable(w http.ResponseWriter, r *http.Request) {
	username := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("username")))
	if err := account.ValidateUsername(username); err != nil {
		s.respondError(w, "username available", err)
		return
	}

	available, err := s.accounts.UsernameAvailable(r.Context(), username)
	if err != nil {
		s.respondError(w, "username available", apperrors.Wrap(apperrors.CodeUnknown, "check username", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}
