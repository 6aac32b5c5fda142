// Package httpapi exposes the auth service over HTTP with JSON bodies.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	apperrors "github.com/meridian-exchange/meridian/internal/platform/errors"
	"github.com/meridian-exchange/meridian/internal/platform/id"
	"github.com/meridian-exchange/meridian/internal/services/auth/account"
	"github.com/meridian-exchange/meridian/internal/services/auth/notify"
	"github.com/meridian-exchange/meridian/internal/services/auth/passkey"
	"github.com/meridian-exchange/meridian/internal/services/auth/session"
	"github.com/meridian-exchange/meridian/internal/services/auth/storage"
)

// genericCredentialMessage is the single message returned for every
// identifier or credential failure so callers cannot probe which
// identifiers exist.
const genericCredentialMessage = "invalid credentials"

// passkeyProvider is the subset of the WebAuthn relying party the handlers
// use, narrowed so tests can substitute a fake.
type passkeyProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type passkeyParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultPasskeyParser struct{}

func (defaultPasskeyParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultPasskeyParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// Service wires the auth domain behind HTTP handlers.
type Service struct {
	accounts storage.AccountStore
	codes    storage.VerificationCodeStore
	passkeys storage.PasskeyStore

	sessions   *session.Issuer
	sessionCfg session.Config

	email notify.EmailSender
	sms   notify.SMSSender

	webAuthn      passkeyProvider
	parser        passkeyParser
	passkeyConfig passkey.Config

	emailVerifyBaseURL string
	passwordCost       int

	logger      *log.Logger
	clock       func() time.Time
	idGenerator func() (string, error)
}

// Options configures a Service. Zero-value optional fields pick defaults.
type Options struct {
	Accounts storage.AccountStore
	Codes    storage.VerificationCodeStore
	Passkeys storage.PasskeyStore

	Sessions   *session.Issuer
	SessionCfg session.Config

	Email notify.EmailSender
	SMS   notify.SMSSender

	WebAuthn      passkeyProvider
	Parser        passkeyParser
	PasskeyConfig passkey.Config

	EmailVerifyBaseURL string
	PasswordCost       int

	Logger      *log.Logger
	Clock       func() time.Time
	IDGenerator func() (string, error)
}

// NewService builds the HTTP auth service.
func NewService(opts Options) *Service {
	svc := &Service{
		accounts:           opts.Accounts,
		codes:              opts.Codes,
		passkeys:           opts.Passkeys,
		sessions:           opts.Sessions,
		sessionCfg:         opts.SessionCfg,
		email:              opts.Email,
		sms:                opts.SMS,
		webAuthn:           opts.WebAuthn,
		parser:             opts.Parser,
		passkeyConfig:      opts.PasskeyConfig,
		emailVerifyBaseURL: opts.EmailVerifyBaseURL,
		passwordCost:       opts.PasswordCost,
		logger:             opts.Logger,
		clock:              opts.Clock,
		idGenerator:        opts.IDGenerator,
	}
	if svc.parser == nil {
		svc.parser = defaultPasskeyParser{}
	}
	if svc.passwordCost == 0 {
		svc.passwordCost = 12
	}
	if svc.logger == nil {
		svc.logger = log.Default()
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.idGenerator == nil {
		svc.idGenerator = id.NewID
	}
	if svc.emailVerifyBaseURL == "" {
		svc.emailVerifyBaseURL = "http://localhost:8086/auth/verify-email"
	}
	return svc
}

// RegisterRoutes registers the auth endpoints on the provided mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/send-verification", s.handleSendVerification)
	mux.HandleFunc("POST /auth/verify-email", s.handleVerifyEmail)
	mux.HandleFunc("POST /auth/verify-sms", s.handleVerifySMS)
	mux.HandleFunc("POST /auth/wallet", s.handleWalletAuthenticate)
	mux.HandleFunc("GET /auth/verify-session", s.handleVerifySession)
	mux.HandleFunc("POST /auth/passkey", s.handlePasskey)
	mux.HandleFunc("PATCH /auth/profile", s.handleUpdateProfile)
	mux.HandleFunc("GET /auth/username-available", s.handleUsernameAvailable)
	mux.HandleFunc("GET /auth/passkeys", s.handleListPasskeys)
	mux.HandleFunc("DELETE /auth/passkeys/{id}", s.handleDeletePasskey)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// accountPayload is the external account shape. The password hash never
// leaves the service.
type accountPayload struct {
	ID             string `json:"id"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Username       string `json:"username,omitempty"`
	EmailVerified  bool   `json:"emailVerified"`
	PhoneVerified  bool   `json:"phoneVerified"`
	WalletAddress  string `json:"walletAddress,omitempty"`
	WalletType     string `json:"walletType,omitempty"`
	PasskeyEnabled bool   `json:"passkeyEnabled"`
	DisplayName    string `json:"displayName,omitempty"`
	PhotoURL       string `json:"photoURL,omitempty"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

type loginMethodPayload struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
	Verified   bool   `json:"verified"`
}

type walletInfoPayload struct {
	Address string `json:"address"`
	Type    string `json:"type"`
}

func accountToPayload(a account.Account) accountPayload {
	return accountPayload{
		ID:             a.ID,
		Email:          a.Email,
		Phone:          a.Phone,
		Username:       a.Username,
		EmailVerified:  a.EmailVerified,
		PhoneVerified:  a.PhoneVerified,
		WalletAddress:  a.WalletAddress,
		WalletType:     string(a.WalletType),
		PasskeyEnabled: a.PasskeyEnabled,
		DisplayName:    a.DisplayName,
		PhotoURL:       a.PhotoURL,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func loginMethods(a account.Account) []loginMethodPayload {
	var methods []loginMethodPayload
	if a.Email != "" {
		methods = append(methods, loginMethodPayload{Type: "email", Identifier: a.Email, Verified: a.EmailVerified})
	}
	if a.Phone != "" {
		methods = append(methods, loginMethodPayload{Type: "phone", Identifier: a.Phone, Verified: a.PhoneVerified})
	}
	if a.Username != "" {
		methods = append(methods, loginMethodPayload{Type: "username", Identifier: a.Username, Verified: true})
	}
	return methods
}

func walletInfo(a account.Account) *walletInfoPayload {
	if a.WalletAddress == "" {
		return nil
	}
	return &walletInfoPayload{Address: a.WalletAddress, Type: string(a.WalletType)}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, code apperrors.Code, message string) {
	writeJSON(w, status, errorResponse{Error: string(code), Message: message})
}

// respondError logs the specific failure and writes the boundary response.
// Credential and lookup failures collapse to one generic 401 so responses
// cannot be used to enumerate identifiers.
func (s *Service) respondError(w http.ResponseWriter, op string, err error) {
	code := apperrors.GetCode(err)
	s.logger.Printf("%s failed: code=%s err=%v", op, code, err)

	switch code {
	case apperrors.CodeNotFound, apperrors.CodeInvalidCredentials:
		writeJSONError(w, http.StatusUnauthorized, apperrors.CodeInvalidCredentials, genericCredentialMessage)
	case apperrors.CodeUnknown:
		writeJSONError(w, http.StatusInternalServerError, code, "internal error")
	default:
		writeJSONError(w, code.HTTPStatus(), code, err.Error())
	}
}

// decodeJSON reads a bounded JSON body into target.
func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := decoder.Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "request body is not valid JSON", err)
	}
	return nil
}
