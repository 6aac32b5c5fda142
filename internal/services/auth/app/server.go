package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/meridian-exchange/meridian/internal/services/auth/api/httpapi"
	"github.com/meridian-exchange/meridian/internal/services/auth/notify"
	"github.com/meridian-exchange/meridian/internal/services/auth/passkey"
	"github.com/meridian-exchange/meridian/internal/services/auth/session"
	authsqlite "github.com/meridian-exchange/meridian/internal/services/auth/storage/sqlite"
)

const cleanupInterval = 5 * time.Minute

// Server hosts the auth HTTP service.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *authsqlite.Store
	logger     *log.Logger
}

// New creates a configured auth server listening on the provided address.
func New(httpAddr string) (*Server, error) {
	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}

	store, err := openAuthStore(dbPathFromEnv())
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	logger := log.Default()

	sessionCfg := session.LoadConfigFromEnv()
	issuer, err := session.NewIssuer([]byte(sessionSecret(sessionCfg, logger)), sessionCfg.Issuer, nil)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("build session issuer: %w", err)
	}

	passkeyCfg := passkey.LoadConfigFromEnv()
	webAuthn, err := passkey.NewWebAuthn(passkeyCfg)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("build webauthn: %w", err)
	}

	notifyCfg := notify.LoadConfigFromEnv()

	svc := httpapi.NewService(httpapi.Options{
		Accounts:           store,
		Codes:              store,
		Passkeys:           store,
		Sessions:           issuer,
		SessionCfg:         sessionCfg,
		Email:              notify.EmailSenderFromConfig(notifyCfg, logger),
		SMS:                notify.SMSSenderFromConfig(notifyCfg, logger),
		WebAuthn:           webAuthn,
		PasskeyConfig:      passkeyCfg,
		EmailVerifyBaseURL: strings.TrimSpace(os.Getenv("MERIDIAN_EMAIL_VERIFY_BASE_URL")),
		Logger:             logger,
	})

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)

	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: otelhttp.NewHandler(mux, "auth")},
		store:      store,
		logger:     logger,
	}, nil
}

// Addr returns the listener address for the auth server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves an auth server until the context ends.
func Run(ctx context.Context, httpAddr string) error {
	srv, err := New(httpAddr)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve starts the auth server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore()

	s.startCleanup(serverCtx, cleanupInterval)

	s.logger.Printf("auth server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = s.httpServer.Shutdown(shutdownCtx)
		<-serveErr
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// startCleanup sweeps expired verification codes and passkey ceremony
// sessions on an interval. This keeps short-lived records from accumulating
// without requiring a separate maintenance process.
func (s *Server) startCleanup(ctx context.Context, interval time.Duration) {
	if s == nil || s.store == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				if err := s.store.DeleteExpiredVerificationCodes(ctx, now); err != nil {
					s.logger.Printf("cleanup verification codes: %v", err)
				}
				if err := s.store.DeleteExpiredPasskeySessions(ctx, now); err != nil {
					s.logger.Printf("cleanup passkey sessions: %v", err)
				}
			}
		}
	}()
}

func dbPathFromEnv() string {
	path := strings.TrimSpace(os.Getenv("MERIDIAN_AUTH_DB_PATH"))
	if path == "" {
		path = filepath.Join("data", "auth.db")
	}
	return path
}

func openAuthStore(path string) (*authsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := authsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open auth sqlite store: %w", err)
	}
	return store, nil
}

// sessionSecret returns the configured signing secret, or generates an
// ephemeral one. Ephemeral secrets invalidate every session on restart, so
// the fallback is for local development only.
func sessionSecret(cfg session.Config, logger *log.Logger) string {
	if strings.TrimSpace(cfg.Secret) != "" {
		return cfg.Secret
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("generate session secret: %v", err))
	}
	logger.Printf("MERIDIAN_SESSION_SECRET not set; using ephemeral secret, sessions will not survive restarts")
	return hex.EncodeToString(buf)
}

func (s *Server) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Printf("close auth store: %v", err)
	}
}
