package passkey

import (
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/meridian-exchange/meridian/internal/platform/config"
)

// SessionKind describes the WebAuthn ceremony a stored session belongs to.
type SessionKind string

const (
	SessionKindRegistration SessionKind = "registration"
	SessionKindLogin        SessionKind = "login"
)

// Config controls WebAuthn relying party settings.
type Config struct {
	RPDisplayName string        `env:"MERIDIAN_WEBAUTHN_RP_DISPLAY_NAME"`
	RPID          string        `env:"MERIDIAN_WEBAUTHN_RP_ID"           envDefault:"localhost"`
	RPOrigins     []string      `env:"MERIDIAN_WEBAUTHN_RP_ORIGINS"      envSeparator:","`
	SessionTTL    time.Duration `env:"MERIDIAN_WEBAUTHN_SESSION_TTL"     envDefault:"5m"`
}

// LoadConfigFromEnv returns passkey configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = config.ParseEnv(&cfg)
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = "Meridian"
	}
	if cfg.RPID == "" {
		cfg.RPID = "localhost"
	}
	if len(cfg.RPOrigins) == 0 {
		cfg.RPOrigins = []string{"http://localhost:8086"}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 5 * time.Minute
	}
	return cfg
}

// NewWebAuthn builds the relying-party provider from config.
func NewWebAuthn(cfg Config) (*webauthn.WebAuthn, error) {
	return webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
}
