package session

import (
	"time"

	"github.com/meridian-exchange/meridian/internal/platform/config"
)

// Config controls token signing and lifetimes.
//
// These values are read at startup so operator-controlled defaults can be
// tuned without changing runtime code paths.
type Config struct {
	Secret         string        `env:"MERIDIAN_SESSION_SECRET"`
	Issuer         string        `env:"MERIDIAN_SESSION_ISSUER"           envDefault:"meridian-auth"`
	SessionTTL     time.Duration `env:"MERIDIAN_SESSION_TTL"              envDefault:"168h"`
	EmailVerifyTTL time.Duration `env:"MERIDIAN_EMAIL_VERIFY_TOKEN_TTL"   envDefault:"24h"`
}

// LoadConfigFromEnv loads session configuration and applies defensive defaults.
//
// Defaults are intentionally explicit because tokens are security-sensitive
// and should remain predictable in local and CI environments.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = config.ParseEnv(&cfg)
	if cfg.Issuer == "" {
		cfg.Issuer = "meridian-auth"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 168 * time.Hour
	}
	if cfg.EmailVerifyTTL == 0 {
		cfg.EmailVerifyTTL = 24 * time.Hour
	}
	return cfg
}
