package notify

import (
	"log"

	"github.com/meridian-exchange/meridian/internal/platform/config"
)

// Config selects delivery providers. Empty credentials fall back to
// log-based senders so the service runs without provider accounts.
type Config struct {
	ResendAPIKey     string `env:"MERIDIAN_RESEND_API_KEY"`
	EmailFrom        string `env:"MERIDIAN_EMAIL_FROM"        envDefault:"no-reply@meridian.exchange"`
	EmailBaseURL     string `env:"MERIDIAN_EMAIL_BASE_URL"`
	TwilioAccountSID string `env:"MERIDIAN_TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"MERIDIAN_TWILIO_AUTH_TOKEN"`
	SMSFrom          string `env:"MERIDIAN_SMS_FROM"`
	SMSBaseURL       string `env:"MERIDIAN_SMS_BASE_URL"`
}

// LoadConfigFromEnv loads delivery configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = config.ParseEnv(&cfg)
	if cfg.EmailFrom == "" {
		cfg.EmailFrom = "no-reply@meridian.exchange"
	}
	return cfg
}

// EmailSenderFromConfig returns the configured provider or a log fallback.
func EmailSenderFromConfig(cfg Config, logger *log.Logger) EmailSender {
	if cfg.ResendAPIKey == "" {
		return LogEmailSender{Logger: logger}
	}
	return NewResendEmailSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.EmailBaseURL)
}

// SMSSenderFromConfig returns the configured provider or a log fallback.
func SMSSenderFromConfig(cfg Config, logger *log.Logger) SMSSender {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		return LogSMSSender{Logger: logger}
	}
	return NewTwilioSMSSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.SMSFrom, cfg.SMSBaseURL)
}
