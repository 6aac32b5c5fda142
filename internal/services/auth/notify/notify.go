// Package notify delivers verification codes and tokens to account contacts.
package notify

import (
	"context"
	"log"
)

// EmailSender delivers a verification message to an email address.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a verification message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogEmailSender writes outgoing email to the log instead of a provider.
// It is the fallback when no email API key is configured, keeping local
// development and CI off the network.
type LogEmailSender struct {
	Logger *log.Logger
}

func (s LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Printf("email to=%s subject=%q body=%q", to, subject, body)
	return nil
}

// LogSMSSender writes outgoing SMS to the log instead of a provider.
type LogSMSSender struct {
	Logger *log.Logger
}

func (s LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.Logger.Printf("sms to=%s body=%q", to, body)
	return nil
}
