package notify

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/meridian-exchange/meridian/internal/platform/errors"
)

func TestResendEmailSenderPostsMessage(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody resendSendRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewResendEmailSender("test-key", "no-reply@meridian.exchange", server.URL)
	err := sender.SendEmail(context.Background(), "alice@example.com", "Verify your email", "code 123456")
	if err != nil {
		t.Fatalf("send email: %v", err)
	}

	if gotPath != "/emails" {
		t.Fatalf("expected /emails path, got %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if len(gotBody.To) != 1 || gotBody.To[0] != "alice@example.com" {
		t.Fatalf("unexpected recipients %v", gotBody.To)
	}
	if gotBody.Subject != "Verify your email" {
		t.Fatalf("unexpected subject %q", gotBody.Subject)
	}
}

func TestResendEmailSenderMapsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	sender := NewResendEmailSender("bad-key", "no-reply@meridian.exchange", server.URL)
	err := sender.SendEmail(context.Background(), "alice@example.com", "subject", "body")
	if apperrors.GetCode(err) != apperrors.CodeDeliveryFailure {
		t.Fatalf("expected delivery-failure code, got %v", err)
	}
}

func TestTwilioSMSSenderPostsForm(t *testing.T) {
	var gotPath string
	var gotForm string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		gotForm = string(raw)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sender := NewTwilioSMSSender("AC123", "token", "+15550001111", server.URL)
	err := sender.SendSMS(context.Background(), "+15551234567", "code 123456")
	if err != nil {
		t.Fatalf("send sms: %v", err)
	}

	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotForm, "To=%2B15551234567") {
		t.Fatalf("expected recipient in form, got %q", gotForm)
	}
	if !strings.Contains(gotForm, "Body=code+123456") {
		t.Fatalf("expected body in form, got %q", gotForm)
	}
}

func TestTwilioSMSSenderMapsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"unverified number"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewTwilioSMSSender("AC123", "token", "+15550001111", server.URL)
	err := sender.SendSMS(context.Background(), "+15551234567", "body")
	if apperrors.GetCode(err) != apperrors.CodeDeliveryFailure {
		t.Fatalf("expected delivery-failure code, got %v", err)
	}
}

func TestSendersFromConfigFallBackToLog(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	cfg := Config{}

	if _, ok := EmailSenderFromConfig(cfg, logger).(LogEmailSender); !ok {
		t.Fatal("expected log email sender without api key")
	}
	if _, ok := SMSSenderFromConfig(cfg, logger).(LogSMSSender); !ok {
		t.Fatal("expected log sms sender without credentials")
	}

	cfg = Config{ResendAPIKey: "key", TwilioAccountSID: "AC1", TwilioAuthToken: "tok"}
	if _, ok := EmailSenderFromConfig(cfg, logger).(*ResendEmailSender); !ok {
		t.Fatal("expected resend sender with api key")
	}
	if _, ok := SMSSenderFromConfig(cfg, logger).(*TwilioSMSSender); !ok {
		t.Fatal("expected twilio sender with credentials")
	}
}
