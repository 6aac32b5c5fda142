package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/meridian-exchange/meridian/internal/platform/errors"
)

// ResendEmailSender sends mail through the Resend HTTP API.
type ResendEmailSender struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
}

// NewResendEmailSender builds a Resend-backed sender.
func NewResendEmailSender(apiKey, from, baseURL string) *ResendEmailSender {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	return &ResendEmailSender{
		apiKey:  apiKey,
		from:    from,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type resendSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// SendEmail posts the message to the provider. Provider failures surface as
// delivery-failure errors so the boundary can map them uniformly.
func (s *ResendEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(resendSendRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDeliveryFailure, "send email", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.WithMetadata(apperrors.CodeDeliveryFailure, "send email",
			map[string]string{"Status": resp.Status, "Body": string(detail)})
	}
	return nil
}
