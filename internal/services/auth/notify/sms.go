package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/meridian-exchange/meridian/internal/platform/errors"
)

// TwilioSMSSender sends SMS through the Twilio Messages API.
type TwilioSMSSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

// NewTwilioSMSSender builds a Twilio-backed sender.
func NewTwilioSMSSender(accountSID, authToken, from, baseURL string) *TwilioSMSSender {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &TwilioSMSSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// SendSMS posts the message to the provider. Provider failures surface as
// delivery-failure errors so the boundary can map them uniformly.
func (s *TwilioSMSSender) SendSMS(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("From", s.from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDeliveryFailure, "send sms", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.WithMetadata(apperrors.CodeDeliveryFailure, "send sms",
			map[string]string{"Status": resp.Status, "Body": string(detail)})
	}
	return nil
}
