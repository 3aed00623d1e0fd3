package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultSMSAPIEndpoint is the SMSAPI send endpoint.
const DefaultSMSAPIEndpoint = "https://api.smsapi.pl/sms.do"

// SMSAPIConfig configures the SMSAPI REST sender.
type SMSAPIConfig struct {
	Token    string
	From     string
	Endpoint string
	Client   *http.Client
}

// SMSAPISender posts SMS intents to the SMSAPI REST endpoint with a bearer token.
type SMSAPISender struct {
	token    string
	from     string
	endpoint string
	client   *http.Client
}

// NewSMSAPISender constructs an SMSAPISender.
func NewSMSAPISender(cfg SMSAPIConfig) *SMSAPISender {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultSMSAPIEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SMSAPISender{
		token:    strings.TrimSpace(cfg.Token),
		from:     strings.TrimSpace(cfg.From),
		endpoint: cfg.Endpoint,
		client:   cfg.Client,
	}
}

// Send implements Sender. SMS carries only the message text.
func (s *SMSAPISender) Send(ctx context.Context, intent Intent) error {
	if s.token == "" {
		return fmt.Errorf("smsapi: access token is not configured")
	}

	form := url.Values{}
	form.Set("to", intent.To)
	form.Set("message", intent.Message)
	if s.from != "" {
		form.Set("from", s.from)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("smsapi: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("smsapi: send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("smsapi: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
