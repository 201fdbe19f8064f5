package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ticketwatch/internal/config"
)

const twilioBaseURL = "https://api.twilio.com"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// VoiceCall rings a phone through the Twilio Calls API. The message text is
// not spoken; the call plays the configured TwiML document.
type VoiceCall struct {
	cfg     config.TwilioConfig
	client  HTTPClient
	baseURL string
}

// NewVoiceCall creates a VoiceCall transport.
func NewVoiceCall(cfg config.TwilioConfig, client HTTPClient) *VoiceCall {
	return &VoiceCall{cfg: cfg, client: client, baseURL: twilioBaseURL}
}

// Name implements Transport.
func (v *VoiceCall) Name() string { return "voice" }

// Send implements Transport.
func (v *VoiceCall) Send(ctx context.Context, _ string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", v.baseURL, url.PathEscape(v.cfg.AccountSID))
	form := url.Values{
		"To":   {v.cfg.To},
		"From": {v.cfg.From},
		"Url":  {v.cfg.TwimlURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(v.cfg.AccountSID, v.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("create call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("create call: status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("create call: unexpected status %d", resp.StatusCode)
	}
	return nil
}
