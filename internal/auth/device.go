// Package auth implements the OAuth device authorization flow used to link
// sidekick with a hosted agent provider, and stores the resulting
// credentials on disk.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/sidekick/internal/logger"
)

const (
	deviceMaxBodyBytes = 1 << 20
	defaultPollSeconds = 5
)

// DeviceCode is the provider's response to a device authorization request.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// Token is a granted access token.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Client talks to a provider's device authorization endpoints.
type Client struct {
	Endpoint string // base URL, e.g. https://auth.example.com
	ClientID string
	// HTTPClient overrides the default client, for tests.
	HTTPClient *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// RequestDeviceCode starts the flow and returns the code the user must
// enter at the verification URI.
func (c *Client) RequestDeviceCode(ctx context.Context) (*DeviceCode, error) {
	form := url.Values{"client_id": {c.ClientID}}
	body, err := c.post(ctx, "/device/code", form)
	if err != nil {
		return nil, fmt.Errorf("failed to request device code: %w", err)
	}

	var code DeviceCode
	if err := json.Unmarshal(body, &code); err != nil {
		return nil, errors.New("invalid device code response")
	}
	if code.DeviceCode == "" || code.UserCode == "" {
		return nil, errors.New("incomplete device code response")
	}
	if code.Interval <= 0 {
		code.Interval = defaultPollSeconds
	}
	return &code, nil
}

type tokenResponse struct {
	Token
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// PollToken polls the token endpoint until the user approves the device,
// the code expires, or ctx is cancelled. It honors the provider's pacing:
// authorization_pending keeps the current interval, slow_down stretches it.
func (c *Client) PollToken(ctx context.Context, code *DeviceCode) (*Token, error) {
	interval := time.Duration(code.Interval) * time.Second
	deadline := time.Now().Add(time.Duration(code.ExpiresIn) * time.Second)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		if code.ExpiresIn > 0 && time.Now().After(deadline) {
			return nil, errors.New("device code expired before approval")
		}

		form := url.Values{
			"client_id":   {c.ClientID},
			"device_code": {code.DeviceCode},
			"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		}
		body, err := c.post(ctx, "/token", form)
		if err != nil {
			return nil, fmt.Errorf("token poll failed: %w", err)
		}

		var resp tokenResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, errors.New("invalid token response")
		}

		switch resp.Error {
		case "":
			if resp.AccessToken == "" {
				return nil, errors.New("token response missing access_token")
			}
			logger.Info("auth: device authorized")
			return &resp.Token, nil
		case "authorization_pending":
			continue
		case "slow_down":
			interval += 5 * time.Second
			logger.Debug("auth: provider asked to slow down, interval now %s", interval)
			continue
		case "expired_token":
			return nil, errors.New("device code expired before approval")
		case "access_denied":
			return nil, errors.New("authorization was denied")
		default:
			if resp.ErrorDescription != "" {
				return nil, fmt.Errorf("%s: %s", resp.Error, resp.ErrorDescription)
			}
			return nil, errors.New(resp.Error)
		}
	}
}

// post sends a form-encoded POST and returns the body for any JSON
// response. Device flow endpoints report protocol errors with non-2xx
// statuses and a JSON body, so status alone does not fail the call.
func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	endpoint := strings.TrimSuffix(c.Endpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, deviceMaxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("auth server error (status %d)", resp.StatusCode)
	}
	return body, nil
}
