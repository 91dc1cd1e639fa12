// Package twilio implements a minimal client for the Twilio Messages REST
// API, the outbound SMS gateway. The surface is deliberately small: one send
// operation whose outcome is either accepted (with the gateway-assigned
// message SID) or an error. Delivery receipts beyond the initial
// accept/reject response are not tracked.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the production Twilio API endpoint. Tests point the
// client at an httptest server instead.
const DefaultBaseURL = "https://api.twilio.com"

// Client talks to the Twilio Messages API for a single account.
type Client struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Client for the given account credentials with a
// conservative default HTTP timeout. Callers typically bound individual
// sends with a context deadline as well.
func NewClient(accountSID, authToken string) *Client {
	return &Client{
		AccountSID: accountSID,
		AuthToken:  authToken,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// messageResponse is the subset of Twilio's create-message response we use.
type messageResponse struct {
	SID string `json:"sid"`
}

// apiError is Twilio's error envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Send submits one outbound SMS and returns the gateway-assigned message SID.
// A non-2xx response or transport failure (including a context deadline) is
// returned as an error; the caller treats both identically.
func (c *Client) Send(ctx context.Context, to, from, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL(), c.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.AccountSID, c.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apierr apiError
		if jsonErr := json.Unmarshal(raw, &apierr); jsonErr == nil && apierr.Message != "" {
			return "", fmt.Errorf("twilio: %d (code %d): %s", resp.StatusCode, apierr.Code, apierr.Message)
		}
		return "", fmt.Errorf("twilio: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var msg messageResponse
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if msg.SID == "" {
		return "", fmt.Errorf("twilio: response missing message sid")
	}
	return msg.SID, nil
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
