package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/copilotx/copilotx/internal/config"
)

// DeviceCode is GitHub's device-flow initiation payload.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// DeviceFlow drives the GitHub OAuth device flow: request a user code, then
// poll the token endpoint until the user authorizes in the browser.
type DeviceFlow struct {
	httpClient     *http.Client
	deviceCodeURL  string
	accessTokenURL string
	clientID       string
	scope          string
	pollInterval   time.Duration
	timeout        time.Duration
}

// DeviceFlowOption configures a DeviceFlow.
type DeviceFlowOption func(*DeviceFlow)

// WithDeviceEndpoints overrides the GitHub endpoints, mainly for tests.
func WithDeviceEndpoints(deviceCodeURL, accessTokenURL string) DeviceFlowOption {
	return func(f *DeviceFlow) {
		f.deviceCodeURL = deviceCodeURL
		f.accessTokenURL = accessTokenURL
	}
}

// WithPollInterval overrides the initial poll spacing.
func WithPollInterval(interval time.Duration) DeviceFlowOption {
	return func(f *DeviceFlow) { f.pollInterval = interval }
}

// WithFlowTimeout overrides the overall authorization deadline.
func WithFlowTimeout(timeout time.Duration) DeviceFlowOption {
	return func(f *DeviceFlow) { f.timeout = timeout }
}

// WithFlowHTTPClient overrides the HTTP client.
func WithFlowHTTPClient(client *http.Client) DeviceFlowOption {
	return func(f *DeviceFlow) { f.httpClient = client }
}

// NewDeviceFlow creates a device flow with the Copilot client id.
func NewDeviceFlow(opts ...DeviceFlowOption) *DeviceFlow {
	f := &DeviceFlow{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		deviceCodeURL:  config.GitHubDeviceCodeURL,
		accessTokenURL: config.GitHubAccessTokenURL,
		clientID:       config.GitHubClientID,
		scope:          config.GitHubScope,
		pollInterval:   config.DeviceCodePollInterval,
		timeout:        config.DeviceCodeTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RequestCode asks GitHub for a device code and the matching user code.
func (f *DeviceFlow) RequestCode(ctx context.Context) (*DeviceCode, error) {
	body := map[string]string{
		"client_id": f.clientID,
		"scope":     f.scope,
	}

	data, err := f.postJSON(ctx, f.deviceCodeURL, body)
	if err != nil {
		return nil, err
	}

	var dc DeviceCode
	if err := json.Unmarshal(data, &dc); err != nil {
		return nil, fmt.Errorf("failed to parse device code response: %w", err)
	}
	if dc.DeviceCode == "" || dc.UserCode == "" {
		return nil, fmt.Errorf("device code response missing required fields")
	}
	if dc.Interval <= 0 {
		dc.Interval = int(f.pollInterval / time.Second)
	}
	return &dc, nil
}

// accessTokenResponse is GitHub's poll payload: either a token or an error
// code driving the loop.
type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}

// PollToken polls GitHub until the user authorizes, the code expires, or
// the deadline passes. Returns the GitHub OAuth access token.
func (f *DeviceFlow) PollToken(ctx context.Context, dc *DeviceCode) (string, error) {
	interval := time.Duration(dc.Interval) * time.Second
	if interval <= 0 {
		interval = f.pollInterval
	}

	deadline := time.Now().Add(f.timeout)
	body := map[string]string{
		"client_id":   f.clientID,
		"device_code": dc.DeviceCode,
		"grant_type":  "urn:ietf:params:oauth:grant-type:device_code",
	}

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}

		data, err := f.postJSON(ctx, f.accessTokenURL, body)
		if err != nil {
			return "", err
		}

		var tr accessTokenResponse
		if err := json.Unmarshal(data, &tr); err != nil {
			return "", fmt.Errorf("failed to parse access token response: %w", err)
		}

		if tr.AccessToken != "" {
			return tr.AccessToken, nil
		}

		switch tr.Error {
		case "authorization_pending":
			continue
		case "slow_down":
			// Back off as requested
			interval += 5 * time.Second
			logrus.WithField("interval", interval).Debug("GitHub asked to slow down polling")
			continue
		case "expired_token":
			return "", ErrDeviceCodeExpired
		case "access_denied":
			return "", ErrAccessDenied
		default:
			return "", fmt.Errorf("unexpected device flow error: %s", tr.Error)
		}
	}

	return "", fmt.Errorf("timed out waiting for authorization (%s)", f.timeout)
}

// postJSON posts a JSON body and returns the raw response body.
func (f *DeviceFlow) postJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device flow request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewUpstreamError(resp.StatusCode, body)
	}
	return body, nil
}
