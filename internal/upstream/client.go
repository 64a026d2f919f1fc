package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/copilotx/copilotx/internal/auth"
	"github.com/copilotx/copilotx/internal/config"
)

// CredentialSource supplies a live upstream bearer and API base URL. Both are
// requested afresh on every call so token refreshes are picked up
// immediately. An empty base URL means the compiled-in fallback applies.
type CredentialSource interface {
	EnsureBearer(ctx context.Context) (bearer string, apiBase string, err error)
}

// HookFunc mutates an outgoing request before it is sent.
type HookFunc func(req *http.Request) error

// requestModifier wraps an http.RoundTripper to apply hooks to each request.
type requestModifier struct {
	http.RoundTripper
	hooks []HookFunc
}

func (t *requestModifier) RoundTrip(req *http.Request) (*http.Response, error) {
	for _, hook := range t.hooks {
		if err := hook(req); err != nil {
			return nil, err
		}
	}
	return t.RoundTripper.RoundTrip(req)
}

// impersonationHook stamps the editor impersonation headers the Copilot API
// expects. The header table lives in config so it is the single place to
// update when the upstream contract drifts.
func impersonationHook(req *http.Request) error {
	for k, v := range config.CopilotHeaders() {
		req.Header.Set(k, v)
	}
	return nil
}

// Client talks to the Copilot API over a single long-lived HTTP session.
// Non-streaming calls are bounded by a total deadline; streaming calls live
// as long as their context.
type Client struct {
	creds   CredentialSource
	http    *http.Client
	timeout time.Duration
	clock   func() time.Time

	mu        sync.Mutex
	models    []json.RawMessage
	modelsAt  time.Time
	modelsTTL time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is still
// wrapped so impersonation headers are applied.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds non-streaming upstream requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithModelsTTL overrides how long the model list is cached.
func WithModelsTTL(d time.Duration) Option {
	return func(c *Client) { c.modelsTTL = d }
}

// WithClock overrides the cache clock.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) { c.clock = clock }
}

// NewClient creates a Client that reads bearer tokens from creds.
func NewClient(creds CredentialSource, opts ...Option) *Client {
	c := &Client{
		creds:     creds,
		timeout:   config.RequestTimeout,
		modelsTTL: config.ModelsCacheTTL,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	transport := c.http.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	hc := *c.http
	hc.Transport = &requestModifier{
		RoundTripper: transport,
		hooks:        []HookFunc{impersonationHook},
	}
	c.http = &hc
	return c
}

// ListModels returns the upstream model list, filtered to entries enabled for
// the model picker. Entries are kept as raw JSON so unknown fields survive.
// The list is cached for the configured TTL; a fetch error drops the cache so
// the next call retries.
func (c *Client) ListModels(ctx context.Context) ([]json.RawMessage, error) {
	c.mu.Lock()
	if c.models != nil && c.clock().Sub(c.modelsAt) < c.modelsTTL {
		models := c.models
		c.mu.Unlock()
		return models, nil
	}
	c.mu.Unlock()

	body, err := c.doJSON(ctx, http.MethodGet, config.CopilotModelsPath, nil, nil)
	if err != nil {
		c.mu.Lock()
		c.models = nil
		c.mu.Unlock()
		return nil, err
	}

	list := gjson.GetBytes(body, "data")
	if !list.Exists() {
		list = gjson.GetBytes(body, "models")
	}
	var models []json.RawMessage
	for _, entry := range list.Array() {
		if picker := entry.Get("model_picker_enabled"); picker.Exists() && !picker.Bool() {
			continue
		}
		models = append(models, json.RawMessage(entry.Raw))
	}
	logrus.Debugf("Fetched %d models from Copilot API", len(models))

	c.mu.Lock()
	c.models = models
	c.modelsAt = c.clock()
	c.mu.Unlock()
	return models, nil
}

// ChatCompletions posts an OpenAI chat completions payload and returns the
// raw JSON response body.
func (c *Client) ChatCompletions(ctx context.Context, payload []byte) ([]byte, error) {
	return c.doJSON(ctx, http.MethodPost, config.CopilotChatCompletionsPath, payload, nil)
}

// ChatCompletionsStream posts a chat completions payload with the stream flag
// forced on and returns the raw SSE line stream.
func (c *Client) ChatCompletionsStream(ctx context.Context, payload []byte) (*LineStream, error) {
	payload, err := sjson.SetBytes(payload, "stream", true)
	if err != nil {
		return nil, fmt.Errorf("failed to set stream flag: %w", err)
	}
	return c.doStream(ctx, config.CopilotChatCompletionsPath, payload, nil)
}

// ResponseOptions carries per-request shaping for the Responses endpoint.
type ResponseOptions struct {
	// Vision marks requests whose input contains image parts.
	Vision bool
	// Initiator is "user" or "agent". Empty defaults to "user".
	Initiator string
}

func (o ResponseOptions) headers() map[string]string {
	initiator := o.Initiator
	if initiator == "" {
		initiator = "user"
	}
	h := map[string]string{"X-Initiator": initiator}
	if o.Vision {
		h["copilot-vision-request"] = "true"
	}
	return h
}

// Responses posts an OpenAI Responses payload and returns the raw JSON
// response body. The service_tier field is stripped, the Copilot API rejects
// it.
func (c *Client) Responses(ctx context.Context, payload []byte, opts ResponseOptions) ([]byte, error) {
	payload, err := sjson.DeleteBytes(payload, "service_tier")
	if err != nil {
		return nil, fmt.Errorf("failed to strip service_tier: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, config.CopilotResponsesPath, payload, opts.headers())
}

// ResponsesStream posts a Responses payload with the stream flag forced on
// and returns the raw SSE line stream.
func (c *Client) ResponsesStream(ctx context.Context, payload []byte, opts ResponseOptions) (*LineStream, error) {
	payload, err := sjson.DeleteBytes(payload, "service_tier")
	if err != nil {
		return nil, fmt.Errorf("failed to strip service_tier: %w", err)
	}
	payload, err = sjson.SetBytes(payload, "stream", true)
	if err != nil {
		return nil, fmt.Errorf("failed to set stream flag: %w", err)
	}
	return c.doStream(ctx, config.CopilotResponsesPath, payload, opts.headers())
}

// endpoint resolves the bearer and base URL for one request.
func (c *Client) endpoint(ctx context.Context) (bearer, base string, err error) {
	bearer, base, err = c.creds.EnsureBearer(ctx)
	if err != nil {
		return "", "", err
	}
	if base == "" {
		base = config.CopilotAPIBaseFallback
	}
	return bearer, strings.TrimRight(base, "/"), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload []byte, extra map[string]string) ([]byte, error) {
	bearer, base, err := c.endpoint(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setRequestHeaders(req, bearer, extra)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, auth.NewUpstreamError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func (c *Client) doStream(ctx context.Context, path string, payload []byte, extra map[string]string) (*LineStream, error) {
	bearer, base, err := c.endpoint(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setRequestHeaders(req, bearer, extra)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, auth.NewUpstreamError(resp.StatusCode, respBody)
	}
	return newLineStream(resp.Body), nil
}

func setRequestHeaders(req *http.Request, bearer string, extra map[string]string) {
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range extra {
		req.Header.Set(k, v)
	}
}
