package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/copilotx/copilotx/internal/config"
)

// Manager owns the two-layer token lifecycle: the long-lived GitHub grant is
// exchanged for a short-lived Copilot bearer, refreshed transparently before
// expiry. Every proxied request crosses EnsureBearer, so refreshes are
// single-flight: concurrent callers observing a stale bearer share one mint.
type Manager struct {
	store      *Store
	httpClient *http.Client
	tokenURL   string
	now        func() time.Time

	mu       sync.Mutex
	creds    *Credentials
	loaded   bool
	inflight *refreshCall // non-nil while a refresh is running
}

// refreshCall latches one refresh outcome for all concurrent callers.
type refreshCall struct {
	done chan struct{}
	err  error
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStore overrides the credential store.
func WithStore(store *Store) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithHTTPClient overrides the HTTP client used for token minting.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) { m.httpClient = client }
}

// WithTokenURL overrides the bearer-minting endpoint, mainly for tests.
func WithTokenURL(url string) ManagerOption {
	return func(m *Manager) { m.tokenURL = url }
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a credential manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      NewStore(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokenURL:   config.GitHubCopilotTokenURL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads credentials from disk. Returns true when a grant exists.
func (m *Manager) Load() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

func (m *Manager) loadLocked() (bool, error) {
	creds, err := m.store.Load()
	if err != nil {
		return false, err
	}
	m.creds = creds
	m.loaded = true
	return creds != nil, nil
}

// Reload discards the in-memory record and re-reads the store. Used by the
// credential watcher when the auth file changes externally.
func (m *Manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.loadLocked()
	return err
}

// SaveGrant stores a fresh GitHub OAuth token, resetting the bearer.
func (m *Manager) SaveGrant(githubToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	creds := &Credentials{GitHubToken: githubToken}
	if err := m.store.Save(creds); err != nil {
		return err
	}
	m.creds = creds
	m.loaded = true
	return nil
}

// Logout clears stored credentials. Returns true if a file existed.
func (m *Manager) Logout() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creds = nil
	m.loaded = true
	return m.store.Delete()
}

// IsAuthenticated reports whether a grant is available.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLoadedLocked()
	return m.creds != nil && m.creds.GitHubToken != ""
}

// Status describes the credential state for CLI and health output.
type Status struct {
	Authenticated bool `json:"authenticated"`
	TokenValid    bool `json:"token_valid"`
	ExpiresIn     int  `json:"token_expires_in"`
}

// Status snapshots the credential state. The grant token itself is never
// part of the result.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLoadedLocked()

	if m.creds == nil || m.creds.GitHubToken == "" {
		return Status{}
	}
	now := m.now()
	return Status{
		Authenticated: true,
		TokenValid:    m.creds.BearerValid(now),
		ExpiresIn:     m.creds.ExpiresIn(now),
	}
}

// EnsureBearer returns a Copilot bearer valid for at least the refresh
// buffer, plus the API base URL learned from the mint response (empty when
// unknown). At most one refresh runs at a time; other callers block on its
// outcome.
func (m *Manager) EnsureBearer(ctx context.Context) (string, string, error) {
	for {
		m.mu.Lock()
		m.ensureLoadedLocked()

		if m.creds == nil || m.creds.GitHubToken == "" {
			m.mu.Unlock()
			return "", "", ErrNotAuthenticated
		}

		if m.creds.BearerValid(m.now()) {
			bearer, base := m.creds.CopilotToken, m.creds.APIBaseURL
			m.mu.Unlock()
			return bearer, base, nil
		}

		if m.inflight == nil {
			// This caller performs the refresh.
			call := &refreshCall{done: make(chan struct{})}
			m.inflight = call
			grant := m.creds.GitHubToken
			m.mu.Unlock()

			err := m.refresh(ctx, grant)

			m.mu.Lock()
			m.inflight = nil
			call.err = err
			close(call.done)
			if err != nil {
				m.mu.Unlock()
				return "", "", err
			}
			bearer, base := m.creds.CopilotToken, m.creds.APIBaseURL
			m.mu.Unlock()
			return bearer, base, nil
		}

		// Another caller is refreshing; block on the shared outcome.
		call := m.inflight
		m.mu.Unlock()

		select {
		case <-call.done:
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
		if call.err != nil {
			return "", "", call.err
		}
	}
}

// ensureLoadedLocked lazily loads credentials once. Load errors degrade to
// an unauthenticated state; the caller surfaces ErrNotAuthenticated.
func (m *Manager) ensureLoadedLocked() {
	if m.loaded {
		return
	}
	if _, err := m.loadLocked(); err != nil {
		logrus.WithError(err).Warn("Failed to load credentials")
		m.creds = nil
		m.loaded = true
	}
}

// tokenResponse is the Copilot token mint payload.
type tokenResponse struct {
	Token     string  `json:"token"`
	ExpiresAt float64 `json:"expires_at"`
	Endpoints struct {
		API string `json:"api"`
	} `json:"endpoints"`
}

// refresh exchanges the grant for a fresh bearer and persists the result.
// Runs outside the record lock; exactly one refresh is in flight when called.
func (m *Manager) refresh(ctx context.Context, grant string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.tokenURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Authorization", "token "+grant)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	for key, value := range config.CopilotHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrGrantRevoked
	case resp.StatusCode == http.StatusForbidden:
		return ErrSubscriptionMissing
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return NewUpstreamError(resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.Token == "" {
		return fmt.Errorf("token response missing token field")
	}

	m.mu.Lock()
	if m.creds == nil {
		m.creds = &Credentials{GitHubToken: grant}
	}
	m.creds.CopilotToken = tr.Token
	m.creds.ExpiresAt = tr.ExpiresAt
	if tr.Endpoints.API != "" {
		m.creds.APIBaseURL = tr.Endpoints.API
	}
	snapshot := *m.creds
	m.mu.Unlock()

	logrus.WithField("expires_in", snapshot.ExpiresIn(m.now())).Debug("Copilot token refreshed")

	// Persistence failures are non-fatal: the in-memory record keeps
	// serving this session.
	if err := m.store.Save(&snapshot); err != nil {
		logrus.WithError(err).Warn("Failed to persist refreshed credentials")
	}
	return nil
}
