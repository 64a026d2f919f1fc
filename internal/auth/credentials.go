package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/copilotx/copilotx/internal/config"
)

// Credentials is the stored credential pair. The GitHub token is the
// long-lived OAuth grant; the Copilot token is the short-lived bearer minted
// from it. ExpiresAt is unix seconds, 0 meaning unknown or expired.
type Credentials struct {
	GitHubToken  string  `json:"github_token"`
	CopilotToken string  `json:"copilot_token"`
	ExpiresAt    float64 `json:"expires_at"`
	APIBaseURL   string  `json:"api_base_url"`
}

// BearerValid reports whether the Copilot token is usable for at least
// the refresh buffer past now.
func (c *Credentials) BearerValid(now time.Time) bool {
	if c == nil || c.CopilotToken == "" {
		return false
	}
	return c.ExpiresAt > float64(now.Add(config.TokenRefreshBuffer).Unix())
}

// ExpiresIn returns the remaining bearer lifetime in whole seconds, floored
// at zero.
func (c *Credentials) ExpiresIn(now time.Time) int {
	if c == nil || c.ExpiresAt == 0 {
		return 0
	}
	remaining := int(c.ExpiresAt - float64(now.Unix()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Store manages credential persistence on disk.
type Store struct {
	path string
}

// NewStore creates a store for the default auth file location.
func NewStore() *Store {
	return &Store{path: config.AuthFilePath()}
}

// NewStoreAt creates a store for an explicit path, mainly for tests.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// Load reads credentials from disk. A missing file returns (nil, nil);
// corrupt contents are treated the same so a bad file forces re-login
// rather than a crash loop.
func (s *Store) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, nil
	}
	if creds.GitHubToken == "" {
		return nil, nil
	}
	return &creds, nil
}

// Save writes credentials atomically with owner-only permissions: the
// record goes to a temp file in the same directory which is then renamed
// over the target.
func (s *Store) Save(creds *Credentials) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".auth-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp credentials file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp credentials file: %w", err)
	}

	// chmod 600, owner read/write only (skip on Windows)
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpName, 0600); err != nil {
			return fmt.Errorf("failed to restrict credentials permissions: %w", err)
		}
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}
	return nil
}

// Delete removes stored credentials. Returns true if a file existed.
func (s *Store) Delete() (bool, error) {
	if err := os.Remove(s.path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}
