package auth

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSaveLoadRoundtrip(t *testing.T) {
	store := NewStoreAt(filepath.Join(t.TempDir(), "auth.json"))

	creds := &Credentials{
		GitHubToken:  "gho_test_grant",
		CopilotToken: "bearer_value",
		ExpiresAt:    1700000000,
		APIBaseURL:   "https://api.example.com",
	}
	require.NoError(t, store.Save(creds))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, creds.GitHubToken, loaded.GitHubToken)
	assert.Equal(t, creds.CopilotToken, loaded.CopilotToken)
	assert.Equal(t, creds.ExpiresAt, loaded.ExpiresAt)
	assert.Equal(t, creds.APIBaseURL, loaded.APIBaseURL)
}

func TestStoreSaveOwnerOnlyPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on Windows")
	}
	store := NewStoreAt(filepath.Join(t.TempDir(), "auth.json"))
	require.NoError(t, store.Save(&Credentials{GitHubToken: "gho_x"}))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStoreAt(filepath.Join(t.TempDir(), "auth.json"))

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	creds, err := NewStoreAt(path).Load()
	require.NoError(t, err)
	assert.Nil(t, creds, "corrupt credentials should force re-login, not crash")
}

func TestStoreLoadMissingGrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"copilot_token":"x"}`), 0600))

	creds, err := NewStoreAt(path).Load()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestStoreDelete(t *testing.T) {
	store := NewStoreAt(filepath.Join(t.TempDir(), "auth.json"))

	existed, err := store.Delete()
	require.NoError(t, err)
	assert.False(t, existed)

	require.NoError(t, store.Save(&Credentials{GitHubToken: "gho_x"}))
	existed, err = store.Delete()
	require.NoError(t, err)
	assert.True(t, existed)

	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestBearerValid(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name  string
		creds Credentials
		want  bool
	}{
		{
			name:  "valid with margin",
			creds: Credentials{CopilotToken: "tok", ExpiresAt: 1700000000 + 3600},
			want:  true,
		},
		{
			name:  "inside refresh buffer",
			creds: Credentials{CopilotToken: "tok", ExpiresAt: 1700000000 + 30},
			want:  false,
		},
		{
			name:  "expired",
			creds: Credentials{CopilotToken: "tok", ExpiresAt: 1700000000 - 10},
			want:  false,
		},
		{
			name:  "empty token",
			creds: Credentials{ExpiresAt: 1700000000 + 3600},
			want:  false,
		},
		{
			name:  "unknown expiry",
			creds: Credentials{CopilotToken: "tok"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.creds.BearerValid(now))
		})
	}
}

func TestExpiresIn(t *testing.T) {
	now := time.Unix(1700000000, 0)

	creds := &Credentials{CopilotToken: "tok", ExpiresAt: 1700000000 + 120}
	assert.Equal(t, 120, creds.ExpiresIn(now))

	expired := &Credentials{CopilotToken: "tok", ExpiresAt: 1700000000 - 120}
	assert.Equal(t, 0, expired.ExpiresIn(now))

	unknown := &Credentials{}
	assert.Equal(t, 0, unknown.ExpiresIn(now))
}
