package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/copilotx/copilotx/internal/util"
)

const (
	// ConfigDirName is the main configuration directory name
	ConfigDirName = ".copilotx"

	LogDirName = "log"

	// AuthFileName stores the GitHub grant and the short-lived Copilot token.
	AuthFileName = "auth.json"

	// ServerFileName records the listening address and pid of a running server.
	ServerFileName = "server.json"

	// SecretFileName stores the HMAC secret backing locally issued API keys.
	SecretFileName = "secret.key"
)

// GitHub OAuth device flow. The client_id is the one used by the official
// VS Code Copilot Chat extension.
const (
	GitHubClientID        = "Iv1.b507a08c87ecfe98"
	GitHubScope           = "read:user"
	GitHubDeviceCodeURL   = "https://github.com/login/device/code"
	GitHubAccessTokenURL  = "https://github.com/login/oauth/access_token"
	GitHubCopilotTokenURL = "https://api.github.com/copilot_internal/v2/token"
)

// Copilot API. The real base URL arrives in the token response
// (endpoints.api); the fallback applies only when that field is missing.
const (
	CopilotAPIBaseFallback     = "https://api.githubcopilot.com"
	CopilotChatCompletionsPath = "/chat/completions"
	CopilotModelsPath          = "/models"
	CopilotResponsesPath       = "/responses"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 24680

	// RequestTimeout bounds non-streaming upstream HTTP requests.
	RequestTimeout = 120 * time.Second

	// TokenRefreshBuffer forces a Copilot token refresh this long before expiry.
	TokenRefreshBuffer = 60 * time.Second

	// DeviceCodePollInterval is the initial device-flow poll spacing.
	DeviceCodePollInterval = 5 * time.Second

	// DeviceCodeTimeout bounds the whole device-flow authorization.
	DeviceCodeTimeout = 15 * time.Minute

	// ModelsCacheTTL bounds the in-memory upstream model list.
	ModelsCacheTTL = 5 * time.Minute
)

// EnvAPIKey enables the API key gate when set. EnvConfigDir overrides the
// config directory, mainly for tests.
const (
	EnvAPIKey    = "COPILOTX_API_KEY"
	EnvConfigDir = "COPILOTX_DIR"
)

// CopilotHeaders mimics the official VS Code Copilot Chat extension
// (v0.36.1). The upstream rejects requests without these, so this table is
// the single place to update when the extension contract drifts.
func CopilotHeaders() map[string]string {
	return map[string]string{
		"Editor-Version":                      "vscode/1.108.0",
		"Editor-Plugin-Version":               "copilot-chat/0.36.1",
		"User-Agent":                          "GitHubCopilotChat/0.36.1",
		"Copilot-Integration-Id":              "vscode-chat",
		"X-GitHub-Api-Version":                "2025-10-01",
		"openai-intent":                       "conversation-panel",
		"x-vscode-user-agent-library-version": "electron-fetch",
	}
}

// GetConfDir returns the config directory path (default: ~/.copilotx).
// COPILOTX_DIR overrides it.
func GetConfDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	homeDir, err := util.GetUserPath()
	if err != nil {
		// Fallback to current directory if home directory is not accessible
		return ConfigDirName
	}
	return filepath.Join(homeDir, ConfigDirName)
}

// GetLogDir returns the log directory path
func GetLogDir() string {
	return filepath.Join(GetConfDir(), LogDirName)
}

// AuthFilePath returns the credential file path
func AuthFilePath() string {
	return filepath.Join(GetConfDir(), AuthFileName)
}

// ServerFilePath returns the server state file path
func ServerFilePath() string {
	return filepath.Join(GetConfDir(), ServerFileName)
}

// SecretFilePath returns the API key secret file path
func SecretFilePath() string {
	return filepath.Join(GetConfDir(), SecretFileName)
}

// EnsureConfDir creates the config directory with owner-only permissions.
func EnsureConfDir() error {
	return os.MkdirAll(GetConfDir(), 0700)
}
