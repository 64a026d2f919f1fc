package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ServerState describes a running copilotx server. It is written to
// server.json on startup and removed on shutdown so that other invocations
// (status, stop) can find the process.
type ServerState struct {
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	BaseURL   string    `json:"base_url"`
}

// StateManager manages the server.json state file
type StateManager struct {
	stateFile string
}

// NewStateManager creates a state manager rooted at the config directory
func NewStateManager() *StateManager {
	return &StateManager{stateFile: ServerFilePath()}
}

// Write records the current process as the running server
func (sm *StateManager) Write(host string, port int, baseURL string) error {
	if err := EnsureConfDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	state := ServerState{
		Host:      host,
		Port:      port,
		PID:       os.Getpid(),
		StartedAt: time.Now(),
		BaseURL:   fmt.Sprintf("http://%s:%d", host, port),
	}
	if baseURL != "" {
		state.BaseURL = baseURL
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sm.stateFile, data, 0644)
}

// Remove deletes the state file. Missing files are not an error.
func (sm *StateManager) Remove() error {
	err := os.Remove(sm.stateFile)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Load reads the state file
func (sm *StateManager) Load() (*ServerState, error) {
	data, err := os.ReadFile(sm.stateFile)
	if err != nil {
		return nil, err
	}
	var state ServerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse server state: %w", err)
	}
	return &state, nil
}

// IsRunning reports whether the state file points at a live process
func (sm *StateManager) IsRunning() bool {
	state, err := sm.Load()
	if err != nil {
		return false
	}
	return processAlive(state.PID)
}

// GetPID returns the recorded server pid
func (sm *StateManager) GetPID() (int, error) {
	state, err := sm.Load()
	if err != nil {
		return 0, fmt.Errorf("server state file does not exist: %w", err)
	}
	return state.PID, nil
}

// StateFilePath returns the state file path
func (sm *StateManager) StateFilePath() string {
	return sm.stateFile
}
