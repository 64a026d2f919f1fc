// Package server exposes GitHub Copilot through three local HTTP surfaces:
// OpenAI chat completions, OpenAI responses and Anthropic messages.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/copilotx/copilotx/internal/auth"
	"github.com/copilotx/copilotx/internal/config"
	"github.com/copilotx/copilotx/internal/obs/otel"
	"github.com/copilotx/copilotx/internal/server/middleware"
	"github.com/copilotx/copilotx/internal/upstream"
)

// Server is the HTTP proxy server.
type Server struct {
	manager    *auth.Manager
	upstream   *upstream.Client
	engine     *gin.Engine
	httpServer *http.Server
	watcher    *auth.Watcher
	state      *config.StateManager
	tracker    *otel.UsageTracker

	host    string
	port    int
	apiKey  string
	version string
}

// ServerOption defines a functional option for Server configuration.
type ServerOption func(*Server)

// WithDefault applies the default listen address.
func WithDefault() ServerOption {
	return func(s *Server) {
		s.host = config.DefaultHost
		s.port = config.DefaultPort
	}
}

func WithHost(host string) ServerOption {
	return func(s *Server) {
		s.host = host
	}
}

func WithPort(port int) ServerOption {
	return func(s *Server) {
		s.port = port
	}
}

// WithAPIKey enables the API key gate for non-loopback callers.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// WithUpstreamClient overrides the upstream client, mainly for tests.
func WithUpstreamClient(client *upstream.Client) ServerOption {
	return func(s *Server) {
		s.upstream = client
	}
}

// WithStateManager enables the server.json lifecycle on Start/Stop.
func WithStateManager(sm *config.StateManager) ServerOption {
	return func(s *Server) {
		s.state = sm
	}
}

// WithUsageTracker enables per-request metrics.
func WithUsageTracker(tracker *otel.UsageTracker) ServerOption {
	return func(s *Server) {
		s.tracker = tracker
	}
}

// NewServer creates the proxy server around a credential manager.
func NewServer(manager *auth.Manager, opts ...ServerOption) *Server {
	server := &Server{manager: manager}

	allOpts := append([]ServerOption{WithDefault()}, opts...)
	for _, opt := range allOpts {
		opt(server)
	}

	if server.upstream == nil {
		server.upstream = upstream.NewClient(manager)
	}

	server.engine = gin.New()
	server.setupMiddleware()
	server.setupRoutes()
	server.setupCredentialWatcher()

	return server
}

// setupMiddleware configures server middleware.
func (s *Server) setupMiddleware() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(middleware.RequestLogger())
	s.engine.Use(middleware.CORS())

	if s.apiKey != "" {
		validator, err := localKeyValidator()
		if err != nil {
			logrus.WithError(err).Warn("Locally issued API keys will not be accepted")
		}
		s.engine.Use(middleware.NewAPIKeyAuth(s.apiKey, validator).Middleware())
	}
}

// localKeyValidator builds a validator for keys issued by `copilotx apikey`.
// Absent secret files are not an error: no secret simply means no local keys
// were ever issued.
func localKeyValidator() (*auth.APIKeyManager, error) {
	if err := config.EnsureConfDir(); err != nil {
		return nil, err
	}
	secret, err := auth.LoadOrCreateSecret(config.SecretFilePath())
	if err != nil {
		return nil, err
	}
	return auth.NewAPIKeyManager(secret), nil
}

// setupRoutes configures server routes.
func (s *Server) setupRoutes() {
	s.engine.GET("/", s.Root)
	s.engine.GET("/health", s.Health)

	v1 := s.engine.Group("/v1")
	{
		// OpenAI compatible surface
		v1.POST("/chat/completions", s.ChatCompletions)
		v1.POST("/responses", s.Responses)
		v1.GET("/models", s.ListModels)

		// Anthropic compatible surface
		v1.POST("/messages", s.AnthropicMessages)
		v1.POST("/messages/count_tokens", s.AnthropicCountTokens)
	}
}

// setupCredentialWatcher reloads credentials when auth.json changes on disk,
// so a re-login from another terminal is picked up without a restart.
func (s *Server) setupCredentialWatcher() {
	watcher, err := auth.NewWatcher(s.manager)
	if err != nil {
		logrus.WithError(err).Warn("Credential hot-reload disabled")
		return
	}
	s.watcher = watcher
}

// Start runs the HTTP server and blocks until it stops. The server.json
// state file, when managed, exists exactly while the listener is up.
func (s *Server) Start() error {
	if s.watcher != nil {
		if err := s.watcher.Start(); err != nil {
			logrus.WithError(err).Warn("Failed to start credential watcher")
		}
	}

	if s.state != nil {
		if err := s.state.Write(s.host, s.port, ""); err != nil {
			logrus.WithError(err).Warn("Failed to write server state file")
		}
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	logrus.WithField("addr", addr).Info("Server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			logrus.WithError(err).Debug("Credential watcher stop")
		}
	}

	if s.state != nil {
		if err := s.state.Remove(); err != nil {
			logrus.WithError(err).Warn("Failed to remove server state file")
		}
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// GetRouter returns the Gin engine for testing purposes.
func (s *Server) GetRouter() *gin.Engine {
	return s.engine
}
