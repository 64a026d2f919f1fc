package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse is the /health reply.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Authenticated  bool   `json:"authenticated"`
	TokenValid     bool   `json:"token_valid"`
	TokenExpiresIn int    `json:"token_expires_in"`
}

// Health reports server liveness and the credential state. It never touches
// the network, so it is safe to poll.
func (s *Server) Health(c *gin.Context) {
	status := s.manager.Status()
	c.JSON(http.StatusOK, HealthResponse{
		Status:         "ok",
		Version:        s.version,
		Authenticated:  status.Authenticated,
		TokenValid:     status.TokenValid,
		TokenExpiresIn: status.ExpiresIn,
	})
}

// ServiceInfo is the banner served on /.
type ServiceInfo struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// Root serves a small service banner so a browser hit shows what is
// listening here.
func (s *Server) Root(c *gin.Context) {
	c.JSON(http.StatusOK, ServiceInfo{
		Service: "copilotx",
		Version: s.version,
		Endpoints: []string{
			"POST /v1/chat/completions",
			"POST /v1/responses",
			"POST /v1/messages",
			"POST /v1/messages/count_tokens",
			"GET /v1/models",
			"GET /health",
		},
	})
}
