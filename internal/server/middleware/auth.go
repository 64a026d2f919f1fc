package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/copilotx/copilotx/internal/auth"
	"github.com/copilotx/copilotx/internal/util"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// publicPaths bypass the key check so probes and banners keep working.
var publicPaths = map[string]bool{
	"/":       true,
	"/health": true,
}

// APIKeyAuth gates the proxy surfaces behind a configured API key. Requests
// from loopback addresses and public paths always pass: the key protects the
// non-local exposure case, not the developer's own machine.
type APIKeyAuth struct {
	requiredKey string
	validator   *auth.APIKeyManager
}

// NewAPIKeyAuth creates the gate. validator may be nil when no local signing
// secret exists; locally issued keys are then not accepted.
func NewAPIKeyAuth(requiredKey string, validator *auth.APIKeyManager) *APIKeyAuth {
	return &APIKeyAuth{requiredKey: requiredKey, validator: validator}
}

// Middleware validates the presented API key on every non-exempt request.
// Keys arrive as `Authorization: Bearer <key>`, `x-api-key: <key>` or
// `api-key: <key>`.
func (a *APIKeyAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if publicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		if util.IsLoopbackAddr(c.Request.RemoteAddr) {
			c.Next()
			return
		}

		key := extractKey(c)
		if key == "" {
			a.reject(c, "API key required")
			return
		}
		if !a.accepts(key) {
			a.reject(c, "Invalid API key")
			return
		}

		c.Next()
	}
}

// accepts checks the presented key against the configured key, then against
// locally issued signed keys.
func (a *APIKeyAuth) accepts(key string) bool {
	if a.requiredKey != "" &&
		subtle.ConstantTimeCompare([]byte(key), []byte(a.requiredKey)) == 1 {
		return true
	}
	if a.validator != nil && a.validator.IsAPIKeyFormat(key) {
		if _, err := a.validator.ValidateAPIKey(key); err == nil {
			return true
		}
	}
	return false
}

func (a *APIKeyAuth) reject(c *gin.Context, message string) {
	if strings.HasPrefix(c.Request.URL.Path, "/v1/messages") {
		c.JSON(http.StatusUnauthorized, gin.H{
			"type": "error",
			"error": gin.H{
				"type":    "authentication_error",
				"message": message,
			},
		})
	} else {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error: ErrorDetail{
				Message: message,
				Type:    "authentication_error",
			},
		})
	}
	c.Abort()
}

// extractKey pulls the API key from the supported header forms.
func extractKey(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
		return strings.TrimSpace(header)
	}
	if key := c.GetHeader("X-Api-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return strings.TrimSpace(c.GetHeader("Api-Key"))
}
