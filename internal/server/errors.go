package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/copilotx/copilotx/internal/auth"
)

// ErrorResponse is the OpenAI-style error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// anthropicErrorResponse is the Anthropic-style error envelope.
type anthropicErrorResponse struct {
	Type  string               `json:"type"`
	Error anthropicErrorDetail `json:"error"`
}

type anthropicErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// writeOpenAIError maps a proxy failure onto the OpenAI error envelope. When
// the upstream supplied its own JSON error body it is relayed untouched
// under the upstream's status code.
func writeOpenAIError(c *gin.Context, err error) {
	var upstream *auth.UpstreamError
	if errors.As(err, &upstream) {
		if gjson.ValidBytes(upstream.Body) && gjson.GetBytes(upstream.Body, "error").Exists() {
			c.Data(upstream.StatusCode, "application/json", upstream.Body)
			return
		}
		c.JSON(upstream.StatusCode, ErrorResponse{
			Error: ErrorDetail{
				Message: string(auth.TruncateBody(upstream.Body, 500)),
				Type:    "upstream_error",
			},
		})
		return
	}

	status, errType := classifyError(err)
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Message: err.Error(),
			Type:    errType,
		},
	})
}

// writeAnthropicError maps a proxy failure onto the Anthropic error
// envelope. Upstream JSON error bodies are unwrapped to their message rather
// than relayed, since the upstream speaks the OpenAI dialect.
func writeAnthropicError(c *gin.Context, err error) {
	var upstream *auth.UpstreamError
	if errors.As(err, &upstream) {
		message := string(auth.TruncateBody(upstream.Body, 500))
		if gjson.ValidBytes(upstream.Body) {
			if m := gjson.GetBytes(upstream.Body, "error.message"); m.Exists() {
				message = m.String()
			}
		}
		c.JSON(upstream.StatusCode, anthropicErrorResponse{
			Type: "error",
			Error: anthropicErrorDetail{
				Type:    anthropicErrorType(upstream.StatusCode),
				Message: message,
			},
		})
		return
	}

	status, _ := classifyError(err)
	c.JSON(status, anthropicErrorResponse{
		Type: "error",
		Error: anthropicErrorDetail{
			Type:    anthropicErrorType(status),
			Message: err.Error(),
		},
	})
}

// writeInvalidRequest reports a malformed client payload on the envelope
// matching the route's dialect.
func writeInvalidRequest(c *gin.Context, anthropicShape bool, message string) {
	if anthropicShape {
		c.JSON(http.StatusBadRequest, anthropicErrorResponse{
			Type:  "error",
			Error: anthropicErrorDetail{Type: "invalid_request_error", Message: message},
		})
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{Message: message, Type: "invalid_request_error"},
	})
}

// classifyError maps the credential taxonomy to an HTTP status and OpenAI
// error type. Anything unrecognized is reported as a bad gateway, since at
// this point the proxy itself already accepted the request.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated), errors.Is(err, auth.ErrGrantRevoked):
		return http.StatusUnauthorized, "authentication_error"
	case errors.Is(err, auth.ErrSubscriptionMissing):
		return http.StatusForbidden, "permission_error"
	default:
		return http.StatusBadGateway, "upstream_error"
	}
}

func anthropicErrorType(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "authentication_error"
	case status == http.StatusForbidden:
		return "permission_error"
	case status == http.StatusTooManyRequests:
		return "rate_limit_error"
	case status == http.StatusBadRequest:
		return "invalid_request_error"
	case status >= 500:
		return "api_error"
	default:
		return "api_error"
	}
}

// logProxyError records a failed upstream exchange without leaking bodies at
// info level.
func logProxyError(route string, err error) {
	if errors.Is(err, context.Canceled) {
		logrus.WithField("route", route).Debug("request canceled by client")
		return
	}
	logrus.WithField("route", route).WithError(err).Error("upstream request failed")
}
