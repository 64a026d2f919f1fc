package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when no credentials exist on disk.
	ErrNotAuthenticated = errors.New("auth: not authenticated, run `copilotx auth login` first")

	// ErrGrantRevoked is returned when GitHub rejects the stored OAuth token.
	ErrGrantRevoked = errors.New("auth: GitHub token is invalid or expired, run `copilotx auth login` again")

	// ErrSubscriptionMissing is returned when the account has no Copilot access.
	ErrSubscriptionMissing = errors.New("auth: GitHub Copilot is not enabled for this account")

	// ErrDeviceCodeExpired is returned when the user never completed the device flow.
	ErrDeviceCodeExpired = errors.New("auth: device code expired, please try again")

	// ErrAccessDenied is returned when the user rejected the device flow.
	ErrAccessDenied = errors.New("auth: authorization was denied by the user")
)

// UpstreamError carries a non-2xx status from an upstream endpoint together
// with the raw response body, so handlers can relay the upstream's own error
// envelope when it parses as JSON.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, TruncateBody(e.Body, 500))
}

// NewUpstreamError builds an UpstreamError from a response status and body.
func NewUpstreamError(status int, body []byte) *UpstreamError {
	return &UpstreamError{StatusCode: status, Body: body}
}

// TruncateBody bounds a response body for log lines and wrapped messages.
func TruncateBody(body []byte, max int) []byte {
	if len(body) > max {
		return body[:max]
	}
	return body
}
