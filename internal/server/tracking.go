package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/copilotx/copilotx/internal/auth"
	"github.com/copilotx/copilotx/internal/obs/otel"
	"github.com/copilotx/copilotx/internal/translate"
)

// recordUsage reports one request outcome to the metrics tracker. The
// tracker is nil-safe, so this is free when metrics are disabled.
func (s *Server) recordUsage(c *gin.Context, surface, model, requestModel string, usage translate.UsageStat, streamed bool, start time.Time, err error) {
	status := "success"
	errorCode := ""
	switch {
	case errors.Is(err, context.Canceled):
		status = "canceled"
	case err != nil:
		status = "error"
		errorCode = classifyErrorCode(err)
	}

	s.tracker.RecordUsage(c.Request.Context(), otel.UsageOptions{
		Surface:      surface,
		Model:        model,
		RequestModel: requestModel,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Streamed:     streamed,
		Status:       status,
		ErrorCode:    errorCode,
		LatencyMs:    int(time.Since(start).Milliseconds()),
	})
}

// classifyErrorCode produces a low-cardinality error label for metrics.
func classifyErrorCode(err error) string {
	var upstream *auth.UpstreamError
	if errors.As(err, &upstream) {
		return fmt.Sprintf("upstream_%d", upstream.StatusCode)
	}
	_, errType := classifyError(err)
	return errType
}
