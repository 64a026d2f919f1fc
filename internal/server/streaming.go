package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/copilotx/copilotx/internal/upstream"
)

// lineTransform rewrites one SSE line before it is relayed. The input and
// output both end with a single newline.
type lineTransform func([]byte) []byte

// sseHeaders marks the response as an event stream and disables proxy
// buffering.
func sseHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// sseFlusher returns the response flusher, or an error response when the
// connection cannot stream.
func sseFlusher(c *gin.Context) (http.Flusher, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Message: "Streaming not supported by this connection",
				Type:    "api_error",
				Code:    "streaming_unsupported",
			},
		})
	}
	return flusher, ok
}

// pipeLines relays an upstream SSE line stream to the client, applying the
// optional transform per line. Data lines are re-framed with a blank-line
// separator; other non-empty lines pass through verbatim. The upstream's
// line granularity guarantees no partial events are ever written.
func pipeLines(c *gin.Context, lines *upstream.LineStream, transform lineTransform) error {
	sseHeaders(c)
	flusher, ok := sseFlusher(c)
	if !ok {
		return nil
	}
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	for lines.Next() {
		line := lines.Line()
		if transform != nil {
			line = transform(line)
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			if _, err := c.Writer.Write(append(line, '\n', '\n')); err != nil {
				return err
			}
		} else {
			if _, err := c.Writer.Write(append(line, '\n')); err != nil {
				return err
			}
		}
		flusher.Flush()
	}
	return lines.Err()
}

// anthropicEmitter writes named Anthropic SSE events.
type anthropicEmitter struct {
	c       *gin.Context
	flusher http.Flusher
}

func newAnthropicEmitter(c *gin.Context) (*anthropicEmitter, bool) {
	sseHeaders(c)
	flusher, ok := sseFlusher(c)
	if !ok {
		return nil, false
	}
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &anthropicEmitter{c: c, flusher: flusher}, true
}

// emit writes one `event:`/`data:` frame and flushes it immediately.
func (e *anthropicEmitter) emit(event string, data []byte) error {
	if _, err := fmt.Fprintf(e.c.Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
