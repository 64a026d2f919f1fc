package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/copilotx/copilotx/internal/translate"
)

// AnthropicMessages proxies POST /v1/messages: the request is translated to
// the chat completions dialect, forwarded, and the response translated back.
// Streaming responses are re-emitted as Anthropic SSE events on the fly.
func (s *Server) AnthropicMessages(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		writeInvalidRequest(c, true, "failed to read request body")
		return
	}

	conv, err := translate.AnthropicToOpenAIRequest(body)
	if err != nil {
		writeInvalidRequest(c, true, err.Error())
		return
	}
	logrus.WithFields(logrus.Fields{
		"model":    conv.Model,
		"upstream": conv.UpstreamModel,
		"stream":   conv.Stream,
	}).Debug("Translated messages request")

	start := time.Now()
	ctx := c.Request.Context()

	if !conv.Stream {
		resp, err := s.upstream.ChatCompletions(ctx, conv.Payload)
		if err != nil {
			logProxyError("messages", err)
			s.recordUsage(c, "messages", conv.UpstreamModel, conv.Model, translate.UsageStat{}, false, start, err)
			writeAnthropicError(c, err)
			return
		}

		out, err := translate.OpenAIToAnthropicResponse(resp, conv.Model)
		if err != nil {
			logProxyError("messages", err)
			s.recordUsage(c, "messages", conv.UpstreamModel, conv.Model, translate.UsageStat{}, false, start, err)
			writeAnthropicError(c, err)
			return
		}

		usage := translate.UsageStat{
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
		}
		s.recordUsage(c, "messages", conv.UpstreamModel, conv.Model, usage, false, start, nil)
		c.JSON(http.StatusOK, out)
		return
	}

	lines, err := s.upstream.ChatCompletionsStream(ctx, conv.Payload)
	if err != nil {
		logProxyError("messages", err)
		s.recordUsage(c, "messages", conv.UpstreamModel, conv.Model, translate.UsageStat{}, true, start, err)
		writeAnthropicError(c, err)
		return
	}
	defer lines.Close()

	emitter, ok := newAnthropicEmitter(c)
	if !ok {
		return
	}

	usage, err := translate.TranslateStream(lines, conv.Model, emitter.emit)
	if err != nil {
		// The stream already started; the connection is all we can cut.
		logProxyError("messages", err)
	}
	s.recordUsage(c, "messages", conv.UpstreamModel, conv.Model, usage, true, start, err)
}

// countTokensResponse is the /v1/messages/count_tokens reply.
type countTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}

// AnthropicCountTokens serves POST /v1/messages/count_tokens with a local
// tokenizer estimate; the upstream offers no counting endpoint.
func (s *Server) AnthropicCountTokens(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		writeInvalidRequest(c, true, "failed to read request body")
		return
	}

	var req translate.AnthropicRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeInvalidRequest(c, true, "request body must be a valid messages request")
		return
	}

	c.JSON(http.StatusOK, countTokensResponse{
		InputTokens: translate.EstimateInputTokens(&req),
	})
}
