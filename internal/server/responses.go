package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/copilotx/copilotx/internal/responses"
	"github.com/copilotx/copilotx/internal/translate"
	"github.com/copilotx/copilotx/internal/upstream"
)

// Responses proxies POST /v1/responses. The body is shaped for the backend
// (apply_patch rewrite, vision and initiator detection) and streaming
// replies run through the item-id rewriter so clients see consistent ids.
func (s *Server) Responses(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !gjson.ValidBytes(body) {
		writeInvalidRequest(c, false, "request body must be valid JSON")
		return
	}

	shaped, vision, initiator := responses.PrepareRequest(body)
	opts := upstream.ResponseOptions{Vision: vision, Initiator: initiator}

	start := time.Now()
	ctx := c.Request.Context()
	requestModel := gjson.GetBytes(shaped, "model").String()

	if !gjson.GetBytes(shaped, "stream").Bool() {
		resp, err := s.upstream.Responses(ctx, shaped, opts)
		if err != nil {
			logProxyError("responses", err)
			s.recordUsage(c, "responses", requestModel, requestModel, translate.UsageStat{}, false, start, err)
			writeOpenAIError(c, err)
			return
		}
		s.recordUsage(c, "responses", requestModel, requestModel, usageFromResponsesBody(resp), false, start, nil)
		c.Data(http.StatusOK, "application/json", resp)
		return
	}

	lines, err := s.upstream.ResponsesStream(ctx, shaped, opts)
	if err != nil {
		logProxyError("responses", err)
		s.recordUsage(c, "responses", requestModel, requestModel, translate.UsageStat{}, true, start, err)
		writeOpenAIError(c, err)
		return
	}
	defer lines.Close()

	rewriter := responses.NewRewriter()
	err = pipeLines(c, lines, rewriter.RewriteLine)
	if err != nil {
		logProxyError("responses", err)
	}
	s.recordUsage(c, "responses", requestModel, requestModel, translate.UsageStat{}, true, start, err)
}

// usageFromResponsesBody pulls token usage out of a non-streaming Responses
// reply, which names its fields differently from chat completions.
func usageFromResponsesBody(body []byte) translate.UsageStat {
	usage := gjson.GetBytes(body, "usage")
	return translate.UsageStat{
		InputTokens:  int(usage.Get("input_tokens").Int()),
		OutputTokens: int(usage.Get("output_tokens").Int()),
	}
}
