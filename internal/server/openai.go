package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/copilotx/copilotx/internal/translate"
)

// ChatCompletions proxies POST /v1/chat/completions. The upstream already
// speaks the OpenAI dialect, so this is a passthrough in both directions,
// streaming included.
func (s *Server) ChatCompletions(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !gjson.ValidBytes(body) {
		writeInvalidRequest(c, false, "request body must be valid JSON")
		return
	}

	start := time.Now()
	ctx := c.Request.Context()
	requestModel := gjson.GetBytes(body, "model").String()

	if !gjson.GetBytes(body, "stream").Bool() {
		resp, err := s.upstream.ChatCompletions(ctx, body)
		if err != nil {
			logProxyError("chat_completions", err)
			s.recordUsage(c, "chat", requestModel, requestModel, translate.UsageStat{}, false, start, err)
			writeOpenAIError(c, err)
			return
		}
		s.recordUsage(c, "chat", requestModel, requestModel, usageFromResponse(resp), false, start, nil)
		c.Data(http.StatusOK, "application/json", resp)
		return
	}

	lines, err := s.upstream.ChatCompletionsStream(ctx, body)
	if err != nil {
		logProxyError("chat_completions", err)
		s.recordUsage(c, "chat", requestModel, requestModel, translate.UsageStat{}, true, start, err)
		writeOpenAIError(c, err)
		return
	}
	defer lines.Close()

	var usage translate.UsageStat
	err = pipeLines(c, lines, peekChatUsage(&usage))
	if err != nil {
		logProxyError("chat_completions", err)
	}
	s.recordUsage(c, "chat", requestModel, requestModel, usage, true, start, err)
}

// modelEntry is one row of the OpenAI-style model list.
type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// modelList is the OpenAI-style list envelope.
type modelList struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// ListModels serves GET /v1/models from the cached upstream model list.
func (s *Server) ListModels(c *gin.Context) {
	models, err := s.upstream.ListModels(c.Request.Context())
	if err != nil {
		logProxyError("models", err)
		writeOpenAIError(c, err)
		return
	}

	now := time.Now().Unix()
	out := modelList{Object: "list", Data: make([]modelEntry, 0, len(models))}
	for _, raw := range models {
		entry := gjson.ParseBytes(raw)
		ownedBy := entry.Get("vendor").String()
		if ownedBy == "" {
			ownedBy = "github-copilot"
		}
		out.Data = append(out.Data, modelEntry{
			ID:      entry.Get("id").String(),
			Object:  "model",
			Created: now,
			OwnedBy: ownedBy,
		})
	}
	c.JSON(http.StatusOK, out)
}

// usageFromResponse pulls the token usage block out of a non-streaming chat
// completions response.
func usageFromResponse(body []byte) translate.UsageStat {
	usage := gjson.GetBytes(body, "usage")
	return translate.UsageStat{
		InputTokens:  int(usage.Get("prompt_tokens").Int()),
		OutputTokens: int(usage.Get("completion_tokens").Int()),
	}
}

// peekChatUsage harvests the usage block from passing stream chunks without
// altering them. Upstream sends usage on the final chunk, so the last
// sighting wins.
func peekChatUsage(usage *translate.UsageStat) lineTransform {
	return func(line []byte) []byte {
		trimmed := bytes.TrimSpace(line)
		if !bytes.HasPrefix(trimmed, []byte("data: ")) {
			return line
		}
		data := trimmed[len("data: "):]
		u := gjson.GetBytes(data, "usage")
		if u.IsObject() {
			if v := u.Get("prompt_tokens"); v.Exists() {
				usage.InputTokens = int(v.Int())
			}
			if v := u.Get("completion_tokens"); v.Exists() {
				usage.OutputTokens = int(v.Int())
			}
		}
		return line
	}
}
