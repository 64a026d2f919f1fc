package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseAnthropicRequest(t *testing.T, body string) *AnthropicRequest {
	t.Helper()
	var req AnthropicRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return &req
}

func TestEstimateInputTokensCountsTextContent(t *testing.T) {
	req := parseAnthropicRequest(t, `{
		"model": "claude-sonnet-4",
		"messages": [
			{"role": "user", "content": "What is the capital of France?"}
		]
	}`)

	count := EstimateInputTokens(req)
	// Role plus question plus framing overhead; exact value depends on the
	// encoder, but it must exceed the bare overhead.
	assert.Greater(t, count, 3)
}

func TestEstimateInputTokensIncludesSystemPrompt(t *testing.T) {
	base := parseAnthropicRequest(t, `{
		"model": "claude-sonnet-4",
		"messages": [{"role": "user", "content": "hi"}]
	}`)
	withSystem := parseAnthropicRequest(t, `{
		"model": "claude-sonnet-4",
		"system": "You are a terse assistant. Answer in one sentence.",
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	assert.Greater(t, EstimateInputTokens(withSystem), EstimateInputTokens(base))
}

func TestEstimateInputTokensWalksContentBlocks(t *testing.T) {
	req := parseAnthropicRequest(t, `{
		"model": "claude-sonnet-4",
		"messages": [
			{"role": "user", "content": [
				{"type": "text", "text": "Run the weather tool for Paris."}
			]},
			{"role": "assistant", "content": [
				{"type": "thinking", "thinking": "The user wants the weather."},
				{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "Paris"}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "toolu_1", "content": "18C and sunny"}
			]}
		]
	}`)

	shorter := parseAnthropicRequest(t, `{
		"model": "claude-sonnet-4",
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	assert.Greater(t, EstimateInputTokens(req), EstimateInputTokens(shorter))
}

func TestEstimateInputTokensEmptyRequest(t *testing.T) {
	req := parseAnthropicRequest(t, `{"model": "claude-sonnet-4", "messages": []}`)
	assert.Equal(t, 3, EstimateInputTokens(req))
}
