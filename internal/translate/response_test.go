package translate

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestOpenAIToAnthropicTextOnly(t *testing.T) {
	body := []byte(`{
		"id": "chatcmpl-1",
		"choices": [{"message": {"role": "assistant", "content": "Hello there."}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 4, "completion_tokens": 3}
	}`)

	resp, err := OpenAIToAnthropicResponse(body, "claude-sonnet-4-5-20250929")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.ID, "msg_"))
	assert.Equal(t, "message", resp.Type)
	assert.Equal(t, "assistant", resp.Role)
	assert.Equal(t, "claude-sonnet-4-5-20250929", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Nil(t, resp.StopSequence)
	assert.Equal(t, 4, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)

	require.Len(t, resp.Content, 1)
	text, ok := resp.Content[0].(TextBlock)
	require.True(t, ok)
	assert.Equal(t, "Hello there.", text.Text)
}

func TestOpenAIToAnthropicMergesChoices(t *testing.T) {
	// Upstream sometimes splits text and tool calls across choices; both end
	// up in one message, text blocks first.
	body := []byte(`{
		"id": "chatcmpl-2",
		"choices": [
			{"message": {"content": "I'll compute."}, "finish_reason": "stop"},
			{"message": {"content": null, "tool_calls": [
				{"id": "tc", "type": "function", "function": {"name": "calc", "arguments": "{\"x\":1}"}}
			]}, "finish_reason": "tool_calls"}
		],
		"usage": {"prompt_tokens": 5, "completion_tokens": 9}
	}`)

	resp, err := OpenAIToAnthropicResponse(body, "claude-opus-4-6")
	require.NoError(t, err)

	assert.Equal(t, "tool_use", resp.StopReason)
	require.Len(t, resp.Content, 2)

	text, ok := resp.Content[0].(TextBlock)
	require.True(t, ok)
	assert.Equal(t, "I'll compute.", text.Text)

	tool, ok := resp.Content[1].(ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "tc", tool.ID)
	assert.Equal(t, "calc", tool.Name)
	assert.JSONEq(t, `{"x":1}`, string(tool.Input))

	assert.Equal(t, 5, resp.Usage.InputTokens)
	assert.Equal(t, 9, resp.Usage.OutputTokens)
}

func TestOpenAIToAnthropicEmptyChoices(t *testing.T) {
	resp, err := OpenAIToAnthropicResponse([]byte(`{}`), "claude-sonnet-4-5")
	require.NoError(t, err)

	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Zero(t, resp.Usage.InputTokens)
	assert.Zero(t, resp.Usage.OutputTokens)
	require.Len(t, resp.Content, 1)
	text, ok := resp.Content[0].(TextBlock)
	require.True(t, ok)
	assert.Equal(t, "", text.Text)
}

func TestOpenAIToAnthropicBadArguments(t *testing.T) {
	body := []byte(`{
		"choices": [{"message": {"tool_calls": [
			{"type": "function", "function": {"name": "calc", "arguments": "not json"}}
		]}, "finish_reason": "tool_calls"}]
	}`)

	resp, err := OpenAIToAnthropicResponse(body, "m")
	require.NoError(t, err)

	require.Len(t, resp.Content, 1)
	tool, ok := resp.Content[0].(ToolUseBlock)
	require.True(t, ok)
	assert.JSONEq(t, `{}`, string(tool.Input))
	assert.True(t, strings.HasPrefix(tool.ID, "toolu_"))
}

func TestOpenAIToAnthropicInvalidBody(t *testing.T) {
	_, err := OpenAIToAnthropicResponse([]byte(`{"choices": "nope"`), "m")
	assert.Error(t, err)
}

func TestMapFinishReason(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tool_calls", "tool_use"},
		{"length", "max_tokens"},
		{"stop", "end_turn"},
		{"", "end_turn"},
		{"content_filter", "end_turn"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapFinishReason(tt.in), "reason %q", tt.in)
	}
}

func TestAnthropicResponseWireShape(t *testing.T) {
	body := []byte(`{
		"choices": [{"message": {"content": "hi"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 1, "completion_tokens": 2}
	}`)

	resp, err := OpenAIToAnthropicResponse(body, "claude-haiku-4-5")
	require.NoError(t, err)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.Equal(t, "message", gjson.GetBytes(raw, "type").String())
	assert.Equal(t, "assistant", gjson.GetBytes(raw, "role").String())
	assert.Equal(t, "claude-haiku-4-5", gjson.GetBytes(raw, "model").String())
	assert.Equal(t, "text", gjson.GetBytes(raw, "content.0.type").String())
	// stop_sequence must be present and null, not omitted.
	stopSeq := gjson.GetBytes(raw, "stop_sequence")
	assert.True(t, stopSeq.Exists())
	assert.Equal(t, gjson.Null, stopSeq.Type)
	assert.Equal(t, int64(1), gjson.GetBytes(raw, "usage.input_tokens").Int())
	assert.Equal(t, int64(2), gjson.GetBytes(raw, "usage.output_tokens").Int())
}
