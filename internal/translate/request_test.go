package translate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestAnthropicToOpenAIMinimal(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-haiku-20240307",
		"max_tokens": 512,
		"messages": [{"role": "user", "content": "hello"}]
	}`)

	conv, err := AnthropicToOpenAIRequest(body)
	require.NoError(t, err)

	assert.Equal(t, "claude-3-haiku-20240307", conv.Model)
	assert.Equal(t, "claude-haiku-4.5", conv.UpstreamModel)
	assert.False(t, conv.Stream)

	payload := conv.Payload
	assert.Equal(t, "claude-haiku-4.5", gjson.GetBytes(payload, "model").String())
	assert.Equal(t, int64(512), gjson.GetBytes(payload, "max_tokens").Int())
	assert.Equal(t, "user", gjson.GetBytes(payload, "messages.0.role").String())
	assert.Equal(t, "hello", gjson.GetBytes(payload, "messages.0.content").String())
	assert.False(t, gjson.GetBytes(payload, "stream").Exists())
	assert.False(t, gjson.GetBytes(payload, "tools").Exists())
	assert.False(t, gjson.GetBytes(payload, "tool_choice").Exists())
}

func TestAnthropicToOpenAIStopSequences(t *testing.T) {
	body := []byte(`{
		"model": "claude-sonnet-4-5-20250929",
		"max_tokens": 100,
		"temperature": 0.2,
		"top_p": 0.9,
		"stop_sequences": ["END", "STOP"],
		"stream": true,
		"messages": [{"role": "user", "content": "go"}]
	}`)

	conv, err := AnthropicToOpenAIRequest(body)
	require.NoError(t, err)
	assert.True(t, conv.Stream)

	payload := conv.Payload
	assert.Equal(t, "claude-sonnet-4.5", gjson.GetBytes(payload, "model").String())
	assert.JSONEq(t, `["END","STOP"]`, gjson.GetBytes(payload, "stop").Raw)
	assert.False(t, gjson.GetBytes(payload, "stop_sequences").Exists())
	assert.Equal(t, 0.2, gjson.GetBytes(payload, "temperature").Float())
	assert.Equal(t, 0.9, gjson.GetBytes(payload, "top_p").Float())
	assert.True(t, gjson.GetBytes(payload, "stream").Bool())
}

func TestAnthropicToOpenAIDefaultModel(t *testing.T) {
	conv, err := AnthropicToOpenAIRequest([]byte(`{"messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", conv.Model)
	assert.Equal(t, "gpt-4o", conv.UpstreamModel)
}

func TestAnthropicToOpenAIInvalidJSON(t *testing.T) {
	_, err := AnthropicToOpenAIRequest([]byte(`{"model":`))
	assert.Error(t, err)
}

func TestSystemPromptString(t *testing.T) {
	body := []byte(`{
		"model": "claude-sonnet-4-5",
		"system": "You are terse.",
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	conv, err := AnthropicToOpenAIRequest(body)
	require.NoError(t, err)

	assert.Equal(t, "system", gjson.GetBytes(conv.Payload, "messages.0.role").String())
	assert.Equal(t, "You are terse.", gjson.GetBytes(conv.Payload, "messages.0.content").String())
	assert.Equal(t, "user", gjson.GetBytes(conv.Payload, "messages.1.role").String())
}

func TestSystemPromptBlocks(t *testing.T) {
	body := []byte(`{
		"model": "claude-sonnet-4-5",
		"system": [
			{"type": "text", "text": "Line one."},
			{"type": "text", "text": "Line two."}
		],
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	conv, err := AnthropicToOpenAIRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "Line one.\nLine two.", gjson.GetBytes(conv.Payload, "messages.0.content").String())
}

func TestToolUseRoundTrip(t *testing.T) {
	body := []byte(`{
		"model": "claude-sonnet-4-5-20250929",
		"max_tokens": 100,
		"messages": [
			{"role": "user", "content": "Read /tmp/test.txt"},
			{"role": "assistant", "content": [
				{"type": "text", "text": "I'll read the file."},
				{"type": "tool_use", "id": "toolu_abc123", "name": "read_file", "input": {"path": "/tmp/test.txt"}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "toolu_abc123", "content": "file contents here"}
			]}
		]
	}`)

	conv, err := AnthropicToOpenAIRequest(body)
	require.NoError(t, err)
	payload := conv.Payload

	require.Equal(t, int64(3), gjson.GetBytes(payload, "messages.#").Int())

	assistant := gjson.GetBytes(payload, "messages.1")
	assert.Equal(t, "assistant", assistant.Get("role").String())
	assert.Equal(t, "I'll read the file.", assistant.Get("content").String())
	require.Equal(t, int64(1), assistant.Get("tool_calls.#").Int())
	call := assistant.Get("tool_calls.0")
	assert.Equal(t, "toolu_abc123", call.Get("id").String())
	assert.Equal(t, "function", call.Get("type").String())
	assert.Equal(t, "read_file", call.Get("function.name").String())
	assert.JSONEq(t, `{"path":"/tmp/test.txt"}`, call.Get("function.arguments").String())

	result := gjson.GetBytes(payload, "messages.2")
	assert.Equal(t, "tool", result.Get("role").String())
	assert.Equal(t, "toolu_abc123", result.Get("tool_call_id").String())
	assert.Equal(t, "file contents here", result.Get("content").String())
}

func TestToolUseWithoutInputOrID(t *testing.T) {
	body := []byte(`{
		"model": "claude-sonnet-4-5",
		"messages": [
			{"role": "assistant", "content": [
				{"type": "tool_use", "name": "ping"}
			]}
		]
	}`)

	conv, err := AnthropicToOpenAIRequest(body)
	require.NoError(t, err)

	msg := gjson.GetBytes(conv.Payload, "messages.0")
	// No text blocks means a null content alongside the calls.
	assert.Equal(t, gjson.Null, msg.Get("content").Type)
	call := msg.Get("tool_calls.0")
	assert.True(t, strings.HasPrefix(call.Get("id").String(), "call_"))
	assert.Len(t, call.Get("id").String(), len("call_")+24)
	assert.Equal(t, "{}", call.Get("function.arguments").String())
}

func TestToolResultVariants(t *testing.T) {
	body := []byte(`{
		"model": "claude-sonnet-4-5",
		"messages": [
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "t1", "content": [
					{"type": "text", "text": "part one"},
					{"type": "text", "text": "part two"}
				]},
				{"type": "tool_result", "tool_use_id": "t2", "content": "boom", "is_error": true},
				{"type": "tool_result", "tool_use_id": "t3", "content": {"code": 7}}
			]}
		]
	}`)

	conv, err := AnthropicToOpenAIRequest(body)
	require.NoError(t, err)
	payload := conv.Payload

	require.Equal(t, int64(3), gjson.GetBytes(payload, "messages.#").Int())
	assert.Equal(t, "part one\npart two", gjson.GetBytes(payload, "messages.0.content").String())
	assert.Equal(t, "t1", gjson.GetBytes(payload, "messages.0.tool_call_id").String())
	assert.Equal(t, "[ERROR] boom", gjson.GetBytes(payload, "messages.1.content").String())
	assert.Equal(t, `{"code":7}`, gjson.GetBytes(payload, "messages.2.content").String())
	for i := 0; i < 3; i++ {
		assert.Equal(t, "tool", gjson.GetBytes(payload, fmt.Sprintf("messages.%d.role", i)).String())
	}
}

func TestImageBlocks(t *testing.T) {
	body := []byte(`{
		"model": "claude-sonnet-4-5",
		"messages": [
			{"role": "user", "content": [
				{"type": "text", "text": "what is this"},
				{"type": "image", "source": {"type": "base64", "media_type": "image/jpeg", "data": "aGVsbG8="}},
				{"type": "image", "source": {"type": "url", "url": "https://example.com/x.png"}}
			]}
		]
	}`)

	conv, err := AnthropicToOpenAIRequest(body)
	require.NoError(t, err)

	parts := gjson.GetBytes(conv.Payload, "messages.0.content")
	require.True(t, parts.IsArray())
	require.Equal(t, int64(3), parts.Get("#").Int())
	assert.Equal(t, "text", parts.Get("0.type").String())
	assert.Equal(t, "what is this", parts.Get("0.text").String())
	assert.Equal(t, "image_url", parts.Get("1.type").String())
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", parts.Get("1.image_url.url").String())
	assert.Equal(t, "https://example.com/x.png", parts.Get("2.image_url.url").String())
}

func TestSingleTextBlockStaysString(t *testing.T) {
	body := []byte(`{
		"model": "claude-sonnet-4-5",
		"messages": [
			{"role": "user", "content": [{"type": "text", "text": "just text"}]}
		]
	}`)

	conv, err := AnthropicToOpenAIRequest(body)
	require.NoError(t, err)
	content := gjson.GetBytes(conv.Payload, "messages.0.content")
	assert.Equal(t, gjson.String, content.Type)
	assert.Equal(t, "just text", content.String())
}

func TestMultipleTextBlocksBecomeParts(t *testing.T) {
	body := []byte(`{
		"model": "claude-sonnet-4-5",
		"messages": [
			{"role": "user", "content": [
				{"type": "text", "text": "one"},
				{"type": "text", "text": "two"}
			]}
		]
	}`)

	conv, err := AnthropicToOpenAIRequest(body)
	require.NoError(t, err)
	content := gjson.GetBytes(conv.Payload, "messages.0.content")
	require.True(t, content.IsArray())
	assert.Equal(t, "one", content.Get("0.text").String())
	assert.Equal(t, "two", content.Get("1.text").String())
}

func TestConvertToolDefinitions(t *testing.T) {
	body := []byte(`{
		"model": "claude-sonnet-4-5",
		"messages": [{"role": "user", "content": "hi"}],
		"tools": [
			{"name": "calc", "description": "Calculator", "input_schema": {"type": "object", "properties": {"x": {"type": "number"}}}},
			{"name": "bare"},
			{"type": "bash_20250124", "name": "bash"}
		]
	}`)

	conv, err := AnthropicToOpenAIRequest(body)
	require.NoError(t, err)
	tools := gjson.GetBytes(conv.Payload, "tools")
	require.Equal(t, int64(3), tools.Get("#").Int())

	assert.Equal(t, "function", tools.Get("0.type").String())
	assert.Equal(t, "calc", tools.Get("0.function.name").String())
	assert.Equal(t, "Calculator", tools.Get("0.function.description").String())
	assert.Equal(t, "number", tools.Get("0.function.parameters.properties.x.type").String())

	assert.Equal(t, "bare", tools.Get("1.function.name").String())
	assert.JSONEq(t, `{"type":"object","properties":{}}`, tools.Get("1.function.parameters").Raw)

	assert.Equal(t, "bash", tools.Get("2.function.name").String())
	assert.Equal(t, "Anthropic bash_20250124 tool", tools.Get("2.function.description").String())
	assert.JSONEq(t, `{"type":"object","properties":{}}`, tools.Get("2.function.parameters").Raw)
}

func TestConvertToolChoiceForms(t *testing.T) {
	tests := []struct {
		name   string
		choice string
		want   string
	}{
		{"auto object", `{"type":"auto"}`, `"auto"`},
		{"any object", `{"type":"any"}`, `"required"`},
		{"none object", `{"type":"none"}`, `"none"`},
		{"specific tool", `{"type":"tool","name":"calc"}`, `{"type":"function","function":{"name":"calc"}}`},
		{"bare string any", `"any"`, `"required"`},
		{"bare string auto", `"auto"`, `"auto"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(`{
				"model": "claude-sonnet-4-5",
				"messages": [{"role": "user", "content": "hi"}],
				"tool_choice": ` + tt.choice + `
			}`)
			conv, err := AnthropicToOpenAIRequest(body)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, gjson.GetBytes(conv.Payload, "tool_choice").Raw)
		})
	}
}

func TestAssistantTextAroundToolUse(t *testing.T) {
	body := []byte(`{
		"model": "claude-sonnet-4-5",
		"messages": [
			{"role": "assistant", "content": [
				{"type": "text", "text": "before"},
				{"type": "tool_use", "id": "toolu_1", "name": "a", "input": {}},
				{"type": "text", "text": "after"}
			]}
		]
	}`)

	conv, err := AnthropicToOpenAIRequest(body)
	require.NoError(t, err)
	msg := gjson.GetBytes(conv.Payload, "messages.0")
	assert.Equal(t, "before\nafter", msg.Get("content").String())
	assert.Equal(t, int64(1), msg.Get("tool_calls.#").Int())
}
