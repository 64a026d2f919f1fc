package responses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestPrepareRequestDefaults(t *testing.T) {
	body := []byte(`{"model":"gpt-5","input":"hello"}`)
	shaped, vision, initiator := PrepareRequest(body)

	assert.Equal(t, body, shaped)
	assert.False(t, vision)
	assert.Equal(t, InitiatorUser, initiator)
}

func TestHasVisionInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{
			name: "input_image part",
			body: `{"input":[{"role":"user","content":[{"type":"input_image","image_url":"data:image/png;base64,x"}]}]}`,
			want: true,
		},
		{
			name: "image part",
			body: `{"input":[{"role":"user","content":[{"type":"text","text":"hi"},{"type":"image"}]}]}`,
			want: true,
		},
		{
			name: "image_url part",
			body: `{"input":[{"role":"user","content":[{"type":"image_url","image_url":{"url":"https://x/y.png"}}]}]}`,
			want: true,
		},
		{
			name: "text only",
			body: `{"input":[{"role":"user","content":[{"type":"input_text","text":"hi"}]}]}`,
			want: false,
		},
		{
			name: "string input",
			body: `{"input":"plain prompt"}`,
			want: false,
		},
		{
			name: "string content",
			body: `{"input":[{"role":"user","content":"hi"}]}`,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasVisionInput([]byte(tt.body)))
		})
	}
}

func TestHasAgentInitiator(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{
			name: "last item assistant",
			body: `{"input":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`,
			want: true,
		},
		{
			name: "assistant not last",
			body: `{"input":[{"role":"assistant","content":"hello"},{"role":"user","content":"hi"}]}`,
			want: false,
		},
		{
			name: "function_call item",
			body: `{"input":[{"type":"function_call","name":"get_weather","arguments":"{}"}]}`,
			want: true,
		},
		{
			name: "function_call_output item",
			body: `{"input":[{"type":"function_call_output","call_id":"c1","output":"42"}]}`,
			want: true,
		},
		{
			name: "reasoning item",
			body: `{"input":[{"type":"reasoning","summary":[]}]}`,
			want: true,
		},
		{
			name: "uppercase role",
			body: `{"input":[{"role":"ASSISTANT","content":"hello"}]}`,
			want: true,
		},
		{
			name: "empty input",
			body: `{"input":[]}`,
			want: false,
		},
		{
			name: "string input",
			body: `{"input":"hi"}`,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasAgentInitiator([]byte(tt.body)))
		})
	}
}

func TestPatchApplyPatchTool(t *testing.T) {
	body := []byte(`{"model":"gpt-5","tools":[{"type":"custom","name":"apply_patch","format":{"type":"grammar"}},{"type":"function","name":"get_weather","parameters":{"type":"object"}}]}`)

	shaped, _, _ := PrepareRequest(body)

	patched := gjson.GetBytes(shaped, "tools.0")
	assert.Equal(t, "function", patched.Get("type").String())
	assert.Equal(t, "apply_patch", patched.Get("name").String())
	assert.Equal(t, "Use the `apply_patch` tool to edit files", patched.Get("description").String())
	assert.Equal(t, "object", patched.Get("parameters.type").String())
	assert.Equal(t, "string", patched.Get("parameters.properties.input.type").String())
	assert.Equal(t, "input", patched.Get("parameters.required.0").String())
	assert.False(t, patched.Get("strict").Bool())

	untouched := gjson.GetBytes(shaped, "tools.1")
	assert.Equal(t, "function", untouched.Get("type").String())
	assert.Equal(t, "get_weather", untouched.Get("name").String())
}

func TestPatchApplyPatchToolLeavesOtherCustomTools(t *testing.T) {
	body := []byte(`{"tools":[{"type":"custom","name":"run_shell"}]}`)
	shaped, _, _ := PrepareRequest(body)
	assert.Equal(t, "custom", gjson.GetBytes(shaped, "tools.0.type").String())
}
