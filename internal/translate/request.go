package translate

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ConvertedRequest is the outcome of translating an Anthropic /v1/messages
// request into the chat completions dialect.
type ConvertedRequest struct {
	// Payload is the OpenAI chat completions request body.
	Payload []byte
	// Model is the model name exactly as the client sent it; responses echo
	// it back.
	Model string
	// UpstreamModel is the Copilot-side resolution of Model.
	UpstreamModel string
	// Stream reports whether the client asked for SSE.
	Stream bool
}

// AnthropicToOpenAIRequest converts an Anthropic /v1/messages request body
// to the OpenAI chat completions format: system prompts become a leading
// system message, tool_use blocks become assistant tool_calls, tool_result
// blocks become tool-role messages, and tools/tool_choice definitions are
// re-shaped.
func AnthropicToOpenAIRequest(body []byte) (*ConvertedRequest, error) {
	var req AnthropicRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to decode anthropic request: %w", err)
	}

	messages := make([]OpenAIMessage, 0, len(req.Messages)+1)

	if system := flattenSystem(req.System); system != "" {
		messages = append(messages, OpenAIMessage{Role: "system", Content: system})
	}

	for _, msg := range req.Messages {
		messages = append(messages, convertMessage(msg)...)
	}

	model := req.Model
	if model == "" {
		model = "gpt-4o"
	}
	upstreamModel := MapAnthropicModel(model)

	out := OpenAIRequest{
		Model:       upstreamModel,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
		Stream:      req.Stream,
	}

	if req.Tools != nil {
		out.Tools = convertTools(req.Tools)
		logrus.Debugf("Converted %d Anthropic tools to OpenAI format", len(req.Tools))
	}
	if len(req.ToolChoice) > 0 {
		out.ToolChoice = convertToolChoice(req.ToolChoice)
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode openai request: %w", err)
	}

	return &ConvertedRequest{
		Payload:       payload,
		Model:         model,
		UpstreamModel: upstreamModel,
		Stream:        req.Stream,
	}, nil
}

// flattenSystem accepts the system field as a bare string or a list of text
// blocks and returns the prompt text, empty when absent.
func flattenSystem(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// convertMessage translates one Anthropic turn. A single turn can expand to
// several chat completions messages when tool results are involved.
func convertMessage(msg AnthropicMessage) []OpenAIMessage {
	var text string
	if err := json.Unmarshal(msg.Content, &text); err == nil {
		return []OpenAIMessage{{Role: msg.Role, Content: text}}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(msg.Content, &items); err != nil {
		// Not a string and not a list: tolerate it as opaque text.
		content := ""
		if len(msg.Content) > 0 && string(msg.Content) != "null" {
			content = string(msg.Content)
		}
		return []OpenAIMessage{{Role: msg.Role, Content: content}}
	}

	var textParts []OpenAIContentPart
	var toolUses []ContentBlock
	var toolResults []ContentBlock
	hasNonText := false

	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			textParts = append(textParts, OpenAIContentPart{Type: "text", Text: s})
			continue
		}
		var block ContentBlock
		if err := json.Unmarshal(item, &block); err != nil {
			continue
		}
		switch block.Type {
		case "text":
			textParts = append(textParts, OpenAIContentPart{Type: "text", Text: block.Text})
		case "image":
			if part, ok := convertImageBlock(block.Source); ok {
				textParts = append(textParts, part)
				hasNonText = true
			}
		case "tool_use":
			toolUses = append(toolUses, block)
		case "tool_result":
			toolResults = append(toolResults, block)
		}
	}

	switch {
	case msg.Role == "assistant" && len(toolUses) > 0:
		return []OpenAIMessage{assistantToolCallMessage(textParts, toolUses)}
	case len(toolResults) > 0:
		return toolResultMessages(msg.Role, textParts, hasNonText, toolResults)
	default:
		return []OpenAIMessage{{Role: msg.Role, Content: mixedContent(textParts, hasNonText)}}
	}
}

// convertImageBlock maps an Anthropic image source to an OpenAI image_url
// part. Unknown source types are dropped.
func convertImageBlock(source *ImageSource) (OpenAIContentPart, bool) {
	if source == nil {
		return OpenAIContentPart{}, false
	}
	switch source.Type {
	case "base64":
		mediaType := source.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}
		url := fmt.Sprintf("data:%s;base64,%s", mediaType, source.Data)
		return OpenAIContentPart{Type: "image_url", ImageURL: &OpenAIImageURL{URL: url}}, true
	case "url":
		return OpenAIContentPart{Type: "image_url", ImageURL: &OpenAIImageURL{URL: source.URL}}, true
	}
	return OpenAIContentPart{}, false
}

// assistantToolCallMessage folds an assistant turn's text and tool_use
// blocks into one message carrying tool_calls. Content is null when the
// assistant only called tools.
func assistantToolCallMessage(textParts []OpenAIContentPart, toolUses []ContentBlock) OpenAIMessage {
	out := OpenAIMessage{Role: "assistant"}

	if text := joinTextParts(textParts); text != "" {
		out.Content = text
	}

	out.ToolCalls = make([]OpenAIToolCall, 0, len(toolUses))
	for _, tu := range toolUses {
		id := tu.ID
		if id == "" {
			id = mintID("call_")
		}
		out.ToolCalls = append(out.ToolCalls, OpenAIToolCall{
			ID:   id,
			Type: "function",
			Function: OpenAIFunction{
				Name:      tu.Name,
				Arguments: encodeToolArguments(tu.Input),
			},
		})
	}
	return out
}

// toolResultMessages expands a user turn carrying tool_result blocks: text
// and image parts go first as a user message, then one tool-role message per
// result.
func toolResultMessages(role string, textParts []OpenAIContentPart, hasNonText bool, toolResults []ContentBlock) []OpenAIMessage {
	var out []OpenAIMessage

	if len(textParts) > 0 {
		if hasNonText || len(textParts) > 1 {
			out = append(out, OpenAIMessage{Role: role, Content: textParts})
		} else if text := joinTextParts(textParts); text != "" {
			out = append(out, OpenAIMessage{Role: role, Content: text})
		}
	}

	for _, tr := range toolResults {
		content := flattenToolResult(tr.Content)
		if tr.IsError {
			content = "[ERROR] " + content
		}
		out = append(out, OpenAIMessage{
			Role:       "tool",
			ToolCallID: tr.ToolUseID,
			Content:    content,
		})
	}
	return out
}

// mixedContent picks the flat-string or array form for regular content:
// arrays only when a non-text part exists or there is more than one part.
func mixedContent(textParts []OpenAIContentPart, hasNonText bool) any {
	if hasNonText || len(textParts) > 1 {
		return textParts
	}
	return joinTextParts(textParts)
}

func joinTextParts(parts []OpenAIContentPart) string {
	var texts []string
	for _, p := range parts {
		if p.Type == "text" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// flattenToolResult reduces a tool_result content payload to a string:
// strings pass through, block lists join their text entries, anything else
// is re-encoded as JSON.
func flattenToolResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		var parts []string
		for _, item := range items {
			var str string
			if err := json.Unmarshal(item, &str); err == nil {
				parts = append(parts, str)
				continue
			}
			var block ContentBlock
			if err := json.Unmarshal(item, &block); err == nil && block.Type == "text" {
				parts = append(parts, block.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return compactJSON(raw)
}

// encodeToolArguments turns a tool_use input value into the JSON string the
// chat completions dialect expects.
func encodeToolArguments(input json.RawMessage) string {
	if len(input) == 0 {
		return "{}"
	}
	return compactJSON(input)
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// emptyObjectSchema is the parameters value used when a tool declares no
// input schema.
func emptyObjectSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

// convertTools maps Anthropic tool definitions to OpenAI function tools.
// Anthropic built-in tool types keep their name and get a synthetic
// description.
func convertTools(tools []AnthropicTool) []OpenAITool {
	out := make([]OpenAITool, 0, len(tools))
	for _, tool := range tools {
		toolType := tool.Type
		if toolType == "" {
			toolType = "custom"
		}

		if isBuiltinToolType(toolType) {
			name := tool.Name
			if name == "" {
				name = toolType
			}
			description := tool.Description
			if description == "" {
				description = "Anthropic " + toolType + " tool"
			}
			parameters := tool.InputSchema
			if len(parameters) == 0 {
				parameters = emptyObjectSchema()
			}
			out = append(out, OpenAITool{
				Type: "function",
				Function: OpenAIFunctionDef{
					Name:        name,
					Description: description,
					Parameters:  parameters,
				},
			})
			continue
		}

		def := OpenAIFunctionDef{
			Name:        tool.Name,
			Description: tool.Description,
		}
		schema := strings.TrimSpace(string(tool.InputSchema))
		if schema == "" || schema == "null" || schema == "{}" {
			def.Parameters = emptyObjectSchema()
		} else {
			def.Parameters = tool.InputSchema
		}
		out = append(out, OpenAITool{Type: "function", Function: def})
	}
	return out
}

func isBuiltinToolType(toolType string) bool {
	return strings.HasPrefix(toolType, "computer_") ||
		strings.HasPrefix(toolType, "bash_") ||
		strings.HasPrefix(toolType, "text_editor_")
}

// convertToolChoice maps Anthropic tool_choice forms to OpenAI ones:
// auto→auto, any→required, none→none, {type:tool,name}→function selector.
// Anything unrecognized falls back to auto.
func convertToolChoice(raw json.RawMessage) any {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "any" {
			return "required"
		}
		return s
	}

	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		switch obj.Type {
		case "", "auto":
			return "auto"
		case "any":
			return "required"
		case "none":
			return "none"
		case "tool":
			tc := OpenAIToolChoiceFunction{Type: "function"}
			tc.Function.Name = obj.Name
			return tc
		}
	}
	return "auto"
}

// mintID builds an identifier with the given prefix and 24 hex chars of
// randomness, mirroring the id shapes both dialects use.
func mintID(prefix string) string {
	u := uuid.New()
	return prefix + hex.EncodeToString(u[:])[:24]
}
