package translate

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage"`
}

type openAIChoice struct {
	Message      openAIChoiceMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type openAIChoiceMessage struct {
	Content   json.RawMessage  `json:"content"`
	ToolCalls []OpenAIToolCall `json:"tool_calls"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// OpenAIToAnthropicResponse converts a chat completions response to the
// Anthropic Messages shape. Every choice is merged in order: the upstream
// sometimes splits text and tool_calls across separate choices and all of
// them must be preserved. Text blocks come first, then tool_use blocks.
func OpenAIToAnthropicResponse(body []byte, model string) (*AnthropicResponse, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode openai response: %w", err)
	}

	var content []any
	for _, choice := range resp.Choices {
		if text := decodeMessageText(choice.Message.Content); text != "" {
			content = append(content, TextBlock{Type: "text", Text: text})
		}
	}
	for _, choice := range resp.Choices {
		for _, tc := range choice.Message.ToolCalls {
			id := tc.ID
			if id == "" {
				id = mintID("toolu_")
			}
			content = append(content, ToolUseBlock{
				Type:  "tool_use",
				ID:    id,
				Name:  tc.Function.Name,
				Input: decodeToolArguments(tc.Function.Arguments),
			})
		}
	}
	if len(content) == 0 {
		content = append(content, TextBlock{Type: "text", Text: ""})
	}

	finishReason := ""
	for _, choice := range resp.Choices {
		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}
	}

	usage := AnthropicUsage{}
	if resp.Usage != nil {
		usage.InputTokens = resp.Usage.PromptTokens
		usage.OutputTokens = resp.Usage.CompletionTokens
	}

	return &AnthropicResponse{
		ID:         mintID("msg_"),
		Type:       "message",
		Role:       "assistant",
		Model:      model,
		Content:    content,
		StopReason: mapFinishReason(finishReason),
		Usage:      usage,
	}, nil
}

// decodeMessageText tolerates string, null or absent content.
func decodeMessageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// decodeToolArguments parses the JSON-encoded arguments string; anything
// undecodable degrades to an empty object.
func decodeToolArguments(arguments string) json.RawMessage {
	if arguments != "" && json.Valid([]byte(arguments)) {
		return json.RawMessage(arguments)
	}
	return json.RawMessage(`{}`)
}

// mapFinishReason translates OpenAI finish reasons to Anthropic stop
// reasons. Unknown and missing reasons degrade to end_turn.
func mapFinishReason(reason string) string {
	switch reason {
	case "tool_calls":
		return string(anthropic.StopReasonToolUse)
	case "length":
		return string(anthropic.StopReasonMaxTokens)
	default:
		return string(anthropic.StopReasonEndTurn)
	}
}
