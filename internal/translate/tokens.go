package translate

import (
	"encoding/json"

	"github.com/tiktoken-go/tokenizer"
)

// EstimateInputTokens approximates the input token count of an Anthropic
// messages request with the O200kBase encoding. Copilot has no native
// count-tokens endpoint, so this is an estimate: roles, system prompt and
// text content are counted, images and tool schemas are not. Falls back to a
// character-based estimate when the tokenizer is unavailable.
func EstimateInputTokens(req *AnthropicRequest) int {
	enc, encErr := tokenizer.Get(tokenizer.O200kBase)

	countOrEstimate := func(text string) int {
		if encErr != nil {
			return len(text) / 4
		}
		c, err := enc.Count(text)
		if err != nil {
			return len(text) / 4
		}
		return c
	}

	total := 0

	if system := flattenSystem(req.System); system != "" {
		total += countOrEstimate(system)
	}

	for _, msg := range req.Messages {
		total += countOrEstimate(msg.Role)
		for _, text := range messageTexts(msg) {
			total += countOrEstimate(text)
		}
	}

	// Request framing overhead.
	total += 3

	return total
}

// messageTexts extracts the countable text of one turn: bare string content,
// text blocks, thinking blocks and flattened tool results.
func messageTexts(msg AnthropicMessage) []string {
	var s string
	if err := json.Unmarshal(msg.Content, &s); err == nil {
		return []string{s}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(msg.Content, &items); err != nil {
		return nil
	}

	var texts []string
	for _, item := range items {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			texts = append(texts, str)
			continue
		}
		var block struct {
			Type     string          `json:"type"`
			Text     string          `json:"text"`
			Thinking string          `json:"thinking"`
			Content  json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(item, &block); err != nil {
			continue
		}
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "thinking":
			texts = append(texts, block.Thinking)
		case "tool_result":
			if content := flattenToolResult(block.Content); content != "" {
				texts = append(texts, content)
			}
		}
	}
	return texts
}
