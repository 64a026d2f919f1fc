package translate

import "strings"

// anthropicToCopilotModels maps Anthropic-style model names, as sent by
// Claude Code and other Anthropic SDK clients, to the names the Copilot API
// serves. Case-sensitive; unknown names fall through to fuzzy matching.
var anthropicToCopilotModels = map[string]string{
	// Claude Sonnet 4.5 variants
	"claude-sonnet-4-5-20250929": "claude-sonnet-4.5",
	"claude-sonnet-4.5-20250929": "claude-sonnet-4.5",
	"claude-4-5-sonnet":          "claude-sonnet-4.5",
	"claude-4.5-sonnet":          "claude-sonnet-4.5",

	// Claude Sonnet 4 variants
	"claude-sonnet-4-20250514": "claude-sonnet-4",
	"claude-sonnet-4":          "claude-sonnet-4",
	"claude-4-sonnet":          "claude-sonnet-4",

	// Claude Opus 4.5 variants
	"claude-opus-4-5-20250929": "claude-opus-4.5",
	"claude-opus-4.5-20250929": "claude-opus-4.5",
	"claude-4-5-opus":          "claude-opus-4.5",
	"claude-4.5-opus":          "claude-opus-4.5",

	// Claude Opus 4.6 variants
	"claude-opus-4-6": "claude-opus-4.6",
	"claude-opus-4.6": "claude-opus-4.6",
	"claude-4-6-opus": "claude-opus-4.6",
	"claude-4.6-opus": "claude-opus-4.6",

	// Claude Opus 4 variants
	"claude-opus-4-20250514": "claude-opus-41",
	"claude-opus-4":          "claude-opus-41",
	"claude-4-opus":          "claude-opus-41",

	// Claude Haiku 4.5 variants
	"claude-haiku-4-5": "claude-haiku-4.5",
	"claude-haiku-4.5": "claude-haiku-4.5",
	"claude-4-5-haiku": "claude-haiku-4.5",
	"claude-4.5-haiku": "claude-haiku-4.5",

	// Claude 3.5 Sonnet (older naming)
	"claude-3-5-sonnet-20241022": "claude-sonnet-4",
	"claude-3-5-sonnet-20240620": "claude-sonnet-4",
	"claude-3-5-sonnet":          "claude-sonnet-4",
	"claude-3.5-sonnet":          "claude-sonnet-4",

	// Claude 3 Opus (older naming)
	"claude-3-opus-20240229": "claude-opus-41",
	"claude-3-opus":          "claude-opus-41",
	"claude-3.0-opus":        "claude-opus-41",

	// Claude 3 Haiku
	"claude-3-haiku-20240307": "claude-haiku-4.5",
	"claude-3-haiku":          "claude-haiku-4.5",
	"claude-3.0-haiku":        "claude-haiku-4.5",
}

// MapAnthropicModel resolves an Anthropic model name to a Copilot-served
// one. Names already in Copilot form (they contain a version dot) pass
// through, unknown Claude variants are matched fuzzily on family substrings,
// and anything else (gpt-*, gemini-*) is returned unchanged.
func MapAnthropicModel(model string) string {
	if mapped, ok := anthropicToCopilotModels[model]; ok {
		return mapped
	}

	if strings.Contains(model, ".") {
		return model
	}

	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "sonnet"):
		if strings.Contains(lower, "4-5") || strings.Contains(lower, "4.5") {
			return "claude-sonnet-4.5"
		}
		return "claude-sonnet-4"
	case strings.Contains(lower, "opus"):
		if strings.Contains(lower, "4-6") || strings.Contains(lower, "4.6") {
			return "claude-opus-4.6"
		}
		if strings.Contains(lower, "4-5") || strings.Contains(lower, "4.5") {
			return "claude-opus-4.5"
		}
		return "claude-opus-41"
	case strings.Contains(lower, "haiku"):
		return "claude-haiku-4.5"
	}

	return model
}
