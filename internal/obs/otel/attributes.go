package otel

import "go.opentelemetry.io/otel/attribute"

// Semantic convention attributes following OpenLLMetry and OpenTelemetry
// standards, used to annotate usage metrics with consistent labels.

var (
	// AttrLLMModel identifies the upstream model used (e.g., "claude-sonnet-4.5")
	AttrLLMModel = attribute.Key("llm.model")

	// AttrLLMRequestModel identifies the model name requested by the client
	AttrLLMRequestModel = attribute.Key("llm.request.model")

	// AttrLLMTokenType identifies the type of token (input/output)
	AttrLLMTokenType = attribute.Key("llm.token_type")

	// AttrLLMSurface identifies the protocol surface ("chat", "messages", "responses")
	AttrLLMSurface = attribute.Key("llm.surface")

	// AttrLLMStreaming indicates whether the request was streaming
	AttrLLMStreaming = attribute.Key("llm.streaming")

	// AttrLLMResponseStatus indicates the response status (success, error, canceled)
	AttrLLMResponseStatus = attribute.Key("llm.response.status")

	// AttrLLMErrorCode contains the error code if status is error
	AttrLLMErrorCode = attribute.Key("llm.error.code")
)
