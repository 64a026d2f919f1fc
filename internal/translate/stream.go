package translate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/anthropics/anthropic-sdk-go"
)

// LineSource yields complete SSE lines, trailing newline included. It is the
// read side of an upstream line stream.
type LineSource interface {
	Next() bool
	Line() []byte
	Err() error
}

// EmitFunc receives one Anthropic SSE event: the event name and its JSON
// payload.
type EmitFunc func(event string, data []byte) error

// Anthropic stream event names.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
)

type chatChunk struct {
	Choices []chunkChoice `json:"choices"`
	Usage   *chunkUsage   `json:"usage"`
}

type chunkChoice struct {
	Delta        chunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason"`
}

type chunkDelta struct {
	Content   string          `json:"content"`
	ToolCalls []chunkToolCall `json:"tool_calls"`
}

type chunkToolCall struct {
	Index    *int   `json:"index"`
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chunkUsage struct {
	PromptTokens     *int `json:"prompt_tokens"`
	CompletionTokens *int `json:"completion_tokens"`
}

type streamMessage struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []any          `json:"content"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        AnthropicUsage `json:"usage"`
}

type messageStartEvent struct {
	Type    string        `json:"type"`
	Message streamMessage `json:"message"`
}

type contentBlockStartEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock any    `json:"content_block"`
}

type contentBlockDeltaEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta any    `json:"delta"`
}

type contentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type textDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type inputJSONDelta struct {
	Type        string `json:"type"`
	PartialJSON string `json:"partial_json"`
}

type messageDeltaEvent struct {
	Type  string            `json:"type"`
	Delta messageDeltaBody  `json:"delta"`
	Usage messageDeltaUsage `json:"usage"`
}

type messageDeltaBody struct {
	StopReason   string  `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

type messageDeltaUsage struct {
	OutputTokens int `json:"output_tokens"`
}

type messageStopEvent struct {
	Type string `json:"type"`
}

// toolTracker follows one upstream tool call across its argument fragments.
type toolTracker struct {
	blockIndex int
	id         string
	name       string
}

// streamState is the per-stream mutable state of the translation. Block
// indices are dense and assigned in emission order: the text block, when
// present, takes the index at which text first appeared; each distinct
// upstream tool index takes the next one.
type streamState struct {
	model          string
	messageID      string
	sentStart      bool
	textBlockIndex int
	nextBlockIndex int
	toolBlocks     map[int]*toolTracker
	finishReason   string
	inputTokens    int
	outputTokens   int
}

func newStreamState(model string) *streamState {
	return &streamState{
		model:          model,
		messageID:      mintID("msg_"),
		textBlockIndex: -1,
		toolBlocks:     make(map[int]*toolTracker),
		finishReason:   string(anthropic.StopReasonEndTurn),
	}
}

// TranslateStream consumes an OpenAI chat completions SSE line stream and
// emits the equivalent Anthropic Messages events. It terminates on `data:
// [DONE]` or when the input ends, and returns the token usage observed.
//
// The transform buffers nothing beyond per-block trackers, so memory stays
// proportional to the number of open blocks rather than stream length.
func TranslateStream(lines LineSource, model string, emit EmitFunc) (UsageStat, error) {
	state := newStreamState(model)

	for lines.Next() {
		line := bytes.TrimSpace(lines.Line())
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		data := bytes.TrimPrefix(line, []byte("data: "))
		if bytes.Equal(data, []byte("[DONE]")) {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			continue
		}
		if err := state.processChunk(&chunk, emit); err != nil {
			return state.usage(), err
		}
	}
	if err := lines.Err(); err != nil {
		return state.usage(), err
	}

	return state.usage(), state.finalize(emit)
}

func (s *streamState) usage() UsageStat {
	return UsageStat{InputTokens: s.inputTokens, OutputTokens: s.outputTokens}
}

func (s *streamState) processChunk(chunk *chatChunk, emit EmitFunc) error {
	if !s.sentStart {
		if err := s.emitMessageStart(emit); err != nil {
			return err
		}
	}

	for _, choice := range chunk.Choices {
		if choice.FinishReason != "" {
			s.finishReason = mapFinishReason(choice.FinishReason)
		}
		if choice.Delta.Content != "" {
			if err := s.emitTextDelta(choice.Delta.Content, emit); err != nil {
				return err
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			if err := s.emitToolDelta(tc, emit); err != nil {
				return err
			}
		}
	}

	if chunk.Usage != nil {
		if chunk.Usage.PromptTokens != nil {
			s.inputTokens = *chunk.Usage.PromptTokens
		}
		if chunk.Usage.CompletionTokens != nil {
			s.outputTokens = *chunk.Usage.CompletionTokens
		}
	}
	return nil
}

func (s *streamState) emitMessageStart(emit EmitFunc) error {
	err := emitEvent(emit, EventMessageStart, messageStartEvent{
		Type: EventMessageStart,
		Message: streamMessage{
			ID:      s.messageID,
			Type:    "message",
			Role:    "assistant",
			Model:   s.model,
			Content: []any{},
		},
	})
	if err != nil {
		return err
	}
	s.sentStart = true
	return nil
}

func (s *streamState) emitTextDelta(text string, emit EmitFunc) error {
	if s.textBlockIndex == -1 {
		s.textBlockIndex = s.nextBlockIndex
		s.nextBlockIndex++
		err := emitEvent(emit, EventContentBlockStart, contentBlockStartEvent{
			Type:         EventContentBlockStart,
			Index:        s.textBlockIndex,
			ContentBlock: TextBlock{Type: "text", Text: ""},
		})
		if err != nil {
			return err
		}
	}
	return emitEvent(emit, EventContentBlockDelta, contentBlockDeltaEvent{
		Type:  EventContentBlockDelta,
		Index: s.textBlockIndex,
		Delta: textDelta{Type: "text_delta", Text: text},
	})
}

func (s *streamState) emitToolDelta(tc chunkToolCall, emit EmitFunc) error {
	index := 0
	if tc.Index != nil {
		index = *tc.Index
	}

	tracker, seen := s.toolBlocks[index]
	if !seen {
		tracker = &toolTracker{
			blockIndex: s.nextBlockIndex,
			id:         tc.ID,
			name:       tc.Function.Name,
		}
		s.nextBlockIndex++
		if tracker.id == "" {
			tracker.id = mintID("toolu_")
		}
		s.toolBlocks[index] = tracker

		err := emitEvent(emit, EventContentBlockStart, contentBlockStartEvent{
			Type:  EventContentBlockStart,
			Index: tracker.blockIndex,
			ContentBlock: ToolUseBlock{
				Type:  "tool_use",
				ID:    tracker.id,
				Name:  tracker.name,
				Input: json.RawMessage(`{}`),
			},
		})
		if err != nil {
			return err
		}
	} else {
		// Late id/name fragments update the tracker without re-emitting
		// the start event.
		if tracker.id == "" && tc.ID != "" {
			tracker.id = tc.ID
		}
		if tracker.name == "" && tc.Function.Name != "" {
			tracker.name = tc.Function.Name
		}
	}

	if tc.Function.Arguments == "" {
		return nil
	}
	return emitEvent(emit, EventContentBlockDelta, contentBlockDeltaEvent{
		Type:  EventContentBlockDelta,
		Index: tracker.blockIndex,
		Delta: inputJSONDelta{Type: "input_json_delta", PartialJSON: tc.Function.Arguments},
	})
}

// finalize closes every open block, text first then tool blocks in index
// order, and ends the message. It also covers the degenerate empty upstream
// stream so clients always see a well-formed event sequence.
func (s *streamState) finalize(emit EmitFunc) error {
	if !s.sentStart {
		if err := s.emitMessageStart(emit); err != nil {
			return err
		}
	}

	if s.textBlockIndex != -1 {
		err := emitEvent(emit, EventContentBlockStop, contentBlockStopEvent{
			Type:  EventContentBlockStop,
			Index: s.textBlockIndex,
		})
		if err != nil {
			return err
		}
	}

	blockIndexes := make([]int, 0, len(s.toolBlocks))
	for _, tracker := range s.toolBlocks {
		blockIndexes = append(blockIndexes, tracker.blockIndex)
	}
	sort.Ints(blockIndexes)
	for _, idx := range blockIndexes {
		err := emitEvent(emit, EventContentBlockStop, contentBlockStopEvent{
			Type:  EventContentBlockStop,
			Index: idx,
		})
		if err != nil {
			return err
		}
	}

	err := emitEvent(emit, EventMessageDelta, messageDeltaEvent{
		Type:  EventMessageDelta,
		Delta: messageDeltaBody{StopReason: s.finishReason},
		Usage: messageDeltaUsage{OutputTokens: s.outputTokens},
	})
	if err != nil {
		return err
	}
	return emitEvent(emit, EventMessageStop, messageStopEvent{Type: EventMessageStop})
}

func emitEvent(emit EmitFunc, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	return emit(event, data)
}
