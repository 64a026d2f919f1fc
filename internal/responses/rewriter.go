// Package responses adapts the OpenAI Responses surface to the Copilot
// backend: it shapes request bodies before forwarding and repairs the
// identifier inconsistencies in the backend's SSE streams.
package responses

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Responses stream event types, checked by substring before any JSON
// parsing. Only added/done events need their own handling; the rest are
// patched generically when they carry an output_index.
const (
	eventOutputItemAdded = "response.output_item.added"
	eventOutputItemDone  = "response.output_item.done"
)

// knownEventTypes is the enumeration scanned when classifying a data
// payload. Unknown types fall through to the generic patch path.
var knownEventTypes = []string{
	eventOutputItemAdded,
	eventOutputItemDone,
	"response.output_text.delta",
	"response.output_text.done",
	"response.function_call_arguments.delta",
	"response.function_call_arguments.done",
	"response.reasoning_summary_text.delta",
	"response.reasoning_summary_text.done",
	"response.created",
	"response.completed",
	"response.incomplete",
	"response.failed",
	"error",
}

// Rewriter repairs item identifiers across one Responses SSE stream. The
// Copilot backend emits different ids for the same item in
// `response.output_item.added` and `response.output_item.done`, which breaks
// clients that key their state on the added id. The rewriter records the id
// seen (or minted) at `added` per output_index and forces every later event
// for that index back onto it.
//
// State is single-stream: create one Rewriter per upstream stream and drop
// it when the stream ends.
type Rewriter struct {
	itemIDs map[int]string
	counter int
	now     func() time.Time
}

// NewRewriter creates a rewriter for one stream.
func NewRewriter() *Rewriter {
	return &Rewriter{
		itemIDs: make(map[int]string),
		now:     time.Now,
	}
}

var dataPrefix = []byte("data: ")

// RewriteLine processes one SSE line (trailing newline included) and returns
// the line to forward. Non-data lines, `[DONE]`, unparseable payloads and
// events without an output_index pass through unchanged.
func (r *Rewriter) RewriteLine(line []byte) []byte {
	trimmed := bytes.TrimRight(line, "\r\n")
	if len(trimmed) == 0 || !bytes.HasPrefix(trimmed, dataPrefix) {
		return line
	}

	data := trimmed[len(dataPrefix):]
	if bytes.Equal(data, []byte("[DONE]")) {
		return line
	}

	fixed := r.rewriteData(data)
	out := make([]byte, 0, len(dataPrefix)+len(fixed)+1)
	out = append(out, dataPrefix...)
	out = append(out, fixed...)
	return append(out, '\n')
}

// rewriteData applies the id fix to one JSON payload.
func (r *Rewriter) rewriteData(data []byte) []byte {
	switch detectEventType(data) {
	case eventOutputItemAdded:
		return r.handleAdded(data)
	case eventOutputItemDone:
		return r.handleDone(data)
	default:
		return r.handleOther(data)
	}
}

// handleAdded records the item id for this output_index, minting one when
// the backend omitted it.
func (r *Rewriter) handleAdded(data []byte) []byte {
	if !gjson.ValidBytes(data) {
		return data
	}
	index := gjson.GetBytes(data, "output_index")
	if !index.Exists() {
		return data
	}

	outputIndex := int(index.Int())
	itemID := gjson.GetBytes(data, "item.id").String()
	if itemID == "" {
		itemID = r.mintID(outputIndex)
		patched, err := sjson.SetBytes(data, "item.id", itemID)
		if err != nil {
			return data
		}
		data = patched
	}

	r.itemIDs[outputIndex] = itemID
	return data
}

// handleDone replaces the done event's item id with the one recorded at
// added, so both ends of the item lifecycle agree.
func (r *Rewriter) handleDone(data []byte) []byte {
	if !gjson.ValidBytes(data) {
		return data
	}
	index := gjson.GetBytes(data, "output_index")
	if !index.Exists() {
		return data
	}

	recorded, ok := r.itemIDs[int(index.Int())]
	if !ok {
		return data
	}
	patched, err := sjson.SetBytes(data, "item.id", recorded)
	if err != nil {
		return data
	}
	return patched
}

// handleOther overwrites the top-level item_id on any intermediate event
// whose output_index has a recorded mapping.
func (r *Rewriter) handleOther(data []byte) []byte {
	if !gjson.ValidBytes(data) {
		return data
	}
	index := gjson.GetBytes(data, "output_index")
	if !index.Exists() {
		return data
	}

	recorded, ok := r.itemIDs[int(index.Int())]
	if !ok {
		return data
	}
	patched, err := sjson.SetBytes(data, "item_id", recorded)
	if err != nil {
		return data
	}
	return patched
}

// mintID builds a stream-unique id from the current time in microseconds and
// a per-stream counter.
func (r *Rewriter) mintID(outputIndex int) string {
	r.counter++
	micros := r.now().UnixMicro()
	return fmt.Sprintf("oi_%d_%x%04x", outputIndex, micros, r.counter)
}

// detectEventType scans for the known event type markers without parsing the
// payload. Returns "" when no known marker is present.
func detectEventType(data []byte) string {
	s := string(data)
	for _, etype := range knownEventTypes {
		if strings.Contains(s, `"type":"`+etype+`"`) {
			return etype
		}
	}
	return ""
}
