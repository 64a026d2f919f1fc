package responses

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Initiator values forwarded to the backend via the X-Initiator header.
const (
	InitiatorUser  = "user"
	InitiatorAgent = "agent"
)

// applyPatchSchema is the function-call schema Copilot expects for the
// apply_patch tool. Codex declares it as a "custom" tool, which the backend
// rejects.
const applyPatchSchema = `{"type":"object","properties":{"input":{"type":"string","description":"The entire contents of the apply_patch command"}},"required":["input"]}`

// PrepareRequest shapes a raw Responses request body before it is forwarded:
// rewrites custom apply_patch tool declarations to function type and derives
// the vision flag and initiator from the input items. The returned body is
// the original bytes unless a tool was rewritten.
func PrepareRequest(body []byte) (shaped []byte, vision bool, initiator string) {
	shaped = patchApplyPatchTool(body)
	vision = hasVisionInput(shaped)
	initiator = InitiatorUser
	if hasAgentInitiator(shaped) {
		initiator = InitiatorAgent
	}
	return shaped, vision, initiator
}

// hasVisionInput reports whether any input message carries an image content
// part.
func hasVisionInput(body []byte) bool {
	input := gjson.GetBytes(body, "input")
	if !input.IsArray() {
		return false
	}

	found := false
	input.ForEach(func(_, item gjson.Result) bool {
		content := item.Get("content")
		if !content.IsArray() {
			return true
		}
		content.ForEach(func(_, part gjson.Result) bool {
			switch part.Get("type").String() {
			case "input_image", "image", "image_url":
				found = true
				return false
			}
			return true
		})
		return !found
	})
	return found
}

// hasAgentInitiator reports whether the last input item indicates the
// request was produced by the model side of the conversation rather than
// the user: an assistant message, or a function-call round trip.
func hasAgentInitiator(body []byte) bool {
	input := gjson.GetBytes(body, "input")
	if !input.IsArray() {
		return false
	}
	items := input.Array()
	if len(items) == 0 {
		return false
	}

	last := items[len(items)-1]
	if strings.ToLower(last.Get("role").String()) == "assistant" {
		return true
	}
	switch strings.ToLower(last.Get("type").String()) {
	case "function_call", "function_call_output", "reasoning":
		return true
	}
	return false
}

// patchApplyPatchTool rewrites custom-type apply_patch tool declarations to
// the function-type declaration Copilot accepts.
func patchApplyPatchTool(body []byte) []byte {
	tools := gjson.GetBytes(body, "tools")
	if !tools.IsArray() {
		return body
	}

	patched := body
	for i, tool := range tools.Array() {
		if tool.Get("type").String() != "custom" || tool.Get("name").String() != "apply_patch" {
			continue
		}
		base := "tools." + strconv.Itoa(i)
		patched, _ = sjson.SetBytes(patched, base+".type", "function")
		patched, _ = sjson.SetBytes(patched, base+".description", "Use the `apply_patch` tool to edit files")
		patched, _ = sjson.SetRawBytes(patched, base+".parameters", []byte(applyPatchSchema))
		patched, _ = sjson.SetBytes(patched, base+".strict", false)
	}
	return patched
}
