package bridge

import (
	"encoding/json"
	"fmt"
)

const (
	actionMessage = "message"
	actionOpenURL = "open_url"
	actionError   = "error"
)

// Verbosity hints sent with every outbound message.
const (
	VerbosityVerbose = "verbose"
	VerbosityConcise = "concise"
)

// Outbound is the frame written to the backend for a user message. It is
// immutable once constructed.
type Outbound struct {
	Action    string `json:"action"`
	Text      string `json:"text"`
	Lang      string `json:"lang"`
	Verbosity string `json:"verbosity"`
}

// Inbound is one classified server frame. The backend sends no explicit
// type tag, so classification is structural: Classify tries each shape in a
// fixed precedence order and the first match wins.
type Inbound interface {
	inbound()
}

// PlainText is a frame rendered verbatim as assistant text. It covers raw
// undecodable payloads, non-object payloads, and the final catch-all.
type PlainText struct {
	Text string
}

// AssistantReply carries the assistant's answer from a `response` field.
type AssistantReply struct {
	Text string
}

// Notice is an object carrying only a `message` and no `action`.
type Notice struct {
	Text string
}

// Navigate asks the client to open a URL, optionally alongside an
// assistant message.
type Navigate struct {
	URL     string
	Message string
}

// ErrorNotice is a backend-reported failure, shown as a system-level error
// rather than an assistant turn.
type ErrorNotice struct {
	Message string
}

func (PlainText) inbound()      {}
func (AssistantReply) inbound() {}
func (Notice) inbound()         {}
func (Navigate) inbound()       {}
func (ErrorNotice) inbound()    {}

// Classify decodes one raw frame into an Inbound variant.
//
// The precedence order matters: a payload carrying both `response` and
// `action == "open_url"` classifies as an AssistantReply and must not
// trigger navigation.
func Classify(raw []byte) Inbound {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return PlainText{Text: string(raw)}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		if s, isStr := v.(string); isStr {
			return PlainText{Text: s}
		}
		return PlainText{Text: string(raw)}
	}

	if r, present := obj["response"]; present && truthy(r) {
		return AssistantReply{Text: responseText(r)}
	}

	if m, present := obj["message"]; present && truthy(m) {
		if _, hasAction := obj["action"]; !hasAction {
			return Notice{Text: stringify(m)}
		}
	}

	action, _ := obj["action"].(string)
	switch action {
	case actionOpenURL:
		if url, _ := obj["url"].(string); url != "" {
			msg, _ := obj["message"].(string)
			return Navigate{URL: url, Message: msg}
		}
	case actionError:
		msg, _ := obj["message"].(string)
		return ErrorNotice{Message: msg}
	}

	return PlainText{Text: string(raw)}
}

// responseText extracts assistant text from a `response` value, which may
// be a bare string or an object wrapping a nested `response` string.
func responseText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if nested, ok := t["response"].(string); ok {
			return nested
		}
	}
	return stringify(v)
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// truthy mirrors the loose presence checks of the wire protocol: empty
// strings, zero numbers, false and null do not count as present.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}
