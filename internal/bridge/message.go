// Package bridge defines the wire protocol spoken between the webclaw host
// and the browser worker: a correlated request/response envelope, the closed
// method taxonomy, and the canonical error codes shared by both sides.
package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType discriminates the four envelope kinds.
type MessageType string

const (
	TypeRequest  MessageType = "request"
	TypeResponse MessageType = "response"
	TypeAck      MessageType = "ack"
	TypeError    MessageType = "error"
)

// Method names the bridge operations. The taxonomy is closed: a request
// carrying anything else is answered with UNKNOWN_METHOD.
type Method string

const (
	MethodNavigate          Method = "navigate"
	MethodSnapshot          Method = "snapshot"
	MethodClick             Method = "click"
	MethodHover             Method = "hover"
	MethodTypeText          Method = "typeText"
	MethodSelectOption      Method = "selectOption"
	MethodListWebMCPTools   Method = "listWebMCPTools"
	MethodInvokeWebMCPTool  Method = "invokeWebMCPTool"
	MethodScreenshot        Method = "screenshot"
	MethodPing              Method = "ping"
	MethodNewTab            Method = "newTab"
	MethodListTabs          Method = "listTabs"
	MethodSwitchTab         Method = "switchTab"
	MethodCloseTab          Method = "closeTab"
	MethodGoBack            Method = "goBack"
	MethodGoForward         Method = "goForward"
	MethodReload            Method = "reload"
	MethodWaitForNavigation Method = "waitForNavigation"
	MethodScrollPage        Method = "scrollPage"
	MethodDropFiles         Method = "dropFiles"
)

var knownMethods = map[Method]struct{}{
	MethodNavigate: {}, MethodSnapshot: {}, MethodClick: {}, MethodHover: {},
	MethodTypeText: {}, MethodSelectOption: {}, MethodListWebMCPTools: {},
	MethodInvokeWebMCPTool: {}, MethodScreenshot: {}, MethodPing: {},
	MethodNewTab: {}, MethodListTabs: {}, MethodSwitchTab: {}, MethodCloseTab: {},
	MethodGoBack: {}, MethodGoForward: {}, MethodReload: {},
	MethodWaitForNavigation: {}, MethodScrollPage: {}, MethodDropFiles: {},
}

// Known reports whether m is part of the closed method taxonomy.
func (m Method) Known() bool {
	_, ok := knownMethods[m]
	return ok
}

// Message is the transport-agnostic envelope. It serializes as UTF-8 JSON;
// the framing (length prefix or WebSocket text frame) is the transport's job.
//
// Every non-request message carries the id of the request it answers. An ack
// is advisory only and never resolves a pending request.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Method    Method          `json:"method,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewRequest builds a request envelope with a fresh correlation id.
// Ids are cryptographic UUIDs, unique for the lifetime of the process.
func NewRequest(method Method, payload any) (Message, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", method, err)
	}
	return Message{
		ID:        uuid.NewString(),
		Type:      TypeRequest,
		Method:    method,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// NewResponse builds the success response for req.
func NewResponse(req Message, payload any) (Message, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s response: %w", req.Method, err)
	}
	return Message{
		ID:        req.ID,
		Type:      TypeResponse,
		Method:    req.Method,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// NewAck builds an advisory ack for a long-running request.
func NewAck(req Message) Message {
	return Message{
		ID:        req.ID,
		Type:      TypeAck,
		Method:    req.Method,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewErrorMessage builds the error response for req.
func NewErrorMessage(req Message, code ErrorCode, text string) Message {
	raw, _ := json.Marshal(ErrorPayload{Code: code, Message: text})
	return Message{
		ID:        req.ID,
		Type:      TypeError,
		Method:    req.Method,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	}
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}

// DecodePayload unmarshals a message payload into out. A nil payload is
// treated as an empty object so request structs keep their zero values.
func (m Message) DecodePayload(out any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, out)
}
