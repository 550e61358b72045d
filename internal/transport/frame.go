package transport

import (
	"encoding/json"
	"errors"
)

// FrameType kind of a multiplexed frame
type FrameType string

const (
	// FrameConnect client asks to join a namespace, server acknowledges with the same type
	FrameConnect FrameType = "connect"
	// FrameConnectError server rejected a namespace connect
	FrameConnectError FrameType = "connect_error"
	// FrameDisconnect either side leaves a namespace
	FrameDisconnect FrameType = "disconnect"
	// FrameEvent application event inside a namespace
	FrameEvent FrameType = "event"
)

const (
	// NamespaceChat group chat events
	NamespaceChat = "/chat"
	// NamespaceNotification push notifications
	NamespaceNotification = "/notification"
	// NamespaceChatbot chatbot admin crawl/embedding/resource events
	NamespaceChatbot = "/chatbot"
)

const (
	// EventConnect dispatched locally when a namespace connect is acknowledged
	EventConnect = "connect"
	// EventDisconnect dispatched locally when a namespace drops or is rejected
	EventDisconnect = "disconnect"
)

// Frame one message on the physical connection
type Frame struct {
	Type      FrameType       `json:"type"`
	Namespace string          `json:"nsp"`
	Event     string          `json:"event,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ConnectPayload data of a client connect frame
type ConnectPayload struct {
	Token string `json:"token"`
}

// ErrorPayload data of connect_error and disconnect frames
type ErrorPayload struct {
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Handler receives the raw payload of one event
type Handler func(payload json.RawMessage)

var (
	// ErrUnknownNamespace namespace was never connected or has been torn down
	ErrUnknownNamespace = errors.New("unknown namespace")
	// ErrNotConnected the frame could not leave the client
	ErrNotConnected = errors.New("namespace not connected")
	// ErrClosed registry already closed
	ErrClosed = errors.New("transport registry closed")
	// ErrRejected server refused the namespace connect
	ErrRejected = errors.New("namespace connect rejected")
)

// NewEventFrame marshals payload into an event frame
func NewEventFrame(namespace, event string, payload any) (Frame, error) {
	f := Frame{Type: FrameEvent, Namespace: namespace, Event: event}
	if payload == nil {
		return f, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return f, err
	}
	f.Data = data
	return f, nil
}
