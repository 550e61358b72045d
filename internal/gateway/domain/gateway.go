package domain

import (
	"encoding/json"
	"errors"

	"thesis_realtime/internal/transport"
)

var (
	// ErrMissingToken connect frame without a token
	ErrMissingToken = errors.New("missing token")
	// ErrTokenMismatch namespace token names another user than the handshake
	ErrTokenMismatch = errors.New("token does not match the connection user")
	// ErrForbidden role may not join the namespace
	ErrForbidden = errors.New("forbidden")
	// ErrUnknownNamespace namespace not served by this gateway
	ErrUnknownNamespace = errors.New("unknown namespace")
	// ErrNotMember event for a group the connection has not joined
	ErrNotMember = errors.New("group not joined")
)

// Delivery one frame routed through the relay. SkipConn keeps the frame away from the
// connection that caused it.
type Delivery struct {
	Namespace string          `json:"nsp"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	SkipConn  string          `json:"skipConn,omitempty"`
}

// NewDelivery marshals payload into a Delivery
func NewDelivery(namespace, event string, payload any, skipConn string) (Delivery, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Delivery{}, err
	}
	return Delivery{Namespace: namespace, Event: event, Data: data, SkipConn: skipConn}, nil
}

// Frame event frame for a local socket
func (d Delivery) Frame() transport.Frame {
	return transport.Frame{Type: transport.FrameEvent, Namespace: d.Namespace, Event: d.Event, Data: d.Data}
}

// UserTopic relay topic of every socket of a user
func UserTopic(userID string) string {
	return "realtime:user:" + userID
}

// GroupTopic relay topic of every socket that joined a group
func GroupTopic(groupID string) string {
	return "realtime:group:" + groupID
}

// Namespaces served by the gateway
var Namespaces = map[string]bool{
	transport.NamespaceChat:         true,
	transport.NamespaceNotification: true,
	transport.NamespaceChatbot:      true,
}
