package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedTimestamp createdAt / seenAt not RFC 3339
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// MessageType content kind of a chat message
type MessageType string

const (
	// TypeText plain text
	TypeText MessageType = "text"
	// TypeFile file attachment
	TypeFile MessageType = "file"
	// TypeImage image attachment
	TypeImage MessageType = "image"
)

// MessageStatus delivery state, only moves forward
type MessageStatus string

const (
	// StatusSending optimistic, not written to the transport yet
	StatusSending MessageStatus = "sending"
	// StatusSent left the client
	StatusSent MessageStatus = "sent"
	// StatusDelivered echoed by the server or a peer is online
	StatusDelivered MessageStatus = "delivered"
	// StatusSeen covered by a group seen cursor
	StatusSeen MessageStatus = "seen"
)

var statusRank = map[MessageStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusSeen:      3,
}

// legal forward transitions; anything missing is a no-op
var transitions = map[MessageStatus][]MessageStatus{
	StatusSending:   {StatusSent, StatusDelivered, StatusSeen},
	StatusSent:      {StatusDelivered, StatusSeen},
	StatusDelivered: {StatusSeen},
	StatusSeen:      {},
}

// Rank position in sending < sent < delivered < seen, -1 if unknown
func (s MessageStatus) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// Valid known status
func (s MessageStatus) Valid() bool {
	return s.Rank() >= 0
}

// CanAdvance whether from -> to is a legal transition
func CanAdvance(from, to MessageStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Advance returns to when the move is legal, else from unchanged
func Advance(from, to MessageStatus) MessageStatus {
	if !from.Valid() && to.Valid() {
		return to
	}
	if CanAdvance(from, to) {
		return to
	}
	return from
}

// ChatMessage one message of a group as rendered by the client
type ChatMessage struct {
	ID               string            `json:"id,omitempty"`
	ClientTempID     string            `json:"clientTempId,omitempty"`
	GroupID          string            `json:"groupId"`
	SenderID         string            `json:"senderId"`
	Content          string            `json:"content"`
	Type             MessageType       `json:"type,omitempty"`
	Attachments      []string          `json:"attachments,omitempty"`
	ReplyTo          *string           `json:"replyTo,omitempty"`
	CreatedAt        string            `json:"createdAt"`
	Status           MessageStatus     `json:"status,omitempty"`
	LastSeenAtByUser map[string]string `json:"lastSeenAtByUser,omitempty"`
}

// Key identity used for dedup: the temp id when present, else the server id
func (m ChatMessage) Key() string {
	if m.ClientTempID != "" {
		return m.ClientTempID
	}
	return m.ID
}

// Matches dual-key lookup: same temp id first, then same server id
func (m ChatMessage) Matches(other ChatMessage) bool {
	if other.ClientTempID != "" && m.ClientTempID == other.ClientTempID {
		return true
	}
	return other.ID != "" && m.ID == other.ID
}

// CreatedTime parses CreatedAt
func (m ChatMessage) CreatedTime() (time.Time, error) {
	return ParseTimestamp(m.CreatedAt)
}

// Clone deep copy, the store never hands out shared maps or slices
func (m ChatMessage) Clone() ChatMessage {
	out := m
	if m.Attachments != nil {
		out.Attachments = append([]string(nil), m.Attachments...)
	}
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		out.ReplyTo = &r
	}
	if m.LastSeenAtByUser != nil {
		out.LastSeenAtByUser = make(map[string]string, len(m.LastSeenAtByUser))
		for k, v := range m.LastSeenAtByUser {
			out.LastSeenAtByUser[k] = v
		}
	}
	return out
}

// ParseTimestamp RFC 3339 with optional fractional seconds
func ParseTimestamp(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, v)
	}
	return t, nil
}

// FormatTimestamp counterpart of ParseTimestamp
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

var (
	// ErrEmptyGroup a group id is required
	ErrEmptyGroup = errors.New("group id is empty")
	// ErrEmptyMessage neither content nor attachments
	ErrEmptyMessage = errors.New("message has no content")
)
