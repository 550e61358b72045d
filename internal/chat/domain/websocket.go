package domain

// Event chat namespace event name
type Event = string

const (
	// SendGroupMessage emit, a local message
	SendGroupMessage Event = "send_group_message"
	// NewGroupMessage receive, server broadcast of a message
	NewGroupMessage Event = "new_group_message"
	// Typing emit, local typing indicator
	Typing Event = "typing"
	// UserTyping receive, a member's typing indicator
	UserTyping Event = "user_typing"
	// UserStatusChange receive, presence snapshot of a group
	UserStatusChange Event = "user_status_change"
	// GroupMessageSeen emit {groupId} / receive {groupId, userId, seenAt}
	GroupMessageSeen Event = "group_message_seen"
	// JoinGroup emit, subscribe to a group's events
	JoinGroup Event = "join_group"
	// LeaveGroup emit
	LeaveGroup Event = "leave_group"
)

// PresenceStatus value of UserStatusPayload.Status
type PresenceStatus string

const (
	// Online member joined
	Online PresenceStatus = "online"
	// Offline member left
	Offline PresenceStatus = "offline"
)

// SendMessageRequest payload of send_group_message
type SendMessageRequest struct {
	GroupID      string      `json:"groupId" validate:"required"`
	Content      string      `json:"content" validate:"required_without=Attachments"`
	Type         MessageType `json:"type,omitempty" validate:"omitempty,oneof=text file image"`
	Attachments  []string    `json:"attachments,omitempty"`
	ReplyTo      *string     `json:"replyTo,omitempty"`
	ClientTempID string      `json:"clientTempId" validate:"required"`
}

// TypingRequest payload of typing
type TypingRequest struct {
	GroupID  string `json:"groupId" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

// TypingPayload payload of user_typing
type TypingPayload struct {
	GroupID  string `json:"groupId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// UserStatusPayload payload of user_status_change
type UserStatusPayload struct {
	GroupID     string         `json:"groupId"`
	UserID      string         `json:"userId"`
	Status      PresenceStatus `json:"status"`
	OnlineUsers []string       `json:"onlineUsers"`
	Timestamp   string         `json:"timestamp"`
}

// GroupRequest payload of join_group, leave_group and the emitted group_message_seen
type GroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

// SeenPayload payload of the received group_message_seen
type SeenPayload struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
	SeenAt  string `json:"seenAt"`
}
