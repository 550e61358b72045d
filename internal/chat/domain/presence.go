package domain

// GroupPresence online and typing members of one group
type GroupPresence struct {
	GroupID     string   `json:"groupId"`
	OnlineUsers []string `json:"onlineUsers"`
	TypingUsers []string `json:"typingUsers"`
}
