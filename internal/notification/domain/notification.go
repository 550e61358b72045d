package domain

// Type severity/category of a notification
type Type string

const (
	// TypeSuccess e.g. a submission was accepted
	TypeSuccess Type = "success"
	// TypeWarning deadline approaching
	TypeWarning Type = "warning"
	// TypeError a job failed
	TypeError Type = "error"
	// TypeSystem portal announcements
	TypeSystem Type = "system"
	// TypeInfo everything else
	TypeInfo Type = "info"
)

// NotificationItem one notification as displayed
type NotificationItem struct {
	ID        string                 `json:"id" validate:"required"`
	Type      Type                   `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	IsRead    bool                   `json:"isRead"`
	CreatedAt string                 `json:"createdAt"`
}

// Filter active list filter, the zero value shows everything
type Filter struct {
	Type       Type `json:"type,omitempty"`
	UnreadOnly bool `json:"unreadOnly,omitempty"`
}

// Match whether item belongs to the filtered list
func (f Filter) Match(item NotificationItem) bool {
	if f.Type != "" && item.Type != f.Type {
		return false
	}
	if f.UnreadOnly && item.IsRead {
		return false
	}
	return true
}

// PageQuery one page request
type PageQuery struct {
	Cursor string
	Limit  int
	Filter Filter
}

// Page one page of the notification list, newest first
type Page struct {
	Items      []NotificationItem `json:"data"`
	NextCursor string             `json:"nextCursor"`
	HasMore    bool               `json:"hasMore"`
}
