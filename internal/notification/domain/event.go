package domain

const (
	// NewNotification receive, a pushed NotificationItem
	NewNotification = "new_notification"
	// NotificationRead receive, read on another device
	NotificationRead = "notification_read"
	// AllNotificationsRead receive
	AllNotificationsRead = "all_notifications_read"
	// MarkNotificationRead emit
	MarkNotificationRead = "mark_notification_read"
	// MarkAllNotificationsRead emit
	MarkAllNotificationsRead = "mark_all_notifications_read"
)

// ReadPayload payload of notification_read and mark_notification_read
type ReadPayload struct {
	NotificationID string `json:"notificationId" validate:"required"`
}

// Envelope record on the notification ingestion stream of the gateway
type Envelope struct {
	UserID       string           `json:"userId" validate:"required"`
	Notification NotificationItem `json:"notification"`
}
