package domain

import "time"

// NotificationType represents the kind of notification.
type NotificationType string

const (
	NotificationShare NotificationType = "share"
)

// Notification is a one-time announcement delivered to a recipient. Only Read
// ever changes after creation, and only from false to true.
type Notification struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Content   string           `json:"content" db:"content"`
	Read      bool             `json:"read" db:"read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// ShareContent renders the frozen message announcing a shared task.
func ShareContent(sharerEmail, taskTitle string) string {
	return sharerEmail + " shared a todo with you: " + taskTitle
}

// CountUnread counts notifications not yet read.
func CountUnread(notifications []Notification) int {
	n := 0
	for _, item := range notifications {
		if !item.Read {
			n++
		}
	}
	return n
}
