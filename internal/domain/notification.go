package domain

import "time"

// NotificationType routes a delivered notification: Task payloads get a
// "Done" action, Schedule payloads a "View" action.
type NotificationType string

const (
	NotificationTask     NotificationType = "Task"
	NotificationSchedule NotificationType = "Schedule"
)

type NotificationData struct {
	TaskID    int64            `json:"task_id"`
	Date      string           `json:"date"`
	Time      string           `json:"time"`
	Type      NotificationType `json:"type"`
	Category  Kind             `json:"category"`
	Missed    bool             `json:"missed,omitempty"`
	Recurring bool             `json:"recurring,omitempty"`
}

type NotificationPayload struct {
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Data  NotificationData `json:"data"`
}

// Notification is a queued delivery. Handle is the opaque id stored on the
// task row.
type Notification struct {
	Handle      string
	UserID      int64
	TaskID      int64
	TriggerAt   time.Time
	Payload     NotificationPayload
	SentAt      *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
}

func (n *Notification) IsPending() bool {
	return n.SentAt == nil && n.CancelledAt == nil
}
