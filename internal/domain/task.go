package domain

import (
	"time"

	"github.com/xmonx11/smartreminder/internal/calendar"
)

// Kind is the category of a definition. Task is a deadline item; every other
// kind is a schedule item and takes part in conflict checking.
type Kind string

const (
	KindTask    Kind = "Task"
	KindClass   Kind = "Class"
	KindRoutine Kind = "Routine"
	KindMeeting Kind = "Meeting"
	KindWork    Kind = "Work"
)

// Kinds lists every accepted kind in display order.
var Kinds = []Kind{KindTask, KindClass, KindRoutine, KindMeeting, KindWork}

func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

func (k Kind) IsSchedule() bool {
	return k != KindTask
}

func (k Kind) Emoji() string {
	switch k {
	case KindTask:
		return "📝"
	case KindClass:
		return "🎓"
	case KindRoutine:
		return "🔁"
	case KindMeeting:
		return "🤝"
	case KindWork:
		return "💼"
	default:
		return "⚪"
	}
}

type Recurrence string

const (
	RecurrenceNone   Recurrence = "none"
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
)

func (r Recurrence) Valid() bool {
	return r == RecurrenceNone || r == RecurrenceDaily || r == RecurrenceWeekly
}

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Task is a stored schedule definition: either a one-time item or the rule
// from which recurring occurrences are generated. Date and time fields keep
// their stored string encodings; parsing happens in the engine packages.
type Task struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Kind        Kind   `json:"type"`

	Date       string              `json:"date"`                 // YYYY-MM-DD
	StartDate  string              `json:"start_date,omitempty"` // empty when absent
	EndDate    string              `json:"end_date,omitempty"`   // empty means unbounded
	Time       string              `json:"time"`                 // HH:MM AM/PM
	Recurrence Recurrence          `json:"repeat_frequency"`
	RepeatDays calendar.WeekdaySet `json:"repeat_days"`
	// RepeatDaysErr is set when the stored day set could not be read.
	RepeatDaysErr error `json:"-"`

	Status          Status `json:"status"`
	ReminderMinutes int    `json:"reminder_minutes"`

	NotificationID       *string `json:"notification_id,omitempty"`
	MissedNotificationID *string `json:"missed_notification_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (t *Task) IsDone() bool {
	return t.Status == StatusDone
}

func (t *Task) IsRecurring() bool {
	return t.Recurrence == RecurrenceDaily || t.Recurrence == RecurrenceWeekly
}

func (t *Task) IsSchedule() bool {
	return t.Kind.IsSchedule()
}

// Deadline combines Date and Time in loc.
func (t *Task) Deadline(loc *time.Location) (time.Time, error) {
	return calendar.ParseDeadline(t.Date, t.Time, loc)
}
