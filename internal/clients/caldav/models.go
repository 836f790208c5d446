package caldav

import (
	"time"

	"github.com/teambition/rrule-go"
)

// Calendar represents a remote calendar collection
type Calendar struct {
	ID          string // Calendar path/URL
	DisplayName string
	URL         string
}

// Event represents a calendar event
type Event struct {
	UID         string // Unique ID in CalDAV
	Summary     string // Title
	Description string
	Location    string
	Categories  []string
	StartTime   time.Time
	Rule        *rrule.ROption // nil for one-time events
	Reminders   []Reminder
}

// Reminder represents an event reminder
type Reminder struct {
	MinutesBefore int
}
