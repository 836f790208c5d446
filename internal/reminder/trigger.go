// Package reminder computes when reminders fire and what they say, and arms
// them through an injected Notifier.
package reminder

import (
	"fmt"
	"time"

	"github.com/xmonx11/smartreminder/internal/calendar"
	"github.com/xmonx11/smartreminder/internal/domain"
)

// Trigger returns deadline minus minutes. ok is false when that instant is
// already before now, in which case nothing should be scheduled. Zero minutes
// fires exactly at the deadline.
func Trigger(deadline time.Time, minutes int, now time.Time) (at time.Time, ok bool) {
	if minutes < 0 {
		minutes = 0
	}
	at = deadline.Add(-time.Duration(minutes) * time.Minute)
	if at.Before(now) {
		return time.Time{}, false
	}
	return at, true
}

// ComputeTrigger parses the stored date and time and applies Trigger.
func ComputeTrigger(date, clock string, minutes int, now time.Time, loc *time.Location) (time.Time, bool, error) {
	deadline, err := calendar.ParseDeadline(date, clock, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	at, ok := Trigger(deadline, minutes, now)
	return at, ok, nil
}

// Payload builds the reminder text for an occurrence of def on date.
func Payload(def *domain.Task, date string, minutes int) domain.NotificationPayload {
	lead := "now"
	if minutes > 0 {
		lead = fmt.Sprintf("in %d minutes", minutes)
	}

	p := domain.NotificationPayload{
		Data: domain.NotificationData{
			TaskID:    def.ID,
			Date:      date,
			Time:      def.Time,
			Category:  def.Kind,
			Recurring: def.IsRecurring(),
		},
	}
	if def.IsSchedule() {
		p.Title = "📅 Upcoming Schedule"
		p.Body = fmt.Sprintf("Your schedule \"%s\" starts %s!", def.Title, lead)
		p.Data.Type = domain.NotificationSchedule
		return p
	}
	p.Title = "🔔 Upcoming Task"
	p.Body = fmt.Sprintf("Your task \"%s\" is due %s!", def.Title, lead)
	p.Data.Type = domain.NotificationTask
	return p
}

// MissedPayload is sent at the deadline of a task that is still pending.
func MissedPayload(def *domain.Task) domain.NotificationPayload {
	return domain.NotificationPayload{
		Title: "⏰ Missed Task",
		Body:  fmt.Sprintf("You missed your task \"%s\" due at %s.", def.Title, def.Time),
		Data: domain.NotificationData{
			TaskID:   def.ID,
			Date:     def.Date,
			Time:     def.Time,
			Type:     domain.NotificationTask,
			Category: def.Kind,
			Missed:   true,
		},
	}
}
