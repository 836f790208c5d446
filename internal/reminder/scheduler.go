package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xmonx11/smartreminder/internal/calendar"
	"github.com/xmonx11/smartreminder/internal/domain"
	"github.com/xmonx11/smartreminder/internal/recurrence"
)

// Notifier registers and cancels timed notifications. Handles are opaque.
type Notifier interface {
	Schedule(ctx context.Context, userID int64, at time.Time, p domain.NotificationPayload) (string, error)
	Cancel(ctx context.Context, handle string) error
}

// Handles are the notifications armed for one definition. Nil means nothing
// was scheduled.
type Handles struct {
	Reminder *string
	Missed   *string
}

// Scheduler arms and disarms reminders for definitions.
type Scheduler struct {
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
}

func NewScheduler(n Notifier, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{notifier: n, loc: loc, now: time.Now}
}

// WithClock replaces the time source.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Arm schedules the reminder for the next occurrence of def that has not yet
// passed. Tasks also get a missed alert at their deadline. Completed
// definitions and past triggers yield nil handles.
func (s *Scheduler) Arm(ctx context.Context, def *domain.Task) (Handles, error) {
	var h Handles
	if def.IsDone() {
		return h, nil
	}
	now := s.now().In(s.loc)

	date, deadline, ok, err := s.nextDeadline(def, now)
	if err != nil || !ok {
		return h, err
	}

	if at, ok := Trigger(deadline, def.ReminderMinutes, now); ok {
		handle, err := s.notifier.Schedule(ctx, def.UserID, at, Payload(def, date, def.ReminderMinutes))
		if err != nil {
			return h, fmt.Errorf("schedule reminder: %w", err)
		}
		h.Reminder = &handle
	} else {
		log.Debug().Int64("task_id", def.ID).Msg("reminder trigger already past")
	}

	if !def.IsSchedule() {
		handle, err := s.notifier.Schedule(ctx, def.UserID, deadline, MissedPayload(def))
		if err != nil {
			return h, fmt.Errorf("schedule missed alert: %w", err)
		}
		h.Missed = &handle
	}
	return h, nil
}

// maxLookahead bounds how many occurrences are skipped looking for one whose
// trigger is still ahead. The search starts at now plus the lead, so only
// occurrences on that first day can have a passed trigger.
const maxLookahead = 8

// Disarm cancels every handle stored on def.
func (s *Scheduler) Disarm(ctx context.Context, def *domain.Task) error {
	for _, handle := range []*string{def.NotificationID, def.MissedNotificationID} {
		if handle == nil || *handle == "" {
			continue
		}
		if err := s.notifier.Cancel(ctx, *handle); err != nil {
			return fmt.Errorf("cancel notification %s: %w", *handle, err)
		}
	}
	return nil
}

// nextDeadline finds the occurrence to remind about. A one-time definition
// has a single deadline. A recurring one moves past occurrences whose trigger
// already passed, so re-arming after a delivery targets the next occurrence.
func (s *Scheduler) nextDeadline(def *domain.Task, now time.Time) (string, time.Time, bool, error) {
	clock, err := calendar.ParseTime12h(def.Time)
	if err != nil {
		return "", time.Time{}, false, err
	}

	from := calendar.DateOf(now)
	if !def.IsRecurring() {
		d, err := calendar.ParseDate(def.Date)
		if err != nil {
			return "", time.Time{}, false, err
		}
		deadline := calendar.Combine(d, clock, s.loc)
		if deadline.Before(now) {
			return "", time.Time{}, false, nil
		}
		return d.String(), deadline, true, nil
	}

	// No occurrence before now plus the lead can have a future trigger.
	from = calendar.DateOf(now.Add(time.Duration(def.ReminderMinutes) * time.Minute))
	for i := 0; i < maxLookahead; i++ {
		d, ok, err := recurrence.NextDate(def, from)
		if err != nil || !ok {
			return "", time.Time{}, false, err
		}
		deadline := calendar.Combine(d, clock, s.loc)
		// Strictly after now: a trigger equal to now is the one being delivered.
		if at, ok := Trigger(deadline, def.ReminderMinutes, now); ok && at.After(now) {
			return d.String(), deadline, true, nil
		}
		from = d.AddDays(1)
	}
	return "", time.Time{}, false, nil
}
