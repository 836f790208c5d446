package recurrence

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/xmonx11/smartreminder/internal/calendar"
	"github.com/xmonx11/smartreminder/internal/domain"
)

// ErrNoOccurrences is returned by Rule for a weekly definition without days.
var ErrNoOccurrences = errors.New("recurrence: weekly definition has no days")

// Rule builds the RFC 5545 rule for def, anchored at its first occurrence
// time in loc. It returns nil for one-time definitions.
func Rule(def *domain.Task, loc *time.Location) (*rrule.ROption, error) {
	if !def.IsRecurring() {
		return nil, nil
	}
	if def.Recurrence == domain.RecurrenceWeekly && def.RepeatDays.IsEmpty() {
		return nil, ErrNoOccurrences
	}

	w, err := EffectiveWindow(def)
	if err != nil {
		return nil, err
	}
	clock, err := calendar.ParseTime12h(def.Time)
	if err != nil {
		return nil, err
	}

	opt := &rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: calendar.Combine(w.Start, clock, loc),
	}
	if !w.Open {
		opt.Until = calendar.Combine(w.End, clock, loc)
	}
	if def.Recurrence == domain.RecurrenceWeekly {
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = byWeekday(def.RepeatDays)
	}
	return opt, nil
}
