// Package conflict decides whether a candidate schedule collides with one of a
// user's existing schedules. Two schedules collide when they share the exact
// same time string and at least one date.
package conflict

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xmonx11/smartreminder/internal/calendar"
	"github.com/xmonx11/smartreminder/internal/domain"
	"github.com/xmonx11/smartreminder/internal/recurrence"
)

// FindConflict returns the first existing schedule that collides with
// candidate, or nil. excludeID skips the definition being edited; values <= 0
// exclude nothing. Only a malformed candidate produces an error; malformed
// existing rows are logged and skipped.
func FindConflict(candidate *domain.Task, existing []*domain.Task, excludeID int64) (*domain.Task, error) {
	if !candidate.IsSchedule() {
		return nil, nil
	}
	cw, err := recurrence.EffectiveWindow(candidate)
	if err != nil {
		return nil, err
	}
	if _, err := calendar.ParseTime12h(candidate.Time); err != nil {
		return nil, err
	}
	candTime := strings.TrimSpace(candidate.Time)

	for _, ex := range existing {
		if ex == nil || !ex.IsSchedule() {
			continue
		}
		if excludeID > 0 && ex.ID == excludeID {
			continue
		}
		if strings.TrimSpace(ex.Time) != candTime {
			continue
		}

		ew, err := recurrence.EffectiveWindow(ex)
		if err != nil {
			log.Warn().Err(err).Int64("task_id", ex.ID).Msg("conflict check: skipping malformed schedule")
			continue
		}
		if !cw.Overlaps(ew) {
			continue
		}
		if collides(candidate, cw.Start, ex, ew.Start) {
			return ex, nil
		}
	}
	return nil, nil
}

// HasConflict reports whether FindConflict finds anything.
func HasConflict(candidate *domain.Task, existing []*domain.Task, excludeID int64) (bool, error) {
	hit, err := FindConflict(candidate, existing, excludeID)
	if err != nil {
		return false, err
	}
	return hit != nil, nil
}

// collides resolves the recurrence patterns once time and windows already
// match. aDate and bDate are the one-time dates of each side (ignored for
// recurring sides).
func collides(a *domain.Task, aDate calendar.Date, b *domain.Task, bDate calendar.Date) bool {
	switch {
	case !a.IsRecurring() && !b.IsRecurring():
		return aDate == bDate
	case !a.IsRecurring():
		return repeatsOn(b, aDate)
	case !b.IsRecurring():
		return repeatsOn(a, bDate)
	case a.Recurrence == domain.RecurrenceDaily || b.Recurrence == domain.RecurrenceDaily:
		// An empty weekly set has no occurrences to collide with.
		return !emptyWeekly(a) && !emptyWeekly(b)
	default:
		return a.RepeatDays.Intersects(b.RepeatDays)
	}
}

func repeatsOn(repeating *domain.Task, d calendar.Date) bool {
	switch repeating.Recurrence {
	case domain.RecurrenceDaily:
		return true
	case domain.RecurrenceWeekly:
		return repeating.RepeatDays.Has(d.Weekday())
	default:
		return false
	}
}

func emptyWeekly(t *domain.Task) bool {
	return t.Recurrence == domain.RecurrenceWeekly && t.RepeatDays.IsEmpty()
}
