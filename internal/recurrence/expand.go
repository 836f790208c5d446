// Package recurrence materializes schedule definitions into dated occurrences.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/teambition/rrule-go"

	"github.com/xmonx11/smartreminder/internal/calendar"
	"github.com/xmonx11/smartreminder/internal/domain"
)

// ErrInvalidRange is returned when the range start is after the range end.
var ErrInvalidRange = errors.New("recurrence: range start is after range end")

var rruleDays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Window is the inclusive date span a definition is active in. Open is set
// when there is no end date.
type Window struct {
	Start calendar.Date
	End   calendar.Date
	Open  bool
}

// Contains reports whether d falls inside w.
func (w Window) Contains(d calendar.Date) bool {
	if d.Before(w.Start) {
		return false
	}
	return w.Open || !d.After(w.End)
}

// Overlaps reports whether the two windows share at least one day.
func (w Window) Overlaps(o Window) bool {
	if !o.Open && w.Start.After(o.End) {
		return false
	}
	if !w.Open && w.End.Before(o.Start) {
		return false
	}
	return true
}

// EffectiveWindow returns [date, date] for one-time definitions and
// [startDate or date, endDate or unbounded] for recurring ones.
func EffectiveWindow(def *domain.Task) (Window, error) {
	if def.RepeatDaysErr != nil {
		return Window{}, def.RepeatDaysErr
	}
	date, err := calendar.ParseDate(def.Date)
	if err != nil && (!def.IsRecurring() || def.StartDate == "") {
		return Window{}, err
	}
	if !def.IsRecurring() {
		return Window{Start: date, End: date}, nil
	}

	w := Window{Start: date, Open: true}
	if def.StartDate != "" {
		if w.Start, err = calendar.ParseDate(def.StartDate); err != nil {
			return Window{}, err
		}
	}
	if def.EndDate != "" {
		end, err := calendar.ParseDate(def.EndDate)
		if err != nil {
			return Window{}, err
		}
		w.End, w.Open = end, false
	}
	return w, nil
}

// Expand returns every occurrence of def between start and end inclusive.
// The result is in date order.
func Expand(def *domain.Task, start, end calendar.Date) ([]domain.Occurrence, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	w, err := EffectiveWindow(def)
	if err != nil {
		return nil, err
	}

	if !def.IsRecurring() {
		if w.Start.Before(start) || w.Start.After(end) {
			return nil, nil
		}
		return []domain.Occurrence{domain.NewOccurrence(def, w.Start)}, nil
	}

	if def.Recurrence == domain.RecurrenceWeekly && def.RepeatDays.IsEmpty() {
		return nil, nil
	}

	lo, hi := w.Start, end
	if lo.Before(start) {
		lo = start
	}
	if !w.Open && w.End.Before(hi) {
		hi = w.End
	}
	if lo.After(hi) {
		return nil, nil
	}

	r, err := newRule(def, lo, hi)
	if err != nil {
		return nil, err
	}
	days := r.Between(lo.In(time.UTC), hi.In(time.UTC), true)
	occs := make([]domain.Occurrence, 0, len(days))
	for _, t := range days {
		occs = append(occs, domain.NewOccurrence(def, calendar.DateOf(t)))
	}
	return occs, nil
}

// SkippedDefinition records a definition left out of a batch expansion.
type SkippedDefinition struct {
	ID  int64
	Err error
}

type Result struct {
	Occurrences []domain.Occurrence
	Skipped     []SkippedDefinition
}

// ExpandAll expands every definition in defs. A definition with malformed
// dates is logged and skipped so one bad row does not hide the rest.
func ExpandAll(defs []*domain.Task, start, end calendar.Date) (Result, error) {
	var result Result
	if start.After(end) {
		return result, ErrInvalidRange
	}

	for _, def := range defs {
		occs, err := Expand(def, start, end)
		if err != nil {
			var fe *calendar.FormatError
			if !errors.As(err, &fe) {
				return result, fmt.Errorf("expand task %d: %w", def.ID, err)
			}
			log.Warn().Err(err).Int64("task_id", def.ID).Msg("skipping malformed definition")
			result.Skipped = append(result.Skipped, SkippedDefinition{ID: def.ID, Err: err})
			continue
		}
		result.Occurrences = append(result.Occurrences, occs...)
	}
	return result, nil
}

// NextDate returns the first occurrence date on or after from. ok is false
// when the definition has no further occurrences.
func NextDate(def *domain.Task, from calendar.Date) (d calendar.Date, ok bool, err error) {
	w, err := EffectiveWindow(def)
	if err != nil {
		return calendar.Date{}, false, err
	}

	if !def.IsRecurring() {
		if w.Start.Before(from) {
			return calendar.Date{}, false, nil
		}
		return w.Start, true, nil
	}
	if def.Recurrence == domain.RecurrenceWeekly && def.RepeatDays.IsEmpty() {
		return calendar.Date{}, false, nil
	}

	lo := w.Start
	if lo.Before(from) {
		lo = from
	}
	if !w.Open && lo.After(w.End) {
		return calendar.Date{}, false, nil
	}

	hi := w.End
	if w.Open {
		// A weekly rule always hits within seven days.
		hi = lo.AddDays(7)
	}
	r, err := newRule(def, lo, hi)
	if err != nil {
		return calendar.Date{}, false, err
	}
	next := r.After(lo.In(time.UTC), true)
	if next.IsZero() {
		return calendar.Date{}, false, nil
	}
	return calendar.DateOf(next), true, nil
}

func newRule(def *domain.Task, lo, hi calendar.Date) (*rrule.RRule, error) {
	opt := rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: lo.In(time.UTC),
		Until:   hi.In(time.UTC),
	}
	if def.Recurrence == domain.RecurrenceWeekly {
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = byWeekday(def.RepeatDays)
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build rule for task %d: %w", def.ID, err)
	}
	return r, nil
}

func byWeekday(set calendar.WeekdaySet) []rrule.Weekday {
	days := set.Days()
	out := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		out = append(out, rruleDays[d])
	}
	return out
}
