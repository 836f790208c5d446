// Package missed decides whether an item is missed and renders the live
// countdown shown next to it.
//
// Only Task kinds can be missed. A schedule whose deadline passes is shown as
// done instead, even though its stored status may still be pending.
package missed

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xmonx11/smartreminder/internal/domain"
)

const (
	LabelNow    = "Now"
	LabelMissed = "Missed"
)

// IsMissed reports whether the deadline passed while the item is not done.
func IsMissed(deadline time.Time, status domain.Status, now time.Time) bool {
	return status != domain.StatusDone && deadline.Before(now)
}

// Countdown renders the time left until deadline. Once nothing is left, Tasks
// read "Missed" and schedules render as empty.
func Countdown(deadline time.Time, kind domain.Kind, now time.Time) string {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		if kind == domain.KindTask {
			return LabelMissed
		}
		return ""
	}

	days := int(remaining / (24 * time.Hour))
	hours := int(remaining % (24 * time.Hour) / time.Hour)
	minutes := int(remaining % time.Hour / time.Minute)
	switch {
	case days >= 1:
		return fmt.Sprintf("%dd %dh left", days, hours)
	case hours >= 1:
		return fmt.Sprintf("%dh %dm left", hours, minutes)
	case minutes >= 1:
		return fmt.Sprintf("%dm left", minutes)
	default:
		return LabelNow
	}
}

// Filter keeps pending Tasks whose deadline is before now. Rows with
// malformed dates are logged and dropped.
func Filter(defs []*domain.Task, now time.Time, loc *time.Location) []*domain.Task {
	var out []*domain.Task
	for _, def := range defs {
		if def.Kind != domain.KindTask || def.Status != domain.StatusPending {
			continue
		}
		deadline, err := def.Deadline(loc)
		if err != nil {
			log.Warn().Err(err).Int64("task_id", def.ID).Msg("missed filter: skipping malformed task")
			continue
		}
		if IsMissed(deadline, def.Status, now) {
			out = append(out, def)
		}
	}
	return out
}

// DisplayStatus is the status shown for def at now: schedules whose deadline
// passed display as done.
func DisplayStatus(def *domain.Task, now time.Time, loc *time.Location) domain.Status {
	if def.Status == domain.StatusDone || def.Kind == domain.KindTask {
		return def.Status
	}
	deadline, err := def.Deadline(loc)
	if err != nil {
		return def.Status
	}
	if deadline.Before(now) {
		return domain.StatusDone
	}
	return def.Status
}
