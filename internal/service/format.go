package service

import (
	"fmt"
	"html"
	"strings"

	"github.com/xmonx11/smartreminder/internal/calendar"
	"github.com/xmonx11/smartreminder/internal/domain"
)

// DisplayTime renders a stored time without the leading zero ("9:00 AM").
// Unparseable values are shown as stored.
func DisplayTime(s string) string {
	c, err := calendar.ParseTime12h(s)
	if err != nil {
		return s
	}
	return calendar.FormatTime12h(c, false)
}

// RepeatLabel describes the recurrence of a definition, e.g. "weekly Mon, Wed".
func RepeatLabel(t *domain.Task) string {
	switch t.Recurrence {
	case domain.RecurrenceDaily:
		return "daily"
	case domain.RecurrenceWeekly:
		return "weekly " + strings.Join(t.RepeatDays.Names(), ", ")
	default:
		return "once"
	}
}

// FormatOccurrence renders one occurrence line in HTML.
func (s *TaskService) FormatOccurrence(o domain.Occurrence) string {
	status := "⬜"
	if s.DisplayStatus(o) == domain.StatusDone {
		status = "✅"
	}
	line := fmt.Sprintf("%s %s %s <b>%s</b>", status, DisplayTime(o.Task.Time), o.Task.Kind.Emoji(), html.EscapeString(o.Task.Title))
	if cd := s.Countdown(o); cd != "" {
		line += " · <i>" + cd + "</i>"
	}
	return line + fmt.Sprintf(" <code>%s</code>", o.Key)
}

// FormatOccurrences renders occurrences grouped by day.
func (s *TaskService) FormatOccurrences(occs []domain.Occurrence) string {
	if len(occs) == 0 {
		return "Nothing scheduled"
	}

	var sb strings.Builder
	var day calendar.Date
	for i, o := range occs {
		if i == 0 || o.Key.Date != day {
			if i > 0 {
				sb.WriteString("\n")
			}
			day = o.Key.Date
			sb.WriteString(fmt.Sprintf("<b>%s %s</b>\n", calendar.DayOfWeekShortName(day), day))
		}
		sb.WriteString(s.FormatOccurrence(o))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatTaskList renders definitions, one per line.
func (s *TaskService) FormatTaskList(tasks []*domain.Task) string {
	if len(tasks) == 0 {
		return "No tasks"
	}

	var sb strings.Builder
	for _, t := range tasks {
		status := "⬜"
		if t.IsDone() {
			status = "✅"
		}
		when := t.Date
		if t.IsRecurring() {
			when = RepeatLabel(t)
		}
		sb.WriteString(fmt.Sprintf("%s %s #%d <b>%s</b> · %s %s\n",
			status, t.Kind.Emoji(), t.ID, html.EscapeString(t.Title), when, DisplayTime(t.Time)))
	}
	return sb.String()
}

// FormatTask renders the detail card of one definition.
func (s *TaskService) FormatTask(t *domain.Task) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>%s</b> #%d\n\n", t.Kind.Emoji(), html.EscapeString(t.Title), t.ID))
	sb.WriteString(fmt.Sprintf("Type: %s\n", t.Kind))
	if t.IsRecurring() {
		sb.WriteString(fmt.Sprintf("Repeats: %s\n", RepeatLabel(t)))
		sb.WriteString(fmt.Sprintf("From: %s\n", t.StartDate))
		if t.EndDate != "" {
			sb.WriteString(fmt.Sprintf("Until: %s\n", t.EndDate))
		}
	} else {
		sb.WriteString(fmt.Sprintf("Date: %s\n", t.Date))
	}
	sb.WriteString(fmt.Sprintf("Time: %s\n", DisplayTime(t.Time)))
	if t.Location != "" {
		sb.WriteString(fmt.Sprintf("Location: %s\n", html.EscapeString(t.Location)))
	}
	if t.Description != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", html.EscapeString(t.Description)))
	}
	if t.ReminderMinutes > 0 {
		sb.WriteString(fmt.Sprintf("\n🔔 %d min before", t.ReminderMinutes))
	} else {
		sb.WriteString("\n🔔 at start")
	}
	if t.IsDone() {
		sb.WriteString("\n✅ Done")
	}
	return sb.String()
}
