package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xmonx11/smartreminder/internal/calendar"
	"github.com/xmonx11/smartreminder/internal/domain"
)

// Command arguments are '|' separated:
//
//	/add Essay | 2024-06-01 | 09:00 AM | 15
//	/schedule Class | Math | weekly Mon,Wed | 2024-03-01 | 02:00 PM | 2024-06-30 | 10
//
// Trailing fields are optional.

func splitArgs(args string) []string {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMinutes(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "m"))
	if err != nil || n < 0 {
		return nil, invalid("reminder", fmt.Sprintf("%q is not a number of minutes", s))
	}
	return &n, nil
}

// ParseAddArgs parses "/add title | date | time [| reminder minutes]".
func ParseAddArgs(args string) (TaskInput, error) {
	parts := splitArgs(args)
	if len(parts) < 3 {
		return TaskInput{}, invalid("args", "usage: /add title | YYYY-MM-DD | HH:MM AM [| minutes]")
	}
	in := TaskInput{
		Title:      parts[0],
		Kind:       domain.KindTask,
		Date:       parts[1],
		Time:       parts[2],
		Recurrence: domain.RecurrenceNone,
	}
	if len(parts) > 3 {
		minutes, err := parseMinutes(parts[3])
		if err != nil {
			return TaskInput{}, err
		}
		in.ReminderMinutes = minutes
	}
	return in, nil
}

// ParseRepeat parses "once", "daily" or "weekly Mon,Wed".
func ParseRepeat(s string) (domain.Recurrence, calendar.WeekdaySet, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return domain.RecurrenceNone, 0, nil
	}
	switch strings.ToLower(fields[0]) {
	case "once", "none":
		return domain.RecurrenceNone, 0, nil
	case "daily":
		return domain.RecurrenceDaily, 0, nil
	case "weekly":
		days, err := calendar.ParseWeekdayList(strings.Join(fields[1:], ","))
		if err != nil {
			return "", 0, &ValidationError{Field: "repeat_days", Reason: err.Error(), Err: err}
		}
		return domain.RecurrenceWeekly, days, nil
	default:
		return "", 0, invalid("repeat", fmt.Sprintf("unknown repeat %q", fields[0]))
	}
}

// ParseKind matches a kind name case-insensitively.
func ParseKind(s string) (domain.Kind, error) {
	for _, k := range domain.Kinds {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", invalid("type", fmt.Sprintf("unknown type %q", s))
}

// ParseScheduleArgs parses
// "/schedule kind | title | repeat | start | time [| end] [| minutes]".
func ParseScheduleArgs(args string) (TaskInput, error) {
	parts := splitArgs(args)
	if len(parts) < 5 {
		return TaskInput{}, invalid("args", "usage: /schedule Class | title | weekly Mon,Wed | YYYY-MM-DD | HH:MM PM [| end] [| minutes]")
	}
	kind, err := ParseKind(parts[0])
	if err != nil {
		return TaskInput{}, err
	}
	if kind == domain.KindTask {
		return TaskInput{}, invalid("type", "use /add for tasks")
	}
	rec, days, err := ParseRepeat(parts[2])
	if err != nil {
		return TaskInput{}, err
	}

	in := TaskInput{
		Title:      parts[1],
		Kind:       kind,
		Date:       parts[3],
		StartDate:  parts[3],
		Time:       parts[4],
		Recurrence: rec,
		RepeatDays: days,
	}
	if len(parts) > 5 {
		in.EndDate = parts[5]
	}
	if len(parts) > 6 {
		minutes, err := parseMinutes(parts[6])
		if err != nil {
			return TaskInput{}, err
		}
		in.ReminderMinutes = minutes
	}
	return in, nil
}

// ApplyEdit changes one field of in, for "/edit id field value".
func ApplyEdit(in *TaskInput, field, value string) error {
	value = strings.TrimSpace(value)
	switch strings.ToLower(field) {
	case "title":
		in.Title = value
	case "description":
		in.Description = value
	case "location":
		in.Location = value
	case "date":
		in.Date = value
		if in.Recurrence != domain.RecurrenceNone {
			in.StartDate = value
		}
	case "end":
		in.EndDate = value
	case "time":
		in.Time = value
	case "reminder":
		minutes, err := parseMinutes(value)
		if err != nil {
			return err
		}
		in.ReminderMinutes = minutes
	case "repeat":
		rec, days, err := ParseRepeat(value)
		if err != nil {
			return err
		}
		in.Recurrence, in.RepeatDays = rec, days
		if rec == domain.RecurrenceNone {
			in.StartDate, in.EndDate = "", ""
		}
	default:
		return invalid("field", fmt.Sprintf("cannot edit %q", field))
	}
	return nil
}
