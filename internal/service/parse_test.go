package service

import (
	"errors"
	"testing"

	"github.com/xmonx11/smartreminder/internal/calendar"
	"github.com/xmonx11/smartreminder/internal/domain"
)

func TestParseAddArgs(t *testing.T) {
	in, err := ParseAddArgs("Essay | 2024-06-01 | 09:00 AM | 30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Title != "Essay" || in.Date != "2024-06-01" || in.Time != "09:00 AM" || in.Kind != domain.KindTask {
		t.Fatalf("unexpected input %+v", in)
	}
	if in.ReminderMinutes == nil || *in.ReminderMinutes != 30 {
		t.Fatalf("expected 30 minutes, got %v", in.ReminderMinutes)
	}

	in, err = ParseAddArgs("Essay | 2024-06-01 | 09:00 AM")
	if err != nil || in.ReminderMinutes != nil {
		t.Fatalf("expected default reminder, got %v, %v", in.ReminderMinutes, err)
	}

	if _, err := ParseAddArgs("Essay | 2024-06-01"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, err := ParseAddArgs("Essay | 2024-06-01 | 09:00 AM | soon"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected reminder error, got %v", err)
	}
}

func TestParseScheduleArgs(t *testing.T) {
	in, err := ParseScheduleArgs("class | Math | weekly Mon,Wed | 2024-03-01 | 02:00 PM | 2024-06-30 | 10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Kind != domain.KindClass || in.Recurrence != domain.RecurrenceWeekly {
		t.Fatalf("unexpected input %+v", in)
	}
	if in.RepeatDays != calendar.NewWeekdaySet(calendar.Monday, calendar.Wednesday) {
		t.Fatalf("unexpected days %v", in.RepeatDays)
	}
	if in.StartDate != "2024-03-01" || in.EndDate != "2024-06-30" || *in.ReminderMinutes != 10 {
		t.Fatalf("unexpected window or reminder %+v", in)
	}

	in, err = ParseScheduleArgs("Meeting | Review | once | 2024-03-05 | 10:00 AM")
	if err != nil || in.Recurrence != domain.RecurrenceNone {
		t.Fatalf("unexpected one-time schedule %+v, %v", in, err)
	}

	for _, bad := range []string{
		"Task | Essay | once | 2024-03-05 | 10:00 AM",
		"Party | x | once | 2024-03-05 | 10:00 AM",
		"Class | Math | monthly | 2024-03-05 | 10:00 AM",
		"Class | Math | weekly Funday | 2024-03-05 | 10:00 AM",
		"Class | Math",
	} {
		if _, err := ParseScheduleArgs(bad); !errors.Is(err, ErrValidation) {
			t.Fatalf("ParseScheduleArgs(%q): expected ErrValidation, got %v", bad, err)
		}
	}
}

func TestApplyEdit(t *testing.T) {
	in := TaskInput{Title: "Math", Kind: domain.KindClass, Date: "2024-03-01", StartDate: "2024-03-01", Time: "02:00 PM", Recurrence: domain.RecurrenceDaily}

	if err := ApplyEdit(&in, "time", "03:00 PM"); err != nil || in.Time != "03:00 PM" {
		t.Fatalf("edit time: %+v, %v", in, err)
	}
	if err := ApplyEdit(&in, "date", "2024-04-01"); err != nil || in.StartDate != "2024-04-01" {
		t.Fatalf("edit date must move start date for recurring: %+v, %v", in, err)
	}
	if err := ApplyEdit(&in, "repeat", "weekly Tue"); err != nil || in.RepeatDays != calendar.NewWeekdaySet(calendar.Tuesday) {
		t.Fatalf("edit repeat: %+v, %v", in, err)
	}
	if err := ApplyEdit(&in, "repeat", "once"); err != nil || in.StartDate != "" || in.Recurrence != domain.RecurrenceNone {
		t.Fatalf("edit repeat once: %+v, %v", in, err)
	}
	if err := ApplyEdit(&in, "colour", "red"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
