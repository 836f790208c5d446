package domain

import (
	"testing"
	"time"

	"github.com/xmonx11/smartreminder/internal/calendar"
)

func TestOccurrenceKeyRoundTrip(t *testing.T) {
	key := OccurrenceKey{DefinitionID: 42, Date: calendar.NewDate(2024, time.March, 4)}
	if got := key.String(); got != "42-2024-03-04" {
		t.Fatalf("expected 42-2024-03-04, got %s", got)
	}
	parsed, err := ParseOccurrenceKey(key.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != key {
		t.Fatalf("expected %+v, got %+v", key, parsed)
	}
}

func TestParseOccurrenceKeyInvalid(t *testing.T) {
	for _, raw := range []string{"", "42", "abc-2024-03-04", "0-2024-03-04", "42-2024-3-4", "-2024-03-04"} {
		if _, err := ParseOccurrenceKey(raw); err == nil {
			t.Fatalf("ParseOccurrenceKey(%q): expected error", raw)
		}
	}
}

func TestNewOccurrenceCopiesDefinition(t *testing.T) {
	def := &Task{
		ID:         7,
		Title:      "Gym",
		Kind:       KindRoutine,
		Date:       "2024-03-01",
		Time:       "06:30 AM",
		Recurrence: RecurrenceDaily,
	}
	occ := NewOccurrence(def, calendar.NewDate(2024, time.March, 5))
	if occ.Task.Date != "2024-03-05" {
		t.Fatalf("expected occurrence date 2024-03-05, got %s", occ.Task.Date)
	}
	if occ.Task.Time != def.Time || occ.Task.Title != def.Title {
		t.Fatalf("occurrence must copy definition fields: %+v", occ.Task)
	}
	occ.Task.Title = "changed"
	if def.Title != "Gym" {
		t.Fatalf("occurrence must not alias the definition")
	}
	if occ.Key.DefinitionID != 7 {
		t.Fatalf("expected definition id 7, got %d", occ.Key.DefinitionID)
	}
}

func TestKindIsSchedule(t *testing.T) {
	if KindTask.IsSchedule() {
		t.Fatalf("Task must not be a schedule kind")
	}
	for _, k := range []Kind{KindClass, KindRoutine, KindMeeting, KindWork} {
		if !k.IsSchedule() {
			t.Fatalf("%s must be a schedule kind", k)
		}
	}
	if Kind("Party").Valid() {
		t.Fatalf("unknown kind must be invalid")
	}
}
