package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xmonx11/smartreminder/internal/calendar"
)

// OccurrenceKey identifies one materialized occurrence of a definition.
type OccurrenceKey struct {
	DefinitionID int64
	Date         calendar.Date
}

// String renders the key as "<id>-<YYYY-MM-DD>".
func (k OccurrenceKey) String() string {
	return fmt.Sprintf("%d-%s", k.DefinitionID, k.Date)
}

// ParseOccurrenceKey splits at the first '-' into definition id and date.
func ParseOccurrenceKey(s string) (OccurrenceKey, error) {
	idPart, datePart, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return OccurrenceKey{}, fmt.Errorf("invalid occurrence key %q", s)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return OccurrenceKey{}, fmt.Errorf("invalid occurrence key %q: bad id", s)
	}
	d, err := calendar.ParseDate(datePart)
	if err != nil {
		return OccurrenceKey{}, fmt.Errorf("invalid occurrence key %q: %w", s, err)
	}
	return OccurrenceKey{DefinitionID: id, Date: d}, nil
}

func (k OccurrenceKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OccurrenceKey) UnmarshalText(text []byte) error {
	parsed, err := ParseOccurrenceKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Occurrence is a single dated instance of a definition. Task is a value copy
// with Date replaced by the occurrence date; it is never persisted.
type Occurrence struct {
	Key  OccurrenceKey
	Task Task
}

func NewOccurrence(def *Task, d calendar.Date) Occurrence {
	occ := Occurrence{
		Key:  OccurrenceKey{DefinitionID: def.ID, Date: d},
		Task: *def,
	}
	occ.Task.Date = calendar.FormatDate(d)
	return occ
}
