package calendar

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Weekday mirrors time.Weekday (0 = Sunday).
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var shortNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func (d Weekday) String() string {
	if d < Sunday || d > Saturday {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return shortNames[d]
}

// ParseWeekday accepts short names case-insensitively ("mon", "Mon").
func ParseWeekday(s string) (Weekday, error) {
	s = strings.TrimSpace(s)
	for i, name := range shortNames {
		if strings.EqualFold(s, name) {
			return Weekday(i), nil
		}
	}
	return Sunday, fmt.Errorf("unknown weekday: %s", s)
}

// WeekdaySet is a set of weekdays stored as a bitmask.
type WeekdaySet uint8

func NewWeekdaySet(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.Add(d)
	}
	return s
}

func (s WeekdaySet) Add(d Weekday) WeekdaySet {
	if d < Sunday || d > Saturday {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Has(d Weekday) bool {
	if d < Sunday || d > Saturday {
		return false
	}
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) IsEmpty() bool {
	return s == 0
}

func (s WeekdaySet) Intersects(o WeekdaySet) bool {
	return s&o != 0
}

func (s WeekdaySet) Len() int {
	n := 0
	for d := Sunday; d <= Saturday; d++ {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Days returns members in Sun..Sat order.
func (s WeekdaySet) Days() []Weekday {
	var days []Weekday
	for d := Sunday; d <= Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (s WeekdaySet) Names() []string {
	names := make([]string, 0, 7)
	for _, d := range s.Days() {
		names = append(names, d.String())
	}
	return names
}

func (s WeekdaySet) String() string {
	return strings.Join(s.Names(), ",")
}

func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set WeekdaySet
	for _, n := range names {
		d, err := ParseWeekday(n)
		if err != nil {
			return err
		}
		set = set.Add(d)
	}
	*s = set
	return nil
}

// JSON returns the repeat_days column encoding.
func (s WeekdaySet) JSON() string {
	data, _ := s.MarshalJSON()
	return string(data)
}

// ParseWeekdaySet decodes the repeat_days column. Empty and "null" decode to
// the empty set.
func ParseWeekdaySet(raw string) (WeekdaySet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return 0, nil
	}
	var s WeekdaySet
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return 0, &FormatError{Field: "repeat_days", Value: raw, Reason: err.Error()}
	}
	return s, nil
}

// ParseWeekdayList parses a comma separated list such as "Mon,Wed".
func ParseWeekdayList(s string) (WeekdaySet, error) {
	var set WeekdaySet
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := ParseWeekday(part)
		if err != nil {
			return 0, err
		}
		set = set.Add(d)
	}
	return set, nil
}
