// Package calendar converts between the string encodings stored in the tasks
// table (YYYY-MM-DD dates and 12-hour "HH:MM AM/PM" times) and comparable
// values. All values are local wall-clock; nothing here shifts time zones.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// FormatError reports a malformed date or time string.
type FormatError struct {
	Field  string // "date", "time" or "repeat_days"
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Date is a calendar day without a time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the date, normalizing overflowing days the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a zero-padded YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &FormatError{Field: "date", Value: s, Reason: "expected YYYY-MM-DD"}
	}
	return DateOf(t), nil
}

// FormatDate is the inverse of ParseDate.
func FormatDate(d Date) string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) String() string {
	return FormatDate(d)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

func (d Date) Weekday() Weekday {
	return Weekday(d.In(time.UTC).Weekday())
}

// DayOfWeekShortName returns one of Sun, Mon, Tue, Wed, Thu, Fri, Sat.
func DayOfWeekShortName(d Date) string {
	return d.Weekday().String()
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Clock is a time of day in 24-hour form.
type Clock struct {
	Hour   int
	Minute int
}

// ParseTime12h parses "H:MM AM" or "HH:MM PM". "12" maps to hour 0 before the
// PM offset is applied, so 12:00 AM is midnight and 12:00 PM is noon.
func ParseTime12h(s string) (Clock, error) {
	fail := func(reason string) (Clock, error) {
		return Clock{}, &FormatError{Field: "time", Value: s, Reason: reason}
	}

	parts := strings.Fields(s)
	if len(parts) != 2 {
		return fail("expected HH:MM AM/PM")
	}
	hm := strings.Split(parts[0], ":")
	if len(hm) != 2 || len(hm[0]) < 1 || len(hm[0]) > 2 || len(hm[1]) != 2 {
		return fail("expected HH:MM AM/PM")
	}
	hour, err := strconv.Atoi(hm[0])
	if err != nil || hour < 1 || hour > 12 {
		return fail("hour must be 1-12")
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil || minute < 0 || minute > 59 {
		return fail("minute must be 00-59")
	}

	if hour == 12 {
		hour = 0
	}
	switch strings.ToUpper(parts[1]) {
	case "AM":
	case "PM":
		hour += 12
	default:
		return fail("meridiem must be AM or PM")
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// FormatTime12h renders c as "HH:MM AM" when padded, "H:MM AM" otherwise.
func FormatTime12h(c Clock, padded bool) string {
	meridiem := "AM"
	if c.Hour >= 12 {
		meridiem = "PM"
	}
	hour := c.Hour % 12
	if hour == 0 {
		hour = 12
	}
	if padded {
		return fmt.Sprintf("%02d:%02d %s", hour, c.Minute, meridiem)
	}
	return fmt.Sprintf("%d:%02d %s", hour, c.Minute, meridiem)
}

func (c Clock) String() string {
	return FormatTime12h(c, true)
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// Combine places c on d in loc.
func Combine(d Date, c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

// ParseDeadline parses a stored date and time pair into an instant in loc.
func ParseDeadline(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	c, err := ParseTime12h(clock)
	if err != nil {
		return time.Time{}, err
	}
	return Combine(d, c, loc), nil
}
