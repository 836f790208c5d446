package caldav

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const productID = "-//SmartReminder//CalDAV//EN"

// Encode builds a VCALENDAR holding one VEVENT per event. Start times keep
// their named zone as a TZID so repeating events hold their wall-clock time
// across DST changes.
func Encode(stamp time.Time, events ...Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, event := range events {
		cal.Children = append(cal.Children, eventComponent(stamp, event))
	}
	return cal
}

func eventComponent(stamp time.Time, event Event) *ical.Component {
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.UID)
	vevent.Props.SetText(ical.PropSummary, event.Summary)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeStart, zoned(event.StartTime))

	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		vevent.Props.SetText(ical.PropLocation, event.Location)
	}
	if len(event.Categories) > 0 {
		vevent.Props.SetText(ical.PropCategories, strings.Join(event.Categories, ","))
	}
	if event.Rule != nil {
		rule := *event.Rule
		rule.Dtstart = zoned(rule.Dtstart)
		// UNTIL is always UTC.
		if !rule.Until.IsZero() {
			rule.Until = rule.Until.UTC()
		}
		vevent.Props.SetRecurrenceRule(&rule)
	}

	for _, r := range event.Reminders {
		vevent.Children = append(vevent.Children, alarmComponent(event.Summary, r.MinutesBefore))
	}
	return vevent.Component
}

// zoned keeps t in its zone when the zone has an IANA name, otherwise it
// falls back to UTC.
func zoned(t time.Time) time.Time {
	loc := t.Location()
	if loc == time.UTC || loc == time.Local || loc.String() == "" {
		return t.UTC()
	}
	return t
}

func alarmComponent(summary string, minutes int) *ical.Component {
	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, summary)

	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = triggerDuration(minutes)
	alarm.Props.Set(trigger)
	return alarm
}

// triggerDuration renders a lead time as an RFC 5545 negative duration.
func triggerDuration(minutes int) string {
	if minutes <= 0 {
		return "PT0M"
	}
	return fmt.Sprintf("-PT%dM", minutes)
}

// WriteCalendar encodes cal to w.
func WriteCalendar(w io.Writer, cal *ical.Calendar) error {
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

// SerializeCalendar converts calendar to string (for debugging)
func SerializeCalendar(cal *ical.Calendar) string {
	var buf bytes.Buffer
	_ = WriteCalendar(&buf, cal)
	return buf.String()
}
