package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xmonx11/smartreminder/internal/clients/caldav"
	"github.com/xmonx11/smartreminder/internal/domain"
	"github.com/xmonx11/smartreminder/internal/recurrence"
	"github.com/xmonx11/smartreminder/internal/storage"
)

// CalendarService mirrors definitions to a CalDAV calendar and exports them
// as iCalendar.
type CalendarService struct {
	storage      *storage.Storage
	caldavClient *caldav.Client
	timezone     *time.Location // Timezone definition times are in
}

// NewCalendarService creates a new calendar service. client may be nil.
func NewCalendarService(s *storage.Storage, client *caldav.Client, tz *time.Location) *CalendarService {
	if tz == nil {
		tz = time.UTC
	}
	return &CalendarService{
		storage:      s,
		caldavClient: client,
		timezone:     tz,
	}
}

// IsConfigured returns true if CalDAV client is configured
func (s *CalendarService) IsConfigured() bool {
	return s.caldavClient != nil && s.caldavClient.IsConfigured()
}

// DiscoverCalendars returns available remote calendars
func (s *CalendarService) DiscoverCalendars(ctx context.Context) ([]caldav.Calendar, error) {
	if s.caldavClient == nil {
		return nil, fmt.Errorf("CalDAV not configured")
	}
	return s.caldavClient.DiscoverCalendars(ctx)
}

// UseFirstCalendar points publishing at the first discovered calendar and
// returns its display name.
func (s *CalendarService) UseFirstCalendar(ctx context.Context) (string, error) {
	calendars, err := s.DiscoverCalendars(ctx)
	if err != nil {
		return "", fmt.Errorf("discover calendars: %w", err)
	}
	if len(calendars) == 0 {
		return "", errors.New("no calendars found")
	}
	s.caldavClient.SetCalendarID(calendars[0].ID)
	return calendars[0].DisplayName, nil
}

// TaskUID is the stable CalDAV UID of a definition.
func TaskUID(taskID int64) string {
	return fmt.Sprintf("task-%d@smartreminder", taskID)
}

// TaskToEvent converts a definition into a calendar event carrying its
// recurrence rule and reminder.
func (s *CalendarService) TaskToEvent(t *domain.Task) (*caldav.Event, error) {
	deadline, err := t.Deadline(s.timezone)
	if err != nil {
		return nil, err
	}
	rule, err := recurrence.Rule(t, s.timezone)
	if err != nil {
		return nil, err
	}

	event := &caldav.Event{
		UID:         TaskUID(t.ID),
		Summary:     t.Kind.Emoji() + " " + t.Title,
		Description: t.Description,
		Location:    t.Location,
		Categories:  []string{string(t.Kind)},
		StartTime:   deadline,
		Rule:        rule,
		Reminders:   []caldav.Reminder{{MinutesBefore: t.ReminderMinutes}},
	}
	if rule != nil {
		// The series starts at the first occurrence, not at the stored date.
		event.StartTime = rule.Dtstart
	}
	return event, nil
}

// Publish creates or updates the calendar event for a definition
func (s *CalendarService) Publish(ctx context.Context, t *domain.Task) error {
	if !s.IsConfigured() {
		return nil
	}
	event, err := s.TaskToEvent(t)
	if err != nil {
		if errors.Is(err, recurrence.ErrNoOccurrences) {
			return s.Unpublish(ctx, t)
		}
		return fmt.Errorf("convert task %d: %w", t.ID, err)
	}
	if err := s.caldavClient.PutEvent(ctx, event); err != nil {
		return fmt.Errorf("publish task %d: %w", t.ID, err)
	}
	return nil
}

// Unpublish removes the calendar event for a deleted definition
func (s *CalendarService) Unpublish(ctx context.Context, t *domain.Task) error {
	if !s.IsConfigured() {
		return nil
	}
	if err := s.caldavClient.DeleteEvent(ctx, TaskUID(t.ID)); err != nil {
		// Don't fail if event doesn't exist
		if !strings.Contains(err.Error(), "404") && !strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("unpublish task %d: %w", t.ID, err)
		}
	}
	return nil
}

// Export writes every pending definition of the user as one VCALENDAR.
// Definitions that cannot be converted are logged and left out.
func (s *CalendarService) Export(w io.Writer, userID int64) error {
	tasks, err := s.storage.ListTasksByUser(userID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	var events []caldav.Event
	for _, t := range tasks {
		if t.IsDone() {
			continue
		}
		event, err := s.TaskToEvent(t)
		if err != nil {
			log.Warn().Err(err).Int64("task_id", t.ID).Msg("export: skipping task")
			continue
		}
		events = append(events, *event)
	}
	return caldav.WriteCalendar(w, caldav.Encode(time.Now(), events...))
}
