package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xmonx11/smartreminder/internal/calendar"
	"github.com/xmonx11/smartreminder/internal/conflict"
	"github.com/xmonx11/smartreminder/internal/domain"
	"github.com/xmonx11/smartreminder/internal/missed"
	"github.com/xmonx11/smartreminder/internal/recurrence"
	"github.com/xmonx11/smartreminder/internal/reminder"
	"github.com/xmonx11/smartreminder/internal/storage"
)

// Publisher mirrors definitions to an external calendar.
type Publisher interface {
	Publish(ctx context.Context, t *domain.Task) error
	Unpublish(ctx context.Context, t *domain.Task) error
}

// TaskInput carries user-editable fields for the add and edit flows.
type TaskInput struct {
	Title           string
	Description     string
	Location        string
	Kind            domain.Kind
	Date            string
	StartDate       string
	EndDate         string
	Time            string
	Recurrence      domain.Recurrence
	RepeatDays      calendar.WeekdaySet
	ReminderMinutes *int // nil uses the service default
}

// InputFromTask returns the editable fields of t, for partial edits.
func InputFromTask(t *domain.Task) TaskInput {
	minutes := t.ReminderMinutes
	return TaskInput{
		Title:           t.Title,
		Description:     t.Description,
		Location:        t.Location,
		Kind:            t.Kind,
		Date:            t.Date,
		StartDate:       t.StartDate,
		EndDate:         t.EndDate,
		Time:            t.Time,
		Recurrence:      t.Recurrence,
		RepeatDays:      t.RepeatDays,
		ReminderMinutes: &minutes,
	}
}

type TaskService struct {
	storage         *storage.Storage
	reminders       *reminder.Scheduler
	publisher       Publisher
	loc             *time.Location
	now             func() time.Time
	defaultReminder int
}

func NewTaskService(s *storage.Storage, reminders *reminder.Scheduler, defaultReminder int) *TaskService {
	return &TaskService{
		storage:         s,
		reminders:       reminders,
		loc:             reminders.Location(),
		now:             time.Now,
		defaultReminder: defaultReminder,
	}
}

// SetPublisher enables calendar mirroring.
func (s *TaskService) SetPublisher(p Publisher) {
	s.publisher = p
}

// WithClock replaces the time source, for tests.
func (s *TaskService) WithClock(now func() time.Time) *TaskService {
	s.now = now
	s.reminders.WithClock(now)
	return s
}

func (s *TaskService) Location() *time.Location {
	return s.loc
}

// Today is the current date in the service location.
func (s *TaskService) Today() calendar.Date {
	return calendar.DateOf(s.now().In(s.loc))
}

// normalize validates in and builds the definition to store. Times are
// stored in padded form so equal slots compare equal.
func (s *TaskService) normalize(in TaskInput) (*domain.Task, error) {
	t := &domain.Task{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		Kind:        in.Kind,
		Recurrence:  in.Recurrence,
		Status:      domain.StatusPending,
	}
	if t.Title == "" {
		return nil, invalid("title", "cannot be empty")
	}
	if t.Kind == "" {
		t.Kind = domain.KindTask
	}
	if !t.Kind.Valid() {
		return nil, invalid("type", fmt.Sprintf("unknown type %q", in.Kind))
	}
	if t.Recurrence == "" {
		t.Recurrence = domain.RecurrenceNone
	}
	if !t.Recurrence.Valid() {
		return nil, invalid("repeat", fmt.Sprintf("unknown repeat %q", in.Recurrence))
	}
	if t.Kind == domain.KindTask && t.IsRecurring() {
		return nil, invalid("repeat", "tasks cannot repeat")
	}

	clock, err := calendar.ParseTime12h(in.Time)
	if err != nil {
		return nil, &ValidationError{Field: "time", Reason: err.Error(), Err: err}
	}
	t.Time = calendar.FormatTime12h(clock, true)

	t.ReminderMinutes = s.defaultReminder
	if in.ReminderMinutes != nil {
		t.ReminderMinutes = *in.ReminderMinutes
	}
	if t.ReminderMinutes < 0 {
		return nil, invalid("reminder", "must not be negative")
	}

	date := strings.TrimSpace(in.Date)
	if !t.IsRecurring() {
		d, err := calendar.ParseDate(date)
		if err != nil {
			return nil, &ValidationError{Field: "date", Reason: err.Error(), Err: err}
		}
		t.Date = d.String()
		return t, nil
	}

	start := strings.TrimSpace(in.StartDate)
	if date == "" {
		date = start
	}
	if start == "" {
		start = date
	}
	startDate, err := calendar.ParseDate(start)
	if err != nil {
		return nil, &ValidationError{Field: "start_date", Reason: err.Error(), Err: err}
	}
	d, err := calendar.ParseDate(date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: err.Error(), Err: err}
	}
	t.Date, t.StartDate = d.String(), startDate.String()

	if end := strings.TrimSpace(in.EndDate); end != "" {
		endDate, err := calendar.ParseDate(end)
		if err != nil {
			return nil, &ValidationError{Field: "end_date", Reason: err.Error(), Err: err}
		}
		if endDate.Before(startDate) {
			return nil, invalid("end_date", "must not be before start date")
		}
		t.EndDate = endDate.String()
	}

	if t.Recurrence == domain.RecurrenceWeekly {
		if in.RepeatDays.IsEmpty() {
			return nil, invalid("repeat_days", "weekly schedules need at least one day")
		}
		t.RepeatDays = in.RepeatDays
	}
	return t, nil
}

func (s *TaskService) checkConflict(t *domain.Task, excludeID int64) error {
	if !t.IsSchedule() {
		return nil
	}
	existing, err := s.storage.ListTasksByUser(t.UserID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	hit, err := conflict.FindConflict(t, existing, excludeID)
	if err != nil {
		return &ValidationError{Field: "date", Reason: err.Error(), Err: err}
	}
	if hit != nil {
		return &ConflictError{With: hit}
	}
	return nil
}

// Add validates, conflict-checks and stores a new definition, then arms its
// reminders. Reminder and calendar failures are logged and do not undo the
// insert.
func (s *TaskService) Add(ctx context.Context, userID int64, in TaskInput) (*domain.Task, error) {
	t, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	t.UserID = userID

	if err := s.checkConflict(t, 0); err != nil {
		return nil, err
	}
	if err := s.storage.CreateTask(t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.arm(ctx, t)
	s.publish(ctx, t)
	return t, nil
}

// Update replaces the editable fields of a definition. Old notifications are
// cancelled before new ones are armed.
func (s *TaskService) Update(ctx context.Context, userID, id int64, in TaskInput) (*domain.Task, error) {
	old, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	t, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	t.ID, t.UserID, t.Status, t.CreatedAt = old.ID, old.UserID, old.Status, old.CreatedAt

	if err := s.checkConflict(t, old.ID); err != nil {
		return nil, err
	}

	s.disarm(ctx, old)
	if err := s.storage.UpdateTask(t); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	s.arm(ctx, t)
	s.publish(ctx, t)
	return t, nil
}

// MarkDone completes the definition, and with it every occurrence.
func (s *TaskService) MarkDone(ctx context.Context, userID, id int64) error {
	t, err := s.Get(userID, id)
	if err != nil {
		return err
	}
	s.disarm(ctx, t)
	if err := s.storage.MarkTaskDone(id); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

func (s *TaskService) Delete(ctx context.Context, userID, id int64) error {
	t, err := s.Get(userID, id)
	if err != nil {
		return err
	}
	s.disarm(ctx, t)
	if s.publisher != nil {
		if err := s.publisher.Unpublish(ctx, t); err != nil {
			log.Warn().Err(err).Int64("task_id", id).Msg("unpublish task")
		}
	}
	if err := s.storage.DeleteTask(id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// Get returns the definition if userID owns it.
func (s *TaskService) Get(userID, id int64) (*domain.Task, error) {
	t, err := s.storage.GetTask(id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if t.UserID != userID {
		return nil, ErrAccessDenied
	}
	return t, nil
}

// Rearm schedules the next reminder of a definition, after the previous one
// was delivered.
func (s *TaskService) Rearm(ctx context.Context, id int64) error {
	t, err := s.storage.GetTask(id)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if t == nil || t.IsDone() {
		return nil
	}
	s.arm(ctx, t)
	return nil
}

// CheckConflict runs the conflict check without storing anything.
func (s *TaskService) CheckConflict(userID int64, in TaskInput, excludeID int64) (*domain.Task, error) {
	t, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	t.UserID = userID
	existing, err := s.storage.ListTasksByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return conflict.FindConflict(t, existing, excludeID)
}

// Occurrences expands the user's definitions over [from, to], sorted by date
// and then time of day.
func (s *TaskService) Occurrences(userID int64, from, to calendar.Date) ([]domain.Occurrence, error) {
	defs, err := s.storage.ListTasksByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	res, err := recurrence.ExpandAll(defs, from, to)
	if err != nil {
		return nil, err
	}
	SortOccurrences(res.Occurrences)
	return res.Occurrences, nil
}

// SortOccurrences orders by date, then time of day. Unparseable times sort
// last within their day.
func SortOccurrences(occs []domain.Occurrence) {
	minutes := func(o domain.Occurrence) int {
		c, err := calendar.ParseTime12h(o.Task.Time)
		if err != nil {
			return 24 * 60
		}
		return c.Minutes()
	}
	sort.SliceStable(occs, func(i, j int) bool {
		if c := occs[i].Key.Date.Compare(occs[j].Key.Date); c != 0 {
			return c < 0
		}
		return minutes(occs[i]) < minutes(occs[j])
	})
}

// Missed lists pending tasks whose deadline has passed.
func (s *TaskService) Missed(userID int64) ([]*domain.Task, error) {
	tasks, err := s.storage.ListPendingTasksByKind(userID, domain.KindTask)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	return missed.Filter(tasks, s.now(), s.loc), nil
}

// Countdown renders the live countdown for an occurrence.
func (s *TaskService) Countdown(o domain.Occurrence) string {
	if o.Task.IsDone() {
		return ""
	}
	deadline, err := o.Task.Deadline(s.loc)
	if err != nil {
		return ""
	}
	return missed.Countdown(deadline, o.Task.Kind, s.now())
}

// DisplayStatus is the status shown for an occurrence right now.
func (s *TaskService) DisplayStatus(o domain.Occurrence) domain.Status {
	return missed.DisplayStatus(&o.Task, s.now(), s.loc)
}

func (s *TaskService) ListByDate(userID int64, date calendar.Date) ([]*domain.Task, error) {
	return s.storage.ListTasksByDate(userID, date.String())
}

func (s *TaskService) ListUpcoming(userID int64) ([]*domain.Task, error) {
	return s.storage.ListUpcomingTasks(userID, s.Today().String())
}

func (s *TaskService) ListCompleted(userID int64) ([]*domain.Task, error) {
	return s.storage.ListCompletedTasks(userID)
}

func (s *TaskService) List(userID int64) ([]*domain.Task, error) {
	return s.storage.ListTasksByUser(userID)
}

// ParseRef accepts a definition id ("12") or an occurrence key
// ("12-2024-03-04") and returns the definition id.
func ParseRef(ref string) (int64, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if !strings.Contains(ref, "-") {
		id, err := strconv.ParseInt(ref, 10, 64)
		if err != nil || id <= 0 {
			return 0, invalid("id", fmt.Sprintf("invalid task reference %q", ref))
		}
		return id, nil
	}
	key, err := domain.ParseOccurrenceKey(ref)
	if err != nil {
		return 0, &ValidationError{Field: "id", Reason: err.Error(), Err: err}
	}
	return key.DefinitionID, nil
}

func (s *TaskService) arm(ctx context.Context, t *domain.Task) {
	h, err := s.reminders.Arm(ctx, t)
	if err != nil {
		log.Warn().Err(err).Int64("task_id", t.ID).Msg("arm reminders")
	}
	t.NotificationID, t.MissedNotificationID = h.Reminder, h.Missed
	if err := s.storage.SetTaskNotifications(t.ID, h.Reminder, h.Missed); err != nil {
		log.Error().Err(err).Int64("task_id", t.ID).Msg("store notification handles")
	}
}

func (s *TaskService) disarm(ctx context.Context, t *domain.Task) {
	if err := s.reminders.Disarm(ctx, t); err != nil {
		log.Warn().Err(err).Int64("task_id", t.ID).Msg("cancel reminders")
	}
	t.NotificationID, t.MissedNotificationID = nil, nil
	if err := s.storage.SetTaskNotifications(t.ID, nil, nil); err != nil {
		log.Error().Err(err).Int64("task_id", t.ID).Msg("clear notification handles")
	}
}

func (s *TaskService) publish(ctx context.Context, t *domain.Task) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, t); err != nil {
		log.Warn().Err(err).Int64("task_id", t.ID).Msg("publish task")
	}
}
