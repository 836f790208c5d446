package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xmonx11/smartreminder/internal/calendar"
	"github.com/xmonx11/smartreminder/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s *Storage) *domain.User {
	t.Helper()
	u := &domain.User{TelegramID: 1001, Name: "Ann"}
	if err := s.CreateUser(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestUsers(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s)
	if u.ID == 0 {
		t.Fatalf("expected id to be set")
	}

	got, err := s.GetUserByTelegramID(1001)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got == nil || got.ID != u.ID || got.Name != "Ann" {
		t.Fatalf("unexpected user %+v", got)
	}

	missing, err := s.GetUserByTelegramID(42)
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for unknown user, got %+v, %v", missing, err)
	}

	users, err := s.ListUsers()
	if err != nil || len(users) != 1 {
		t.Fatalf("expected one user, got %d, %v", len(users), err)
	}
}

func TestTaskRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s)

	handle := "abc"
	task := &domain.Task{
		UserID:          u.ID,
		Title:           "Math",
		Location:        "Room 4",
		Kind:            domain.KindClass,
		Date:            "2024-03-01",
		StartDate:       "2024-03-01",
		Time:            "02:00 PM",
		Recurrence:      domain.RecurrenceWeekly,
		RepeatDays:      calendar.NewWeekdaySet(calendar.Monday, calendar.Wednesday),
		ReminderMinutes: 10,
		NotificationID:  &handle,
	}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.RepeatDays != task.RepeatDays {
		t.Fatalf("expected days %v, got %v", task.RepeatDays, got.RepeatDays)
	}
	if got.EndDate != "" || got.StartDate != "2024-03-01" {
		t.Fatalf("unexpected window %q..%q", got.StartDate, got.EndDate)
	}
	if got.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
	if got.NotificationID == nil || *got.NotificationID != "abc" || got.MissedNotificationID != nil {
		t.Fatalf("unexpected handles %v %v", got.NotificationID, got.MissedNotificationID)
	}
	if got.Location != "Room 4" {
		t.Fatalf("unexpected location %q", got.Location)
	}

	var raw string
	if err := s.db.QueryRow(`SELECT repeat_days FROM tasks WHERE id = ?`, task.ID).Scan(&raw); err != nil {
		t.Fatalf("read repeat_days: %v", err)
	}
	if raw != `["Mon","Wed"]` {
		t.Fatalf("expected JSON array column, got %s", raw)
	}

	missing, err := s.GetTask(9999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for unknown task, got %+v, %v", missing, err)
	}
}

func TestRepeatDaysOnlyForWeekly(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s)

	task := &domain.Task{
		UserID: u.ID, Title: "Gym", Kind: domain.KindRoutine, Date: "2024-03-01", Time: "06:00 AM",
		Recurrence: domain.RecurrenceDaily, RepeatDays: calendar.NewWeekdaySet(calendar.Friday),
	}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	var valid bool
	if err := s.db.QueryRow(`SELECT repeat_days IS NOT NULL FROM tasks WHERE id = ?`, task.ID).Scan(&valid); err != nil {
		t.Fatalf("read repeat_days: %v", err)
	}
	if valid {
		t.Fatalf("expected NULL repeat_days for a daily definition")
	}
}

func TestCorruptRepeatDaysIsReported(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s)

	task := &domain.Task{UserID: u.ID, Title: "Bad", Kind: domain.KindClass, Date: "2024-03-01", Time: "02:00 PM", Recurrence: domain.RecurrenceWeekly}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE tasks SET repeat_days = 'Mon;Wed' WHERE id = ?`, task.ID); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}
	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !got.RepeatDays.IsEmpty() {
		t.Fatalf("expected empty set, got %v", got.RepeatDays)
	}
	var fe *calendar.FormatError
	if !errors.As(got.RepeatDaysErr, &fe) || fe.Value != "Mon;Wed" {
		t.Fatalf("expected repeat_days FormatError, got %v", got.RepeatDaysErr)
	}
}

func TestTaskQueries(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s)

	rows := []*domain.Task{
		{UserID: u.ID, Title: "Old", Kind: domain.KindTask, Date: "2024-03-01", Time: "09:00 AM"},
		{UserID: u.ID, Title: "Today", Kind: domain.KindTask, Date: "2024-03-04", Time: "09:00 AM"},
		{UserID: u.ID, Title: "Done", Kind: domain.KindTask, Date: "2024-03-05", Time: "09:00 AM", Status: domain.StatusDone},
		{UserID: u.ID, Title: "Class", Kind: domain.KindClass, Date: "2024-02-01", Time: "02:00 PM", Recurrence: domain.RecurrenceDaily},
		{UserID: u.ID, Title: "Ended", Kind: domain.KindClass, Date: "2024-02-01", EndDate: "2024-02-10", Time: "02:00 PM", Recurrence: domain.RecurrenceDaily},
	}
	for _, r := range rows {
		if err := s.CreateTask(r); err != nil {
			t.Fatalf("create %s: %v", r.Title, err)
		}
	}

	all, err := s.ListTasksByUser(u.ID)
	if err != nil || len(all) != 5 {
		t.Fatalf("expected 5 tasks, got %d, %v", len(all), err)
	}

	byDate, err := s.ListTasksByDate(u.ID, "2024-03-04")
	if err != nil || len(byDate) != 1 || byDate[0].Title != "Today" {
		t.Fatalf("unexpected tasks by date %+v, %v", byDate, err)
	}

	upcoming, err := s.ListUpcomingTasks(u.ID, "2024-03-04")
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	titles := map[string]bool{}
	for _, r := range upcoming {
		titles[r.Title] = true
	}
	if len(upcoming) != 2 || !titles["Today"] || !titles["Class"] {
		t.Fatalf("unexpected upcoming %v", titles)
	}

	done, err := s.ListCompletedTasks(u.ID)
	if err != nil || len(done) != 1 || done[0].Title != "Done" {
		t.Fatalf("unexpected completed %+v, %v", done, err)
	}

	pending, err := s.ListPendingTasksByKind(u.ID, domain.KindTask)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected 2 pending tasks, got %d, %v", len(pending), err)
	}
}

func TestUpdateDoneDelete(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s)

	task := &domain.Task{UserID: u.ID, Title: "Essay", Kind: domain.KindTask, Date: "2024-03-04", Time: "09:00 AM"}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("create: %v", err)
	}

	task.Title = "Essay v2"
	task.Time = "10:00 AM"
	if err := s.UpdateTask(task); err != nil {
		t.Fatalf("update: %v", err)
	}
	r, m := "r1", "m1"
	if err := s.SetTaskNotifications(task.ID, &r, &m); err != nil {
		t.Fatalf("set notifications: %v", err)
	}
	got, _ := s.GetTask(task.ID)
	if got.Title != "Essay v2" || got.Time != "10:00 AM" {
		t.Fatalf("update not persisted: %+v", got)
	}
	if got.NotificationID == nil || *got.NotificationID != "r1" || got.MissedNotificationID == nil || *got.MissedNotificationID != "m1" {
		t.Fatalf("handles not persisted")
	}

	if err := s.SetTaskNotifications(task.ID, nil, nil); err != nil {
		t.Fatalf("clear notifications: %v", err)
	}
	if err := s.MarkTaskDone(task.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	got, _ = s.GetTask(task.ID)
	if got.Status != domain.StatusDone || got.NotificationID != nil {
		t.Fatalf("unexpected row after done: %+v", got)
	}

	if err := s.DeleteTask(task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.GetTask(task.ID); got != nil {
		t.Fatalf("expected task to be deleted")
	}
}

func TestNotificationQueue(t *testing.T) {
	s := newTestStorage(t)
	u := newTestUser(t, s)
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	due := &domain.Notification{
		Handle: "due", UserID: u.ID, TaskID: 1, TriggerAt: now.Add(-time.Minute),
		Payload: domain.NotificationPayload{Title: "t", Body: "b", Data: domain.NotificationData{TaskID: 1, Type: domain.NotificationTask}},
	}
	later := &domain.Notification{Handle: "later", UserID: u.ID, TaskID: 1, TriggerAt: now.Add(time.Hour), Payload: domain.NotificationPayload{Title: "t", Body: "b"}}
	cancelled := &domain.Notification{Handle: "cancelled", UserID: u.ID, TaskID: 2, TriggerAt: now.Add(-time.Hour), Payload: domain.NotificationPayload{Title: "t", Body: "b"}}
	for _, n := range []*domain.Notification{due, later, cancelled} {
		if err := s.CreateNotification(n); err != nil {
			t.Fatalf("create %s: %v", n.Handle, err)
		}
	}
	if err := s.CancelNotification("cancelled", now); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	list, err := s.ListDueNotifications(now)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(list) != 1 || list[0].Handle != "due" {
		t.Fatalf("expected only the due notification, got %+v", list)
	}
	if list[0].Payload.Data.Type != domain.NotificationTask || !list[0].TriggerAt.Equal(now.Add(-time.Minute)) {
		t.Fatalf("payload not round-tripped: %+v", list[0])
	}

	ok, err := s.MarkNotificationSent("due", now)
	if err != nil || !ok {
		t.Fatalf("mark sent: %v, %v", ok, err)
	}
	ok, err = s.MarkNotificationSent("due", now)
	if err != nil || ok {
		t.Fatalf("second mark sent must report false, got %v, %v", ok, err)
	}

	list, err = s.ListDueNotifications(now)
	if err != nil || len(list) != 0 {
		t.Fatalf("sent notification must leave the queue, got %+v, %v", list, err)
	}
}
