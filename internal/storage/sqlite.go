package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xmonx11/smartreminder/internal/calendar"
	"github.com/xmonx11/smartreminder/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER UNIQUE NOT NULL,
			name TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			type TEXT NOT NULL DEFAULT 'Task',
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			repeat_frequency TEXT NOT NULL DEFAULT 'none',
			repeat_days TEXT,
			start_date TEXT,
			end_date TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			reminder_minutes INTEGER NOT NULL DEFAULT 0,
			notification_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_date ON tasks(date)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		// Missed-deadline alerts for tasks
		`ALTER TABLE tasks ADD COLUMN missed_notification_id TEXT`,
		`ALTER TABLE tasks ADD COLUMN location TEXT DEFAULT ''`,
		// Notification queue
		`CREATE TABLE IF NOT EXISTS notifications (
			handle TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			task_id INTEGER NOT NULL,
			trigger_at INTEGER NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			sent_at DATETIME,
			cancelled_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_trigger ON notifications(trigger_at)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_task ON notifications(task_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Users ===

func (s *Storage) CreateUser(u *domain.User) error {
	res, err := s.db.Exec(
		`INSERT INTO users (telegram_id, name) VALUES (?, ?)`,
		u.TelegramID, u.Name,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	u.ID = id
	u.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetUserByTelegramID(telegramID int64) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRow(
		`SELECT id, telegram_id, name, created_at FROM users WHERE telegram_id = ?`,
		telegramID,
	).Scan(&u.ID, &u.TelegramID, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Storage) GetUserByID(id int64) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRow(
		`SELECT id, telegram_id, name, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.TelegramID, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// ListUsers returns all users
func (s *Storage) ListUsers() ([]*domain.User, error) {
	rows, err := s.db.Query(`SELECT id, telegram_id, name, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u := &domain.User{}
		if err := rows.Scan(&u.ID, &u.TelegramID, &u.Name, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// === Tasks ===

const taskColumns = `id, user_id, title, COALESCE(description, ''), COALESCE(location, ''), type,
	date, start_date, end_date, time, repeat_frequency, repeat_days,
	status, reminder_minutes, notification_id, missed_notification_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	t := &domain.Task{}
	var (
		startDate, endDate, repeatDays sql.NullString
		notificationID, missedID       sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Location, &t.Kind,
		&t.Date, &startDate, &endDate, &t.Time, &t.Recurrence, &repeatDays,
		&t.Status, &t.ReminderMinutes, &notificationID, &missedID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.StartDate = startDate.String
	t.EndDate = endDate.String
	if repeatDays.Valid {
		days, err := calendar.ParseWeekdaySet(repeatDays.String)
		if err != nil {
			log.Warn().Err(err).Int64("task_id", t.ID).Msg("corrupt repeat_days")
			t.RepeatDaysErr = err
		}
		t.RepeatDays = days
	}
	if notificationID.Valid {
		t.NotificationID = &notificationID.String
	}
	if missedID.Valid {
		t.MissedNotificationID = &missedID.String
	}
	return t, nil
}

func (s *Storage) queryTasks(query string, args ...any) ([]*domain.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullHandle(h *string) sql.NullString {
	if h == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *h, Valid: true}
}

// repeatDaysColumn stores the day set only for weekly definitions.
func repeatDaysColumn(t *domain.Task) sql.NullString {
	if t.Recurrence != domain.RecurrenceWeekly {
		return sql.NullString{}
	}
	return sql.NullString{String: t.RepeatDays.JSON(), Valid: true}
}

func (s *Storage) CreateTask(t *domain.Task) error {
	if t.Status == "" {
		t.Status = domain.StatusPending
	}
	if t.Recurrence == "" {
		t.Recurrence = domain.RecurrenceNone
	}
	res, err := s.db.Exec(
		`INSERT INTO tasks (user_id, title, description, location, type, date, start_date, end_date, time,
			repeat_frequency, repeat_days, status, reminder_minutes, notification_id, missed_notification_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Title, t.Description, t.Location, t.Kind, t.Date, nullString(t.StartDate), nullString(t.EndDate), t.Time,
		t.Recurrence, repeatDaysColumn(t), t.Status, t.ReminderMinutes, nullHandle(t.NotificationID), nullHandle(t.MissedNotificationID),
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	t.ID = id
	t.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetTask(id int64) (*domain.Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// UpdateTask rewrites every editable column of t.
func (s *Storage) UpdateTask(t *domain.Task) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, location = ?, type = ?, date = ?, start_date = ?, end_date = ?,
			time = ?, repeat_frequency = ?, repeat_days = ?, status = ?, reminder_minutes = ?,
			notification_id = ?, missed_notification_id = ?
		 WHERE id = ?`,
		t.Title, t.Description, t.Location, t.Kind, t.Date, nullString(t.StartDate), nullString(t.EndDate),
		t.Time, t.Recurrence, repeatDaysColumn(t), t.Status, t.ReminderMinutes,
		nullHandle(t.NotificationID), nullHandle(t.MissedNotificationID), t.ID,
	)
	return err
}

func (s *Storage) MarkTaskDone(id int64) error {
	_, err := s.db.Exec(`UPDATE tasks SET status = ? WHERE id = ?`, domain.StatusDone, id)
	return err
}

func (s *Storage) DeleteTask(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// SetTaskNotifications stores the handles returned by the notifier.
func (s *Storage) SetTaskNotifications(id int64, reminder, missed *string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET notification_id = ?, missed_notification_id = ? WHERE id = ?`,
		nullHandle(reminder), nullHandle(missed), id,
	)
	return err
}

// ListTasksByUser returns every definition of the user regardless of
// recurrence or status.
func (s *Storage) ListTasksByUser(userID int64) ([]*domain.Task, error) {
	return s.queryTasks(`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY date, id`, userID)
}

// ListTasksByDate returns rows stored with exactly this date. Recurring rows
// dated elsewhere are not included; expand for that.
func (s *Storage) ListTasksByDate(userID int64, date string) ([]*domain.Task, error) {
	return s.queryTasks(`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND date = ? ORDER BY id`, userID, date)
}

// ListUpcomingTasks returns pending one-time rows dated today or later and
// pending recurring rows whose end date has not passed.
func (s *Storage) ListUpcomingTasks(userID int64, today string) ([]*domain.Task, error) {
	return s.queryTasks(
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = ? AND status = ?
		   AND ((repeat_frequency = 'none' AND date >= ?)
		     OR (repeat_frequency != 'none' AND (end_date IS NULL OR end_date >= ?)))
		 ORDER BY date, id`,
		userID, domain.StatusPending, today, today,
	)
}

func (s *Storage) ListCompletedTasks(userID int64) ([]*domain.Task, error) {
	return s.queryTasks(
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND status = ? ORDER BY date DESC, id DESC`,
		userID, domain.StatusDone,
	)
}

func (s *Storage) ListPendingTasksByKind(userID int64, kind domain.Kind) ([]*domain.Task, error) {
	return s.queryTasks(
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND type = ? AND status = ? ORDER BY date, id`,
		userID, kind, domain.StatusPending,
	)
}

// === Notifications ===

func (s *Storage) CreateNotification(n *domain.Notification) error {
	payload, err := json.Marshal(n.Payload.Data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO notifications (handle, user_id, task_id, trigger_at, title, body, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.Handle, n.UserID, n.TaskID, n.TriggerAt.Unix(), n.Payload.Title, n.Payload.Body, string(payload),
	)
	if err != nil {
		return err
	}
	n.CreatedAt = time.Now()
	return nil
}

const notificationColumns = `handle, user_id, task_id, trigger_at, title, body, payload, sent_at, cancelled_at, created_at`

func scanNotification(row rowScanner) (*domain.Notification, error) {
	n := &domain.Notification{}
	var (
		triggerAt int64
		payload   string
	)
	if err := row.Scan(&n.Handle, &n.UserID, &n.TaskID, &triggerAt, &n.Payload.Title, &n.Payload.Body,
		&payload, &n.SentAt, &n.CancelledAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.TriggerAt = time.Unix(triggerAt, 0)
	if err := json.Unmarshal([]byte(payload), &n.Payload.Data); err != nil {
		log.Warn().Err(err).Str("handle", n.Handle).Msg("corrupt notification payload")
	}
	return n, nil
}

// CancelNotification marks a pending notification cancelled. Unknown or
// already delivered handles are left alone.
func (s *Storage) CancelNotification(handle string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE notifications SET cancelled_at = ? WHERE handle = ? AND sent_at IS NULL AND cancelled_at IS NULL`,
		at, handle,
	)
	return err
}

// ListDueNotifications returns pending notifications whose trigger is at or
// before now, oldest first.
func (s *Storage) ListDueNotifications(now time.Time) ([]*domain.Notification, error) {
	rows, err := s.db.Query(
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE trigger_at <= ? AND sent_at IS NULL AND cancelled_at IS NULL
		 ORDER BY trigger_at, created_at`,
		now.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// MarkNotificationSent reports false when another worker already delivered
// or cancelled the notification.
func (s *Storage) MarkNotificationSent(handle string, at time.Time) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE notifications SET sent_at = ? WHERE handle = ? AND sent_at IS NULL AND cancelled_at IS NULL`,
		at, handle,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
