package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xmonx11/smartreminder/internal/domain"
	"github.com/xmonx11/smartreminder/internal/storage"
)

// NotificationService is the notification queue backing reminder.Notifier.
// The dispatcher drains it once a minute.
type NotificationService struct {
	storage *storage.Storage
	now     func() time.Time
}

func NewNotificationService(s *storage.Storage) *NotificationService {
	return &NotificationService{storage: s, now: time.Now}
}

// Schedule queues p for delivery at the given instant and returns its handle.
func (s *NotificationService) Schedule(_ context.Context, userID int64, at time.Time, p domain.NotificationPayload) (string, error) {
	n := &domain.Notification{
		Handle:    uuid.NewString(),
		UserID:    userID,
		TaskID:    p.Data.TaskID,
		TriggerAt: at,
		Payload:   p,
	}
	if err := s.storage.CreateNotification(n); err != nil {
		return "", fmt.Errorf("queue notification: %w", err)
	}
	return n.Handle, nil
}

// Cancel drops a pending notification. Unknown handles are not an error.
func (s *NotificationService) Cancel(_ context.Context, handle string) error {
	if err := s.storage.CancelNotification(handle, s.now()); err != nil {
		return fmt.Errorf("cancel notification: %w", err)
	}
	return nil
}

// Due returns notifications whose trigger is at or before now.
func (s *NotificationService) Due(now time.Time) ([]*domain.Notification, error) {
	return s.storage.ListDueNotifications(now)
}

// MarkSent claims a notification for delivery. It returns false when the
// notification was already sent or cancelled.
func (s *NotificationService) MarkSent(handle string) (bool, error) {
	return s.storage.MarkNotificationSent(handle, s.now())
}
