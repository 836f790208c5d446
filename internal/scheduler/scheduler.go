package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/xmonx11/smartreminder/config"
	"github.com/xmonx11/smartreminder/internal/domain"
	"github.com/xmonx11/smartreminder/internal/service"
	"github.com/xmonx11/smartreminder/internal/storage"
)

type MessageSender interface {
	SendMessage(chatID int64, text string) error
	SendNotification(chatID int64, p domain.NotificationPayload) error
}

// Scheduler runs the notification dispatcher and the daily digests.
type Scheduler struct {
	cron          *cron.Cron
	cfg           *config.Config
	storage       *storage.Storage
	taskService   *service.TaskService
	notifications *service.NotificationService
	sender        MessageSender
	now           func() time.Time
}

func New(cfg *config.Config, storage *storage.Storage, taskSvc *service.TaskService, notifSvc *service.NotificationService) *Scheduler {
	location := cfg.Timezone
	if location == nil {
		location = time.UTC
	}

	c := cron.New(cron.WithLocation(location))

	return &Scheduler{
		cron:          c,
		cfg:           cfg,
		storage:       storage,
		taskService:   taskSvc,
		notifications: notifSvc,
		now:           time.Now,
	}
}

func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

// WithClock replaces the time source, for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// DailySpec turns a 24h "HH:MM" time into a cron spec firing once a day.
func DailySpec(hhmm string) (string, error) {
	h, m, err := config.ParseClock(hhmm)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	morningSpec, err := DailySpec(s.cfg.MorningTime)
	if err != nil {
		return fmt.Errorf("morning time: %w", err)
	}
	if _, err := s.cron.AddFunc(morningSpec, s.morningDigest); err != nil {
		return fmt.Errorf("add morning digest: %w", err)
	}

	eveningSpec, err := DailySpec(s.cfg.EveningTime)
	if err != nil {
		return fmt.Errorf("evening time: %w", err)
	}
	if _, err := s.cron.AddFunc(eveningSpec, s.eveningCheckin); err != nil {
		return fmt.Errorf("add evening checkin: %w", err)
	}

	if _, err := s.cron.AddFunc("* * * * *", func() { s.DeliverDue(ctx) }); err != nil {
		return fmt.Errorf("add notification dispatch: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("tz", s.cron.Location().String()).
		Str("morning", s.cfg.MorningTime).
		Str("evening", s.cfg.EveningTime).
		Msg("scheduler started")

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// DeliverDue sends every notification whose trigger has passed. Each one is
// claimed before sending so it goes out at most once. Delivered reminders of
// repeating schedules are re-armed for the next occurrence.
func (s *Scheduler) DeliverDue(ctx context.Context) int {
	if s.sender == nil {
		return 0
	}

	due, err := s.notifications.Due(s.now())
	if err != nil {
		log.Error().Err(err).Msg("list due notifications")
		return 0
	}

	sent := 0
	for _, n := range due {
		claimed, err := s.notifications.MarkSent(n.Handle)
		if err != nil {
			log.Error().Err(err).Str("handle", n.Handle).Msg("claim notification")
			continue
		}
		if !claimed {
			continue
		}

		user, err := s.storage.GetUserByID(n.UserID)
		if err != nil || user == nil {
			log.Warn().Err(err).Int64("user_id", n.UserID).Str("handle", n.Handle).Msg("notification for unknown user")
			continue
		}

		if err := s.sender.SendNotification(user.TelegramID, n.Payload); err != nil {
			log.Error().Err(err).Str("handle", n.Handle).Int64("user_id", n.UserID).Msg("send notification")
		} else {
			sent++
		}

		if data := n.Payload.Data; data.Recurring && !data.Missed {
			if err := s.taskService.Rearm(ctx, data.TaskID); err != nil {
				log.Warn().Err(err).Int64("task_id", data.TaskID).Msg("rearm reminder")
			}
		}
	}
	return sent
}

// recipients returns the registered users that are still on the allow-list.
func (s *Scheduler) recipients() []*domain.User {
	users, err := s.storage.ListUsers()
	if err != nil {
		log.Error().Err(err).Msg("list users")
		return nil
	}
	var list []*domain.User
	for _, u := range users {
		if s.cfg.IsAllowedUser(u.TelegramID) {
			list = append(list, u)
		}
	}
	return list
}

func (s *Scheduler) morningDigest() {
	if s.sender == nil {
		return
	}
	for _, user := range s.recipients() {
		s.sendDigestTo(user)
	}
}

func (s *Scheduler) sendDigestTo(user *domain.User) {
	telegramID := user.TelegramID

	today := s.taskService.Today()
	occs, err := s.taskService.Occurrences(user.ID, today, today)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("list today occurrences")
		return
	}

	text := "☀️ <b>Good morning!</b>\n\n"
	if len(occs) == 0 {
		text += "Nothing scheduled today. Enjoy your day!"
	} else {
		text += fmt.Sprintf("<b>%d on today's list:</b>\n\n", len(occs))
		text += s.taskService.FormatOccurrences(occs)
	}

	if err := s.sender.SendMessage(telegramID, text); err != nil {
		log.Error().Err(err).Int64("telegram_id", telegramID).Msg("send morning digest")
	}
}

func (s *Scheduler) eveningCheckin() {
	if s.sender == nil {
		return
	}
	for _, user := range s.recipients() {
		s.sendCheckinTo(user)
	}
}

func (s *Scheduler) sendCheckinTo(user *domain.User) {
	telegramID := user.TelegramID

	missed, err := s.taskService.Missed(user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("list missed tasks")
		return
	}

	text := "🌙 <b>Evening check-in</b>\n\n"
	if len(missed) == 0 {
		text += "No missed tasks. Well done 🎉"
	} else {
		text += fmt.Sprintf("You missed %d task(s):\n\n", len(missed))
		text += s.taskService.FormatTaskList(missed)
		text += "\n/missed to review, /done &lt;id&gt; to complete"
	}

	if err := s.sender.SendMessage(telegramID, text); err != nil {
		log.Error().Err(err).Int64("telegram_id", telegramID).Msg("send evening checkin")
	}
}
