package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xmonx11/smartreminder/config"
	"github.com/xmonx11/smartreminder/internal/bot"
	"github.com/xmonx11/smartreminder/internal/clients/caldav"
	"github.com/xmonx11/smartreminder/internal/logging"
	"github.com/xmonx11/smartreminder/internal/reminder"
	"github.com/xmonx11/smartreminder/internal/scheduler"
	"github.com/xmonx11/smartreminder/internal/service"
	"github.com/xmonx11/smartreminder/internal/storage"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", true)
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogConsole)

	// Storage
	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	defer store.Close()

	// Services
	notifSvc := service.NewNotificationService(store)
	reminders := reminder.NewScheduler(notifSvc, cfg.Timezone)
	taskSvc := service.NewTaskService(store, reminders, cfg.DefaultReminderMinutes)

	calendarSvc := newCalendarService(cfg, store)
	if calendarSvc.IsConfigured() {
		taskSvc.SetPublisher(calendarSvc)
		log.Info().Msg("caldav publishing enabled")
	}

	// Bot
	tgBot, err := bot.New(cfg, store, taskSvc, calendarSvc)
	if err != nil {
		log.Fatal().Err(err).Msg("init bot")
	}

	if err := tgBot.SetupWebhook(); err != nil {
		log.Fatal().Err(err).Msg("setup webhook")
	}

	// Scheduler
	sched := scheduler.New(cfg, store, taskSvc, notifSvc)
	sched.SetSender(tgBot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler")
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			log.Error().Err(err).Msg("bot")
		}
	}()

	log.Info().Msg("SmartReminder started")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("stop bot")
	}

	log.Info().Msg("SmartReminder stopped")
}

// newCalendarService wires CalDAV when configured. Without a calendar path the
// first discovered calendar is used.
func newCalendarService(cfg *config.Config, store *storage.Storage) *service.CalendarService {
	if !cfg.CalDAVEnabled() {
		return service.NewCalendarService(store, nil, cfg.Timezone)
	}
	client := caldav.NewClient(cfg.CalDAV.URL, cfg.CalDAV.Username, cfg.CalDAV.Password)
	svc := service.NewCalendarService(store, client, cfg.Timezone)
	if cfg.CalDAV.CalendarPath != "" {
		client.SetCalendarID(cfg.CalDAV.CalendarPath)
		return svc
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	name, err := svc.UseFirstCalendar(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("caldav: no calendar found, publishing disabled")
		return svc
	}
	log.Info().Str("calendar", name).Msg("caldav: using first calendar")
	return svc
}
