package bot

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/xmonx11/smartreminder/config"
	"github.com/xmonx11/smartreminder/internal/domain"
	"github.com/xmonx11/smartreminder/internal/service"
	"github.com/xmonx11/smartreminder/internal/storage"
)

const webhookPath = "/bot"

// telegramClient is the part of the Telegram API used to talk back to chats.
type telegramClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api             *tgbotapi.BotAPI
	client          telegramClient
	cfg             *config.Config
	storage         *storage.Storage
	taskService     *service.TaskService
	calendarService *service.CalendarService
	server          *http.Server
}

func New(cfg *config.Config, storage *storage.Storage, taskSvc *service.TaskService, calendarSvc *service.CalendarService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("authorized on telegram")

	bot := &Bot{
		api:             api,
		client:          api,
		cfg:             cfg,
		storage:         storage,
		taskService:     taskSvc,
		calendarService: calendarSvc,
	}

	// Set bot commands (menu button)
	bot.setCommands()

	return bot, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "today", Description: "📅 Today"},
		{Command: "week", Description: "🗓 Next 7 days"},
		{Command: "add", Description: "➕ Add a task"},
		{Command: "schedule", Description: "🔁 Add a schedule"},
		{Command: "missed", Description: "⏰ Missed tasks"},
		{Command: "list", Description: "📋 All definitions"},
		{Command: "help", Description: "❓ Help"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.client.Request(cfg); err != nil {
		log.Warn().Err(err).Msg("set bot commands")
	}
}

// SetupWebhook registers the webhook, or removes it when the bot runs in
// long polling mode.
func (b *Bot) SetupWebhook() error {
	if b.cfg.WebhookURL == "" {
		if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		log.Info().Msg("webhook removed, using long polling")
		return nil
	}

	webhookURL := b.cfg.WebhookURL + webhookPath

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	_, err = b.api.Request(wh)
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.LastErrorDate != 0 {
		log.Warn().Str("error", info.LastErrorMessage).Msg("webhook last error")
	}

	log.Info().Str("url", webhookURL).Msg("webhook set")
	return nil
}

func (b *Bot) Start(ctx context.Context) error {
	mux := b.Handler()

	var updates tgbotapi.UpdatesChannel
	if b.cfg.WebhookURL != "" {
		ch := make(chan tgbotapi.Update, b.api.Buffer)
		mux.HandleFunc(webhookPath, func(w http.ResponseWriter, r *http.Request) {
			update, err := b.api.HandleUpdate(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			ch <- *update
		})
		updates = ch
	} else {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = b.api.GetUpdatesChan(u)
		defer b.api.StopReceivingUpdates()
	}

	b.server = &http.Server{
		Addr:    ":" + b.cfg.ServerPort,
		Handler: mux,
	}

	go func() {
		log.Info().Str("port", b.cfg.ServerPort).Msg("starting http server")
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.client.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	_, err := b.client.Send(msg)
	return err
}

// SendNotification delivers a queued reminder with the action matching its
// payload type.
func (b *Bot) SendNotification(chatID int64, p domain.NotificationPayload) error {
	return b.SendMessageWithKeyboard(chatID, notificationText(p), notificationKeyboard(p.Data))
}

func (b *Bot) editMessage(chatID int64, msgID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = "HTML"
	edit.ReplyMarkup = keyboard
	if _, err := b.client.Send(edit); err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("edit message")
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.client.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Debug().Err(err).Msg("answer callback")
	}
}
