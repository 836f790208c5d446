package bot

import (
	"context"
	"errors"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/xmonx11/smartreminder/internal/domain"
	"github.com/xmonx11/smartreminder/internal/service"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !b.cfg.IsAllowedUser(userID) {
		b.SendMessage(chatID, "⛔ Access denied")
		return
	}

	user, err := b.storage.GetUserByTelegramID(userID)
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", userID).Msg("get user")
		return
	}

	// Allowed but not yet registered
	if user == nil {
		user = b.autoRegisterUser(msg.From)
		if user == nil {
			b.SendMessage(chatID, "❌ Registration failed")
			return
		}
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg, user)
		return
	}

	b.SendMessage(chatID, "Add it with:\n<code>/add "+html.EscapeString(text)+" | YYYY-MM-DD | HH:MM AM</code>")
}

// autoRegisterUser registers an allowed user on first contact
func (b *Bot) autoRegisterUser(from *tgbotapi.User) *domain.User {
	name := from.FirstName
	if from.LastName != "" {
		name += " " + from.LastName
	}

	newUser := &domain.User{
		TelegramID: from.ID,
		Name:       name,
	}

	if err := b.storage.CreateUser(newUser); err != nil {
		log.Error().Err(err).Int64("telegram_id", from.ID).Msg("auto-register user")
		return nil
	}

	log.Info().Str("name", name).Int64("telegram_id", from.ID).Msg("auto-registered user")
	return newUser
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	msgID := callback.Message.MessageID
	ctx := context.Background()

	if !b.cfg.IsAllowedUser(userID) {
		b.answer(callback.ID, "⛔ Access denied")
		return
	}

	user, err := b.storage.GetUserByTelegramID(userID)
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", userID).Msg("get user")
		b.answer(callback.ID, "❌ Something went wrong")
		return
	}
	if user == nil {
		user = b.autoRegisterUser(callback.From)
		if user == nil {
			b.answer(callback.ID, "Registration failed")
			return
		}
	}

	action, ref, _ := strings.Cut(callback.Data, ":")

	switch action {
	case "done":
		id, err := service.ParseRef(ref)
		if err == nil {
			err = b.taskService.MarkDone(ctx, user.ID, id)
		}
		if err != nil {
			b.answer(callback.ID, errorText(err))
			return
		}
		b.answer(callback.ID, "✅ Done!")
		if task, err := b.taskService.Get(user.ID, id); err == nil {
			kb := viewTaskKeyboard(task, ref)
			b.editMessage(chatID, msgID, b.taskService.FormatTask(task), &kb)
		}

	case "del":
		id, err := service.ParseRef(ref)
		if err == nil {
			_, err = b.taskService.Get(user.ID, id)
		}
		if err != nil {
			b.answer(callback.ID, errorText(err))
			return
		}
		b.answer(callback.ID, "")
		kb := confirmDeleteKeyboard(ref)
		b.editMessage(chatID, msgID, "Delete this item and all its occurrences?", &kb)

	case "confirm_del":
		id, err := service.ParseRef(ref)
		if err == nil {
			err = b.taskService.Delete(ctx, user.ID, id)
		}
		if err != nil {
			b.answer(callback.ID, errorText(err))
			return
		}
		b.answer(callback.ID, "🗑 Deleted")
		b.editMessage(chatID, msgID, "🗑 Deleted", nil)

	case "view":
		id, err := service.ParseRef(ref)
		var task *domain.Task
		if err == nil {
			task, err = b.taskService.Get(user.ID, id)
		}
		if err != nil {
			b.answer(callback.ID, errorText(err))
			return
		}
		b.answer(callback.ID, "")
		kb := viewTaskKeyboard(task, ref)
		b.editMessage(chatID, msgID, b.taskService.FormatTask(task), &kb)

	case "refresh":
		b.answer(callback.ID, "🔄")
		days := 1
		if ref == "week" {
			days = 7
		}
		text, kb, err := b.occurrencesView(user, days)
		if err != nil {
			b.editMessage(chatID, msgID, "❌ "+err.Error(), nil)
			return
		}
		b.editMessage(chatID, msgID, text, kb)

	default:
		b.answer(callback.ID, "")
	}
}

// errorText turns a service error into a short user-facing message.
func errorText(err error) string {
	var ce *service.ConflictError
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ce):
		return "⚠️ " + ce.Error()
	case errors.As(err, &ve):
		return "❌ " + ve.Error()
	case errors.Is(err, service.ErrNotFound):
		return "Not found"
	case errors.Is(err, service.ErrAccessDenied):
		return "⛔ Not yours"
	default:
		log.Error().Err(err).Msg("bot action failed")
		return "❌ Something went wrong"
	}
}
