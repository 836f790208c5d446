package bot

import (
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xmonx11/smartreminder/internal/domain"
)

// Callback data is "<action>:<ref>" where ref is a task id or an occurrence
// key such as "12-2024-03-04".

func notificationRef(data domain.NotificationData) string {
	if data.Date == "" {
		return fmt.Sprint(data.TaskID)
	}
	return fmt.Sprintf("%d-%s", data.TaskID, data.Date)
}

func notificationText(p domain.NotificationPayload) string {
	return fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(p.Title), html.EscapeString(p.Body))
}

// Task payloads offer "Done", schedule payloads open the item.
func notificationKeyboard(data domain.NotificationData) tgbotapi.InlineKeyboardMarkup {
	ref := notificationRef(data)
	if data.Type == domain.NotificationSchedule {
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("👀 View", "view:"+ref),
			),
		)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", "done:"+ref),
			tgbotapi.NewInlineKeyboardButtonData("👀 View", "view:"+ref),
		),
	)
}

// Single item keyboard
func viewTaskKeyboard(task *domain.Task, ref string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	if !task.IsDone() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", "done:"+ref),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", "del:"+ref),
		))
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📅 Today", "refresh:today"),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmDeleteKeyboard(ref string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Yes, delete", "confirm_del:"+ref),
			tgbotapi.NewInlineKeyboardButtonData("◀️ Cancel", "view:"+ref),
		),
	)
}

// Day list keyboard: one row per pending occurrence
func occurrencesKeyboard(occs []domain.Occurrence, refresh string) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, o := range occs {
		if o.Task.IsDone() {
			continue
		}
		ref := o.Key.String()
		action := "done:"
		label := "✅ " + truncate(o.Task.Title, 30)
		if o.Task.IsSchedule() {
			action = "view:"
			label = o.Task.Kind.Emoji() + " " + truncate(o.Task.Title, 30)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, action+ref),
		))
		if len(rows) >= 10 {
			break
		}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "refresh:"+refresh),
	))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &keyboard
}

// Missed list keyboard
func missedKeyboard(tasks []*domain.Task) *tgbotapi.InlineKeyboardMarkup {
	if len(tasks) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range tasks {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ "+truncate(t.Title, 25), fmt.Sprintf("done:%d", t.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("del:%d", t.ID)),
		))
		if len(rows) >= 10 {
			break
		}
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &keyboard
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
