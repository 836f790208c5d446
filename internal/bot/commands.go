package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xmonx11/smartreminder/internal/domain"
	"github.com/xmonx11/smartreminder/internal/service"
)

func (b *Bot) handleCommand(msg *tgbotapi.Message, user *domain.User) {
	chatID := msg.Chat.ID
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	switch cmd {
	case "start":
		b.cmdStart(chatID, user)
	case "help":
		b.cmdHelp(chatID)
	case "add":
		b.cmdAdd(chatID, user, args)
	case "schedule":
		b.cmdSchedule(chatID, user, args)
	case "edit":
		b.cmdEdit(chatID, user, args)
	case "today":
		b.cmdDays(chatID, user, 1)
	case "week":
		b.cmdDays(chatID, user, 7)
	case "list":
		b.cmdList(chatID, user)
	case "missed":
		b.cmdMissed(chatID, user)
	case "done":
		b.cmdDone(chatID, user, args)
	case "delete":
		b.cmdDelete(chatID, user, args)
	default:
		b.SendMessage(chatID, "Unknown command. /help for the list")
	}
}

func (b *Bot) cmdStart(chatID int64, user *domain.User) {
	b.SendMessage(chatID, fmt.Sprintf("👋 Hi, %s!\n\nI keep track of your tasks and schedules and remind you before they start.\n\n/help for the commands", html.EscapeString(user.Name)))
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Commands:</b>

<b>Add</b>
/add title | YYYY-MM-DD | HH:MM AM [| minutes]
/schedule Class | title | weekly Mon,Wed | start | HH:MM PM [| end] [| minutes]
  kinds: Class, Routine, Meeting, Work
  repeat: once, daily, weekly Mon,Tue,...

<b>View</b>
/today: today's tasks and schedules
/week: the next 7 days
/missed: tasks past their deadline
/list: every definition

<b>Change</b>
/edit ID field value
  fields: title, description, location, date, end, time, reminder, repeat
/done ID
/delete ID`

	b.SendMessage(chatID, text)
}

func (b *Bot) cmdAdd(chatID int64, user *domain.User, args string) {
	if args == "" {
		b.SendMessage(chatID, "Usage: <code>/add Essay | 2024-06-01 | 09:00 AM | 15</code>")
		return
	}
	in, err := service.ParseAddArgs(args)
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	b.create(chatID, user, in)
}

func (b *Bot) cmdSchedule(chatID int64, user *domain.User, args string) {
	if args == "" {
		b.SendMessage(chatID, "Usage: <code>/schedule Class | Math | weekly Mon,Wed | 2024-03-01 | 02:00 PM</code>")
		return
	}
	in, err := service.ParseScheduleArgs(args)
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	b.create(chatID, user, in)
}

func (b *Bot) create(chatID int64, user *domain.User, in service.TaskInput) {
	task, err := b.taskService.Add(context.Background(), user.ID, in)
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	kb := viewTaskKeyboard(task, fmt.Sprint(task.ID))
	b.SendMessageWithKeyboard(chatID, "✅ Added\n\n"+b.taskService.FormatTask(task), kb)
}

func (b *Bot) cmdEdit(chatID int64, user *domain.User, args string) {
	parts := strings.SplitN(args, " ", 3)
	if len(parts) < 3 {
		b.SendMessage(chatID, "Usage: <code>/edit ID field value</code>, e.g. <code>/edit 12 time 10:00 AM</code>")
		return
	}
	id, err := service.ParseRef(parts[0])
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	task, err := b.taskService.Get(user.ID, id)
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}

	in := service.InputFromTask(task)
	if err := service.ApplyEdit(&in, parts[1], parts[2]); err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	updated, err := b.taskService.Update(context.Background(), user.ID, id, in)
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	kb := viewTaskKeyboard(updated, fmt.Sprint(updated.ID))
	b.SendMessageWithKeyboard(chatID, "✏️ Updated\n\n"+b.taskService.FormatTask(updated), kb)
}

// occurrencesView renders the occurrences of the next days starting today.
func (b *Bot) occurrencesView(user *domain.User, days int) (string, *tgbotapi.InlineKeyboardMarkup, error) {
	from := b.taskService.Today()
	to := from.AddDays(days - 1)
	occs, err := b.taskService.Occurrences(user.ID, from, to)
	if err != nil {
		return "", nil, err
	}

	title, refresh := "📅 <b>Today</b>", "today"
	if days > 1 {
		title, refresh = fmt.Sprintf("🗓 <b>Next %d days</b>", days), "week"
	}
	return title + "\n\n" + b.taskService.FormatOccurrences(occs), occurrencesKeyboard(occs, refresh), nil
}

func (b *Bot) cmdDays(chatID int64, user *domain.User, days int) {
	text, kb, err := b.occurrencesView(user, days)
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	b.SendMessageWithKeyboard(chatID, text, *kb)
}

func (b *Bot) cmdList(chatID int64, user *domain.User) {
	tasks, err := b.taskService.List(user.ID)
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	b.SendMessage(chatID, "📋 <b>All</b>\n\n"+b.taskService.FormatTaskList(tasks))
}

func (b *Bot) cmdMissed(chatID int64, user *domain.User) {
	tasks, err := b.taskService.Missed(user.ID)
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	if len(tasks) == 0 {
		b.SendMessage(chatID, "⏰ No missed tasks 🎉")
		return
	}
	b.SendMessageWithKeyboard(chatID, "⏰ <b>Missed</b>\n\n"+b.taskService.FormatTaskList(tasks), *missedKeyboard(tasks))
}

func (b *Bot) cmdDone(chatID int64, user *domain.User, args string) {
	if args == "" {
		b.SendMessage(chatID, "Usage: /done ID")
		return
	}
	id, err := service.ParseRef(args)
	if err == nil {
		err = b.taskService.MarkDone(context.Background(), user.ID, id)
	}
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	b.SendMessage(chatID, fmt.Sprintf("✅ #%d done", id))
}

func (b *Bot) cmdDelete(chatID int64, user *domain.User, args string) {
	if args == "" {
		b.SendMessage(chatID, "Usage: /delete ID")
		return
	}
	id, err := service.ParseRef(args)
	if err == nil {
		_, err = b.taskService.Get(user.ID, id)
	}
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	b.SendMessageWithKeyboard(chatID, fmt.Sprintf("Delete #%d and all its occurrences?", id), confirmDeleteKeyboard(fmt.Sprint(id)))
}
