package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-bot/internal/model"
	"todo-bot/internal/service"
)

const (
	btnPrev           = "⬅️ Назад"
	btnNext           = "Вперёд ➡️"
	btnCancel         = "❌ Отмена"
	btnMainMenu       = "🏠 Главное меню"
	btnDisableAll     = "❌ Отключить все напоминания"
	btnAllReminders   = "🔔 Все напоминания"
	btnRemindMe       = "Напомнить о задаче"
	btnShowToday      = "Показать задачи на сегодня"
	btnCancelComplete = "❌ Отменить завершение"
	btnYes            = "Да"
	btnNo             = "Нет"
	btnFieldDesc      = "Описание"
	btnFieldDeadline  = "Срок выполнения"
	btnFieldCancel    = "Отмена"

	labelMaxLen = 30
)

// pageLayout parametrizes the paginated selection keyboard. Only labels and
// payloads differ between edit, delete, completion and reminder views.
type pageLayout struct {
	label  func(task model.Task) string
	choose func(page int, task model.Task) action
	view   func(page int) action
	cancel tgbotapi.InlineKeyboardButton
	extra  [][]tgbotapi.InlineKeyboardButton
}

// pageBounds returns the page that will actually be shown and its slice
// bounds. A page past the end falls back until it is non-empty or zero.
func pageBounds(total, page, size int) (shown, start, end int) {
	if size <= 0 {
		size = 1
	}
	if page < 0 {
		page = 0
	}
	for page > 0 && page*size >= total {
		page--
	}
	start = page * size
	end = start + size
	if end > total {
		end = total
	}
	if start > end {
		start = end
	}
	return page, start, end
}

// selectionKeyboard renders one button per task on the page, a navigation
// row and the cancel control. An empty list yields the cancel control only.
func selectionKeyboard(tasks []model.Task, page, size int, layout pageLayout) tgbotapi.InlineKeyboardMarkup {
	if len(tasks) == 0 {
		return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(layout.cancel))
	}

	page, start, end := pageBounds(len(tasks), page, size)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, end-start+3)
	for _, task := range tasks[start:end] {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(layout.label(task), layout.choose(page, task).data()),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(btnPrev, layout.view(page-1).data()))
	}
	if end < len(tasks) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(btnNext, layout.view(page+1).data()))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	rows = append(rows, layout.extra...)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(layout.cancel))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func selectLayout(flow selectFlow, now time.Time) pageLayout {
	return pageLayout{
		label: func(t model.Task) string { return taskLabel(t, now) },
		choose: func(page int, t model.Task) action {
			return selectAction{flow: flow, page: page, number: t.TaskNumber, op: opSelect}
		},
		view:   func(page int) action { return selectAction{flow: flow, page: page, op: opView} },
		cancel: tgbotapi.NewInlineKeyboardButtonData(btnCancel, mainMenuAction{}.data()),
	}
}

func completeLayout(filter service.TimeFilter, now time.Time) pageLayout {
	return pageLayout{
		label: func(t model.Task) string {
			if d := service.FormatDeadline(t.Deadline, now); d != "" {
				return fmt.Sprintf("%d ✅(%s)", t.TaskNumber, d)
			}
			return fmt.Sprintf("%d ✅", t.TaskNumber)
		},
		choose: func(page int, t model.Task) action {
			return completeAction{filter: filter, page: page, number: t.TaskNumber}
		},
		view:   func(page int) action { return completeAction{filter: filter, page: page} },
		cancel: tgbotapi.NewInlineKeyboardButtonData(btnCancelComplete, filterAction{filter: filter}.data()),
	}
}

func remindersLayout(now time.Time) pageLayout {
	return pageLayout{
		label: func(t model.Task) string { return "✅ " + taskLabel(t, now) },
		choose: func(page int, t model.Task) action {
			return removeReminderAction{taskID: t.ID, page: page}
		},
		view:   func(page int) action { return remindersAction{page: page} },
		cancel: tgbotapi.NewInlineKeyboardButtonData(btnMainMenu, mainMenuAction{}.data()),
		extra: [][]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnDisableAll, disableAllAction{}.data())),
		},
	}
}

// filterKeyboard is attached to task list messages, two buttons per row.
// The completion button works on the filter currently shown.
func filterKeyboard(filter service.TimeFilter, history bool) tgbotapi.InlineKeyboardMarkup {
	buttons := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("📅 Сегодня", filterAction{filter: service.FilterToday}.data()),
		tgbotapi.NewInlineKeyboardButtonData("🗓 Неделя", filterAction{filter: service.FilterWeek}.data()),
		tgbotapi.NewInlineKeyboardButtonData("📆 Месяц", filterAction{filter: service.FilterMonth}.data()),
		tgbotapi.NewInlineKeyboardButtonData("📋 Все", filterAction{filter: service.FilterAll}.data()),
	}
	if !history {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData("✅ Завершить задачу", completeMenuAction{filter: filter}.data()))
	}
	buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData("📜 История", filterAction{filter: service.FilterAll, history: true}.data()))

	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(buttons); i += 2 {
		end := i + 2
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons[i:end]...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func mainMenuMarkup() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(btnMainMenu, mainMenuAction{}.data()),
	))
}

func cancelAddMarkup() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔙 Отмена", cancelAddAction{}.data()),
	))
}

func reminderOfferMarkup(taskID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnRemindMe, enableReminderAction{taskID: taskID}.data())),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnMainMenu, mainMenuAction{}.data())),
	)
}

func reminderEnabledMarkup() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnAllReminders, remindersAction{}.data())),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnMainMenu, mainMenuAction{}.data())),
	)
}

func dueTodayMarkup() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(btnShowToday, filterAction{filter: service.FilterToday}.data()),
	))
}

func fieldKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnFieldDesc),
			tgbotapi.NewKeyboardButton(btnFieldDeadline),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnFieldCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnYes),
			tgbotapi.NewKeyboardButton(btnNo),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// taskLabel renders "N. description (deadline)" with the description shortened.
func taskLabel(task model.Task, now time.Time) string {
	label := fmt.Sprintf("%d. %s", task.TaskNumber, shortText(task.Description, labelMaxLen))
	if d := service.FormatDeadline(task.Deadline, now); d != "" {
		label += fmt.Sprintf(" (%s)", d)
	}
	return label
}

func shortText(text string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	return string(runes[:maxLen]) + "..."
}

// sameMarkup compares keyboards by what the user sees and what they send back.
func sameMarkup(a, b *tgbotapi.InlineKeyboardMarkup) bool {
	return keyboardShape(a) == keyboardShape(b)
}

func keyboardShape(kb *tgbotapi.InlineKeyboardMarkup) string {
	if kb == nil {
		return ""
	}
	var sb strings.Builder
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			sb.WriteString(btn.Text)
			sb.WriteByte('\x1f')
			if btn.CallbackData != nil {
				sb.WriteString(*btn.CallbackData)
			}
			sb.WriteByte('\x1e')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
