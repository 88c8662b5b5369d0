package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"todo-bot/internal/model"
	"todo-bot/internal/service"
)

// pressed is one button press. Telegram expects exactly one answer per press;
// whatever the handler does not answer explicitly is acknowledged silently.
type pressed struct {
	query    *tgbotapi.CallbackQuery
	userID   int64
	chatID   int64
	msg      *tgbotapi.Message
	answered bool
}

func (b *Bot) answer(p *pressed, text string, alert bool) {
	if p.answered {
		return
	}
	p.answered = true

	cfg := tgbotapi.NewCallback(p.query.ID, text)
	cfg.ShowAlert = alert
	if err := b.request(cfg); err != nil {
		b.log.Debug("callback ack", zap.Error(err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}

	p := &pressed{query: cb, userID: cb.From.ID, chatID: cb.Message.Chat.ID, msg: cb.Message}
	defer b.answer(p, "", false)

	act, err := decodeAction(cb.Data)
	if err != nil {
		b.log.Info("unknown callback", zap.Int64("user_id", p.userID), zap.String("data", cb.Data))
		b.answer(p, msgStaleButton, false)
		return nil
	}
	b.log.Info("callback", zap.Int64("user_id", p.userID), zap.String("data", cb.Data))

	switch a := act.(type) {
	case mainMenuAction:
		b.sessions.clear(p.userID)
		return b.editText(p.msg, welcomeText)
	case cancelAddAction:
		return b.onCancelAdd(p)
	case filterAction:
		return b.onFilter(ctx, p, a)
	case completeMenuAction:
		return b.onCompleteMenu(ctx, p, a)
	case completeAction:
		return b.onComplete(ctx, p, a)
	case selectAction:
		return b.onSelect(ctx, p, a)
	case enableReminderAction:
		return b.onEnableReminder(ctx, p, a)
	case remindersAction:
		return b.showReminders(ctx, p, a.page)
	case removeReminderAction:
		return b.onRemoveReminder(ctx, p, a)
	case disableAllAction:
		if err := b.tasks.DisableAllReminders(ctx, p.userID); err != nil {
			b.answer(p, msgInternalError, true)
			return err
		}
		return b.editView(p.msg, msgAllRemindersOff, mainMenuMarkup())
	case calendarAction:
		return b.onCalendar(ctx, p, a)
	default:
		return fmt.Errorf("unhandled action %T", act)
	}
}

func (b *Bot) onCancelAdd(p *pressed) error {
	if _, ok := b.sessions.get(p.userID).(addSession); !ok {
		b.answer(p, msgNothingToCancel, false)
		return nil
	}
	b.sessions.clear(p.userID)
	b.answer(p, msgAddCancelled, false)
	return b.editText(p.msg, msgAddCancelled+".")
}

func (b *Bot) onFilter(ctx context.Context, p *pressed, a filterAction) error {
	text, markup, err := b.renderTaskList(ctx, p.userID, a.filter, a.history, 0)
	if err != nil {
		return err
	}
	if !a.history {
		b.answer(p, filterToasts[a.filter], false)
	}
	return b.editView(p.msg, text, markup)
}

func (b *Bot) onCompleteMenu(ctx context.Context, p *pressed, a completeMenuAction) error {
	tasks, err := b.tasks.ListTasks(ctx, p.userID, a.filter, model.StatusActive, nil)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		b.answer(p, msgNothingToComplete, true)
		return nil
	}
	return b.editMarkup(p.msg, selectionKeyboard(tasks, 0, b.pageSize, completeLayout(a.filter, b.now())))
}

// onComplete pages the completion keyboard or completes the chosen task and
// refreshes the list it was opened from.
func (b *Bot) onComplete(ctx context.Context, p *pressed, a completeAction) error {
	if a.number == 0 {
		return b.refreshCompletion(ctx, p, a.filter, a.page)
	}

	result, err := b.tasks.CompleteTask(ctx, p.userID, a.number)
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		b.answer(p, msgTaskGone, true)
		return b.refreshCompletion(ctx, p, a.filter, a.page)
	case err != nil:
		b.answer(p, msgCompleteFailed, true)
		return err
	}

	b.answer(p, fmt.Sprintf("Задача '%s' (Номер: %d) завершена.", result.Task.Description, result.Task.TaskNumber), false)

	// The milestone goes out even if the list refresh fails.
	text, markup, err := b.renderTaskList(ctx, p.userID, a.filter, false, 0)
	if err == nil {
		err = b.editView(p.msg, text, markup)
	}
	if err != nil {
		b.log.Warn("refresh list after completion", zap.Int64("user_id", p.userID), zap.Error(err))
	}
	if result.Milestone != "" {
		return b.sendText(p.chatID, result.Milestone)
	}
	return nil
}

func (b *Bot) refreshCompletion(ctx context.Context, p *pressed, filter service.TimeFilter, page int) error {
	tasks, err := b.tasks.ListTasks(ctx, p.userID, filter, model.StatusActive, nil)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		text, markup, err := b.renderTaskList(ctx, p.userID, filter, false, 0)
		if err != nil {
			return err
		}
		return b.editView(p.msg, text, markup)
	}
	return b.editMarkup(p.msg, selectionKeyboard(tasks, page, b.pageSize, completeLayout(filter, b.now())))
}

// onSelect handles paging and picking in the edit and delete selection views.
func (b *Bot) onSelect(ctx context.Context, p *pressed, a selectAction) error {
	if !b.selecting(p.userID, a.flow) {
		b.answer(p, msgStaleButton, false)
		return b.editText(p.msg, chooseTextStale(a.flow))
	}

	tasks, err := b.tasks.ListTasks(ctx, p.userID, service.FilterAll, model.StatusActive, nil)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		b.sessions.clear(p.userID)
		return b.editView(p.msg, noActiveText(a.flow), mainMenuMarkup())
	}
	layout := selectLayout(a.flow, b.now())

	if a.op == opView {
		return b.editMarkup(p.msg, selectionKeyboard(tasks, a.page, b.pageSize, layout))
	}

	ok, err := b.selectTask(ctx, p.chatID, p.userID, a.flow, a.number)
	if err != nil {
		return err
	}
	if !ok {
		b.answer(p, msgTaskGone, true)
		return b.editView(p.msg, msgTaskGoneReselect, selectionKeyboard(tasks, a.page, b.pageSize, layout))
	}
	b.deleteMessage(p.msg)
	return nil
}

// selecting reports whether the user is still picking a task for flow.
func (b *Bot) selecting(userID int64, flow selectFlow) bool {
	switch sess := b.sessions.get(userID).(type) {
	case editSession:
		return flow == flowEdit && sess.stage == editSelectingTask
	case deleteSession:
		return flow == flowDelete && sess.stage == deleteSelectingTask
	default:
		return false
	}
}

func chooseTextStale(flow selectFlow) string {
	if flow == flowEdit {
		return "Выбор задачи устарел. Начните заново: /edit_task"
	}
	return "Выбор задачи устарел. Начните заново: /delete_task"
}

func (b *Bot) onEnableReminder(ctx context.Context, p *pressed, a enableReminderAction) error {
	err := b.tasks.EnableReminder(ctx, p.userID, a.taskID)
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return b.editView(p.msg, msgTaskGone, mainMenuMarkup())
	case err != nil:
		b.log.Error("enable reminder", zap.Int64("user_id", p.userID), zap.Uint("task_id", a.taskID), zap.Error(err))
		return b.editView(p.msg, msgReminderFailed, mainMenuMarkup())
	}
	return b.editView(p.msg, msgReminderEnabled, reminderEnabledMarkup())
}

func (b *Bot) showReminders(ctx context.Context, p *pressed, page int) error {
	tasks, err := b.remindable(ctx, p.userID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return b.editView(p.msg, msgNoRemindersLeft, mainMenuMarkup())
	}
	return b.editView(p.msg, msgRemindersHeader, selectionKeyboard(tasks, page, b.pageSize, remindersLayout(b.now())))
}

func (b *Bot) onRemoveReminder(ctx context.Context, p *pressed, a removeReminderAction) error {
	err := b.tasks.DisableReminder(ctx, p.userID, a.taskID)
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		b.answer(p, msgTaskGone, true)
	case err != nil:
		b.answer(p, msgReminderRemoveError, true)
		return err
	default:
		b.answer(p, msgReminderRemoved, false)
	}
	return b.showReminders(ctx, p, a.page)
}

// onCalendar drives the date picker of the add and edit-deadline steps.
func (b *Bot) onCalendar(ctx context.Context, p *pressed, a calendarAction) error {
	sess := b.sessions.get(p.userID)
	add, adding := sess.(addSession)
	edit, editing := sess.(editSession)
	adding = adding && add.stage == addWaitingDeadline
	editing = editing && edit.stage == editWaitingDeadline
	if !adding && !editing {
		b.answer(p, msgStaleButton, false)
		return nil
	}

	switch a.op {
	case calIgnore:
		return nil
	case calPrev, calNext:
		delta := 1
		if a.op == calPrev {
			delta = -1
		}
		year, month := shiftMonth(a.year, a.month, delta)
		return b.editMarkup(p.msg, calendarKeyboard(year, month))
	case calCancel:
		b.sessions.clear(p.userID)
		if adding {
			b.answer(p, msgAddCancelled, false)
			return b.editText(p.msg, msgAddCancelled+".")
		}
		return b.editText(p.msg, msgEditCancelled)
	}

	var deadline *time.Time
	if a.op == calDay {
		d, ok := a.date(b.now().Location())
		if !ok {
			b.answer(p, msgStaleButton, false)
			return nil
		}
		deadline = &d
	}

	if adding {
		return b.finishAdd(ctx, p.chatID, p.userID, add.description, deadline, p.msg)
	}
	return b.finishDeadlineEdit(ctx, p.chatID, p.userID, edit, deadline, p.msg)
}
