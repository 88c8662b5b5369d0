package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"todo-bot/internal/model"
	"todo-bot/internal/service"
)

const recentTasksLimit = 5

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.log.Info("command", zap.Int64("user_id", msg.From.ID), zap.String("command", msg.Command()))
		return b.handleCommand(ctx, msg)
	}

	switch sess := b.sessions.get(msg.From.ID).(type) {
	case addSession:
		return b.continueAdd(ctx, msg, sess)
	case editSession:
		return b.continueEdit(ctx, msg, sess)
	case deleteSession:
		return b.continueDelete(ctx, msg, sess)
	default:
		return b.sendText(msg.Chat.ID, msgUnknownInput)
	}
}

// handleCommand starts flows. Every command drops the flow in progress.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	userID := msg.From.ID
	if prev := b.sessions.get(userID); prev != nil {
		b.log.Debug("flow dropped", zap.Int64("user_id", userID), zap.String("flow", prev.flowName()))
	}
	b.sessions.clear(userID)

	switch msg.Command() {
	case "start":
		completed, err := b.tasks.RegisterUser(ctx, userID)
		if err != nil {
			b.log.Warn("register user", zap.Int64("user_id", userID), zap.Error(err))
		}
		if completed > 0 {
			return b.sendText(msg.Chat.ID, welcomeText+"\n\n"+fmt.Sprintf(msgCompletedSoFar, completed))
		}
		return b.sendText(msg.Chat.ID, welcomeText)
	case "help":
		return b.sendText(msg.Chat.ID, welcomeText)
	case "add_task":
		b.sessions.set(userID, addSession{stage: addWaitingDescription})
		return b.sendWithReplyMarkup(msg.Chat.ID, msgAskDescription, cancelAddMarkup())
	case "list_tasks":
		return b.sendTaskList(ctx, msg.Chat.ID, userID, service.FilterAll, false, recentTasksLimit)
	case "history_tasks":
		return b.sendTaskList(ctx, msg.Chat.ID, userID, service.FilterAll, true, 0)
	case "edit_task":
		return b.startSelection(ctx, msg.Chat.ID, userID, flowEdit)
	case "delete_task":
		return b.startSelection(ctx, msg.Chat.ID, userID, flowDelete)
	case "reminders":
		return b.sendReminders(ctx, msg.Chat.ID, userID)
	case "cancel":
		return b.sendTextWithRemove(msg.Chat.ID, msgCancelled)
	default:
		return b.sendText(msg.Chat.ID, msgUnknownInput)
	}
}

func (b *Bot) sendTaskList(ctx context.Context, chatID, userID int64, filter service.TimeFilter, history bool, limit int) error {
	text, markup, err := b.renderTaskList(ctx, userID, filter, history, limit)
	if err != nil {
		return err
	}
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) renderTaskList(ctx context.Context, userID int64, filter service.TimeFilter, history bool, limit int) (string, tgbotapi.InlineKeyboardMarkup, error) {
	status := model.StatusActive
	if history {
		status = model.StatusCompleted
	}
	tasks, err := b.tasks.ListTasks(ctx, userID, filter, status, nil)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}
	return listText(tasks, filter, history, limit, b.now()), filterKeyboard(filter, history), nil
}

// Add flow.

func (b *Bot) continueAdd(ctx context.Context, msg *tgbotapi.Message, sess addSession) error {
	userID := msg.From.ID

	switch sess.stage {
	case addWaitingDescription:
		description := strings.TrimSpace(msg.Text)
		if description == "" {
			return b.sendText(msg.Chat.ID, msgDescriptionAsText)
		}
		b.sessions.set(userID, addSession{stage: addWaitingDeadline, description: description})
		now := b.now()
		return b.sendWithReplyMarkup(msg.Chat.ID, msgAskDeadline, calendarKeyboard(now.Year(), now.Month()))
	case addWaitingDeadline:
		deadline, ok := parseTypedDate(msg.Text, b.now().Location())
		if !ok {
			return b.sendText(msg.Chat.ID, msgDeadlineRetry)
		}
		return b.finishAdd(ctx, msg.Chat.ID, userID, sess.description, &deadline, nil)
	}
	return nil
}

// finishAdd stores the task. picker is the calendar message to rewrite, or nil
// when the date was typed.
func (b *Bot) finishAdd(ctx context.Context, chatID, userID int64, description string, deadline *time.Time, picker *tgbotapi.Message) error {
	b.sessions.clear(userID)

	task, err := b.tasks.CreateTask(ctx, userID, description, deadline)
	if err != nil {
		b.log.Error("create task", zap.Int64("user_id", userID), zap.Error(err))
		if picker != nil {
			return b.editText(picker, msgSaveFailed)
		}
		return b.sendText(chatID, msgSaveFailed)
	}

	if task.TaskNumber == 1 {
		if err := b.sendWithReplyMarkup(chatID, msgFirstTask, mainMenuMarkup()); err != nil {
			b.log.Warn("send greeting", zap.Error(err))
		}
	}

	text := createdText(task, b.now())
	if picker != nil {
		err = b.editText(picker, text)
	} else {
		err = b.sendText(chatID, text)
	}
	if err != nil {
		return err
	}
	return b.sendWithReplyMarkup(chatID, msgReminderOffer, reminderOfferMarkup(task.ID))
}

// Edit and delete selection.

func (b *Bot) startSelection(ctx context.Context, chatID, userID int64, flow selectFlow) error {
	tasks, err := b.tasks.ListTasks(ctx, userID, service.FilterAll, model.StatusActive, nil)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return b.sendWithReplyMarkup(chatID, noActiveText(flow), mainMenuMarkup())
	}

	if flow == flowEdit {
		b.sessions.set(userID, editSession{stage: editSelectingTask})
	} else {
		b.sessions.set(userID, deleteSession{stage: deleteSelectingTask})
	}
	return b.sendWithReplyMarkup(chatID, chooseText(flow), selectionKeyboard(tasks, 0, b.pageSize, selectLayout(flow, b.now())))
}

// selectTask moves a selecting session forward. ok is false when the task is
// no longer active; the session then stays in the selecting stage.
func (b *Bot) selectTask(ctx context.Context, chatID, userID int64, flow selectFlow, number int) (ok bool, err error) {
	task, err := b.tasks.GetActive(ctx, userID, number)
	if errors.Is(err, service.ErrTaskNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if flow == flowEdit {
		b.sessions.set(userID, editSession{stage: editChoosingField, taskID: task.ID, number: task.TaskNumber})
		return true, b.sendWithReplyMarkup(chatID, selectedForEditText(task, b.now()), fieldKeyboard())
	}

	b.sessions.set(userID, deleteSession{
		stage:       deleteWaitingConfirmation,
		taskID:      task.ID,
		number:      task.TaskNumber,
		description: task.Description,
	})
	text := fmt.Sprintf("👁 Вы уверены, что хотите удалить задачу (Номер: %d): '%s'? (Да/Нет)", task.TaskNumber, task.Description)
	return true, b.sendWithReplyMarkup(chatID, text, yesNoKeyboard())
}

func (b *Bot) selectTyped(ctx context.Context, msg *tgbotapi.Message, flow selectFlow) error {
	number, err := strconv.Atoi(strings.TrimSpace(msg.Text))
	if err != nil || number <= 0 {
		return b.sendText(msg.Chat.ID, msgBadNumber)
	}
	ok, err := b.selectTask(ctx, msg.Chat.ID, msg.From.ID, flow, number)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	tasks, err := b.tasks.ListTasks(ctx, msg.From.ID, service.FilterAll, model.StatusActive, nil)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		b.sessions.clear(msg.From.ID)
		return b.sendWithReplyMarkup(msg.Chat.ID, noActiveText(flow), mainMenuMarkup())
	}
	return b.sendWithReplyMarkup(msg.Chat.ID, msgNumberNotFound, selectionKeyboard(tasks, 0, b.pageSize, selectLayout(flow, b.now())))
}

// Edit flow.

func (b *Bot) continueEdit(ctx context.Context, msg *tgbotapi.Message, sess editSession) error {
	userID := msg.From.ID

	switch sess.stage {
	case editSelectingTask:
		return b.selectTyped(ctx, msg, flowEdit)
	case editChoosingField:
		switch strings.TrimSpace(msg.Text) {
		case btnFieldDesc:
			sess.stage = editWaitingDescription
			b.sessions.set(userID, sess)
			return b.sendTextWithRemove(msg.Chat.ID, msgAskNewDescription)
		case btnFieldDeadline:
			sess.stage = editWaitingDeadline
			b.sessions.set(userID, sess)
			now := b.now()
			return b.sendWithReplyMarkup(msg.Chat.ID, msgAskNewDeadline, calendarKeyboard(now.Year(), now.Month()))
		case btnFieldCancel:
			b.sessions.clear(userID)
			return b.sendTextWithRemove(msg.Chat.ID, msgEditCancelled)
		default:
			return b.sendWithReplyMarkup(msg.Chat.ID, msgChooseField, fieldKeyboard())
		}
	case editWaitingDescription:
		description := strings.TrimSpace(msg.Text)
		if description == "" {
			return b.sendText(msg.Chat.ID, msgDescriptionAsText)
		}
		b.sessions.clear(userID)
		err := b.tasks.UpdateDescription(ctx, userID, sess.number, description)
		if err != nil {
			b.log.Info("update description rejected", zap.Int64("user_id", userID), zap.Int("task_number", sess.number), zap.Error(err))
			return b.sendWithReplyMarkup(msg.Chat.ID, msgUpdateFailed, mainMenuMarkup())
		}
		text := fmt.Sprintf("Описание задачи (Номер: %d) обновлено на: '%s'", sess.number, description)
		return b.sendWithReplyMarkup(msg.Chat.ID, text, mainMenuMarkup())
	case editWaitingDeadline:
		deadline, ok := parseTypedDate(msg.Text, b.now().Location())
		if !ok {
			return b.sendText(msg.Chat.ID, msgDeadlineRetry)
		}
		return b.finishDeadlineEdit(ctx, msg.Chat.ID, userID, sess, &deadline, nil)
	}
	return nil
}

func (b *Bot) finishDeadlineEdit(ctx context.Context, chatID, userID int64, sess editSession, deadline *time.Time, picker *tgbotapi.Message) error {
	b.sessions.clear(userID)

	text := deadlineUpdatedText(sess.number, deadline, b.now())
	if err := b.tasks.UpdateDeadline(ctx, userID, sess.number, deadline); err != nil {
		b.log.Info("update deadline rejected", zap.Int64("user_id", userID), zap.Int("task_number", sess.number), zap.Error(err))
		text = msgUpdateFailed
	}
	if picker != nil {
		return b.editView(picker, text, mainMenuMarkup())
	}
	return b.sendWithReplyMarkup(chatID, text, mainMenuMarkup())
}

// Delete flow.

func (b *Bot) continueDelete(ctx context.Context, msg *tgbotapi.Message, sess deleteSession) error {
	userID := msg.From.ID

	switch sess.stage {
	case deleteSelectingTask:
		return b.selectTyped(ctx, msg, flowDelete)
	case deleteWaitingConfirmation:
		switch strings.TrimSpace(msg.Text) {
		case btnYes:
			b.sessions.clear(userID)
			task, err := b.tasks.DeleteTask(ctx, userID, sess.number)
			if err != nil {
				b.log.Info("delete rejected", zap.Int64("user_id", userID), zap.Int("task_number", sess.number), zap.Error(err))
				return b.sendTextWithRemove(msg.Chat.ID, msgDeleteFailed)
			}
			text := fmt.Sprintf("Задача '%s' (Номер: %d) успешно удалена.", task.Description, task.TaskNumber)
			return b.sendTextWithRemove(msg.Chat.ID, text)
		case btnNo:
			b.sessions.clear(userID)
			return b.sendTextWithRemove(msg.Chat.ID, msgDeleteCancelled)
		default:
			return b.sendWithReplyMarkup(msg.Chat.ID, msgConfirmYesNo, yesNoKeyboard())
		}
	}
	return nil
}

// Reminders.

func (b *Bot) sendReminders(ctx context.Context, chatID, userID int64) error {
	tasks, err := b.remindable(ctx, userID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return b.sendWithReplyMarkup(chatID, msgNoReminders, mainMenuMarkup())
	}
	return b.sendWithReplyMarkup(chatID, msgRemindersHeader, selectionKeyboard(tasks, 0, b.pageSize, remindersLayout(b.now())))
}

func (b *Bot) remindable(ctx context.Context, userID int64) ([]model.Task, error) {
	remind := true
	return b.tasks.ListTasks(ctx, userID, service.FilterAll, model.StatusActive, &remind)
}

func noActiveText(flow selectFlow) string {
	if flow == flowEdit {
		return msgNoActiveForEdit
	}
	return msgNoActiveForDelete
}

func chooseText(flow selectFlow) string {
	if flow == flowEdit {
		return msgChooseForEdit
	}
	return msgChooseForDelete
}
