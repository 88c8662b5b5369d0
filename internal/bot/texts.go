package bot

import (
	"fmt"
	"strings"
	"time"

	"todo-bot/internal/model"
	"todo-bot/internal/service"
)

const welcomeText = `Привет! Я твой личный ToDo бот!👋

Я создан, чтобы помочь тебе эффективно управлять своими задачами и значительно повысить твою продуктивность. Со мной ты сможешь легко:

   ✍ Записывать все свои дела, от самых мелких заметок до крупных проектов.
   ⏰ Устанавливать сроки выполнения для каждой задачи, чтобы ничего не упустить.
   🔔 Получать напоминания о задачах на сегодня.

Начнем прямо сейчас?

Для добавления задачи используй /add_task
Для просмотра задач используй /list_tasks
Для просмотра завершенных задач используй /history_tasks
Для редактирования задачи используй /edit_task
Для удаления задачи используй /delete_task
Для управления напоминаниями используй /reminders
Для отмены текущего действия используй /cancel`

const (
	msgAskDescription      = "Отлично! Что нужно сделать? Опишите задачу."
	msgDescriptionAsText   = "Пожалуйста, введите описание задачи текстом."
	msgAskDeadline         = "Теперь выберите срок выполнения (дедлайн) с помощью календаря или отправьте дату в формате 2025-12-31:"
	msgDeadlineRetry       = "Не удалось распознать дату. Выберите её в календаре или отправьте в формате 2025-12-31 или 31.12.2025."
	msgAddCancelled        = "Добавление задачи отменено"
	msgFirstTask           = "Поздравляем с вашей первой задачей! Спасибо что выбрали нас 😉"
	msgReminderOffer       = "Если хотите, чтобы я напомнил вам о задаче, жмите кнопку 👇"
	msgSaveFailed          = "Не удалось сохранить задачу. Попробуйте ещё раз позже."
	msgNoActiveForEdit     = "У вас нет активных задач для редактирования."
	msgNoActiveForDelete   = "У вас нет активных задач для удаления."
	msgChooseForEdit       = "✏ Выберите задачу для редактирования или отправьте её номер:"
	msgChooseForDelete     = "🗑 Выберите задачу для удаления или отправьте её номер:"
	msgBadNumber           = "Пожалуйста, введите корректный числовой номер задачи."
	msgTaskGone            = "Задача не найдена или уже завершена."
	msgTaskGoneReselect    = "Задача не найдена или уже завершена. Выберите другую задачу:"
	msgNumberNotFound      = "Задача с таким номером не найдена или уже завершена. Введите другой номер."
	msgChooseField         = "Выберите, что изменить: «Описание», «Срок выполнения» или «Отмена»."
	msgAskNewDescription   = "Введите новое описание задачи:"
	msgAskNewDeadline      = "Выберите новый срок выполнения с помощью календаря или отправьте дату:"
	msgEditCancelled       = "Редактирование отменено."
	msgUpdateFailed        = "Не удалось обновить задачу. Возможно, задача не найдена, не принадлежит вам или неактивна."
	msgConfirmYesNo        = "Ответьте «Да» или «Нет»."
	msgDeleteCancelled     = "Удаление отменено."
	msgDeleteFailed        = "Не удалось удалить задачу. Возможно, задача не найдена, не принадлежит вам или неактивна."
	msgNothingToComplete   = "У вас нет активных задач для завершения."
	msgCompleteFailed      = "Не удалось завершить задачу."
	msgReminderEnabled     = "Задача успешно добавлена в напоминание, я буду напоминать вам о задачах со сроком на сегодня не чаще раза в час."
	msgReminderFailed      = "Произошла ошибка при включении напоминания."
	msgNoReminders         = "У вас пока нет задач, для которых включены напоминания."
	msgNoRemindersLeft     = "У вас больше нет задач с включенными напоминаниями."
	msgRemindersHeader     = "🔔 Ваши задачи с напоминаниями (нажмите, чтобы убрать):"
	msgReminderRemoved     = "Напоминание по задаче отключено."
	msgReminderRemoveError = "Произошла ошибка при отключении напоминания."
	msgAllRemindersOff     = "Все напоминания отключены. Вы можете включить их снова для конкретных задач при их добавлении или командой /reminders."
	msgNothingToCancel     = "Нечего отменять."
	msgCancelled           = "Действие отменено."
	msgUnknownInput        = "Я пока не понял сообщение. Набери /add_task, чтобы добавить задачу, или /help для списка команд."
	msgStaleButton         = "Кнопка устарела."
	msgInternalError       = "Что-то пошло не так. Попробуйте ещё раз."
	msgCompletedSoFar      = "🏁 Выполнено задач за всё время: %d"
)

var filterToasts = map[service.TimeFilter]string{
	service.FilterToday: "Ваши задачи на сегодня",
	service.FilterWeek:  "Ваши задачи на неделю",
	service.FilterMonth: "Ваши задачи на месяц",
	service.FilterAll:   "Все ваши задачи",
}

// listText renders a task list message. limit > 0 keeps only the newest tasks.
func listText(tasks []model.Task, filter service.TimeFilter, history bool, limit int, now time.Time) string {
	if len(tasks) == 0 {
		switch {
		case history:
			return "У вас пока нет завершенных задач."
		case filter == service.FilterToday:
			return "У вас нет активных задач на сегодня."
		case filter == service.FilterWeek:
			return "У вас нет активных задач на текущую неделю."
		case filter == service.FilterMonth:
			return "У вас нет активных задач на текущий месяц."
		default:
			return "У вас пока нет активных задач."
		}
	}

	var sb strings.Builder
	switch {
	case history:
		sb.WriteString("🏆 Ваши завершенные задачи:\n\n")
	case filter == service.FilterToday:
		sb.WriteString("🗓 Ваши активные задачи на сегодня:\n\n")
	case filter == service.FilterWeek:
		sb.WriteString("🗓 Ваши активные задачи на текущую неделю:\n\n")
	case filter == service.FilterMonth:
		sb.WriteString("🗓 Ваши активные задачи на текущий месяц:\n\n")
	case limit > 0:
		sb.WriteString(fmt.Sprintf("📞 Ваши последние %d активных задач:\n\n", limit))
	default:
		sb.WriteString("🗓 Ваши все активные задачи:\n\n")
	}

	if limit > 0 && len(tasks) > limit {
		tasks = tasks[len(tasks)-limit:]
	}
	for _, task := range tasks {
		sb.WriteString(fmt.Sprintf("Номер: %d.\n   Задача: %s", task.TaskNumber, task.Description))
		if d := service.FormatDeadline(task.Deadline, now); d != "" {
			sb.WriteString(fmt.Sprintf(" (Срок выполнения: %s)", d))
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func deadlinePhrase(deadline *string, now time.Time) string {
	if d := service.FormatDeadline(deadline, now); d != "" {
		return fmt.Sprintf("со сроком выполнения '%s'", d)
	}
	return "без срока выполнения"
}

func createdText(task *model.Task, now time.Time) string {
	return fmt.Sprintf("✍ Задача '%s' (Номер: %d) %s добавлена!", task.Description, task.TaskNumber, deadlinePhrase(task.Deadline, now))
}

func selectedForEditText(task *model.Task, now time.Time) string {
	deadline := service.FormatDeadline(task.Deadline, now)
	if deadline == "" {
		deadline = "не задан"
	}
	return fmt.Sprintf("Вы выбрали задачу с номером %d.\nОписание: %s\nСрок выполнения: %s\n\nЧто хотите изменить? ✏️",
		task.TaskNumber, task.Description, deadline)
}

func deadlineUpdatedText(number int, deadline *time.Time, now time.Time) string {
	if deadline == nil {
		return fmt.Sprintf("Срок выполнения задачи (Номер: %d) удалён.", number)
	}
	d := model.FormatDate(*deadline)
	return fmt.Sprintf("Срок выполнения задачи (Номер: %d) обновлён на: '%s'", number, service.FormatDeadline(&d, now))
}

// dueTodayText uses Russian plural forms for the task count.
func dueTodayText(count int) string {
	return fmt.Sprintf("🔔 Напоминание: у вас %d %s с напоминанием на сегодня.", count, pluralTasks(count))
}

func pluralTasks(n int) string {
	mod100 := n % 100
	mod10 := n % 10
	switch {
	case mod100 >= 11 && mod100 <= 14:
		return "задач"
	case mod10 == 1:
		return "задача"
	case mod10 >= 2 && mod10 <= 4:
		return "задачи"
	default:
		return "задач"
	}
}
