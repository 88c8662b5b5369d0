package service

import (
	"fmt"
	"time"

	"todo-bot/internal/model"
)

// TimeFilter narrows a task list by deadline relative to the current date.
type TimeFilter string

const (
	FilterToday TimeFilter = "today"
	FilterWeek  TimeFilter = "week"
	FilterMonth TimeFilter = "month"
	FilterAll   TimeFilter = "all"
)

// ParseTimeFilter maps unknown or empty values to FilterAll.
func ParseTimeFilter(raw string) TimeFilter {
	switch f := TimeFilter(raw); f {
	case FilterToday, FilterWeek, FilterMonth:
		return f
	default:
		return FilterAll
	}
}

// Window returns the inclusive deadline range of the filter on now's date.
// ok is false for FilterAll, which places no constraint on the deadline.
func (f TimeFilter) Window(now time.Time) (from, to string, ok bool) {
	today := dateOnly(now)
	switch f {
	case FilterToday:
		d := model.FormatDate(today)
		return d, d, true
	case FilterWeek:
		offset := (int(today.Weekday()) + 6) % 7
		monday := today.AddDate(0, 0, -offset)
		return model.FormatDate(monday), model.FormatDate(monday.AddDate(0, 0, 6)), true
	case FilterMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return model.FormatDate(first), model.FormatDate(first.AddDate(0, 1, -1)), true
	default:
		return "", "", false
	}
}

// Matches reports whether the stored deadline falls into the filter window.
// Tasks without a deadline only match FilterAll.
func (f TimeFilter) Matches(task model.Task, now time.Time) bool {
	from, to, ok := f.Window(now)
	if !ok {
		return true
	}
	if task.Deadline == nil {
		return false
	}
	d := *task.Deadline
	return d >= from && d <= to
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

var genitiveMonths = [...]string{
	"", "января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// FormatDeadline renders a stored deadline as "<day> <month>" for the current
// year and "<day> <month> <year>" otherwise. Absent deadlines render empty and
// unparsable ones are returned as stored.
func FormatDeadline(deadline *string, now time.Time) string {
	if deadline == nil || *deadline == "" {
		return ""
	}
	parsed, err := time.Parse(model.DateLayout, *deadline)
	if err != nil {
		return *deadline
	}
	month := genitiveMonths[parsed.Month()]
	if parsed.Year() == now.Year() {
		return fmt.Sprintf("%d %s", parsed.Day(), month)
	}
	return fmt.Sprintf("%d %s %d", parsed.Day(), month, parsed.Year())
}

var milestones = map[int]string{
	10:   "У вас уже 10 задач! Вероятно, вы на пути к идеальной продуктивности 🪷",
	100:  "У вас уже 100 задач! Дела идут в гору, а вы становитесь лучше чем вчера. Я прав? 👁",
	500:  "У вас целых 500 задач! Вы гуру продуктивности! 🌓",
	1000: "1000 завершенных задач - Вы настоящий бог продуктивности! 🤞 🧘",
}

// Milestone returns the congratulation for a completed-task count, or "".
func Milestone(completed int) string {
	return milestones[completed]
}
