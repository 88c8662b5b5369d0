package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-bot/internal/model"
)

var monthNames = [...]string{
	"", "Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

var weekdayNames = [...]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// calendarKeyboard renders a month grid starting on Monday.
func calendarKeyboard(year int, month time.Month) tgbotapi.InlineKeyboardMarkup {
	ignore := calendarAction{op: calIgnore, year: year, month: int(month)}.data()
	blank := func() tgbotapi.InlineKeyboardButton { return tgbotapi.NewInlineKeyboardButtonData(" ", ignore) }

	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %d", monthNames[month], year), ignore)),
	}

	header := make([]tgbotapi.InlineKeyboardButton, 0, len(weekdayNames))
	for _, name := range weekdayNames {
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(name, ignore))
	}
	rows = append(rows, header)

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()
	week := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < (int(first.Weekday())+6)%7; i++ {
		week = append(week, blank())
	}
	for day := 1; day <= days; day++ {
		data := calendarAction{op: calDay, year: year, month: int(month), day: day}.data()
		week = append(week, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(day), data))
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, blank())
		}
		rows = append(rows, week)
	}

	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("<", calendarAction{op: calPrev, year: year, month: int(month)}.data()),
			tgbotapi.NewInlineKeyboardButtonData(">", calendarAction{op: calNext, year: year, month: int(month)}.data()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Без срока", calendarAction{op: calNone, year: year, month: int(month)}.data()),
			tgbotapi.NewInlineKeyboardButtonData(btnCancel, calendarAction{op: calCancel, year: year, month: int(month)}.data()),
		),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// shiftMonth moves year/month by delta months.
func shiftMonth(year, month, delta int) (int, time.Month) {
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
	return t.Year(), t.Month()
}

// date returns the picked day, or false when the payload names no real date.
func (a calendarAction) date(loc *time.Location) (time.Time, bool) {
	if a.month < 1 || a.month > 12 || a.day < 1 {
		return time.Time{}, false
	}
	d := time.Date(a.year, time.Month(a.month), a.day, 0, 0, 0, 0, loc)
	if d.Day() != a.day {
		return time.Time{}, false
	}
	return d, true
}

// parseTypedDate accepts YYYY-MM-DD and DD.MM.YYYY.
func parseTypedDate(text string, loc *time.Location) (time.Time, bool) {
	text = strings.TrimSpace(text)
	for _, layout := range []string{model.DateLayout, "02.01.2006", "2.1.2006"} {
		if d, err := time.ParseInLocation(layout, text, loc); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
