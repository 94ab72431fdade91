package bot

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"remibot/internal/recurrence"
	"remibot/pkg/tgui"
)

const (
	btnAdd  = "➕ Add reminder"
	btnList = "📋 My reminders"
)

// Callback data scopes. Payloads ride after the second colon.
const (
	scopeRepeat   = "repeat"
	scopeWeekday  = "wd"
	scopeMonthDay = "md"
	scopeTime     = "time"
	scopeReminder = "rem"
)

func mainMenu() *tele.ReplyMarkup {
	return tgui.ReplyMenu(btnAdd, btnList)
}

func repeatKeyboard() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("Once", tgui.Data(scopeRepeat, string(recurrence.Once), ""))).
		Row(tgui.Btn("Every day", tgui.Data(scopeRepeat, string(recurrence.Daily), ""))).
		Row(tgui.Btn("Every week", tgui.Data(scopeRepeat, string(recurrence.Weekly), ""))).
		Row(tgui.Btn("Every month", tgui.Data(scopeRepeat, string(recurrence.Monthly), ""))).
		Row(tgui.Btn("Every year", tgui.Data(scopeRepeat, string(recurrence.Yearly), ""))).
		Markup()
}

// weekdayKeyboard lists Monday first, matching how people think of weeks,
// while the payload stays the time.Weekday numbering (Sunday = 0).
func weekdayKeyboard() *tele.ReplyMarkup {
	order := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	btns := make([]tele.Btn, 0, len(order))
	for _, wd := range order {
		btns = append(btns, tgui.Btn(wd.String(), tgui.Data(scopeWeekday, fmt.Sprint(int(wd)), "")))
	}
	return tgui.NewInline().Grid(2, btns...).Markup()
}

// monthDayKeyboard offers days 1..28 plus "last day"; 29..31 are missing
// from some months and are never offered.
func monthDayKeyboard() *tele.ReplyMarkup {
	btns := make([]tele.Btn, 0, recurrence.MaxMonthDay+1)
	for d := 1; d <= recurrence.MaxMonthDay; d++ {
		btns = append(btns, tgui.Btn(fmt.Sprint(d), tgui.Data(scopeMonthDay, fmt.Sprint(d), "")))
	}
	kb := tgui.NewInline().Grid(7, btns...)
	kb.Row(tgui.Btn("Last day of month", tgui.Data(scopeMonthDay, "last", "")))
	return kb.Markup()
}

// timeKeyboard offers round hours 09:00..20:00 plus a manual-entry escape
// hatch for everything else.
func timeKeyboard() *tele.ReplyMarkup {
	var btns []tele.Btn
	for h := 9; h <= 20; h++ {
		label := fmt.Sprintf("%02d:00", h)
		btns = append(btns, tgui.Btn(label, tgui.Data(scopeTime, "pick", label)))
	}
	kb := tgui.NewInline().Grid(4, btns...)
	kb.Row(tgui.Btn("Other time…", tgui.Data(scopeTime, "manual", "")))
	return kb.Markup()
}

func reminderKeyboard(id string) *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(
			tgui.Btn("✏️ Edit", tgui.Data(scopeReminder, "edit", id)),
			tgui.Btn("🗑 Delete", tgui.Data(scopeReminder, "del", id)),
		).
		Markup()
}
