package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Inline is a small builder for inline keyboards (ReplyMarkup).
// It stores rows as tele.Row ([]tele.Btn) and applies them via ReplyMarkup.Inline().
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends a new row (buttons) to the inline keyboard.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

// Grid appends buttons split into rows of n columns.
func (i *Inline) Grid(n int, buttons ...tele.Btn) *Inline {
	if n < 1 {
		n = 1
	}
	for start := 0; start < len(buttons); start += n {
		end := start + n
		if end > len(buttons) {
			end = len(buttons)
		}
		i.rows = append(i.rows, i.rm.Row(buttons[start:end]...))
	}
	i.rm.Inline(i.rows...)
	return i
}

// Markup returns the underlying reply markup.
func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// Btn creates a callback button with raw callback_data (we do NOT encode it).
// Use Data() to build "scope:action:payload" strings consistently.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}

// ReplyMenu builds a persistent reply keyboard, one button per row.
func ReplyMenu(labels ...string) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{ResizeKeyboard: true}
	rows := make([]tele.Row, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, rm.Row(rm.Text(l)))
	}
	rm.Reply(rows...)
	return rm
}
