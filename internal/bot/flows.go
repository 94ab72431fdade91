package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"remibot/internal/recurrence"
	"remibot/internal/reminder"
	kit "remibot/internal/transport"
	logx "remibot/pkg/logx"
	"remibot/pkg/tgui"
)

func (r *Router) handleMessage(ctx context.Context, msg *kit.Message) {
	chatID := msg.ChatID
	owner := msg.FromID
	text := strings.TrimSpace(msg.Text)
	sess := r.session(chatID)

	switch text {
	case "/start":
		sess.reset()
		r.sendWith(ctx, chatID,
			"Hi! I keep your reminders.\nUse the menu below to add one or see what you have.",
			&kit.SendOptions{ReplyMarkup: mainMenu()})
		return
	case "/cancel":
		sess.reset()
		r.send(ctx, chatID, "Okay, cancelled.")
		return
	case "/add", btnAdd:
		sess.reset()
		sess.step = stepAwaitText
		r.send(ctx, chatID, "What should I remind you about?")
		return
	case "/list", btnList:
		sess.reset()
		r.sendList(ctx, chatID, owner)
		return
	}

	switch sess.step {
	case stepAwaitText:
		sess.text = text
		sess.step = stepAwaitRepeat
		r.sendWith(ctx, chatID, "How often should I repeat it?",
			&kit.SendOptions{ReplyMarkup: repeatKeyboard()})
	case stepAwaitDateTime:
		r.finishDateTime(ctx, chatID, owner, sess, text)
	case stepAwaitManualTime:
		hour, minute, err := recurrence.ParseClock(text)
		if err != nil {
			r.send(ctx, chatID, "I need a time like 09:30. Try again.")
			return
		}
		r.finishClock(ctx, chatID, owner, sess, hour, minute)
	case stepAwaitEditText:
		r.finishEdit(ctx, chatID, owner, sess, text)
	default:
		r.sendWith(ctx, chatID, "Use the menu below, or /add to create a reminder.",
			&kit.SendOptions{ReplyMarkup: mainMenu()})
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *kit.Callback) {
	scope, action, payload := tgui.Split(cb.Data)
	sess := r.session(cb.ChatID)

	switch scope {
	case scopeRepeat:
		r.pickRepeat(ctx, cb, sess, recurrence.Kind(action))
	case scopeWeekday:
		if sess.step != stepAwaitWeekday {
			r.answer(ctx, cb.ID, "", false)
			return
		}
		n, err := strconv.Atoi(action)
		if err != nil || n < int(time.Sunday) || n > int(time.Saturday) {
			r.answer(ctx, cb.ID, "Unknown weekday.", true)
			return
		}
		sess.weekday = time.Weekday(n)
		sess.step = stepAwaitTime
		r.answer(ctx, cb.ID, "", false)
		r.sendWith(ctx, cb.ChatID, "What time?", &kit.SendOptions{ReplyMarkup: timeKeyboard()})
	case scopeMonthDay:
		if sess.step != stepAwaitMonthDay {
			r.answer(ctx, cb.ID, "", false)
			return
		}
		if action == "last" {
			sess.lastDay = true
		} else {
			n, err := strconv.Atoi(action)
			if err != nil || n < 1 || n > recurrence.MaxMonthDay {
				r.answer(ctx, cb.ID, "Unknown day.", true)
				return
			}
			sess.day = n
		}
		sess.step = stepAwaitTime
		r.answer(ctx, cb.ID, "", false)
		r.sendWith(ctx, cb.ChatID, "What time?", &kit.SendOptions{ReplyMarkup: timeKeyboard()})
	case scopeTime:
		if sess.step != stepAwaitTime {
			r.answer(ctx, cb.ID, "", false)
			return
		}
		if action == "manual" {
			sess.step = stepAwaitManualTime
			r.answer(ctx, cb.ID, "", false)
			r.send(ctx, cb.ChatID, "Send the time as HH:MM, e.g. 08:15.")
			return
		}
		hour, minute, err := recurrence.ParseClock(payload)
		if err != nil {
			r.answer(ctx, cb.ID, "Unknown time.", true)
			return
		}
		r.answer(ctx, cb.ID, "", false)
		r.finishClock(ctx, cb.ChatID, cb.FromID, sess, hour, minute)
	case scopeReminder:
		switch action {
		case "del":
			r.deleteReminder(ctx, cb, payload)
		case "edit":
			sess.reset()
			sess.step = stepAwaitEditText
			sess.editID = payload
			r.answer(ctx, cb.ID, "", false)
			r.send(ctx, cb.ChatID, "Send the new text for this reminder.")
		default:
			r.answer(ctx, cb.ID, "", false)
		}
	default:
		r.log.Debug("unknown callback", logx.String("data", cb.Data))
		r.answer(ctx, cb.ID, "", false)
	}
}

func (r *Router) pickRepeat(ctx context.Context, cb *kit.Callback, sess *session, kind recurrence.Kind) {
	if sess.step != stepAwaitRepeat || sess.text == "" {
		r.answer(ctx, cb.ID, "Start over with /add, please.", true)
		return
	}
	sess.kind = kind
	r.answer(ctx, cb.ID, "", false)

	switch kind {
	case recurrence.Once, recurrence.Yearly:
		sess.step = stepAwaitDateTime
		r.send(ctx, cb.ChatID,
			fmt.Sprintf("Send the date and time as DD.MM.YYYY HH:MM, e.g. %s.",
				time.Now().In(r.loc).Add(24*time.Hour).Format(recurrence.DateTimeLayout)))
	case recurrence.Daily:
		sess.step = stepAwaitTime
		r.sendWith(ctx, cb.ChatID, "What time?", &kit.SendOptions{ReplyMarkup: timeKeyboard()})
	case recurrence.Weekly:
		sess.step = stepAwaitWeekday
		r.sendWith(ctx, cb.ChatID, "Which day of the week?",
			&kit.SendOptions{ReplyMarkup: weekdayKeyboard()})
	case recurrence.Monthly:
		sess.step = stepAwaitMonthDay
		r.sendWith(ctx, cb.ChatID, "Which day of the month?",
			&kit.SendOptions{ReplyMarkup: monthDayKeyboard()})
	default:
		r.send(ctx, cb.ChatID, "I don't know that repeat option. Start over with /add.")
		sess.reset()
	}
}

func (r *Router) finishDateTime(ctx context.Context, chatID, owner int64, sess *session, text string) {
	at, err := recurrence.ParseDateTime(text, r.loc)
	if err != nil {
		r.send(ctx, chatID, "I need a date like "+recurrence.DateTimeLayout+". Try again.")
		return
	}
	spec := recurrence.Spec{Kind: sess.kind, At: at}
	r.create(ctx, chatID, owner, sess, spec)
}

func (r *Router) finishClock(ctx context.Context, chatID, owner int64, sess *session, hour, minute int) {
	spec := recurrence.Spec{Kind: sess.kind, Hour: hour, Minute: minute}
	switch sess.kind {
	case recurrence.Weekly:
		spec.Weekday = sess.weekday
	case recurrence.Monthly:
		spec.Day = sess.day
		spec.LastDay = sess.lastDay
	}
	r.create(ctx, chatID, owner, sess, spec)
}

// create calls the service and translates its errors into chat replies.
// Validation problems keep the flow open so the user can resend the bad
// part; anything else resets the flow.
func (r *Router) create(ctx context.Context, chatID, owner int64, sess *session, spec recurrence.Spec) {
	sum, err := r.rem.Create(ctx, reminder.CreateRequest{Owner: owner, Text: sess.text, Spec: spec})
	if err != nil {
		if reminder.IsValidation(err) {
			r.send(ctx, chatID, "That doesn't work: "+err.Error()+". Try again.")
			return
		}
		r.log.Error("create failed", logx.Int64("owner", owner), logx.Err(err))
		r.send(ctx, chatID, "Something went wrong on my side. Please try again later.")
		sess.reset()
		return
	}
	sess.reset()
	r.sendWith(ctx, chatID, formatCreated(sum), &kit.SendOptions{ReplyMarkup: mainMenu()})
}

func (r *Router) sendList(ctx context.Context, chatID, owner int64) {
	list, err := r.rem.List(ctx, owner)
	if err != nil {
		r.log.Error("list failed", logx.Int64("owner", owner), logx.Err(err))
		r.send(ctx, chatID, "Couldn't load your reminders. Please try again later.")
		return
	}
	if len(list) == 0 {
		r.send(ctx, chatID, "You have no reminders yet. Add one with "+btnAdd+".")
		return
	}
	for _, s := range list {
		r.sendWith(ctx, chatID, formatSummary(s),
			&kit.SendOptions{ReplyMarkup: reminderKeyboard(s.ID)})
	}
}

func (r *Router) deleteReminder(ctx context.Context, cb *kit.Callback, id string) {
	err := r.rem.Delete(ctx, cb.FromID, id)
	switch {
	case errors.Is(err, reminder.ErrNotFound):
		r.answer(ctx, cb.ID, "Already removed.", true)
	case err != nil:
		r.log.Error("delete failed", logx.String("id", id), logx.Err(err))
		r.answer(ctx, cb.ID, "Couldn't delete it, please try again.", true)
	default:
		r.answer(ctx, cb.ID, "Deleted.", false)
		ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
		if err := r.adapter.EditText(ctx, ref, "🗑 Deleted.", nil); err != nil {
			r.log.Debug("listing edit failed", logx.Err(err))
		}
	}
}

func (r *Router) finishEdit(ctx context.Context, chatID, owner int64, sess *session, text string) {
	err := r.rem.EditText(ctx, owner, sess.editID, text)
	switch {
	case errors.Is(err, reminder.ErrUnchanged):
		r.send(ctx, chatID, "That's the same text it already has.")
		sess.reset()
	case errors.Is(err, reminder.ErrNotFound):
		r.send(ctx, chatID, "That reminder no longer exists.")
		sess.reset()
	case err != nil && reminder.IsValidation(err):
		r.send(ctx, chatID, "That doesn't work: "+err.Error()+". Try again.")
	case err != nil:
		r.log.Error("edit failed", logx.String("id", sess.editID), logx.Err(err))
		r.send(ctx, chatID, "Couldn't update it, please try again later.")
		sess.reset()
	default:
		r.send(ctx, chatID, "✏️ Updated.")
		sess.reset()
	}
}
