package bot

import (
	"time"

	"remibot/internal/recurrence"
)

// step is where a chat currently is in a multi-message flow.
type step int

const (
	stepIdle step = iota
	stepAwaitText       // add: waiting for the reminder text
	stepAwaitRepeat     // add: repeat keyboard shown
	stepAwaitDateTime   // add (once/yearly): waiting for DD.MM.YYYY HH:MM
	stepAwaitWeekday    // add (weekly): weekday keyboard shown
	stepAwaitMonthDay   // add (monthly): day keyboard shown
	stepAwaitTime       // add: time keyboard shown
	stepAwaitManualTime // add: waiting for a typed HH:MM
	stepAwaitEditText   // edit: waiting for the replacement text
)

// session is the per-chat flow state. Sessions live in memory only; a
// restart drops half-finished flows, never saved reminders.
type session struct {
	step    step
	text    string
	kind    recurrence.Kind
	weekday time.Weekday
	day     int
	lastDay bool
	editID  string
}

func (s *session) reset() { *s = session{} }
