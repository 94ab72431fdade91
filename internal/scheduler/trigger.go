package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

type TriggerKind string

const (
	// TriggerOnce fires at a single literal instant, then retires itself.
	TriggerOnce TriggerKind = "once"
	// TriggerCron fires on a 5-field cron expression.
	TriggerCron TriggerKind = "cron"
	// TriggerMonthlyLast fires on the last calendar day of every month.
	// Cron cannot express this with a fixed day number, and the day must be
	// re-resolved per month (28..31, leap February), so it gets its own kind.
	TriggerMonthlyLast TriggerKind = "monthly_last"
)

// Trigger describes how to compute a job's due instants. It is the unit the
// scheduler persists, so it must stay JSON-stable.
type Trigger struct {
	Kind   TriggerKind `json:"kind"`
	At     time.Time   `json:"at,omitzero"`
	Spec   string      `json:"spec,omitempty"`
	Hour   int         `json:"hour,omitempty"`
	Minute int         `json:"minute,omitempty"`
}

// OnceAt builds a one-shot trigger.
func OnceAt(at time.Time) Trigger {
	return Trigger{Kind: TriggerOnce, At: at}
}

// Cron builds a recurring trigger from a 5-field cron expression.
func Cron(spec string) Trigger {
	return Trigger{Kind: TriggerCron, Spec: spec}
}

// MonthlyLast builds a last-day-of-month trigger at the given time of day.
func MonthlyLast(hour, minute int) Trigger {
	return Trigger{Kind: TriggerMonthlyLast, Hour: hour, Minute: minute}
}

func (t Trigger) validate(parser cron.Parser) error {
	switch t.Kind {
	case TriggerOnce:
		if t.At.IsZero() {
			return fmt.Errorf("once trigger: at required")
		}
		return nil
	case TriggerCron:
		if _, err := parser.Parse(t.Spec); err != nil {
			return fmt.Errorf("cron trigger %q: %w", t.Spec, err)
		}
		return nil
	case TriggerMonthlyLast:
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return fmt.Errorf("monthly_last trigger: invalid time %02d:%02d", t.Hour, t.Minute)
		}
		return nil
	default:
		return fmt.Errorf("unknown trigger kind %q", t.Kind)
	}
}

// schedule returns the cron.Schedule for a recurring trigger.
// One-shot triggers are armed with a timer instead.
func (t Trigger) schedule(parser cron.Parser, loc *time.Location) (cron.Schedule, error) {
	switch t.Kind {
	case TriggerCron:
		return parser.Parse(t.Spec)
	case TriggerMonthlyLast:
		return lastDaySchedule{hour: t.Hour, minute: t.Minute, loc: loc}, nil
	default:
		return nil, fmt.Errorf("trigger kind %q has no schedule", t.Kind)
	}
}

// nextAfter computes the trigger's next due instant strictly after now.
// A one-shot trigger whose instant already passed reports its literal
// instant; the scheduler fires it immediately on arm (restart catch-up).
func (t Trigger) nextAfter(now time.Time, parser cron.Parser, loc *time.Location) (time.Time, error) {
	if t.Kind == TriggerOnce {
		return t.At, nil
	}
	sched, err := t.schedule(parser, loc)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now.In(loc)), nil
}

func (t Trigger) encode() ([]byte, error) { return json.Marshal(t) }

func decodeTrigger(b []byte) (Trigger, error) {
	var t Trigger
	if err := json.Unmarshal(b, &t); err != nil {
		return Trigger{}, err
	}
	return t, nil
}

// lastDaySchedule implements cron.Schedule for "last calendar day of the
// month at HH:MM". The day is resolved per occurrence, never cached.
type lastDaySchedule struct {
	hour, minute int
	loc          *time.Location
}

func (s lastDaySchedule) Next(t time.Time) time.Time {
	if s.loc != nil {
		t = t.In(s.loc)
	}
	candidate := endOfMonth(t.Year(), t.Month(), s.hour, s.minute, t.Location())
	if candidate.After(t) {
		return candidate
	}
	year, month := t.Year(), t.Month()
	month++
	if month == time.December+1 {
		month = time.January
		year++
	}
	return endOfMonth(year, month, s.hour, s.minute, t.Location())
}

func endOfMonth(year int, month time.Month, hour, minute int, loc *time.Location) time.Time {
	// Day 0 of the next month normalizes to the last day of this one.
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)
	return time.Date(year, month, last.Day(), hour, minute, 0, 0, loc)
}
