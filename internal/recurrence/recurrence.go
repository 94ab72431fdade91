package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Kind tags a recurrence variant. The set is closed: every switch over Kind
// in this repo is exhaustive and fails loud on an unknown tag, because
// silently mis-scheduling a reminder is worse than crashing.
type Kind string

const (
	Once    Kind = "once"
	Daily   Kind = "daily"
	Weekly  Kind = "weekly"
	Monthly Kind = "monthly"
	Yearly  Kind = "yearly"
)

// ErrPast reports a literal instant that is not in the future.
var ErrPast = errors.New("reminder time must be in the future")

// Spec is a user-chosen recurrence pattern.
//
// Field usage per kind:
//   - Once, Yearly: At (the literal date-time the user supplied)
//   - Daily: Hour, Minute
//   - Weekly: Weekday, Hour, Minute
//   - Monthly: Day (1..28) or LastDay, plus Hour, Minute
type Spec struct {
	Kind Kind `json:"kind"`

	At      time.Time    `json:"at,omitzero"`
	Weekday time.Weekday `json:"weekday,omitempty"`
	Day     int          `json:"day,omitempty"`
	LastDay bool         `json:"last_day,omitempty"`
	Hour    int          `json:"hour"`
	Minute  int          `json:"minute"`
}

// MaxMonthDay caps numeric month-day choices. Days 29..31 do not exist in
// every month, so the intake flow never offers them; "last day" covers the
// rest.
const MaxMonthDay = 28

// Validate checks the per-kind field ranges. It does not check whether a
// literal instant is still in the future; NextFire does that against a
// reference instant.
func (s Spec) Validate() error {
	switch s.Kind {
	case Once, Yearly:
		if s.At.IsZero() {
			return fmt.Errorf("%s: date-time required", s.Kind)
		}
		return nil
	case Daily:
		return validClock(s.Hour, s.Minute)
	case Weekly:
		if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
			return fmt.Errorf("weekly: invalid weekday %d", s.Weekday)
		}
		return validClock(s.Hour, s.Minute)
	case Monthly:
		if !s.LastDay && (s.Day < 1 || s.Day > MaxMonthDay) {
			return fmt.Errorf("monthly: day must be 1..%d or last day, got %d", MaxMonthDay, s.Day)
		}
		return validClock(s.Hour, s.Minute)
	default:
		return fmt.Errorf("unknown recurrence kind %q", s.Kind)
	}
}

// Label returns the human-readable recurrence description shown in listings.
func (s Spec) Label() string {
	switch s.Kind {
	case Once:
		return "Once"
	case Daily:
		return "Every day"
	case Weekly:
		return "Every week"
	case Monthly:
		return "Every month"
	case Yearly:
		return "Every year"
	default:
		panic(fmt.Sprintf("recurrence: unknown kind %q", s.Kind))
	}
}

func validClock(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("invalid hour %d", hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("invalid minute %d", minute)
	}
	return nil
}
