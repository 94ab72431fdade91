package recurrence

import (
	"fmt"
	"time"
)

// NextFire resolves the first occurrence of the pattern strictly after now.
// The returned instant is in now's location; candidates are built with
// seconds zeroed.
//
// For Once and Yearly the literal instant supplied by the user is used
// directly; a literal that is not in the future is rejected with ErrPast
// rather than fired immediately.
func NextFire(s Spec, now time.Time) (time.Time, error) {
	switch s.Kind {
	case Once, Yearly:
		if !s.At.After(now) {
			return time.Time{}, ErrPast
		}
		return s.At, nil

	case Daily:
		candidate := atClock(now, now.Day(), s.Hour, s.Minute)
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, nil

	case Weekly:
		candidate := atClock(now, now.Day(), s.Hour, s.Minute)
		daysAhead := (int(s.Weekday) - int(candidate.Weekday()) + 7) % 7
		if daysAhead == 0 && !candidate.After(now) {
			daysAhead = 7
		}
		return candidate.AddDate(0, 0, daysAhead), nil

	case Monthly:
		year, month := now.Year(), now.Month()
		day := s.Day
		if s.LastDay {
			day = lastDayOfMonth(year, month)
		}
		candidate := time.Date(year, month, day, s.Hour, s.Minute, 0, 0, now.Location())
		if !candidate.After(now) {
			month++
			if month == time.December+1 {
				month = time.January
				year++
			}
			// "Last day" is re-resolved against the rolled month, not the day
			// number computed above: month lengths vary and February moves
			// with leap years.
			if s.LastDay {
				day = lastDayOfMonth(year, month)
			}
			candidate = time.Date(year, month, day, s.Hour, s.Minute, 0, 0, now.Location())
		}
		return candidate, nil

	default:
		panic(fmt.Sprintf("recurrence: unknown kind %q", s.Kind))
	}
}

func atClock(ref time.Time, day, hour, minute int) time.Time {
	return time.Date(ref.Year(), ref.Month(), day, hour, minute, 0, 0, ref.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
