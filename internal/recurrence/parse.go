package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateTimeLayout is the literal date-time format accepted from users for
// once and yearly reminders.
const DateTimeLayout = "02.01.2006 15:04"

// ParseDateTime parses "DD.MM.YYYY HH:MM" in the given location.
func ParseDateTime(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateTimeLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date-time %q, expected DD.MM.YYYY HH:MM", raw)
	}
	return t, nil
}

// ParseClock parses a "HH:MM" time of day.
func ParseClock(raw string) (hour, minute int, err error) {
	s := strings.TrimSpace(raw)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return h, m, nil
}

// FormatDateTime renders an instant the way users type it.
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}
