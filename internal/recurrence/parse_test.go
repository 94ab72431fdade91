package recurrence

import (
	"testing"
	"time"
)

func TestParseDateTime(t *testing.T) {
	t.Parallel()
	got, err := ParseDateTime("09.05.2030 18:45", time.UTC)
	if err != nil {
		t.Fatalf("ParseDateTime error: %v", err)
	}
	want := time.Date(2030, time.May, 9, 18, 45, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseDateTime = %v, want %v", got, want)
	}

	for _, raw := range []string{"", "2030-05-09 18:45", "9.5.30", "32.01.2030 10:00", "09.05.2030 25:00", "not a date"} {
		if _, err := ParseDateTime(raw, time.UTC); err == nil {
			t.Fatalf("ParseDateTime(%q) = nil error, want failure", raw)
		}
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	h, m, err := ParseClock("07:05")
	if err != nil {
		t.Fatalf("ParseClock error: %v", err)
	}
	if h != 7 || m != 5 {
		t.Fatalf("ParseClock = %d:%d, want 7:05", h, m)
	}

	for _, raw := range []string{"24:00", "12:60", "noon", "12", "12:3x"} {
		if _, _, err := ParseClock(raw); err == nil {
			t.Fatalf("ParseClock(%q) = nil error, want failure", raw)
		}
	}
}

func TestFormatDateTimeRoundTrip(t *testing.T) {
	t.Parallel()
	at := time.Date(2031, time.December, 24, 6, 30, 0, 0, time.UTC)
	parsed, err := ParseDateTime(FormatDateTime(at), time.UTC)
	if err != nil {
		t.Fatalf("round trip parse error: %v", err)
	}
	if !parsed.Equal(at) {
		t.Fatalf("round trip = %v, want %v", parsed, at)
	}
}
