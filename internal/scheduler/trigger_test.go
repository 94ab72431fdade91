package scheduler

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func testParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

func TestTriggerValidate(t *testing.T) {
	t.Parallel()
	parser := testParser()

	cases := []struct {
		name    string
		trig    Trigger
		wantErr bool
	}{
		{"once", OnceAt(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)), false},
		{"once zero at", Trigger{Kind: TriggerOnce}, true},
		{"cron daily", Cron("30 9 * * *"), false},
		{"cron weekly", Cron("0 18 * * 3"), false},
		{"cron garbage", Cron("not a spec"), true},
		{"monthly last", MonthlyLast(19, 0), false},
		{"monthly last bad hour", MonthlyLast(24, 0), true},
		{"monthly last bad minute", MonthlyLast(9, 60), true},
		{"unknown kind", Trigger{Kind: "hourly"}, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.trig.validate(parser)
			if (err != nil) != tc.wantErr {
				t.Fatalf("validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestTriggerEncodeDecode(t *testing.T) {
	t.Parallel()

	triggers := []Trigger{
		OnceAt(time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)),
		Cron("30 9 * * *"),
		MonthlyLast(19, 30),
	}
	for _, orig := range triggers {
		b, err := orig.encode()
		if err != nil {
			t.Fatalf("encode(%v): %v", orig.Kind, err)
		}
		got, err := decodeTrigger(b)
		if err != nil {
			t.Fatalf("decodeTrigger(%v): %v", orig.Kind, err)
		}
		if got.Kind != orig.Kind || got.Spec != orig.Spec ||
			got.Hour != orig.Hour || got.Minute != orig.Minute || !got.At.Equal(orig.At) {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, orig)
		}
	}

	if _, err := decodeTrigger([]byte("{broken")); err == nil {
		t.Error("decodeTrigger accepted corrupt payload")
	}
}

func TestLastDaySchedule(t *testing.T) {
	t.Parallel()
	sched := lastDaySchedule{hour: 19, minute: 0, loc: time.UTC}

	cases := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			"mid month",
			time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
			time.Date(2026, 1, 31, 19, 0, 0, 0, time.UTC),
		},
		{
			"leap february",
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 29, 19, 0, 0, 0, time.UTC),
		},
		{
			"plain february",
			time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2023, 2, 28, 19, 0, 0, 0, time.UTC),
		},
		{
			"fire time already passed on last day",
			time.Date(2026, 1, 31, 19, 0, 0, 0, time.UTC),
			time.Date(2026, 2, 28, 19, 0, 0, 0, time.UTC),
		},
		{
			"december rolls into january",
			time.Date(2026, 12, 31, 20, 0, 0, 0, time.UTC),
			time.Date(2027, 1, 31, 19, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := sched.Next(tc.from)
			if !got.Equal(tc.want) {
				t.Errorf("Next(%v) = %v, want %v", tc.from, got, tc.want)
			}
			if !got.After(tc.from) {
				t.Errorf("Next(%v) = %v is not strictly after its input", tc.from, got)
			}
		})
	}
}

func TestTriggerNextAfter(t *testing.T) {
	t.Parallel()
	parser := testParser()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	t.Run("once reports literal instant even in the past", func(t *testing.T) {
		t.Parallel()
		at := now.Add(-time.Hour)
		got, err := OnceAt(at).nextAfter(now, parser, time.UTC)
		if err != nil {
			t.Fatalf("nextAfter: %v", err)
		}
		if !got.Equal(at) {
			t.Errorf("nextAfter = %v, want %v", got, at)
		}
	})

	t.Run("daily cron rolls to tomorrow after fire time", func(t *testing.T) {
		t.Parallel()
		got, err := Cron("30 9 * * *").nextAfter(now, parser, time.UTC)
		if err != nil {
			t.Fatalf("nextAfter: %v", err)
		}
		want := time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("nextAfter = %v, want %v", got, want)
		}
	})

	t.Run("monthly last resolves current month", func(t *testing.T) {
		t.Parallel()
		got, err := MonthlyLast(19, 0).nextAfter(now, parser, time.UTC)
		if err != nil {
			t.Fatalf("nextAfter: %v", err)
		}
		want := time.Date(2026, 3, 31, 19, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("nextAfter = %v, want %v", got, want)
		}
	})
}
