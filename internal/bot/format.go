package bot

import (
	"fmt"

	"remibot/internal/recurrence"
	"remibot/internal/reminder"
)

// scheduleLine renders a recurrence pattern the way the listing shows it.
func scheduleLine(spec recurrence.Spec) string {
	clock := fmt.Sprintf("%02d:%02d", spec.Hour, spec.Minute)
	switch spec.Kind {
	case recurrence.Once:
		return "Once on " + recurrence.FormatDateTime(spec.At)
	case recurrence.Daily:
		return "Every day at " + clock
	case recurrence.Weekly:
		return fmt.Sprintf("Every %s at %s", spec.Weekday, clock)
	case recurrence.Monthly:
		if spec.LastDay {
			return "Every month on the last day at " + clock
		}
		return fmt.Sprintf("Every month on day %d at %s", spec.Day, clock)
	case recurrence.Yearly:
		return fmt.Sprintf("Every year on %s at %s",
			spec.At.Format("2 January"), spec.At.Format("15:04"))
	default:
		panic(fmt.Sprintf("bot: unknown recurrence kind %q", spec.Kind))
	}
}

func formatSummary(s reminder.Summary) string {
	return fmt.Sprintf("📌 %s\n🔁 %s\n🕒 Next: %s",
		s.Text, scheduleLine(s.Spec), recurrence.FormatDateTime(s.RunAt))
}

func formatCreated(s reminder.Summary) string {
	return fmt.Sprintf("✅ Saved!\n🔁 %s\n🕒 First reminder: %s",
		scheduleLine(s.Spec), recurrence.FormatDateTime(s.RunAt))
}
