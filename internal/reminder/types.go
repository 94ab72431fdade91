package reminder

import (
	"context"
	"time"

	"remibot/internal/recurrence"
	"remibot/internal/scheduler"
)

// CreateRequest carries everything the intake flow collects.
type CreateRequest struct {
	Owner int64
	Text  string
	Spec  recurrence.Spec
}

// Summary is the listing view of one reminder.
type Summary struct {
	ID    string
	Text  string
	Spec  recurrence.Spec
	RunAt time.Time
}

// Notifier delivers a text message to a chat. Satisfied by notify.Service.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// JobScheduler is the slice of the scheduler the reminder service uses.
type JobScheduler interface {
	Schedule(ctx context.Context, jobID string, trig scheduler.Trigger) error
	Cancel(ctx context.Context, jobID string) error
	Location() *time.Location
}
