package storage

import (
	"context"
	"errors"
	"time"

	"remibot/internal/recurrence"
)

// ErrNotFound reports a lookup for a key that has no record.
var ErrNotFound = errors.New("not found")

// Reminder statuses. A retired one-shot reminder is removed outright rather
// than kept as a tombstone, so in practice stored reminders are active.
const StatusActive = "active"

// Reminder is the durable unit of work.
type Reminder struct {
	ID     string
	Owner  int64
	Text   string
	Spec   recurrence.Spec
	RunAt  time.Time // first resolved occurrence
	Status string
}

// Job is the scheduler's own durable record. Trigger is an opaque
// scheduler-owned description (JSON); storage does not interpret it.
type Job struct {
	ID      string
	Trigger []byte
	NextDue time.Time
}

// Store is the persistence API used by the reminder service and the
// scheduler. Operations are atomic per key only: there is no cross-key
// transaction between a reminder record and its owner-index entry, so
// readers must tolerate index entries whose record is gone.
type Store interface {
	PutReminder(ctx context.Context, r Reminder) error
	GetReminder(ctx context.Context, id string) (Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	UpdateReminderText(ctx context.Context, id, text string) error

	AddToOwnerIndex(ctx context.Context, owner int64, id string) error
	RemoveFromOwnerIndex(ctx context.Context, owner int64, id string) error
	ListOwnerIndex(ctx context.Context, owner int64) ([]string, error)

	PutJob(ctx context.Context, j Job) error
	DeleteJob(ctx context.Context, id string) error
	ListJobs(ctx context.Context) ([]Job, error)
	UpdateJobNextDue(ctx context.Context, id string, due time.Time) error

	Close() error
}

// Config configures the SQLite backend.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}
