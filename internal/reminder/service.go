package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"remibot/internal/recurrence"
	"remibot/internal/scheduler"
	"remibot/internal/storage"
	logx "remibot/pkg/logx"
)

// jobIDPrefix namespaces reminder jobs inside the scheduler's job table.
const jobIDPrefix = "reminder_"

const maxTextLen = 1024

// Service orchestrates the reminder lifecycle: it owns the record/index
// writes, the job registration, and the delivery callback. The store is
// atomic per key only, so the write order here is chosen to keep partial
// failures harmless (a record without an index entry is invisible; an index
// entry without a record is skipped by List).
type Service struct {
	store  storage.Store
	sched  JobScheduler
	notify Notifier
	log    logx.Logger
}

func New(store storage.Store, sched JobScheduler, notify Notifier, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, sched: sched, notify: notify, log: log}
}

// Create validates the request, persists the reminder and registers its job.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Summary, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Summary{}, validationf("reminder text is empty")
	}
	if len(text) > maxTextLen {
		return Summary{}, validationf("reminder text is too long (max %d characters)", maxTextLen)
	}
	if err := req.Spec.Validate(); err != nil {
		return Summary{}, &ValidationError{Reason: err.Error()}
	}

	now := time.Now().In(s.sched.Location())
	runAt, err := recurrence.NextFire(req.Spec, now)
	if err != nil {
		if errors.Is(err, recurrence.ErrPast) {
			return Summary{}, &ValidationError{Reason: err.Error()}
		}
		return Summary{}, err
	}

	id := uuid.NewString()
	rec := storage.Reminder{
		ID:     id,
		Owner:  req.Owner,
		Text:   text,
		Spec:   req.Spec,
		RunAt:  runAt,
		Status: storage.StatusActive,
	}
	if err := s.store.PutReminder(ctx, rec); err != nil {
		return Summary{}, fmt.Errorf("create reminder: %w", err)
	}
	if err := s.store.AddToOwnerIndex(ctx, req.Owner, id); err != nil {
		return Summary{}, fmt.Errorf("create reminder: index: %w", err)
	}
	if err := s.sched.Schedule(ctx, jobIDPrefix+id, triggerFor(req.Spec)); err != nil {
		return Summary{}, fmt.Errorf("create reminder: schedule: %w", err)
	}

	s.log.Info("reminder created",
		logx.String("id", id), logx.Int64("owner", req.Owner),
		logx.String("kind", string(req.Spec.Kind)), logx.Time("run_at", runAt))
	return Summary{ID: id, Text: text, Spec: req.Spec, RunAt: runAt}, nil
}

// List returns the owner's reminders sorted by next occurrence. Index
// entries whose record is gone are skipped and pruned best effort. The
// next-fire instant of recurring reminders is recomputed at read time; the
// stored run_at only records the first occurrence.
func (s *Service) List(ctx context.Context, owner int64) ([]Summary, error) {
	ids, err := s.store.ListOwnerIndex(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}

	now := time.Now().In(s.sched.Location())
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		rec, err := s.store.GetReminder(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Debug("pruning dangling index entry",
				logx.Int64("owner", owner), logx.String("id", id))
			if perr := s.store.RemoveFromOwnerIndex(ctx, owner, id); perr != nil {
				s.log.Warn("index prune failed", logx.String("id", id), logx.Err(perr))
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list reminders: %w", err)
		}
		runAt := rec.RunAt
		switch rec.Spec.Kind {
		case recurrence.Once:
			// Literal instant; a fired one-shot is deleted, not listed.
		case recurrence.Yearly:
			for !runAt.After(now) {
				runAt = runAt.AddDate(1, 0, 0)
			}
		default:
			if next, nerr := recurrence.NextFire(rec.Spec, now); nerr == nil {
				runAt = next
			}
		}
		out = append(out, Summary{ID: rec.ID, Text: rec.Text, Spec: rec.Spec, RunAt: runAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out, nil
}

// Delete removes the reminder, its index entry and its job. A second delete
// of the same id reports ErrNotFound; the caller turns that into an
// "already removed" notice rather than a failure.
func (s *Service) Delete(ctx context.Context, owner int64, id string) error {
	rec, err := s.store.GetReminder(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// Still clear leftovers in case a previous delete died halfway.
		_ = s.store.RemoveFromOwnerIndex(ctx, owner, id)
		_ = s.sched.Cancel(ctx, jobIDPrefix+id)
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if rec.Owner != owner {
		return ErrNotFound
	}

	if err := s.sched.Cancel(ctx, jobIDPrefix+id); err != nil {
		return fmt.Errorf("delete reminder: cancel job: %w", err)
	}
	if err := s.store.DeleteReminder(ctx, id); err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if err := s.store.RemoveFromOwnerIndex(ctx, owner, id); err != nil {
		return fmt.Errorf("delete reminder: index: %w", err)
	}

	s.log.Info("reminder deleted", logx.String("id", id), logx.Int64("owner", owner))
	return nil
}

// EditText replaces the reminder text in place. The schedule is untouched.
func (s *Service) EditText(ctx context.Context, owner int64, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return validationf("reminder text is empty")
	}
	if len(text) > maxTextLen {
		return validationf("reminder text is too long (max %d characters)", maxTextLen)
	}

	rec, err := s.store.GetReminder(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("edit reminder: %w", err)
	}
	if rec.Owner != owner {
		return ErrNotFound
	}
	if rec.Text == text {
		return ErrUnchanged
	}

	if err := s.store.UpdateReminderText(ctx, id, text); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("edit reminder: %w", err)
	}
	s.log.Info("reminder text updated", logx.String("id", id), logx.Int64("owner", owner))
	return nil
}

// triggerFor maps a recurrence pattern onto the scheduler's trigger model.
// Recurring kinds compile to cron expressions except "last day of month",
// which cron cannot express and the scheduler handles natively.
func triggerFor(spec recurrence.Spec) scheduler.Trigger {
	switch spec.Kind {
	case recurrence.Once:
		return scheduler.OnceAt(spec.At)
	case recurrence.Daily:
		return scheduler.Cron(fmt.Sprintf("%d %d * * *", spec.Minute, spec.Hour))
	case recurrence.Weekly:
		return scheduler.Cron(fmt.Sprintf("%d %d * * %d", spec.Minute, spec.Hour, int(spec.Weekday)))
	case recurrence.Monthly:
		if spec.LastDay {
			return scheduler.MonthlyLast(spec.Hour, spec.Minute)
		}
		return scheduler.Cron(fmt.Sprintf("%d %d %d * *", spec.Minute, spec.Hour, spec.Day))
	case recurrence.Yearly:
		at := spec.At
		return scheduler.Cron(fmt.Sprintf("%d %d %d %d *",
			at.Minute(), at.Hour(), at.Day(), int(at.Month())))
	default:
		panic(fmt.Sprintf("reminder: unknown recurrence kind %q", spec.Kind))
	}
}
