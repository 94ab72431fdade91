package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"remibot/internal/recurrence"
	"remibot/internal/storage"
	logx "remibot/pkg/logx"
)

// Deliver is the scheduler callback. It re-reads the record at fire time so
// a delete or edit that raced the firing wins: a missing or inactive record
// means the firing is dropped without error.
func (s *Service) Deliver(ctx context.Context, jobID string) error {
	id := strings.TrimPrefix(jobID, jobIDPrefix)
	if id == jobID {
		return fmt.Errorf("deliver: job %q is not a reminder job", jobID)
	}

	rec, err := s.store.GetReminder(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Debug("firing for removed reminder dropped", logx.String("id", id))
		return nil
	}
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	if rec.Status != storage.StatusActive {
		s.log.Debug("firing for inactive reminder dropped",
			logx.String("id", id), logx.String("status", rec.Status))
		return nil
	}

	if err := s.notify.Send(ctx, rec.Owner, "⏰ Reminder:\n"+rec.Text); err != nil {
		return fmt.Errorf("deliver %s: %w", id, err)
	}
	s.log.Info("reminder delivered",
		logx.String("id", id), logx.Int64("owner", rec.Owner),
		logx.String("kind", string(rec.Spec.Kind)))

	// One-shot reminders retire after a successful delivery. The job row is
	// already gone; only the record and its index entry remain.
	if rec.Spec.Kind == recurrence.Once {
		if err := s.store.DeleteReminder(ctx, id); err != nil {
			s.log.Warn("one-shot record cleanup failed", logx.String("id", id), logx.Err(err))
		}
		if err := s.store.RemoveFromOwnerIndex(ctx, rec.Owner, id); err != nil {
			s.log.Warn("one-shot index cleanup failed", logx.String("id", id), logx.Err(err))
		}
	}
	return nil
}
