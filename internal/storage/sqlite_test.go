package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"remibot/internal/recurrence"
	logx "remibot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "remibot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testReminder(id string, owner int64) Reminder {
	return Reminder{
		ID:    id,
		Owner: owner,
		Text:  "water the plants",
		Spec:  recurrence.Spec{Kind: recurrence.Daily, Hour: 9, Minute: 30},
		RunAt: time.Date(2030, time.June, 1, 9, 30, 0, 0, time.UTC),
		Status: StatusActive,
	}
}

func TestReminderRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	want := testReminder("r1", 42)
	if err := st.PutReminder(ctx, want); err != nil {
		t.Fatalf("PutReminder: %v", err)
	}

	got, err := st.GetReminder(ctx, "r1")
	if err != nil {
		t.Fatalf("GetReminder: %v", err)
	}
	if got.ID != want.ID || got.Owner != want.Owner || got.Text != want.Text || got.Status != want.Status {
		t.Fatalf("GetReminder = %+v, want %+v", got, want)
	}
	if got.Spec != want.Spec {
		t.Fatalf("Spec = %+v, want %+v", got.Spec, want.Spec)
	}
	if !got.RunAt.Equal(want.RunAt) {
		t.Fatalf("RunAt = %v, want %v", got.RunAt, want.RunAt)
	}
}

func TestGetReminderNotFound(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	if _, err := st.GetReminder(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutReminderUpsert(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	r := testReminder("r1", 42)
	if err := st.PutReminder(ctx, r); err != nil {
		t.Fatalf("PutReminder: %v", err)
	}
	r.Text = "changed"
	if err := st.PutReminder(ctx, r); err != nil {
		t.Fatalf("PutReminder upsert: %v", err)
	}
	got, err := st.GetReminder(ctx, "r1")
	if err != nil {
		t.Fatalf("GetReminder: %v", err)
	}
	if got.Text != "changed" {
		t.Fatalf("Text = %q, want %q", got.Text, "changed")
	}
}

func TestUpdateReminderText(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.PutReminder(ctx, testReminder("r1", 42)); err != nil {
		t.Fatalf("PutReminder: %v", err)
	}
	if err := st.UpdateReminderText(ctx, "r1", "new text"); err != nil {
		t.Fatalf("UpdateReminderText: %v", err)
	}
	got, err := st.GetReminder(ctx, "r1")
	if err != nil {
		t.Fatalf("GetReminder: %v", err)
	}
	if got.Text != "new text" {
		t.Fatalf("Text = %q, want %q", got.Text, "new text")
	}

	if err := st.UpdateReminderText(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteReminderIsIdempotent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.PutReminder(ctx, testReminder("r1", 42)); err != nil {
		t.Fatalf("PutReminder: %v", err)
	}
	if err := st.DeleteReminder(ctx, "r1"); err != nil {
		t.Fatalf("DeleteReminder: %v", err)
	}
	// Second delete is a no-op, not an error.
	if err := st.DeleteReminder(ctx, "r1"); err != nil {
		t.Fatalf("second DeleteReminder: %v", err)
	}
	if _, err := st.GetReminder(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after delete", err)
	}
}

func TestOwnerIndex(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	const owner = int64(7)
	for _, id := range []string{"a", "b", "c"} {
		if err := st.AddToOwnerIndex(ctx, owner, id); err != nil {
			t.Fatalf("AddToOwnerIndex(%s): %v", id, err)
		}
	}
	// Duplicate add keeps set semantics.
	if err := st.AddToOwnerIndex(ctx, owner, "b"); err != nil {
		t.Fatalf("duplicate AddToOwnerIndex: %v", err)
	}

	ids, err := st.ListOwnerIndex(ctx, owner)
	if err != nil {
		t.Fatalf("ListOwnerIndex: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ListOwnerIndex = %v, want 3 ids", ids)
	}

	if err := st.RemoveFromOwnerIndex(ctx, owner, "b"); err != nil {
		t.Fatalf("RemoveFromOwnerIndex: %v", err)
	}
	ids, err = st.ListOwnerIndex(ctx, owner)
	if err != nil {
		t.Fatalf("ListOwnerIndex: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ListOwnerIndex = %v, want 2 ids", ids)
	}

	other, err := st.ListOwnerIndex(ctx, 99)
	if err != nil {
		t.Fatalf("ListOwnerIndex(other): %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("ListOwnerIndex(other) = %v, want empty", other)
	}
}

func TestJobs(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	due := time.Date(2030, time.June, 1, 9, 30, 0, 0, time.UTC)
	j := Job{ID: "reminder_x", Trigger: []byte(`{"kind":"once"}`), NextDue: due}
	if err := st.PutJob(ctx, j); err != nil {
		t.Fatalf("PutJob: %v", err)
	}
	// Upsert replaces the trigger.
	j.Trigger = []byte(`{"kind":"cron","spec":"30 9 * * *"}`)
	if err := st.PutJob(ctx, j); err != nil {
		t.Fatalf("PutJob upsert: %v", err)
	}

	jobs, err := st.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("ListJobs = %d jobs, want 1", len(jobs))
	}
	if string(jobs[0].Trigger) != `{"kind":"cron","spec":"30 9 * * *"}` {
		t.Fatalf("Trigger = %s", jobs[0].Trigger)
	}
	if !jobs[0].NextDue.Equal(due) {
		t.Fatalf("NextDue = %v, want %v", jobs[0].NextDue, due)
	}

	later := due.AddDate(0, 0, 1)
	if err := st.UpdateJobNextDue(ctx, "reminder_x", later); err != nil {
		t.Fatalf("UpdateJobNextDue: %v", err)
	}
	jobs, _ = st.ListJobs(ctx)
	if !jobs[0].NextDue.Equal(later) {
		t.Fatalf("NextDue = %v, want %v", jobs[0].NextDue, later)
	}

	if err := st.DeleteJob(ctx, "reminder_x"); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if err := st.DeleteJob(ctx, "reminder_x"); err != nil {
		t.Fatalf("second DeleteJob: %v", err)
	}
	jobs, _ = st.ListJobs(ctx)
	if len(jobs) != 0 {
		t.Fatalf("ListJobs = %v, want empty", jobs)
	}
}

// A crash between writing the record and the index entry can leave the index
// pointing at a missing record. The store itself does not hide that; readers
// are expected to skip.
func TestDanglingIndexEntrySurvives(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.AddToOwnerIndex(ctx, 5, "ghost"); err != nil {
		t.Fatalf("AddToOwnerIndex: %v", err)
	}
	ids, err := st.ListOwnerIndex(ctx, 5)
	if err != nil {
		t.Fatalf("ListOwnerIndex: %v", err)
	}
	if len(ids) != 1 || ids[0] != "ghost" {
		t.Fatalf("ListOwnerIndex = %v, want [ghost]", ids)
	}
	if _, err := st.GetReminder(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
