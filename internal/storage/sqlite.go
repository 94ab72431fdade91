package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"remibot/internal/recurrence"
	logx "remibot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the SQLite store, creating the file and schema on first use.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if log.IsZero() {
		log = logx.Nop()
	}
	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- reminders ----

func (s *sqliteStore) PutReminder(ctx context.Context, r Reminder) error {
	recur, err := json.Marshal(r.Spec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reminders(id, user_id, text, kind, recur, run_at, status) VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id, text=excluded.text,
		   kind=excluded.kind, recur=excluded.recur, run_at=excluded.run_at, status=excluded.status`,
		r.ID, r.Owner, r.Text, string(r.Spec.Kind), string(recur), r.RunAt.Format(time.RFC3339), r.Status,
	)
	return err
}

func (s *sqliteStore) GetReminder(ctx context.Context, id string) (Reminder, error) {
	var (
		r     Reminder
		recur string
		runAt string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, text, recur, run_at, status FROM reminders WHERE id = ?`, id)
	err := row.Scan(&r.ID, &r.Owner, &r.Text, &recur, &runAt, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Reminder{}, ErrNotFound
	}
	if err != nil {
		return Reminder{}, err
	}
	var spec recurrence.Spec
	if err := json.Unmarshal([]byte(recur), &spec); err != nil {
		return Reminder{}, fmt.Errorf("reminder %s: corrupt recurrence: %w", id, err)
	}
	r.Spec = spec
	if r.RunAt, err = time.Parse(time.RFC3339, runAt); err != nil {
		return Reminder{}, fmt.Errorf("reminder %s: corrupt run_at: %w", id, err)
	}
	return r, nil
}

func (s *sqliteStore) DeleteReminder(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) UpdateReminderText(ctx context.Context, id, text string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET text = ? WHERE id = ?`, text, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- owner index ----

func (s *sqliteStore) AddToOwnerIndex(ctx context.Context, owner int64, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO owner_index(user_id, reminder_id) VALUES(?,?)
		 ON CONFLICT(user_id, reminder_id) DO NOTHING`, owner, id)
	return err
}

func (s *sqliteStore) RemoveFromOwnerIndex(ctx context.Context, owner int64, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM owner_index WHERE user_id = ? AND reminder_id = ?`, owner, id)
	return err
}

func (s *sqliteStore) ListOwnerIndex(ctx context.Context, owner int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reminder_id FROM owner_index WHERE user_id = ? ORDER BY rowid`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---- scheduler jobs ----

func (s *sqliteStore) PutJob(ctx context.Context, j Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(id, trigger_json, next_due) VALUES(?,?,?)
		 ON CONFLICT(id) DO UPDATE SET trigger_json=excluded.trigger_json, next_due=excluded.next_due`,
		j.ID, string(j.Trigger), nullTime(j.NextDue),
	)
	return err
}

func (s *sqliteStore) DeleteJob(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) ListJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, trigger_json, next_due FROM jobs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			j       Job
			trigger string
			nextDue sql.NullString
		)
		if err := rows.Scan(&j.ID, &trigger, &nextDue); err != nil {
			return nil, err
		}
		j.Trigger = []byte(trigger)
		if nextDue.Valid {
			if t, err := time.Parse(time.RFC3339, nextDue.String); err == nil {
				j.NextDue = t
			}
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *sqliteStore) UpdateJobNextDue(ctx context.Context, id string, due time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET next_due = ? WHERE id = ?`, nullTime(due), id)
	return err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}
