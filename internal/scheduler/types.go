package scheduler

import (
	"context"
	"sync"
	"time"
)

// Config controls the scheduler service.
type Config struct {
	Workers   int
	QueueSize int
	Timezone  string // IANA TZ, e.g. "Europe/Moscow"
}

// Handler is the single callback invoked for every due job. Callbacks are
// registered once per process because they cannot be persisted alongside the
// trigger; the job id is the only state that crosses a restart.
type Handler func(ctx context.Context, jobID string) error

// runState is shared between firings of one job. It backs the single-flight
// guard: a firing that observes running=true is skipped, never queued.
type runState struct {
	mu      sync.Mutex
	running bool
}

func (r *runState) tryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	return true
}

func (r *runState) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

type task struct {
	jobID string
	state *runState
}

// JobInfo is a point-in-time view of one registered job.
type JobInfo struct {
	ID      string
	Kind    TriggerKind
	NextDue time.Time
}

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	Running  bool
	Timezone string
	Workers  int
	QueueLen int
	Jobs     []JobInfo
}
