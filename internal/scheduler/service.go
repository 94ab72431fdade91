package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remibot/internal/storage"
	logx "remibot/pkg/logx"
)

// Service is a durable job scheduler. Every registered job is persisted as
// jobId -> trigger in the store, so a restart re-arms the whole table without
// replaying application logic. Firings run on a small worker pool with a
// single-flight guard per job.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	cfg     Config
	store   storage.Store
	handler Handler
	loc     *time.Location

	parser  cron.Parser
	c       *cron.Cron
	entries map[string]*jobEntry
	nextVer uint64

	queue     chan task
	stopCh    chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
	running   bool
}

type jobEntry struct {
	id      string
	trig    Trigger
	entryID cron.EntryID
	timer   *time.Timer
	ver     uint64
	state   *runState
}

func New(cfg Config, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:     log,
		cfg:     cfg,
		store:   store,
		loc:     loadLocation(cfg.Timezone, log),
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		entries: map[string]*jobEntry{},
	}
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// OnFire registers the callback invoked for every due job.
// Must be called before Start.
func (s *Service) OnFire(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Location returns the scheduler's timezone. All candidate instants are
// computed in it.
func (s *Service) Location() *time.Location { return s.loc }

// Start loads the persisted job table, re-arms every trigger and starts the
// worker pool. One-shot jobs whose due instant passed while the process was
// down fire immediately, once.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.handler == nil {
		return errors.New("scheduler: no handler registered")
	}

	jobs, err := s.store.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: load jobs: %w", err)
	}

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	queueSize := s.cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	s.queue = make(chan task, queueSize)
	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	s.entries = map[string]*jobEntry{}

	for _, j := range jobs {
		trig, err := decodeTrigger(j.Trigger)
		if err != nil {
			s.log.Error("skipping job with corrupt trigger", logx.String("job", j.ID), logx.Err(err))
			continue
		}
		e := s.newEntryLocked(j.ID, trig)
		if err := s.armLocked(e); err != nil {
			s.log.Error("job re-arm failed", logx.String("job", j.ID), logx.Err(err))
			delete(s.entries, j.ID)
		}
	}

	runCtx := s.runCtx
	stopCh := s.stopCh
	queue := s.queue
	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in scheduler worker",
						logx.Int("worker", idx), logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			s.worker(runCtx, stopCh, queue)
		}()
	}

	s.c.Start()
	s.running = true
	s.log.Info("scheduler started",
		logx.Int("workers", workers), logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.entries)))
	return nil
}

// Stop halts firing and waits for in-flight callbacks up to ctx's deadline.
// Persisted job definitions are kept so the next Start resumes them.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.c
	s.c = nil
	stopCh := s.stopCh
	cancel := s.runCancel
	s.runCancel = nil
	for _, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	close(stopCh)
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; workers still draining", logx.Err(ctx.Err()))
	}
}

// Schedule registers or atomically replaces the job under jobID.
// The trigger is persisted before the job is armed.
func (s *Service) Schedule(ctx context.Context, jobID string, trig Trigger) error {
	if strings.TrimSpace(jobID) == "" {
		return errors.New("scheduler: job id required")
	}
	if err := trig.validate(s.parser); err != nil {
		return err
	}

	enc, err := trig.encode()
	if err != nil {
		return err
	}
	nextDue, err := trig.nextAfter(time.Now(), s.parser, s.loc)
	if err != nil {
		return err
	}
	if err := s.store.PutJob(ctx, storage.Job{ID: jobID, Trigger: enc, NextDue: nextDue}); err != nil {
		return fmt.Errorf("scheduler: persist job: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked(jobID)
	e := s.newEntryLocked(jobID, trig)
	if !s.running {
		// Definition is persisted; it is armed on the next Start.
		return nil
	}
	if err := s.armLocked(e); err != nil {
		delete(s.entries, jobID)
		return err
	}
	s.log.Debug("job scheduled",
		logx.String("job", jobID), logx.String("kind", string(trig.Kind)), logx.Time("next", nextDue))
	return nil
}

// Cancel removes a job if present. Cancelling an unknown job is a no-op, not
// an error: the job may have already fired and retired itself.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	known := s.disarmLocked(jobID)
	s.mu.Unlock()

	if err := s.store.DeleteJob(ctx, jobID); err != nil {
		return fmt.Errorf("scheduler: delete job: %w", err)
	}
	if known {
		s.log.Debug("job cancelled", logx.String("job", jobID))
	} else {
		s.log.Debug("cancel for unknown job (already fired?)", logx.String("job", jobID))
	}
	return nil
}

// Snapshot reports the currently registered jobs and their next due instants.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	snap := Snapshot{
		Running:  s.running,
		Timezone: s.loc.String(),
		Workers:  s.cfg.Workers,
	}
	if s.queue != nil {
		snap.QueueLen = len(s.queue)
	}
	for _, e := range s.entries {
		info := JobInfo{ID: e.id, Kind: e.trig.Kind}
		if next, err := e.trig.nextAfter(now, s.parser, s.loc); err == nil {
			info.NextDue = next
		}
		snap.Jobs = append(snap.Jobs, info)
	}
	return snap
}

// ---- internals ----

func (s *Service) newEntryLocked(jobID string, trig Trigger) *jobEntry {
	s.nextVer++
	e := &jobEntry{id: jobID, trig: trig, ver: s.nextVer, state: &runState{}}
	s.entries[jobID] = e
	return e
}

// disarmLocked stops the runtime trigger for jobID and drops it from the
// entry table. It reports whether the job was known.
func (s *Service) disarmLocked(jobID string) bool {
	e, ok := s.entries[jobID]
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.entryID != 0 && s.c != nil {
		s.c.Remove(e.entryID)
	}
	delete(s.entries, jobID)
	return true
}

func (s *Service) armLocked(e *jobEntry) error {
	if e.trig.Kind == TriggerOnce {
		delay := time.Until(e.trig.At)
		if delay < 0 {
			delay = 0
		}
		jobID, ver := e.id, e.ver
		e.timer = time.AfterFunc(delay, func() { s.onceFired(jobID, ver) })
		return nil
	}

	sched, err := e.trig.schedule(s.parser, s.loc)
	if err != nil {
		return err
	}
	jobID := e.id
	e.entryID = s.c.Schedule(sched, cron.FuncJob(func() { s.dispatch(jobID) }))
	return nil
}

// onceFired handles a one-shot timer expiry. The persisted definition is
// removed before the callback is enqueued, so a crash mid-delivery cannot
// double-fire on the next restart.
func (s *Service) onceFired(jobID string, ver uint64) {
	s.mu.Lock()
	e, ok := s.entries[jobID]
	if !ok || e.ver != ver {
		// Replaced or cancelled after the timer was armed.
		s.mu.Unlock()
		return
	}
	delete(s.entries, jobID)
	state := e.state
	s.mu.Unlock()

	dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := s.store.DeleteJob(dctx, jobID); err != nil {
		s.log.Warn("one-shot job cleanup failed", logx.String("job", jobID), logx.Err(err))
	}
	cancel()

	s.enqueue(task{jobID: jobID, state: state})
}

func (s *Service) dispatch(jobID string) {
	s.mu.Lock()
	e, ok := s.entries[jobID]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.enqueue(task{jobID: jobID, state: e.state})
}

func (s *Service) enqueue(t task) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		s.log.Debug("scheduler not running; dropping firing", logx.String("job", t.jobID))
		return
	}
	select {
	case q <- t:
	default:
		s.log.Warn("scheduler queue full; dropping firing",
			logx.String("job", t.jobID), logx.Int("queue_len", len(q)), logx.Int("queue_cap", cap(q)))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, t task) {
	if !t.state.tryAcquire() {
		s.log.Debug("firing skipped (previous run still executing)", logx.String("job", t.jobID))
		return
	}
	defer t.state.release()

	start := time.Now()
	err := s.handler(ctx, t.jobID)
	dur := time.Since(start)
	if err != nil {
		s.log.Warn("job callback failed", logx.String("job", t.jobID), logx.Err(err), logx.Duration("dur", dur))
	} else {
		s.log.Debug("job callback completed", logx.String("job", t.jobID), logx.Duration("dur", dur))
	}

	// Refresh the cached next due instant for recurring jobs.
	s.mu.Lock()
	e, ok := s.entries[t.jobID]
	s.mu.Unlock()
	if !ok || e.trig.Kind == TriggerOnce {
		return
	}
	next, nerr := e.trig.nextAfter(time.Now(), s.parser, s.loc)
	if nerr != nil {
		return
	}
	uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if uerr := s.store.UpdateJobNextDue(uctx, t.jobID, next); uerr != nil {
		s.log.Warn("next due update failed", logx.String("job", t.jobID), logx.Err(uerr))
	}
	cancel()
}
