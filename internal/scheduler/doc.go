// Package scheduler is a durable job scheduler. Jobs are persisted as
// jobId -> trigger and re-armed from the store on every Start, so the
// schedule survives process restarts. One-shot triggers arm a timer,
// recurring ones ride a cron runner; all firings funnel through a worker
// pool with a per-job single-flight guard.
package scheduler
