// Package storage provides the SQLite persistence layer used by the bot.
//
// It holds three tables:
//   - reminders: the durable reminder records
//   - owner_index: per-user sets of reminder ids (a best-effort secondary
//     structure; record and index are written with independent statements)
//   - jobs: the scheduler's own trigger table, so jobs can be re-armed on
//     restart without replaying service logic
package storage
