// Package cron implements the C3 Cron Registry: durable registration of
// RequestTask.cron schedules, single-owner firing, and a 60s misfire-grace
// with coalesce (spec.md §4.3, §9). Persistence uses two Redis hashes,
// "reqsched:cron:jobs" and "reqsched:cron:run_times", matching the literal
// registry key names spec.md §6 documents as persisted state — the same
// two-hash job-store shape the original Python implementation's APScheduler
// RedisJobStore used, carried forward rather than reinvented.
package cron

import "time"

// JobState is the durable record for one registered cron schedule. The ID
// is the owning RequestTask's ID (spec.md has no separate job identity).
type JobState struct {
	TaskID      string `json:"task_id"`
	Expr        string `json:"expr"`
	Enabled     bool   `json:"enabled"`
	NextRunAtMS int64  `json:"next_run_at_ms"`
	LastStatus  string `json:"last_status,omitempty"` // "ok" or "error"
	LastError   string `json:"last_error,omitempty"`
}

// FireFunc is invoked when a job's scheduled time arrives. The Registry
// does not dispatch HTTP requests itself (spec.md §9's two-hop design):
// firing means handing the task off to the Queue and bumping cron_count,
// nothing more.
type FireFunc func(taskID string) error

// misfireGrace is the maximum staleness tolerated before a due fire is
// dropped instead of caught up (spec.md §9).
const misfireGrace = 60 * time.Second

func nowMS() int64 {
	return time.Now().UnixMilli()
}
