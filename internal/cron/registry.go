package cron

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/redis/go-redis/v9"

	"github.com/nlbx/reqsched/internal/apperr"
)

const (
	jobsKey     = "reqsched:cron:jobs"
	runTimesKey = "reqsched:cron:run_times"
	lockKey     = "reqsched:cron:owner"
	lockTTL     = 10 * time.Second
)

// Registry is the C3 Cron Registry (spec.md §4.3): it persists one
// JobState per RequestTask.cron entry in a Redis hash, polls for due jobs,
// and fires at most one owner process at a time via a short-lived lock —
// the Redis analogue of the lock-file/single-process ownership the
// teacher's JSON-backed Service assumed implicitly by running in one
// goroutine.
type Registry struct {
	rdb     *redis.Client
	onFire  FireFunc
	ownerID string

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

func NewRegistry(rdb *redis.Client, ownerID string, onFire FireFunc) *Registry {
	return &Registry{
		rdb:     rdb,
		onFire:  onFire,
		ownerID: ownerID,
	}
}

// Register adds or replaces the cron schedule for a task (spec.md §4.3
// register). expr must already be validated by store.ValidateCron.
func (r *Registry) Register(ctx context.Context, taskID, expr string) error {
	next, err := nextTick(expr, time.Now())
	if err != nil {
		return apperr.BadInput("invalid cron expression: " + expr)
	}
	job := JobState{TaskID: taskID, Expr: expr, Enabled: true, NextRunAtMS: next.UnixMilli()}
	data, err := json.Marshal(job)
	if err != nil {
		return apperr.Registry("marshal job", err)
	}
	if err := r.rdb.HSet(ctx, jobsKey, taskID, data).Err(); err != nil {
		return apperr.Registry("register job", err)
	}
	return nil
}

// Remove unregisters a task's cron schedule (spec.md §4.3 remove), called
// when a task is deleted.
func (r *Registry) Remove(ctx context.Context, taskID string) error {
	pipe := r.rdb.TxPipeline()
	pipe.HDel(ctx, jobsKey, taskID)
	pipe.HDel(ctx, runTimesKey, taskID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Registry("remove job", err)
	}
	return nil
}

// Get returns the current JobState for a task, or false if not registered.
func (r *Registry) Get(ctx context.Context, taskID string) (*JobState, bool, error) {
	data, err := r.rdb.HGet(ctx, jobsKey, taskID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Registry("get job", err)
	}
	var job JobState
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, false, apperr.Registry("unmarshal job", err)
	}
	return &job, true, nil
}

// Start begins the poll loop. Only the process holding the Redis owner
// lock actually fires jobs; all processes may call Start, but only the
// lock holder does work each tick (single-owner enforcement, spec.md §4.3).
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopChan = make(chan struct{})
	stopChan := r.stopChan
	r.mu.Unlock()

	go r.pollLoop(ctx, stopChan)
	slog.Info("cron registry started", "owner_id", r.ownerID)
}

func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	close(r.stopChan)
	r.running = false
	slog.Info("cron registry stopped")
}

func (r *Registry) pollLoop(ctx context.Context, stopChan chan struct{}) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.acquireLock(ctx) {
				r.tick(ctx)
			}
		}
	}
}

// acquireLock takes the single-owner lock with SET NX PX semantics,
// renewing it on every successful poll so a live owner never loses it
// mid-series, while a crashed owner's lock expires and another process
// can take over (spec.md §4.3's single-owner requirement).
func (r *Registry) acquireLock(ctx context.Context) bool {
	ok, err := r.rdb.SetNX(ctx, lockKey, r.ownerID, lockTTL).Result()
	if err != nil {
		slog.Error("cron lock acquire failed", "error", err)
		return false
	}
	if ok {
		return true
	}
	current, err := r.rdb.Get(ctx, lockKey).Result()
	if err == nil && current == r.ownerID {
		r.rdb.Expire(ctx, lockKey, lockTTL)
		return true
	}
	return false
}

// tick fires every due job from one poll. Each due job fires in its own
// goroutine (spec.md §5 "fire callbacks execute concurrently with each
// other and with workers") so one task's slow or failing enqueue never
// delays another task's fire within the same tick.
func (r *Registry) tick(ctx context.Context) {
	all, err := r.rdb.HGetAll(ctx, jobsKey).Result()
	if err != nil {
		slog.Error("cron tick: list jobs failed", "error", err)
		return
	}
	now := time.Now()
	var wg sync.WaitGroup
	for _, data := range all {
		var job JobState
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			continue
		}
		if !job.Enabled {
			continue
		}
		due := time.UnixMilli(job.NextRunAtMS)
		if due.After(now) {
			continue
		}
		if now.Sub(due) > misfireGrace {
			// Misfire beyond grace: coalesce by dropping the stale fire and
			// advancing straight to the next tick (spec.md §9).
			r.advance(ctx, &job, now)
			continue
		}
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.fire(ctx, &job, now)
		}()
	}
	wg.Wait()
}

// fire makes a single enqueue attempt, as spec.md §9's two-hop design
// requires: a dropped cron fire is not retried, only reported and
// advanced past (spec.md §4.3's "if enqueue fails the count is NOT
// incremented" already assumes no retry happens here).
func (r *Registry) fire(ctx context.Context, job *JobState, firedAt time.Time) {
	if err := r.onFire(job.TaskID); err != nil {
		job.LastStatus = "error"
		job.LastError = err.Error()
		slog.Error("cron fire failed", "task_id", job.TaskID, "error", err)
	} else {
		job.LastStatus = "ok"
		job.LastError = ""
		r.rdb.HSet(ctx, runTimesKey, job.TaskID, firedAt.UnixMilli())
	}
	r.advance(ctx, job, firedAt)
}

func (r *Registry) advance(ctx context.Context, job *JobState, from time.Time) {
	next, err := nextTick(job.Expr, from)
	if err != nil {
		slog.Error("cron: failed to compute next run", "expr", job.Expr, "error", err)
		job.Enabled = false
	} else {
		job.NextRunAtMS = next.UnixMilli()
	}
	data, err := json.Marshal(job)
	if err != nil {
		slog.Error("cron: failed to marshal job", "task_id", job.TaskID, "error", err)
		return
	}
	if err := r.rdb.HSet(ctx, jobsKey, job.TaskID, data).Err(); err != nil {
		slog.Error("cron: failed to persist job", "task_id", job.TaskID, "error", err)
	}
}

func nextTick(expr string, after time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, after, false)
}
