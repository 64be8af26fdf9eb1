// Package engine wires the collaborators C1-C4 of the design (task store,
// queue, cron registry, HTTP client) into one dependency-injected value
// passed explicitly to the admission layer, the worker loop, and the
// cron-registry's fire callback. Per spec.md §9 ("Global broker/scheduler
// state in the source is re-architected as dependency-injected handles on
// an Engine value owned by the process entry point"), there is no
// package-level singleton anywhere in this tree — every cmd subcommand
// builds its own Engine and passes it down explicitly.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nlbx/reqsched/internal/cron"
	"github.com/nlbx/reqsched/internal/dispatch"
	"github.com/nlbx/reqsched/internal/httpclient"
	"github.com/nlbx/reqsched/internal/queue"
	"github.com/nlbx/reqsched/internal/store"
)

// Engine holds every handle the core depends on. Fields are plain
// interfaces/pointers, not process-wide globals; cmd/reqsched constructs
// exactly one Engine per process and threads it through explicitly.
type Engine struct {
	Tasks   store.TaskStore
	Users   store.UserStore
	ApiKeys store.ApiKeyStore
	Queue   *queue.Queue
	Cron    *cron.Registry
	HTTP    *httpclient.Client
}

// NewEngine builds an Engine from already-constructed collaborators. The
// Cron registry's FireFunc is bound here (spec.md §4.3's "enqueue a
// one-shot dispatch unit for task id and atomically increment cron_count")
// so the registry never needs to know about Queue or Tasks directly. Per
// spec.md §9's two-hop design, the callback never calls the HTTP client —
// it only hands the task off to the queue, keeping the cron poll loop
// fast and uniform with one-shot admission. This construction IS the
// engine.init() startup contract spec.md §9 calls for: every handle is
// wired once, explicitly, before a worker or cron process starts
// consuming; there is no mid-flight re-parenting of connections.
func NewEngine(tasks store.TaskStore, users store.UserStore, keys store.ApiKeyStore, q *queue.Queue, rdb *redis.Client, http *httpclient.Client, ownerID string) *Engine {
	e := &Engine{Tasks: tasks, Users: users, ApiKeys: keys, Queue: q, HTTP: http}
	e.Cron = cron.NewRegistry(rdb, ownerID, func(taskID string) error {
		return e.onCronFire(context.Background(), taskID)
	})
	return e
}

// onCronFire is the Registry FireFunc bound to this Engine: enqueue a
// one-shot unit, then increment cron_count only if enqueue succeeded
// (spec.md §4.3, §8 "enqueue success implies increment").
func (e *Engine) onCronFire(ctx context.Context, taskID string) error {
	id, err := uuid.Parse(taskID)
	if err != nil {
		return err
	}
	if _, err := e.Queue.Enqueue(ctx, taskID); err != nil {
		slog.Error("cron fire: enqueue failed, cron_count not incremented", "task_id", taskID, "error", err)
		return err
	}
	if err := e.Tasks.IncrementCronCount(ctx, id); err != nil {
		slog.Error("cron fire: increment cron_count failed", "task_id", taskID, "error", err)
		return err
	}
	return nil
}

// RunWorker loops claiming dispatch units from the queue and executing
// them, until ctx is cancelled. concurrency goroutines run independently,
// each suspending on I/O at every step of dispatch.Execute (spec.md §5).
func (e *Engine) RunWorker(ctx context.Context, concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	done := make(chan struct{})
	for i := 0; i < concurrency; i++ {
		go func(workerNum int) {
			e.workerLoop(ctx, workerNum)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < concurrency; i++ {
		<-done
	}
}

func (e *Engine) workerLoop(ctx context.Context, workerNum int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, raw, err := e.Queue.Claim(ctx, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("worker: claim failed", "worker", workerNum, "error", err)
			continue
		}
		if msg == nil {
			continue
		}
		if err := dispatch.Execute(ctx, dispatch.Deps{Tasks: e.Tasks, HTTP: e.HTTP}, msg.TaskID); err != nil {
			slog.Error("worker: dispatch execute failed", "worker", workerNum, "task_id", msg.TaskID, "error", err)
		}
		if err := e.Queue.Complete(ctx, raw); err != nil {
			slog.Error("worker: complete failed", "worker", workerNum, "error", err)
		}
	}
}

// RunPromoter periodically moves due delayed units into the ready queue
// (the deferred-dispatch ETA mechanism of spec.md §4.2).
func (e *Engine) RunPromoter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Queue.PromoteDue(ctx); err != nil {
				slog.Error("promoter: promote due failed", "error", err)
			}
		}
	}
}
