package cron

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var errAlways = errors.New("always fails")

func newTestRegistry(t *testing.T, ownerID string, onFire FireFunc) (*Registry, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRegistry(rdb, ownerID, onFire), rdb
}

func TestRegisterComputesNextTick(t *testing.T) {
	reg, _ := newTestRegistry(t, "owner-1", func(string) error { return nil })
	ctx := context.Background()

	if err := reg.Register(ctx, "task-1", "*/5 * * * *"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	job, ok, err := reg.Get(ctx, "task-1")
	if err != nil || !ok {
		t.Fatalf("Get() = %+v, %v, %v", job, ok, err)
	}
	if job.NextRunAtMS <= time.Now().UnixMilli() {
		t.Errorf("NextRunAtMS = %d, want in the future", job.NextRunAtMS)
	}
}

func TestRegisterRejectsInvalidExpr(t *testing.T) {
	reg, _ := newTestRegistry(t, "owner-1", func(string) error { return nil })
	if err := reg.Register(context.Background(), "task-1", "not a cron"); err == nil {
		t.Fatal("Register() with invalid expr should fail")
	}
}

func TestRemoveDeletesJobAndRunTime(t *testing.T) {
	reg, _ := newTestRegistry(t, "owner-1", func(string) error { return nil })
	ctx := context.Background()
	_ = reg.Register(ctx, "task-1", "* * * * *")

	if err := reg.Remove(ctx, "task-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok, _ := reg.Get(ctx, "task-1"); ok {
		t.Error("Get() after Remove() should report not found")
	}
}

func TestTickFiresDueJobAndAdvances(t *testing.T) {
	var fired int32
	reg, rdb := newTestRegistry(t, "owner-1", func(taskID string) error {
		atomic.AddInt32(&fired, 1)
		return nil
	})
	ctx := context.Background()

	job := JobState{TaskID: "task-1", Expr: "* * * * *", Enabled: true, NextRunAtMS: time.Now().Add(-time.Second).UnixMilli()}
	data, _ := json.Marshal(job)
	rdb.HSet(ctx, jobsKey, "task-1", data)

	reg.tick(ctx)

	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	updated, ok, err := reg.Get(ctx, "task-1")
	if err != nil || !ok {
		t.Fatalf("Get() after tick = %+v, %v, %v", updated, ok, err)
	}
	if updated.NextRunAtMS <= job.NextRunAtMS {
		t.Errorf("NextRunAtMS did not advance: %d <= %d", updated.NextRunAtMS, job.NextRunAtMS)
	}
	if updated.LastStatus != "ok" {
		t.Errorf("LastStatus = %q, want ok", updated.LastStatus)
	}
}

func TestTickDropsStaleMisfireWithoutFiring(t *testing.T) {
	var fired int32
	reg, rdb := newTestRegistry(t, "owner-1", func(taskID string) error {
		atomic.AddInt32(&fired, 1)
		return nil
	})
	ctx := context.Background()

	// Due far enough in the past to exceed the 60s misfire grace.
	job := JobState{TaskID: "task-1", Expr: "* * * * *", Enabled: true, NextRunAtMS: time.Now().Add(-2 * time.Minute).UnixMilli()}
	data, _ := json.Marshal(job)
	rdb.HSet(ctx, jobsKey, "task-1", data)

	reg.tick(ctx)

	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("fired = %d, want 0 (misfire should be dropped, not caught up)", fired)
	}
	updated, ok, err := reg.Get(ctx, "task-1")
	if err != nil || !ok {
		t.Fatalf("Get() after tick = %+v, %v, %v", updated, ok, err)
	}
	if updated.NextRunAtMS <= job.NextRunAtMS {
		t.Error("next run should still advance past the dropped misfire")
	}
}

func TestFireDoesNotRetryOnError(t *testing.T) {
	var attempts int32
	reg, rdb := newTestRegistry(t, "owner-1", func(taskID string) error {
		atomic.AddInt32(&attempts, 1)
		return errAlways
	})
	ctx := context.Background()

	job := JobState{TaskID: "task-1", Expr: "* * * * *", Enabled: true, NextRunAtMS: time.Now().Add(-time.Second).UnixMilli()}
	data, _ := json.Marshal(job)
	rdb.HSet(ctx, jobsKey, "task-1", data)

	reg.tick(ctx)

	if atomic.LoadInt32(&attempts) != 1 {
		t.Fatalf("attempts = %d, want 1 (a dropped cron fire is not retried)", attempts)
	}
	updated, ok, err := reg.Get(ctx, "task-1")
	if err != nil || !ok {
		t.Fatalf("Get() after tick = %+v, %v, %v", updated, ok, err)
	}
	if updated.LastStatus != "error" {
		t.Errorf("LastStatus = %q, want error", updated.LastStatus)
	}
}

func TestAcquireLockIsSingleOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ownerA := NewRegistry(rdb, "owner-a", func(string) error { return nil })
	ownerB := NewRegistry(rdb, "owner-b", func(string) error { return nil })
	ctx := context.Background()

	if !ownerA.acquireLock(ctx) {
		t.Fatal("owner-a should acquire the lock first")
	}
	if ownerB.acquireLock(ctx) {
		t.Fatal("owner-b should not acquire the lock while owner-a holds it")
	}
	// owner-a renews its own lock without contention.
	if !ownerA.acquireLock(ctx) {
		t.Fatal("owner-a should be able to renew its own lock")
	}
}
