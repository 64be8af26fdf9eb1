package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb)
}

func TestEnqueueAndClaimFIFO(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "task-1"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if _, err := q.Enqueue(ctx, "task-2"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	msg, raw, err := q.Claim(ctx, time.Second)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if msg == nil || msg.TaskID != "task-1" {
		t.Fatalf("Claim() = %+v, want task-1 first (FIFO)", msg)
	}
	if err := q.Complete(ctx, raw); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	msg, _, err = q.Claim(ctx, time.Second)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if msg == nil || msg.TaskID != "task-2" {
		t.Fatalf("Claim() = %+v, want task-2", msg)
	}
}

func TestClaimTimesOutWhenEmpty(t *testing.T) {
	q := newTestQueue(t)
	msg, _, err := q.Claim(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if msg != nil {
		t.Fatalf("Claim() = %+v, want nil on empty queue", msg)
	}
}

func TestEnqueueAtIsHeldUntilPromoted(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	readyAt := time.Now().Add(50 * time.Millisecond)
	if _, err := q.EnqueueAt(ctx, "task-later", readyAt); err != nil {
		t.Fatalf("EnqueueAt() error = %v", err)
	}

	msg, _, err := q.Claim(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if msg != nil {
		t.Fatalf("Claim() = %+v before ready time, want nil", msg)
	}

	time.Sleep(60 * time.Millisecond)
	if n, err := q.PromoteDue(ctx); err != nil || n != 1 {
		t.Fatalf("PromoteDue() = %d, %v, want 1, nil", n, err)
	}

	msg, _, err = q.Claim(ctx, time.Second)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if msg == nil || msg.TaskID != "task-later" {
		t.Fatalf("Claim() = %+v, want task-later", msg)
	}
}

func TestEnqueueAtPastTimeIsImmediatelyReady(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	if _, err := q.EnqueueAt(ctx, "task-now", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("EnqueueAt() error = %v", err)
	}
	msg, _, err := q.Claim(ctx, time.Second)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if msg == nil || msg.TaskID != "task-now" {
		t.Fatalf("Claim() = %+v, want task-now immediately", msg)
	}
}

func TestCancelSkipsClaim(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	messageID, err := q.Enqueue(ctx, "task-cancelled")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Cancel(ctx, messageID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if _, err := q.Enqueue(ctx, "task-after"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	msg, _, err := q.Claim(ctx, time.Second)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if msg == nil || msg.TaskID != "task-after" {
		t.Fatalf("Claim() = %+v, want task-after (cancelled one skipped)", msg)
	}
}

func TestCancelDelayedRemovesFromZSet(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	messageID, err := q.EnqueueAt(ctx, "task-delayed", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("EnqueueAt() error = %v", err)
	}
	if err := q.Cancel(ctx, messageID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	depths := q.Depths(ctx)
	if depths["delayed"] != 0 {
		t.Errorf("depths[delayed] = %d, want 0 after cancel", depths["delayed"])
	}
}
