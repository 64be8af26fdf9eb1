// Package queue implements the C2 Queue: a Redis-backed FIFO dispatch
// queue with a delayed tier for scheduled (start_time) tasks. Grounded on
// the Redis queue design used by the pack's distributed task-queue example
// (delayed ZSET promoted into the ready list by a Lua script), adapted to
// a single ready queue plus an explicit cancel set rather than priority
// tiers, since spec.md has no priority concept.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nlbx/reqsched/internal/apperr"
)

const (
	readyKey     = "reqsched:queue:ready"
	delayedKey   = "reqsched:queue:delayed"
	processingKey = "reqsched:queue:processing"
	cancelledKey = "reqsched:queue:cancelled"
)

// Message is one unit of dispatch work: a reference to a RequestTask.
// The queue transports only the task ID and its message_id handle; the
// dispatch actor re-reads the task row for current header/body/url, so a
// queued message can never go stale relative to an update that hasn't
// happened (spec.md has no task-mutation endpoint, but a future one would
// be safe under this design).
type Message struct {
	MessageID string    `json:"message_id"`
	TaskID    string    `json:"task_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is the C2 contract (spec.md §4.2): FIFO ready-time ordering,
// with enqueue_at for scheduled one-shot tasks and cancel for removing a
// not-yet-claimed message.
type Queue struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

func newMessageID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Enqueue pushes a message onto the ready queue immediately.
func (q *Queue) Enqueue(ctx context.Context, taskID string) (messageID string, err error) {
	msg := Message{MessageID: newMessageID(), TaskID: taskID, EnqueuedAt: time.Now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", apperr.Queue("marshal message", err)
	}
	if err := q.rdb.RPush(ctx, readyKey, data).Err(); err != nil {
		return "", apperr.Queue("enqueue", err)
	}
	return msg.MessageID, nil
}

// EnqueueAt schedules a message to become ready at readyTime. If readyTime
// is not after now, it is enqueued immediately instead.
func (q *Queue) EnqueueAt(ctx context.Context, taskID string, readyTime time.Time) (messageID string, err error) {
	if !readyTime.After(time.Now()) {
		return q.Enqueue(ctx, taskID)
	}
	msg := Message{MessageID: newMessageID(), TaskID: taskID, EnqueuedAt: time.Now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", apperr.Queue("marshal message", err)
	}
	score := float64(readyTime.UnixMilli())
	if err := q.rdb.ZAdd(ctx, delayedKey, redis.Z{Score: score, Member: data}).Err(); err != nil {
		return "", apperr.Queue("enqueue_at", err)
	}
	return msg.MessageID, nil
}

// Cancel removes a not-yet-claimed message, identified by messageID, from
// either tier. It is a best-effort scan: spec.md's queue is not indexed by
// message_id, so cancellation walks the small delayed ZSET and marks the
// ready-queue entry via a cancellation set checked at claim time.
func (q *Queue) Cancel(ctx context.Context, messageID string) error {
	if err := q.rdb.SAdd(ctx, cancelledKey, messageID).Err(); err != nil {
		return apperr.Queue("cancel", err)
	}
	members, err := q.rdb.ZRange(ctx, delayedKey, 0, -1).Result()
	if err != nil {
		return apperr.Queue("cancel scan delayed", err)
	}
	for _, m := range members {
		var msg Message
		if json.Unmarshal([]byte(m), &msg) == nil && msg.MessageID == messageID {
			q.rdb.ZRem(ctx, delayedKey, m)
			break
		}
	}
	return nil
}

// promoteScript atomically moves due members of the delayed ZSET to the
// ready list. Mirrors the pack's delayed-queue promotion Lua script.
var promoteScript = redis.NewScript(`
local delayed = KEYS[1]
local ready = KEYS[2]
local now = tonumber(ARGV[1])
local due = redis.call('ZRANGEBYSCORE', delayed, '-inf', now)
if #due > 0 then
	redis.call('ZREMRANGEBYSCORE', delayed, '-inf', now)
	for _, m in ipairs(due) do
		redis.call('RPUSH', ready, m)
	end
end
return #due
`)

// PromoteDue runs the delayed→ready promotion once. Callers loop this on a
// ticker (see cmd worker entrypoint); concurrent callers across worker
// processes are safe since the script is atomic.
func (q *Queue) PromoteDue(ctx context.Context) (int64, error) {
	now := time.Now().UnixMilli()
	res, err := promoteScript.Run(ctx, q.rdb, []string{delayedKey, readyKey}, now).Result()
	if err != nil {
		return 0, apperr.Queue("promote due", err)
	}
	n, _ := res.(int64)
	return n, nil
}

// claimPollInterval is how often Claim retries LMove while waiting for a
// ready message. Kept short since dispatch workers are meant to stay busy.
const claimPollInterval = 20 * time.Millisecond

// Claim waits up to timeout for a ready message, moving it into the
// processing list (LMOVE), and skips messages that were cancelled after
// being enqueued.
func (q *Queue) Claim(ctx context.Context, timeout time.Duration) (*Message, string, error) {
	deadline := time.Now().Add(timeout)
	for {
		raw, err := q.rdb.LMove(ctx, readyKey, processingKey, "LEFT", "RIGHT").Result()
		if err != nil && err != redis.Nil {
			return nil, "", apperr.Queue("claim", err)
		}
		if err == nil {
			var msg Message
			if err := json.Unmarshal([]byte(raw), &msg); err != nil {
				return nil, "", apperr.Queue("unmarshal claimed message", err)
			}
			cancelled, cerr := q.rdb.SIsMember(ctx, cancelledKey, msg.MessageID).Result()
			if cerr == nil && cancelled {
				q.rdb.LRem(ctx, processingKey, 1, raw)
				q.rdb.SRem(ctx, cancelledKey, msg.MessageID)
				continue
			}
			return &msg, raw, nil
		}
		if !time.Now().Before(deadline) {
			return nil, "", nil
		}
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(claimPollInterval):
		}
	}
}

// Complete removes a claimed message from the processing list once the
// dispatch actor has finished handling it (success or failure — spec.md's
// queue has no retry of its own; dispatch outcomes are terminal).
func (q *Queue) Complete(ctx context.Context, raw string) error {
	if err := q.rdb.LRem(ctx, processingKey, 1, raw).Err(); err != nil {
		return apperr.Queue("complete", err)
	}
	return nil
}

// Depths reports queue sizes for observability.
func (q *Queue) Depths(ctx context.Context) map[string]int64 {
	depths := map[string]int64{}
	if n, err := q.rdb.LLen(ctx, readyKey).Result(); err == nil {
		depths["ready"] = n
	}
	if n, err := q.rdb.LLen(ctx, processingKey).Result(); err == nil {
		depths["processing"] = n
	}
	if n, err := q.rdb.ZCard(ctx, delayedKey).Result(); err == nil {
		depths["delayed"] = n
	}
	return depths
}
