// Package admission implements the C6 Admission Layer: the core's
// contract with the (out-of-scope) external API surface for creating,
// reading, and deleting RequestTasks (spec.md §4.6). Service depends on
// store.TaskStore, *queue.Queue, and *cron.Registry only through the
// narrow methods it calls — tests substitute memstore plus an
// in-process fake queue/registry, never a concrete Postgres/Redis type.
package admission

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/store"
)

// Queue is the subset of *queue.Queue the admission layer needs.
type Queue interface {
	Enqueue(ctx context.Context, taskID string) (string, error)
	EnqueueAt(ctx context.Context, taskID string, readyTime time.Time) (string, error)
	Cancel(ctx context.Context, messageID string) error
}

// CronRegistry is the subset of *cron.Registry the admission layer needs.
type CronRegistry interface {
	Register(ctx context.Context, taskID, expr string) error
	Remove(ctx context.Context, taskID string) error
}

// Service is the C6 Admission Layer.
type Service struct {
	Tasks store.TaskStore
	Queue Queue
	Cron  CronRegistry
}

func New(tasks store.TaskStore, q Queue, c CronRegistry) *Service {
	return &Service{Tasks: tasks, Queue: q, Cron: c}
}

// TaskInput is the validated content of a RequestTaskCreate (spec.md §6).
type TaskInput struct {
	Name          string
	RequestURL    string
	Method        string
	Header        []byte // JSON object
	Body          []byte // JSON value
	StartTime     *int64 // unix seconds
	Cron          string
	CallbackURL   string
	CallbackToken string
}

// Validate checks TaskInput against spec.md §3's persistence invariants
// (method allow-list, URL scheme, cron syntax), independent of any store
// call. Admission.Create calls this before inserting a row, so validation
// failures never commit state (spec.md §7 "Validation errors never
// commit state").
func (in TaskInput) Validate() error {
	if err := store.ValidateMethod(in.Method); err != nil {
		return err
	}
	if err := store.ValidateURL(in.RequestURL); err != nil {
		return err
	}
	if in.CallbackURL != "" {
		if err := store.ValidateURL(in.CallbackURL); err != nil {
			return err
		}
	}
	if in.Cron != "" {
		if err := store.ValidateCron(in.Cron); err != nil {
			return err
		}
	}
	return nil
}

// Create runs the single-task admission procedure (spec.md §4.6 Create):
// validate, insert PENDING, compute dispatch (cron register / enqueue_at /
// enqueue), persist the returned handle. On any post-insert failure the
// row is deleted before the error is surfaced (spec.md §7 "Admission
// errors after partial commit MUST attempt compensation").
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in TaskInput) (*store.RequestTask, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	task := &store.RequestTask{
		UserID:        userID,
		Name:          in.Name,
		RequestURL:    in.RequestURL,
		Method:        normalizeMethod(in.Method),
		Header:        nonEmptyJSON(in.Header),
		Body:          nonEmptyJSON(in.Body),
		StartTime:     in.StartTime,
		Cron:          in.Cron,
		CallbackURL:   in.CallbackURL,
		CallbackToken: in.CallbackToken,
		Status:        store.StatusPending,
	}
	if err := s.Tasks.Insert(ctx, task); err != nil {
		return nil, err
	}

	if err := s.dispatchOnCreate(ctx, task); err != nil {
		// Compensate: the row was inserted but never got a valid
		// schedule handle, so it is rolled back rather than left as an
		// orphan PENDING row with neither message_id nor job_id
		// (spec.md §3 invariant 1's "rollback" branch).
		if delErr := s.Tasks.DeleteByIDForUser(ctx, userID, task.ID); delErr != nil {
			slog.Error("admission: rollback delete failed after dispatch error",
				"task_id", task.ID, "error", delErr)
		}
		return nil, err
	}
	return task, nil
}

// dispatchOnCreate implements spec.md §4.6 step 3-4: register cron XOR
// enqueue (immediate or deferred), then persist the returned handle.
func (s *Service) dispatchOnCreate(ctx context.Context, task *store.RequestTask) error {
	if task.IsCron() {
		if err := s.Cron.Register(ctx, task.ID.String(), task.Cron); err != nil {
			return apperr.BadInput("invalid cron expression: " + err.Error())
		}
		return s.Tasks.UpdateHandles(ctx, task.ID, "", task.ID.String())
	}

	now := time.Now()
	if task.StartTime != nil && time.Unix(*task.StartTime, 0).After(now) {
		msgID, err := s.Queue.EnqueueAt(ctx, task.ID.String(), time.Unix(*task.StartTime, 0))
		if err != nil {
			return err
		}
		return s.Tasks.UpdateHandles(ctx, task.ID, msgID, "")
	}

	msgID, err := s.Queue.Enqueue(ctx, task.ID.String())
	if err != nil {
		return err
	}
	return s.Tasks.UpdateHandles(ctx, task.ID, msgID, "")
}

// BulkResult is one element's outcome from CreateBulk.
type BulkResult struct {
	TaskID uuid.UUID
	Err    error
}

// CreateBulk applies Create once per element (spec.md §4.6 Create bulk):
// partial success is allowed, and an element-level failure does not roll
// back earlier elements — there is deliberately no enclosing transaction.
func (s *Service) CreateBulk(ctx context.Context, userID uuid.UUID, inputs []TaskInput) []BulkResult {
	results := make([]BulkResult, len(inputs))
	for i, in := range inputs {
		task, err := s.Create(ctx, userID, in)
		if err != nil {
			results[i] = BulkResult{Err: err}
			continue
		}
		results[i] = BulkResult{TaskID: task.ID}
	}
	return results
}

// Get scopes a read by owner; absence (including tasks owned by someone
// else) yields apperr.NotFound, never a distinct "forbidden" kind — the
// admin API always renders this as 404 (spec.md §8 "never 403").
func (s *Service) Get(ctx context.Context, userID, taskID uuid.UUID) (*store.RequestTask, error) {
	return s.Tasks.GetByIDForUser(ctx, userID, taskID)
}

// List returns every task owned by userID, most recent first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, f store.TaskFilter) ([]*store.RequestTask, error) {
	return s.Tasks.FilterByUser(ctx, userID, f)
}

// DashboardStats summarizes status counts for the owner (spec.md §6
// GET /api/v1/stats/dashboard).
func (s *Service) DashboardStats(ctx context.Context, userID uuid.UUID) (total int64, counts store.StatusCounts, err error) {
	counts, err = s.Tasks.DashboardStats(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	for _, n := range counts {
		total += n
	}
	return total, counts, nil
}

// Delete runs spec.md §4.6 Delete: locate by (id, user_id), best-effort
// revoke the queue unit and/or cron registration, then remove the row.
// The three side effects do not need to be atomic with the row deletion
// (spec.md §4.6 final paragraph) — a stale unit that fires after deletion
// simply discards itself in dispatch.Execute step 1.
func (s *Service) Delete(ctx context.Context, userID, taskID uuid.UUID) error {
	task, err := s.Tasks.GetByIDForUser(ctx, userID, taskID)
	if err != nil {
		return err
	}

	if task.MessageID != "" {
		if err := s.Queue.Cancel(ctx, task.MessageID); err != nil {
			slog.Warn("admission: best-effort queue cancel failed", "task_id", taskID, "error", err)
		}
	}
	if task.JobID != "" {
		if err := s.Cron.Remove(ctx, task.JobID); err != nil {
			slog.Warn("admission: best-effort cron remove failed", "task_id", taskID, "error", err)
		}
	}

	return s.Tasks.DeleteByIDForUser(ctx, userID, taskID)
}

func normalizeMethod(m string) string {
	up := make([]byte, len(m))
	for i := 0; i < len(m); i++ {
		c := m[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		up[i] = c
	}
	return string(up)
}

func nonEmptyJSON(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}
