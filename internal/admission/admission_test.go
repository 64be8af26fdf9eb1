package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/store"
	"github.com/nlbx/reqsched/internal/store/memstore"
)

// fakeQueue is an in-process stand-in for *queue.Queue used to exercise
// admission without Redis (spec.md §9's interface-based collaborator
// design).
type fakeQueue struct {
	enqueued  []string
	cancelled []string
	failNext  bool
}

func (f *fakeQueue) Enqueue(ctx context.Context, taskID string) (string, error) {
	if f.failNext {
		return "", errors.New("queue unavailable")
	}
	id := "msg-" + taskID
	f.enqueued = append(f.enqueued, taskID)
	return id, nil
}

func (f *fakeQueue) EnqueueAt(ctx context.Context, taskID string, readyTime time.Time) (string, error) {
	return f.Enqueue(ctx, taskID)
}

func (f *fakeQueue) Cancel(ctx context.Context, messageID string) error {
	f.cancelled = append(f.cancelled, messageID)
	return nil
}

// fakeCron is an in-process stand-in for *cron.Registry.
type fakeCron struct {
	registered map[string]string
	failNext   bool
}

func newFakeCron() *fakeCron { return &fakeCron{registered: map[string]string{}} }

func (f *fakeCron) Register(ctx context.Context, taskID, expr string) error {
	if f.failNext {
		return errors.New("bad cron expression")
	}
	f.registered[taskID] = expr
	return nil
}

func (f *fakeCron) Remove(ctx context.Context, taskID string) error {
	delete(f.registered, taskID)
	return nil
}

func newService() (*Service, *memstore.Store, *fakeQueue, *fakeCron) {
	ms := memstore.New()
	q := &fakeQueue{}
	c := newFakeCron()
	return New(ms, q, c), ms, q, c
}

func TestCreateOneShotSetsMessageIDNotJobID(t *testing.T) {
	svc, _, _, _ := newService()
	userID := uuid.Must(uuid.NewV7())

	task, err := svc.Create(context.Background(), userID, TaskInput{
		Name:       "t1",
		RequestURL: "http://example.test/ok",
		Method:     "post",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.MessageID == "" {
		t.Error("expected message_id to be set")
	}
	if task.JobID != "" {
		t.Error("expected job_id to remain empty for a one-shot task")
	}
	if task.Method != "POST" {
		t.Errorf("method not upper-cased: %q", task.Method)
	}
}

func TestCreateCronSetsJobIDNotMessageID(t *testing.T) {
	svc, _, _, _ := newService()
	userID := uuid.Must(uuid.NewV7())

	task, err := svc.Create(context.Background(), userID, TaskInput{
		Name:       "t2",
		RequestURL: "http://example.test/ok",
		Method:     "GET",
		Cron:       "* * * * *",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.JobID == "" {
		t.Error("expected job_id to be set for a cron task")
	}
	if task.MessageID != "" {
		t.Error("expected message_id to remain empty for a cron task")
	}
	if task.CronCount != 0 {
		t.Errorf("cron_count = %d, want 0 at admission", task.CronCount)
	}
}

func TestCreateRejectsBadMethod(t *testing.T) {
	svc, _, _, _ := newService()
	_, err := svc.Create(context.Background(), uuid.Must(uuid.NewV7()), TaskInput{
		RequestURL: "http://example.test/ok",
		Method:     "INVALID",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected Validation, got %v", err)
	}
}

func TestCreateRejectsBadURLScheme(t *testing.T) {
	svc, _, _, _ := newService()
	_, err := svc.Create(context.Background(), uuid.Must(uuid.NewV7()), TaskInput{
		RequestURL: "ftp://example.test/ok",
		Method:     "GET",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected Validation, got %v", err)
	}
}

func TestCreateRollsBackRowOnBadCron(t *testing.T) {
	svc, ms, _, fc := newService()
	fc.failNext = true
	userID := uuid.Must(uuid.NewV7())

	// Validation passes (well-formed syntax) but the registry itself
	// rejects it at Register time — spec.md §4.6 step 3's "if register
	// fails, delete the row and surface a 400-class error."
	_, err := svc.Create(context.Background(), userID, TaskInput{
		RequestURL: "http://example.test/ok",
		Method:     "GET",
		Cron:       "* * * * *",
	})
	if !apperr.Is(err, apperr.KindBadInput) {
		t.Fatalf("expected BadInput, got %v", err)
	}

	tasks, err := ms.FilterByUser(context.Background(), userID, store.TaskFilter{})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected no orphaned row, found %d", len(tasks))
	}
}

func TestCreateBulkPartialSuccess(t *testing.T) {
	svc, _, _, _ := newService()
	userID := uuid.Must(uuid.NewV7())

	results := svc.CreateBulk(context.Background(), userID, []TaskInput{
		{RequestURL: "http://example.test/1", Method: "GET"},
		{RequestURL: "http://example.test/2", Method: "INVALID"},
		{RequestURL: "http://example.test/3", Method: "GET"},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("expected elements 0 and 2 to succeed: %v, %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Error("expected element 1 to fail")
	}
}

func TestGetIsOwnerScopedNotFoundNotForbidden(t *testing.T) {
	svc, _, _, _ := newService()
	owner := uuid.Must(uuid.NewV7())
	other := uuid.Must(uuid.NewV7())

	task, err := svc.Create(context.Background(), owner, TaskInput{
		RequestURL: "http://example.test/ok", Method: "GET",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Get(context.Background(), other, task.ID)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound for cross-owner read, got %v", err)
	}
}

func TestDeleteCancelsQueueAndRemovesCron(t *testing.T) {
	svc, _, q, fc := newService()
	userID := uuid.Must(uuid.NewV7())

	task, err := svc.Create(context.Background(), userID, TaskInput{
		RequestURL: "http://example.test/ok", Method: "GET",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), userID, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(q.cancelled) != 1 || q.cancelled[0] != task.MessageID {
		t.Errorf("expected queue.Cancel(%q), got %v", task.MessageID, q.cancelled)
	}

	_, err = svc.Get(context.Background(), userID, task.ID)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected task gone after delete, got %v", err)
	}

	cronTask, err := svc.Create(context.Background(), userID, TaskInput{
		RequestURL: "http://example.test/ok", Method: "GET", Cron: "* * * * *",
	})
	if err != nil {
		t.Fatalf("create cron: %v", err)
	}
	if err := svc.Delete(context.Background(), userID, cronTask.ID); err != nil {
		t.Fatalf("delete cron: %v", err)
	}
	if _, ok := fc.registered[cronTask.ID.String()]; ok {
		t.Errorf("expected cron.Remove(%q) to unregister the job", cronTask.ID)
	}
}

func TestDeleteIsIdempotentSecondCallNotFound(t *testing.T) {
	svc, _, _, _ := newService()
	userID := uuid.Must(uuid.NewV7())
	task, _ := svc.Create(context.Background(), userID, TaskInput{
		RequestURL: "http://example.test/ok", Method: "GET",
	})

	if err := svc.Delete(context.Background(), userID, task.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	err := svc.Delete(context.Background(), userID, task.ID)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound on second delete, got %v", err)
	}
}

func TestDashboardStatsOnlyCountsOwner(t *testing.T) {
	svc, _, _, _ := newService()
	userID := uuid.Must(uuid.NewV7())
	other := uuid.Must(uuid.NewV7())

	svc.Create(context.Background(), userID, TaskInput{RequestURL: "http://example.test/a", Method: "GET"})
	svc.Create(context.Background(), userID, TaskInput{RequestURL: "http://example.test/b", Method: "GET"})
	svc.Create(context.Background(), other, TaskInput{RequestURL: "http://example.test/c", Method: "GET"})

	total, counts, err := svc.DashboardStats(context.Background(), userID)
	if err != nil {
		t.Fatalf("dashboard stats: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if counts[store.StatusPending] != 2 {
		t.Errorf("pending count = %d, want 2", counts[store.StatusPending])
	}
}
