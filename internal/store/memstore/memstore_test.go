package memstore

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/store"
)

func TestInsertAndGetByIDForUser(t *testing.T) {
	s := New()
	ctx := context.Background()
	userID := store.GenNewID()
	task := &store.RequestTask{
		UserID:     userID,
		Name:       "ping",
		RequestURL: "https://example.com/ping",
		Method:     "GET",
		Status:     store.StatusPending,
	}
	if err := s.Insert(ctx, task); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if task.ID == uuid.Nil {
		t.Fatal("Insert() did not assign an ID")
	}

	got, err := s.GetByIDForUser(ctx, userID, task.ID)
	if err != nil {
		t.Fatalf("GetByIDForUser() error = %v", err)
	}
	if got.Name != "ping" {
		t.Errorf("Name = %q, want ping", got.Name)
	}

	otherUser := store.GenNewID()
	if _, err := s.GetByIDForUser(ctx, otherUser, task.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("GetByIDForUser() for wrong owner error = %v, want NotFound", err)
	}
}

func TestTransitionAndIncrementCronCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	task := &store.RequestTask{UserID: store.GenNewID(), Status: store.StatusPending}
	_ = s.Insert(ctx, task)

	if err := s.Transition(ctx, task.ID, store.StatusRunning, ""); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	got, _ := s.GetByIDForUser(ctx, task.UserID, task.ID)
	if got.Status != store.StatusRunning {
		t.Errorf("Status = %v, want RUNNING", got.Status)
	}

	if err := s.Transition(ctx, task.ID, store.StatusFailed, "boom"); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	got, _ = s.GetByIDForUser(ctx, task.UserID, task.ID)
	if got.ErrorMessage != "boom" {
		t.Errorf("ErrorMessage = %q, want boom", got.ErrorMessage)
	}

	for i := 0; i < 3; i++ {
		if err := s.IncrementCronCount(ctx, task.ID); err != nil {
			t.Fatalf("IncrementCronCount() error = %v", err)
		}
	}
	got, _ = s.GetByIDForUser(ctx, task.UserID, task.ID)
	if got.CronCount != 3 {
		t.Errorf("CronCount = %d, want 3", got.CronCount)
	}
}

func TestFilterByUserRespectsStatusAndPaging(t *testing.T) {
	s := New()
	ctx := context.Background()
	userID := store.GenNewID()
	for i := 0; i < 5; i++ {
		status := store.StatusPending
		if i%2 == 0 {
			status = store.StatusCompleted
		}
		_ = s.Insert(ctx, &store.RequestTask{UserID: userID, Status: status})
	}
	_ = s.Insert(ctx, &store.RequestTask{UserID: store.GenNewID(), Status: store.StatusPending})

	completed, err := s.FilterByUser(ctx, userID, store.TaskFilter{Status: store.StatusCompleted})
	if err != nil {
		t.Fatalf("FilterByUser() error = %v", err)
	}
	if len(completed) != 3 {
		t.Errorf("len(completed) = %d, want 3", len(completed))
	}

	limited, err := s.FilterByUser(ctx, userID, store.TaskFilter{Limit: 2})
	if err != nil {
		t.Fatalf("FilterByUser() error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}
}

func TestDeleteByIDForUser(t *testing.T) {
	s := New()
	ctx := context.Background()
	task := &store.RequestTask{UserID: store.GenNewID()}
	_ = s.Insert(ctx, task)

	if err := s.DeleteByIDForUser(ctx, store.GenNewID(), task.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("delete with wrong owner error = %v, want NotFound", err)
	}
	if err := s.DeleteByIDForUser(ctx, task.UserID, task.ID); err != nil {
		t.Fatalf("DeleteByIDForUser() error = %v", err)
	}
	if _, err := s.GetByIDForUser(ctx, task.UserID, task.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("get after delete error = %v, want NotFound", err)
	}
}

func TestUserAndApiKeyAdapters(t *testing.T) {
	s := New()
	ctx := context.Background()
	users := Users{S: s}
	keys := ApiKeys{S: s}

	u := &store.User{Name: "Ada", Email: "ada@example.com", IsActive: true}
	if err := users.Insert(ctx, u); err != nil {
		t.Fatalf("users.Insert() error = %v", err)
	}
	if err := users.Insert(ctx, &store.User{Email: "ada@example.com"}); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("duplicate email error = %v, want Conflict", err)
	}

	k := &store.ApiKey{UserID: u.ID, Name: "default", Prefix: "abcd1234", Active: true}
	if err := keys.Insert(ctx, k); err != nil {
		t.Fatalf("keys.Insert() error = %v", err)
	}
	got, err := keys.GetByPrefix(ctx, "abcd1234")
	if err != nil {
		t.Fatalf("GetByPrefix() error = %v", err)
	}
	if got.UserID != u.ID {
		t.Errorf("UserID = %v, want %v", got.UserID, u.ID)
	}

	if err := keys.DeleteByIDForUser(ctx, u.ID, k.ID); err != nil {
		t.Fatalf("DeleteByIDForUser() error = %v", err)
	}
	if _, err := keys.GetByPrefix(ctx, "abcd1234"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("get after delete error = %v, want NotFound", err)
	}
}
