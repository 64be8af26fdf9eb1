// Package memstore is an in-process implementation of store.TaskStore,
// store.UserStore, and store.ApiKeyStore used by unit tests that exercise
// the admission layer without a real database.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/store"
)

// Store holds all three record kinds behind one mutex, so every call is
// serialized.
type Store struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*store.RequestTask
	users   map[uuid.UUID]*store.User
	byEmail map[string]uuid.UUID
	byName  map[string]uuid.UUID
	keys    map[uuid.UUID]*store.ApiKey
}

func New() *Store {
	return &Store{
		tasks:   map[uuid.UUID]*store.RequestTask{},
		users:   map[uuid.UUID]*store.User{},
		byEmail: map[string]uuid.UUID{},
		byName:  map[string]uuid.UUID{},
		keys:    map[uuid.UUID]*store.ApiKey{},
	}
}

func clone[T any](v T) *T {
	c := v
	return &c
}

// --- TaskStore ---

func (s *Store) Insert(ctx context.Context, t *store.RequestTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = store.GenNewID()
	}
	now := nowUTC()
	t.CreatedAt, t.UpdatedAt = now, now
	s.tasks[t.ID] = clone(*t)
	return nil
}

func (s *Store) GetByIDForUser(ctx context.Context, userID, taskID uuid.UUID) (*store.RequestTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, apperr.NotFound("task not found")
	}
	return clone(*t), nil
}

func (s *Store) GetByID(ctx context.Context, taskID uuid.UUID) (*store.RequestTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, apperr.NotFound("task not found")
	}
	return clone(*t), nil
}

func (s *Store) FilterByUser(ctx context.Context, userID uuid.UUID, f store.TaskFilter) ([]*store.RequestTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*store.RequestTask
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		result = append(result, clone(*t))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if f.Offset > 0 && f.Offset < len(result) {
		result = result[f.Offset:]
	} else if f.Offset >= len(result) {
		result = nil
	}
	if f.Limit > 0 && f.Limit < len(result) {
		result = result[:f.Limit]
	}
	return result, nil
}

func (s *Store) UpdateHandles(ctx context.Context, taskID uuid.UUID, messageID, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return apperr.NotFound("task not found")
	}
	if messageID != "" {
		t.MessageID = messageID
	}
	if jobID != "" {
		t.JobID = jobID
	}
	t.UpdatedAt = nowUTC()
	return nil
}

func (s *Store) Transition(ctx context.Context, taskID uuid.UUID, status store.TaskStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return apperr.NotFound("task not found")
	}
	t.Status = status
	if errMsg != "" {
		t.ErrorMessage = errMsg
	}
	t.UpdatedAt = nowUTC()
	return nil
}

func (s *Store) IncrementCronCount(ctx context.Context, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return apperr.NotFound("task not found")
	}
	t.CronCount++
	t.UpdatedAt = nowUTC()
	return nil
}

func (s *Store) DeleteByIDForUser(ctx context.Context, userID, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return apperr.NotFound("task not found")
	}
	delete(s.tasks, taskID)
	return nil
}

func (s *Store) DashboardStats(ctx context.Context, userID uuid.UUID) (store.StatusCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := store.StatusCounts{}
	for _, t := range s.tasks {
		if t.UserID == userID {
			counts[t.Status]++
		}
	}
	return counts, nil
}

// --- UserStore ---

func (s *Store) InsertUser(ctx context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[u.Email]; exists {
		return apperr.Conflict("email already registered")
	}
	if _, exists := s.byName[u.Name]; exists {
		return apperr.Conflict("name already registered")
	}
	if u.ID == uuid.Nil {
		u.ID = store.GenNewID()
	}
	now := nowUTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = clone(*u)
	s.byEmail[u.Email] = u.ID
	s.byName[u.Name] = u.ID
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return clone(*u), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return clone(*s.users[id]), nil
}

func (s *Store) GetUserByName(ctx context.Context, name string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[name]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return clone(*s.users[id]), nil
}

func (s *Store) UpdateUser(ctx context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.users[u.ID]
	if !ok {
		return apperr.NotFound("user not found")
	}
	delete(s.byEmail, old.Email)
	delete(s.byName, old.Name)
	u.UpdatedAt = nowUTC()
	s.users[u.ID] = clone(*u)
	s.byEmail[u.Email] = u.ID
	s.byName[u.Name] = u.ID
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	delete(s.byEmail, u.Email)
	delete(s.byName, u.Name)
	delete(s.users, id)
	return nil
}

// --- ApiKeyStore ---

func (s *Store) InsertKey(ctx context.Context, k *store.ApiKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k.ID == uuid.Nil {
		k.ID = store.GenNewID()
	}
	now := nowUTC()
	k.CreatedAt, k.UpdatedAt = now, now
	s.keys[k.ID] = clone(*k)
	return nil
}

func (s *Store) GetKeyByPrefix(ctx context.Context, prefix string) (*store.ApiKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.Prefix == prefix {
			return clone(*k), nil
		}
	}
	return nil, apperr.NotFound("api key not found")
}

func (s *Store) ListKeysByUser(ctx context.Context, userID uuid.UUID) ([]*store.ApiKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*store.ApiKey
	for _, k := range s.keys {
		if k.UserID == userID {
			result = append(result, clone(*k))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteKeyByIDForUser(ctx context.Context, userID, keyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[keyID]
	if !ok || k.UserID != userID {
		return apperr.NotFound("api key not found")
	}
	delete(s.keys, keyID)
	return nil
}
