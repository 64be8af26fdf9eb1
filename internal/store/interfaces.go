package store

import (
	"context"

	"github.com/google/uuid"
)

// TaskFilter narrows FilterByUser results (spec.md §4.1 filter_by_user).
type TaskFilter struct {
	Status TaskStatus // zero value means "any status"
	Limit  int
	Offset int
}

// TaskStore is the C1 Task Store contract (spec.md §4.1). GetByIDForUser,
// FilterByUser, DeleteByIDForUser and DashboardStats are scoped to the
// owning user; Insert stamps UserID from its argument; GetByID,
// UpdateHandles, Transition and IncrementCronCount are keyed by task id
// alone. Implementations: pg (managed), sqlitestore (standalone),
// memstore (tests).
type TaskStore interface {
	Insert(ctx context.Context, t *RequestTask) error
	GetByIDForUser(ctx context.Context, userID, taskID uuid.UUID) (*RequestTask, error)

	// GetByID looks up a task by id alone, with no owner scoping. Used
	// only by the dispatch worker, which acts on behalf of the system
	// rather than a specific caller (spec.md §4.5 step 1).
	GetByID(ctx context.Context, taskID uuid.UUID) (*RequestTask, error)

	FilterByUser(ctx context.Context, userID uuid.UUID, f TaskFilter) ([]*RequestTask, error)

	// UpdateHandles persists MessageID and/or JobID, the queue/registry
	// handles assigned at admission time.
	UpdateHandles(ctx context.Context, taskID uuid.UUID, messageID, jobID string) error

	// Transition moves a task to a new status, optionally recording an
	// error message (spec.md §4.5 state machine).
	Transition(ctx context.Context, taskID uuid.UUID, status TaskStatus, errMsg string) error

	// IncrementCronCount bumps cron_count by one; called once per
	// successful cron-triggered enqueue (spec.md §4.3).
	IncrementCronCount(ctx context.Context, taskID uuid.UUID) error

	DeleteByIDForUser(ctx context.Context, userID, taskID uuid.UUID) error

	// DashboardStats returns per-status counts scoped to userID.
	DashboardStats(ctx context.Context, userID uuid.UUID) (StatusCounts, error)
}

// UserStore manages account records and credentials.
type UserStore interface {
	Insert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByName(ctx context.Context, name string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ApiKeyStore manages issued API keys.
type ApiKeyStore interface {
	Insert(ctx context.Context, k *ApiKey) error
	GetByPrefix(ctx context.Context, prefix string) (*ApiKey, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*ApiKey, error)
	DeleteByIDForUser(ctx context.Context, userID, keyID uuid.UUID) error
}
