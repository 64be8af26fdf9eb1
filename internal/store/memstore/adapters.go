package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/nlbx/reqsched/internal/store"
)

var (
	_ store.TaskStore   = (*Store)(nil)
	_ store.UserStore   = Users{}
	_ store.ApiKeyStore = ApiKeys{}
)

// Users adapts Store to store.UserStore. Store itself already satisfies
// store.TaskStore directly; Go forbids a single type exposing both an
// Insert(*RequestTask) and an Insert(*User), so the user- and key-scoped
// methods are distinctly named on Store and exposed here under the
// interface's expected names.
type Users struct{ S *Store }

func (u Users) Insert(ctx context.Context, rec *store.User) error { return u.S.InsertUser(ctx, rec) }
func (u Users) GetByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	return u.S.GetUserByID(ctx, id)
}
func (u Users) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	return u.S.GetUserByEmail(ctx, email)
}
func (u Users) GetByName(ctx context.Context, name string) (*store.User, error) {
	return u.S.GetUserByName(ctx, name)
}
func (u Users) Update(ctx context.Context, rec *store.User) error { return u.S.UpdateUser(ctx, rec) }
func (u Users) Delete(ctx context.Context, id uuid.UUID) error    { return u.S.DeleteUser(ctx, id) }

// ApiKeys adapts Store to store.ApiKeyStore.
type ApiKeys struct{ S *Store }

func (a ApiKeys) Insert(ctx context.Context, rec *store.ApiKey) error {
	return a.S.InsertKey(ctx, rec)
}
func (a ApiKeys) GetByPrefix(ctx context.Context, prefix string) (*store.ApiKey, error) {
	return a.S.GetKeyByPrefix(ctx, prefix)
}
func (a ApiKeys) ListByUser(ctx context.Context, userID uuid.UUID) ([]*store.ApiKey, error) {
	return a.S.ListKeysByUser(ctx, userID)
}
func (a ApiKeys) DeleteByIDForUser(ctx context.Context, userID, keyID uuid.UUID) error {
	return a.S.DeleteKeyByIDForUser(ctx, userID, keyID)
}
