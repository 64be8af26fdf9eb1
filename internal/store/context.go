package store

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// UserIDKey is the context key carrying the authenticated caller's user ID,
// set by the HTTP auth middleware and read by the admission layer so every
// store call is scoped to its owner (spec.md §4.1's *_for_user contracts).
const UserIDKey contextKey = "reqsched_user_id"

// WithUserID returns a new context carrying the authenticated user's ID.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// UserIDFromContext extracts the authenticated user ID from context.
// Returns uuid.Nil if not set.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
