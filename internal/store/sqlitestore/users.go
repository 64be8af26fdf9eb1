package sqlitestore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/store"
)

// UserStore implements store.UserStore backed by SQLite.
type UserStore struct{ db *sql.DB }

func NewUserStore(db *sql.DB) *UserStore { return &UserStore{db: db} }

const userCols = `id, name, email, password_hash, is_active, created_at, updated_at`

func (s *UserStore) Insert(ctx context.Context, u *store.User) error {
	if u.ID == uuid.Nil {
		u.ID = store.GenNewID()
	}
	now := nowStamp()
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?)`,
		u.ID.String(), u.Name, u.Email, u.PasswordHash, u.IsActive,
		now.Format(rfc3339), now.Format(rfc3339))
	if err != nil && isUniqueViolation(err) {
		return apperr.Conflict("name or email already registered")
	}
	return err
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id.String())
	return scanUser(row)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (s *UserStore) GetByName(ctx context.Context, name string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE name = ?`, name)
	return scanUser(row)
}

func (s *UserStore) Update(ctx context.Context, u *store.User) error {
	now := nowStamp()
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		u.Name, u.Email, u.IsActive, now.Format(rfc3339), u.ID.String())
	if err != nil && isUniqueViolation(err) {
		return apperr.Conflict("name or email already registered")
	}
	return err
}

func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	return err
}

func scanUser(row scanner) (*store.User, error) {
	var u store.User
	var id, createdAt, updatedAt string
	err := row.Scan(&id, &u.Name, &u.Email, &u.PasswordHash, &u.IsActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	u.ID = uuid.MustParse(id)
	u.CreatedAt, _ = parseStamp(createdAt)
	u.UpdatedAt, _ = parseStamp(updatedAt)
	return &u, nil
}
