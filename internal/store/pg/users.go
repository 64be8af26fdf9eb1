package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/store"
)

// UserStore implements store.UserStore backed by Postgres.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userSelectCols = `id, name, email, password_hash, is_active, created_at, updated_at`

func (s *UserStore) Insert(ctx context.Context, u *store.User) error {
	if u.ID == uuid.Nil {
		u.ID = store.GenNewID()
	}
	now := nowUTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, is_active, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.IsActive, now, now)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Conflict("email already registered")
	}
	return err
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userSelectCols+` FROM users WHERE id = $1`, id)
	u, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userSelectCols+` FROM users WHERE email = $1`, email)
	u, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return u, nil
}

func (s *UserStore) GetByName(ctx context.Context, name string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userSelectCols+` FROM users WHERE name = $1`, name)
	u, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return u, nil
}

func (s *UserStore) Update(ctx context.Context, u *store.User) error {
	return execMapUpdate(ctx, s.db, "users", u.ID, map[string]any{
		"name":      u.Name,
		"email":     u.Email,
		"is_active": u.IsActive,
	})
}

func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func scanUserRow(row taskRowScanner) (*store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
