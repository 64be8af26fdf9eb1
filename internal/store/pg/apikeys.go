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

// ApiKeyStore implements store.ApiKeyStore backed by Postgres.
type ApiKeyStore struct {
	db *sql.DB
}

func NewApiKeyStore(db *sql.DB) *ApiKeyStore {
	return &ApiKeyStore{db: db}
}

const apiKeySelectCols = `id, user_id, name, prefix, secret_sha, active, expires_at, created_at, updated_at`

func (s *ApiKeyStore) Insert(ctx context.Context, k *store.ApiKey) error {
	if k.ID == uuid.Nil {
		k.ID = store.GenNewID()
	}
	now := nowUTC()
	k.CreatedAt = now
	k.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, user_id, name, prefix, secret_sha, active, expires_at, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		k.ID, k.UserID, k.Name, k.Prefix, k.SecretSHA, k.Active, nilTime(k.ExpiresAt), now, now)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Conflict("api key prefix collision")
	}
	return err
}

func (s *ApiKeyStore) GetByPrefix(ctx context.Context, prefix string) (*store.ApiKey, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+apiKeySelectCols+` FROM api_keys WHERE prefix = $1`, prefix)
	k, err := scanApiKeyRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("api key not found")
		}
		return nil, err
	}
	return k, nil
}

func (s *ApiKeyStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*store.ApiKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+apiKeySelectCols+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*store.ApiKey
	for rows.Next() {
		k, err := scanApiKeyRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	return result, rows.Err()
}

func (s *ApiKeyStore) DeleteByIDForUser(ctx context.Context, userID, keyID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, keyID, userID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("api key not found")
	}
	return nil
}

func scanApiKeyRow(row taskRowScanner) (*store.ApiKey, error) {
	var k store.ApiKey
	var expiresAt sql.NullTime
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.Prefix, &k.SecretSHA, &k.Active, &expiresAt, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		k.ExpiresAt = &expiresAt.Time
	}
	return &k, nil
}
