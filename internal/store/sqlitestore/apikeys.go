package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/store"
)

// ApiKeyStore implements store.ApiKeyStore backed by SQLite.
type ApiKeyStore struct{ db *sql.DB }

func NewApiKeyStore(db *sql.DB) *ApiKeyStore { return &ApiKeyStore{db: db} }

const apiKeyCols = `id, user_id, name, prefix, secret_sha, active, expires_at, created_at, updated_at`

func (s *ApiKeyStore) Insert(ctx context.Context, k *store.ApiKey) error {
	if k.ID == uuid.Nil {
		k.ID = store.GenNewID()
	}
	now := nowStamp()
	k.CreatedAt, k.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, user_id, name, prefix, secret_sha, active, expires_at, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		k.ID.String(), k.UserID.String(), k.Name, k.Prefix, k.SecretSHA, k.Active,
		nilTime(k.ExpiresAt), now.Format(rfc3339), now.Format(rfc3339))
	if err != nil && isUniqueViolation(err) {
		return apperr.Conflict("api key prefix collision")
	}
	return err
}

func (s *ApiKeyStore) GetByPrefix(ctx context.Context, prefix string) (*store.ApiKey, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+apiKeyCols+` FROM api_keys WHERE prefix = ?`, prefix)
	return scanApiKey(row)
}

func (s *ApiKeyStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*store.ApiKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+apiKeyCols+` FROM api_keys WHERE user_id = ? ORDER BY created_at DESC`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*store.ApiKey
	for rows.Next() {
		k, err := scanApiKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *ApiKeyStore) DeleteByIDForUser(ctx context.Context, userID, keyID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ? AND user_id = ?`,
		keyID.String(), userID.String())
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("api key not found")
	}
	return nil
}

func scanApiKey(row scanner) (*store.ApiKey, error) {
	var k store.ApiKey
	var id, userID, createdAt, updatedAt string
	var expiresAt sql.NullString
	err := row.Scan(&id, &userID, &k.Name, &k.Prefix, &k.SecretSHA, &k.Active, &expiresAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("api key not found")
		}
		return nil, err
	}
	k.ID = uuid.MustParse(id)
	k.UserID = uuid.MustParse(userID)
	k.CreatedAt, _ = parseStamp(createdAt)
	k.UpdatedAt, _ = parseStamp(updatedAt)
	if expiresAt.Valid {
		t, err := parseStamp(expiresAt.String)
		if err == nil {
			k.ExpiresAt = &t
		}
	}
	return &k, nil
}

func nilTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(rfc3339)
}
