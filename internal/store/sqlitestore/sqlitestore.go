// Package sqlitestore is the standalone-mode backend for C1 Task Store:
// a single SQLite file (or ":memory:" in tests) opened through
// modernc.org/sqlite, the teacher's own embedded-database dependency.
// Unlike the managed Postgres backend (internal/store/pg), schema setup
// is inline DDL run once at Open rather than golang-migrate, since a
// single-file standalone deployment has no separate migration step to
// run ahead of the binary.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/crypto"
	"github.com/nlbx/reqsched/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	prefix TEXT NOT NULL UNIQUE,
	secret_sha TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	expires_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS request_tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	request_url TEXT NOT NULL,
	method TEXT NOT NULL,
	header TEXT NOT NULL DEFAULT '{}',
	body TEXT NOT NULL DEFAULT '{}',
	start_time INTEGER,
	cron TEXT,
	callback_url TEXT,
	callback_token TEXT,
	message_id TEXT,
	job_id TEXT,
	cron_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'PENDING',
	error_message TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_tasks_user ON request_tasks(user_id);
`

// Open opens (creating if necessary) the SQLite file at path and applies
// the schema DDL. path may be ":memory:" for tests.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; one conn avoids SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

const rfc3339 = time.RFC3339Nano

// TaskStore implements store.TaskStore over SQLite. enc is nil when no
// encryption key is configured, in which case CallbackToken round-trips
// as plain text (store.StoreConfig.EncryptionKey).
type TaskStore struct {
	db  *sql.DB
	enc *crypto.Cipher
}

func NewTaskStore(db *sql.DB, enc *crypto.Cipher) *TaskStore { return &TaskStore{db: db, enc: enc} }

func (s *TaskStore) Insert(ctx context.Context, t *store.RequestTask) error {
	if t.ID == uuid.Nil {
		t.ID = store.GenNewID()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	header, body := string(t.Header), string(t.Body)
	if header == "" {
		header = "{}"
	}
	if body == "" {
		body = "{}"
	}
	encToken, err := s.enc.EncryptCallbackToken(t.CallbackToken)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO request_tasks (id, user_id, name, request_url, method, header, body,
		 start_time, cron, callback_url, callback_token, message_id, job_id,
		 cron_count, status, error_message, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID.String(), t.UserID.String(), t.Name, t.RequestURL, t.Method, header, body,
		t.StartTime, nilStr(t.Cron), nilStr(t.CallbackURL), nilStr(encToken),
		nilStr(t.MessageID), nilStr(t.JobID), t.CronCount, t.Status, nilStr(t.ErrorMessage),
		now.Format(rfc3339), now.Format(rfc3339))
	if err != nil && isUniqueViolation(err) {
		return apperr.Conflict("task already exists")
	}
	return err
}

const taskCols = `id, user_id, name, request_url, method, header, body, start_time, cron,
	callback_url, callback_token, message_id, job_id, cron_count, status, error_message,
	created_at, updated_at`

func (s *TaskStore) GetByIDForUser(ctx context.Context, userID, taskID uuid.UUID) (*store.RequestTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM request_tasks WHERE id = ? AND user_id = ?`,
		taskID.String(), userID.String())
	t, err := s.scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("task not found")
	}
	return t, err
}

func (s *TaskStore) GetByID(ctx context.Context, taskID uuid.UUID) (*store.RequestTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM request_tasks WHERE id = ?`, taskID.String())
	t, err := s.scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("task not found")
	}
	return t, err
}

func (s *TaskStore) FilterByUser(ctx context.Context, userID uuid.UUID, f store.TaskFilter) ([]*store.RequestTask, error) {
	q := `SELECT ` + taskCols + ` FROM request_tasks WHERE user_id = ?`
	args := []any{userID.String()}
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, f.Status)
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		q += ` OFFSET ?`
		args = append(args, f.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*store.RequestTask
	for rows.Next() {
		t, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *TaskStore) UpdateHandles(ctx context.Context, taskID uuid.UUID, messageID, jobID string) error {
	now := time.Now().UTC().Format(rfc3339)
	if messageID != "" {
		if _, err := s.db.ExecContext(ctx, `UPDATE request_tasks SET message_id = ?, updated_at = ? WHERE id = ?`, messageID, now, taskID.String()); err != nil {
			return err
		}
	}
	if jobID != "" {
		if _, err := s.db.ExecContext(ctx, `UPDATE request_tasks SET job_id = ?, updated_at = ? WHERE id = ?`, jobID, now, taskID.String()); err != nil {
			return err
		}
	}
	return nil
}

func (s *TaskStore) Transition(ctx context.Context, taskID uuid.UUID, status store.TaskStatus, errMsg string) error {
	now := time.Now().UTC().Format(rfc3339)
	if errMsg != "" {
		_, err := s.db.ExecContext(ctx, `UPDATE request_tasks SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
			status, errMsg, now, taskID.String())
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE request_tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, now, taskID.String())
	return err
}

func (s *TaskStore) IncrementCronCount(ctx context.Context, taskID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE request_tasks SET cron_count = cron_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(rfc3339), taskID.String())
	return err
}

func (s *TaskStore) DeleteByIDForUser(ctx context.Context, userID, taskID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM request_tasks WHERE id = ? AND user_id = ?`,
		taskID.String(), userID.String())
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("task not found")
	}
	return nil
}

func (s *TaskStore) DashboardStats(ctx context.Context, userID uuid.UUID) (store.StatusCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM request_tasks WHERE user_id = ? GROUP BY status`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := store.StatusCounts{}
	for rows.Next() {
		var status store.TaskStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *TaskStore) scanTask(row scanner) (*store.RequestTask, error) {
	var t store.RequestTask
	var id, userID string
	var header, body string
	var cron, callbackURL, callbackToken, messageID, jobID, errMsg *string
	var createdAt, updatedAt string
	err := row.Scan(&id, &userID, &t.Name, &t.RequestURL, &t.Method, &header, &body,
		&t.StartTime, &cron, &callbackURL, &callbackToken, &messageID, &jobID,
		&t.CronCount, &t.Status, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.ID = uuid.MustParse(id)
	t.UserID = uuid.MustParse(userID)
	t.Header = []byte(header)
	t.Body = []byte(body)
	t.Cron = derefStr(cron)
	t.CallbackURL = derefStr(callbackURL)
	t.MessageID = derefStr(messageID)
	t.JobID = derefStr(jobID)
	t.ErrorMessage = derefStr(errMsg)
	t.CreatedAt, _ = time.Parse(rfc3339, createdAt)
	t.UpdatedAt, _ = time.Parse(rfc3339, updatedAt)
	token, err := s.enc.DecryptCallbackToken(derefStr(callbackToken))
	if err != nil {
		return nil, err
	}
	t.CallbackToken = token
	return &t, nil
}

func nilStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
