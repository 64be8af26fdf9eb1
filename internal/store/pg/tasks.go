package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/crypto"
	"github.com/nlbx/reqsched/internal/store"
)

// TaskStore implements store.TaskStore backed by Postgres. enc is nil
// when no encryption key is configured, in which case CallbackToken is
// stored and read back as plain text (store.StoreConfig.EncryptionKey).
type TaskStore struct {
	db  *sql.DB
	enc *crypto.Cipher
}

func NewTaskStore(db *sql.DB, enc *crypto.Cipher) *TaskStore {
	return &TaskStore{db: db, enc: enc}
}

const taskSelectCols = `id, user_id, name, request_url, method, header, body,
	start_time, cron, callback_url, callback_token, message_id, job_id,
	cron_count, status, error_message, created_at, updated_at`

func (s *TaskStore) Insert(ctx context.Context, t *store.RequestTask) error {
	if t.ID == uuid.Nil {
		t.ID = store.GenNewID()
	}
	now := nowUTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	encToken, err := s.enc.EncryptCallbackToken(t.CallbackToken)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO request_tasks (id, user_id, name, request_url, method, header, body,
		 start_time, cron, callback_url, callback_token, message_id, job_id,
		 cron_count, status, error_message, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		t.ID, t.UserID, t.Name, t.RequestURL, t.Method, jsonOrEmpty(t.Header), jsonOrEmpty(t.Body),
		t.StartTime, nilStr(t.Cron), nilStr(t.CallbackURL), nilStr(encToken),
		nilStr(t.MessageID), nilStr(t.JobID), t.CronCount, t.Status, nilStr(t.ErrorMessage), now, now,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Conflict("task already exists")
	}
	return err
}

func (s *TaskStore) GetByIDForUser(ctx context.Context, userID, taskID uuid.UUID) (*store.RequestTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskSelectCols+` FROM request_tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	t, err := s.scanTaskRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("task not found")
		}
		return nil, err
	}
	return t, nil
}

func (s *TaskStore) GetByID(ctx context.Context, taskID uuid.UUID) (*store.RequestTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskSelectCols+` FROM request_tasks WHERE id = $1`, taskID)
	t, err := s.scanTaskRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("task not found")
		}
		return nil, err
	}
	return t, nil
}

func (s *TaskStore) FilterByUser(ctx context.Context, userID uuid.UUID, f store.TaskFilter) ([]*store.RequestTask, error) {
	q := `SELECT ` + taskSelectCols + ` FROM request_tasks WHERE user_id = $1`
	args := []interface{}{userID}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*store.RequestTask
	for rows.Next() {
		t, err := s.scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *TaskStore) UpdateHandles(ctx context.Context, taskID uuid.UUID, messageID, jobID string) error {
	updates := map[string]any{}
	if messageID != "" {
		updates["message_id"] = messageID
	}
	if jobID != "" {
		updates["job_id"] = jobID
	}
	if len(updates) == 0 {
		return nil
	}
	return execMapUpdate(ctx, s.db, "request_tasks", taskID, updates)
}

func (s *TaskStore) Transition(ctx context.Context, taskID uuid.UUID, status store.TaskStatus, errMsg string) error {
	updates := map[string]any{"status": status}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}
	return execMapUpdate(ctx, s.db, "request_tasks", taskID, updates)
}

func (s *TaskStore) IncrementCronCount(ctx context.Context, taskID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE request_tasks SET cron_count = cron_count + 1, updated_at = $1 WHERE id = $2`,
		nowUTC(), taskID)
	return err
}

func (s *TaskStore) DeleteByIDForUser(ctx context.Context, userID, taskID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM request_tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
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
		`SELECT status, COUNT(*) FROM request_tasks WHERE user_id = $1 GROUP BY status`, userID)
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

type taskRowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *TaskStore) scanTaskRow(row taskRowScanner) (*store.RequestTask, error) {
	var t store.RequestTask
	var header, body []byte
	var startTime *int64
	var cron, callbackURL, callbackToken, messageID, jobID, errMsg *string
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.RequestURL, &t.Method, &header, &body,
		&startTime, &cron, &callbackURL, &callbackToken, &messageID, &jobID,
		&t.CronCount, &t.Status, &errMsg, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Header = header
	t.Body = body
	t.StartTime = startTime
	t.Cron = derefStr(cron)
	t.CallbackURL = derefStr(callbackURL)
	t.MessageID = derefStr(messageID)
	t.JobID = derefStr(jobID)
	t.ErrorMessage = derefStr(errMsg)
	token, err := s.enc.DecryptCallbackToken(derefStr(callbackToken))
	if err != nil {
		return nil, err
	}
	t.CallbackToken = token
	return &t, nil
}
