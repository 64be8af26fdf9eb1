// Package store defines the relational data model (C1 Task Store of the
// design) and the storage interfaces the admission layer and workers
// depend on. Concrete backends live in sibling packages: pg (Postgres,
// managed mode), sqlitestore (modernc.org/sqlite, standalone mode), and
// memstore (in-process, tests).
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BaseModel provides common fields for all database models.
type BaseModel struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GenNewID generates a new UUID v7 (time-ordered).
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// StoreConfig configures the store layer.
type StoreConfig struct {
	// PostgresDSN selects managed mode when non-empty and Mode == "managed".
	PostgresDSN string

	// SQLitePath is the database file for standalone mode (":memory:" in tests).
	SQLitePath string

	// Mode: "standalone" (sqlite, default) or "managed" (postgres).
	Mode string

	// EncryptionKey is the AES-256 key for encrypting callback_token at rest.
	// If empty, callback_token is stored in plain text.
	EncryptionKey string
}

// IsManaged returns true if the system is in managed (Postgres) mode.
func (c StoreConfig) IsManaged() bool {
	return c.PostgresDSN != "" && c.Mode == "managed"
}

// TaskStatus is the RequestTask lifecycle state (spec.md §3, §4.5).
type TaskStatus string

const (
	StatusPending   TaskStatus = "PENDING"
	StatusRunning   TaskStatus = "RUNNING"
	StatusCompleted TaskStatus = "COMPLETED"
	StatusFailed    TaskStatus = "FAILED"
	// StatusCancelled is part of the taxonomy but no code path in this
	// implementation assigns it — see spec.md §9 and DESIGN.md.
	StatusCancelled TaskStatus = "CANCELLED"
)

// ValidMethods is the HTTP method allow-list (spec.md §3).
var ValidMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"PATCH":   true,
	"HEAD":    true,
	"OPTIONS": true,
}

// User is an account that owns RequestTasks and ApiKeys.
type User struct {
	BaseModel
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	IsActive     bool   `json:"is_active"`
}

// ApiKey is a random high-entropy secret issued once to a User. The raw
// secret is never persisted; only its prefix and a hash are stored.
type ApiKey struct {
	BaseModel
	UserID    uuid.UUID  `json:"user_id"`
	Name      string     `json:"name"`
	Prefix    string     `json:"prefix"` // first 8 chars of the raw secret
	SecretSHA string     `json:"-"`      // sha256(raw secret), hex-encoded
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RequestTask is the central entity of the core (spec.md §3).
type RequestTask struct {
	BaseModel
	UserID        uuid.UUID       `json:"user_id"`
	Name          string          `json:"name"`
	RequestURL    string          `json:"request_url"`
	Method        string          `json:"method"`
	Header        json.RawMessage `json:"header"`
	Body          json.RawMessage `json:"body"`
	StartTime     *int64          `json:"start_time,omitempty"` // unix epoch seconds
	Cron          string          `json:"cron,omitempty"`
	CallbackURL   string          `json:"callback_url,omitempty"`
	CallbackToken string          `json:"callback_token,omitempty"`
	MessageID     string          `json:"message_id,omitempty"`
	JobID         string          `json:"job_id,omitempty"`
	CronCount     int64           `json:"cron_count"`
	Status        TaskStatus      `json:"status"`
	ErrorMessage  string          `json:"error_message,omitempty"`
}

// IsCron reports whether this task is registered against the cron registry
// rather than one-shot queued (spec.md §3 invariants 1 and 2).
func (t *RequestTask) IsCron() bool {
	return t.Cron != ""
}

// StatusCounts summarizes the dashboard stats endpoint's payload
// (spec.md §6 GET /api/v1/stats/dashboard) — only nonzero counts are kept.
type StatusCounts map[TaskStatus]int64
