// Package dispatch implements the C5 Dispatch Actor: the unit of work a
// worker performs for one queued dispatch unit (spec.md §4.5). Execute is
// a plain function, not a goroutine-per-actor framework, per spec.md §9's
// "typed message struct with a single handler function" redesign.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/httpclient"
	"github.com/nlbx/reqsched/internal/store"
)

// Deps is the set of handles Execute needs, injected by the caller
// (worker process's Engine) rather than held in package state.
type Deps struct {
	Tasks store.TaskStore
	HTTP  *httpclient.Client
}

// callbackEnvelope is the JSON object POSTed to a task's callback_url
// after each dispatch attempt (spec.md §6, §4.5 step 6).
type callbackEnvelope struct {
	Response *string `json:"response"`
	Code     *int    `json:"code"`
	Exception *string `json:"exception"`
	Status   string  `json:"status"` // "COMPLETE" or "FAIL"
}

// Execute runs the six-step dispatch algorithm for taskID (spec.md §4.5).
// It returns an error only for conditions the caller (the worker loop)
// should log loudly; an ordinary transport failure is handled internally
// by transitioning the task to FAILED and is not itself returned as an error.
func Execute(ctx context.Context, d Deps, taskID string) error {
	id, err := uuid.Parse(taskID)
	if err != nil {
		return apperr.BadInput("invalid task id: " + taskID)
	}

	// Step 1: load task; an absent task is a discard, not a failure — a
	// stale unit firing after the row was deleted finds nothing to do.
	// The worker acts on behalf of the system, not a specific caller, so
	// it looks the task up by id alone rather than through the
	// owner-scoped path HTTP handlers use.
	task, err := d.Tasks.GetByID(ctx, id)
	if apperr.Is(err, apperr.KindNotFound) {
		slog.Info("dispatch: task not found, discarding unit", "task_id", taskID)
		return nil
	} else if err != nil {
		return err
	}

	// Step 2: transition to RUNNING. Transition writes error_message only
	// when given a non-empty one, so an error_message left by an earlier
	// failed run is not cleared here.
	if err := d.Tasks.Transition(ctx, id, store.StatusRunning, ""); err != nil {
		return err
	}

	// Step 3: invoke C4 with the task's method/url/header/body.
	header := map[string]string{}
	if len(task.Header) > 0 {
		_ = json.Unmarshal(task.Header, &header)
	}
	resp, callErr := d.HTTP.Request(ctx, task.Method, task.RequestURL, header, task.Body)

	var env callbackEnvelope
	if callErr != nil {
		// Step 4: transport failure -> FAILED.
		msg := callErr.Error()
		if err := d.Tasks.Transition(ctx, id, store.StatusFailed, msg); err != nil {
			return err
		}
		env = callbackEnvelope{Response: nil, Code: nil, Exception: &msg, Status: "FAIL"}
		slog.Warn("dispatch: transport failure", "task_id", taskID, "error", msg)
	} else {
		// Step 5: any HTTP status is a completion, not a failure.
		body := toUTF8Lossy(resp.Body)
		code := resp.StatusCode
		if err := d.Tasks.Transition(ctx, id, store.StatusCompleted, ""); err != nil {
			return err
		}
		env = callbackEnvelope{Response: &body, Code: &code, Exception: nil, Status: "COMPLETE"}
		slog.Info("dispatch: completed", "task_id", taskID, "status_code", code)
	}

	// Step 6: best-effort callback POST; failures are logged only.
	if task.CallbackURL != "" {
		postCallback(ctx, d.HTTP, task.CallbackURL, task.CallbackToken, env)
	}
	return nil
}

func postCallback(ctx context.Context, c *httpclient.Client, url, token string, env callbackEnvelope) {
	body, err := json.Marshal(env)
	if err != nil {
		slog.Error("dispatch: marshal callback envelope failed", "error", err)
		return
	}
	header := map[string]string{}
	if token != "" {
		header["Authorization"] = "Bearer " + token
	}
	if _, err := c.Request(ctx, "POST", url, header, body); err != nil {
		slog.Warn("dispatch: callback delivery failed", "url", url, "error", err)
	}
}

// toUTF8Lossy converts body to a string, replacing invalid byte sequences
// rather than erroring, per spec.md §4.5 step 5.
func toUTF8Lossy(body []byte) string {
	if utf8.Valid(body) {
		return string(body)
	}
	var sb strings.Builder
	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		sb.WriteRune(r)
		body = body[size:]
	}
	return sb.String()
}
