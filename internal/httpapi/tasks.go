package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/nlbx/reqsched/internal/admission"
	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/store"
)

// requestTaskCreate mirrors spec.md §6's RequestTaskCreate schema. Method
// defaults to GET when omitted.
type requestTaskCreate struct {
	Name          string          `json:"name"`
	RequestURL    string          `json:"request_url"`
	Method        string          `json:"method"`
	Header        json.RawMessage `json:"header"`
	Body          json.RawMessage `json:"body"`
	StartTime     *float64        `json:"start_time"` // seconds, fractional permitted
	CallbackURL   string          `json:"callback_url"`
	CallbackToken string          `json:"callback_token"`
	Cron          string          `json:"cron"`
}

func (c requestTaskCreate) toInput() admission.TaskInput {
	method := c.Method
	if method == "" {
		method = "GET"
	}
	var startTime *int64
	if c.StartTime != nil {
		sec := int64(*c.StartTime)
		startTime = &sec
	}
	return admission.TaskInput{
		Name:          c.Name,
		RequestURL:    c.RequestURL,
		Method:        method,
		Header:        c.Header,
		Body:          c.Body,
		StartTime:     startTime,
		Cron:          c.Cron,
		CallbackURL:   c.CallbackURL,
		CallbackToken: c.CallbackToken,
	}
}

// taskDict is the wire representation of a RequestTask (spec.md §6
// "GET /api/v1/tasks/{id}: 200 task dict"). It includes every input
// field verbatim (spec.md §8 round-trip property), with method
// upper-cased, except start_time: toInput truncates a fractional
// start_time to whole seconds, and that is the value returned.
type taskDict struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	RequestURL    string          `json:"request_url"`
	Method        string          `json:"method"`
	Header        json.RawMessage `json:"header"`
	Body          json.RawMessage `json:"body"`
	StartTime     *int64          `json:"start_time,omitempty"`
	Cron          string          `json:"cron,omitempty"`
	CallbackURL   string          `json:"callback_url,omitempty"`
	CallbackToken string          `json:"callback_token,omitempty"`
	MessageID     string          `json:"message_id,omitempty"`
	JobID         string          `json:"job_id,omitempty"`
	CronCount     int64           `json:"cron_count"`
	Status        string          `json:"status"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

func toDict(t *store.RequestTask) taskDict {
	return taskDict{
		ID:            t.ID.String(),
		Name:          t.Name,
		RequestURL:    t.RequestURL,
		Method:        t.Method,
		Header:        t.Header,
		Body:          t.Body,
		StartTime:     t.StartTime,
		Cron:          t.Cron,
		CallbackURL:   t.CallbackURL,
		CallbackToken: t.CallbackToken,
		MessageID:     t.MessageID,
		JobID:         t.JobID,
		CronCount:     t.CronCount,
		Status:        string(t.Status),
		ErrorMessage:  t.ErrorMessage,
		CreatedAt:     t.CreatedAt.Format(timeFormat),
		UpdatedAt:     t.UpdatedAt.Format(timeFormat),
	}
}

const timeFormat = "2006-01-02T15:04:05.999999999Z07:00"

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, userIDStr string) {
	var in requestTaskCreate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	userID, err := parseUUID(userIDStr)
	if err != nil {
		writeError(w, err)
		return
	}
	task, err := s.Admission.Create(r.Context(), userID, in.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": task.ID.String()})
}

func (s *Server) handleCreateTasksBulk(w http.ResponseWriter, r *http.Request, userIDStr string) {
	var items []requestTaskCreate
	if err := decodeJSON(r, &items); err != nil {
		writeError(w, err)
		return
	}
	userID, err := parseUUID(userIDStr)
	if err != nil {
		writeError(w, err)
		return
	}
	var taskIDs []string
	results := s.Admission.CreateBulk(r.Context(), userID, toInputs(items))
	for _, res := range results {
		if res.Err == nil {
			taskIDs = append(taskIDs, res.TaskID.String())
		}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"task_ids": taskIDs})
}

func toInputs(items []requestTaskCreate) []admission.TaskInput {
	out := make([]admission.TaskInput, len(items))
	for i, it := range items {
		out[i] = it.toInput()
	}
	return out
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request, userIDStr string) {
	userID, err := parseUUID(userIDStr)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := s.Admission.List(r.Context(), userID, store.TaskFilter{})
	if err != nil {
		writeError(w, err)
		return
	}
	dicts := make([]taskDict, len(tasks))
	for i, t := range tasks {
		dicts[i] = toDict(t)
	}
	writeJSON(w, http.StatusOK, map[string][]taskDict{"tasks": dicts})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request, userIDStr string) {
	userID, err := parseUUID(userIDStr)
	if err != nil {
		writeError(w, err)
		return
	}
	taskID, err := parseUUID(r.PathValue("id"))
	if err != nil {
		writeError(w, apperr.NotFound("task not found"))
		return
	}
	task, err := s.Admission.Get(r.Context(), userID, taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDict(task))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, userIDStr string) {
	userID, err := parseUUID(userIDStr)
	if err != nil {
		writeError(w, err)
		return
	}
	taskID, err := parseUUID(r.PathValue("id"))
	if err != nil {
		writeError(w, apperr.NotFound("task not found"))
		return
	}
	if err := s.Admission.Delete(r.Context(), userID, taskID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request, userIDStr string) {
	userID, err := parseUUID(userIDStr)
	if err != nil {
		writeError(w, err)
		return
	}
	total, counts, err := s.Admission.DashboardStats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	nonZero := map[string]int64{}
	for status, n := range counts {
		if n > 0 {
			nonZero[string(status)] = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_tasks":   total,
		"status_counts": nonZero,
	})
}
