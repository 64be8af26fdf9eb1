package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nlbx/reqsched/internal/admission"
	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/auth"
	"github.com/nlbx/reqsched/internal/store"
)

// Server holds the handles the admin HTTP surface needs. It is built once
// by the process entry point (cmd/reqsched serve) and never mutated.
type Server struct {
	Admission *admission.Service
	Users     store.UserStore
	ApiKeys   store.ApiKeyStore
	Issuer    *auth.TokenIssuer
}

func NewServer(adm *admission.Service, users store.UserStore, keys store.ApiKeyStore, issuer *auth.TokenIssuer) *Server {
	return &Server{Admission: adm, Users: users, ApiKeys: keys, Issuer: issuer}
}

// NewRouter registers every endpoint of spec.md §6 on a plain
// net/http.ServeMux, using Go 1.22's method+pattern routing — the
// teacher never reaches for a third-party router, so none is introduced
// here (SPEC_FULL.md §6).
func (s *Server) NewRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/tasks", s.withAuth(s.handleCreateTask))
	mux.HandleFunc("POST /api/v1/tasks/bulk", s.withAuth(s.handleCreateTasksBulk))
	mux.HandleFunc("GET /api/v1/tasks", s.withAuth(s.handleListTasks))
	mux.HandleFunc("GET /api/v1/tasks/{id}", s.withAuth(s.handleGetTask))
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", s.withAuth(s.handleDeleteTask))
	mux.HandleFunc("GET /api/v1/stats/dashboard", s.withAuth(s.handleDashboardStats))

	mux.HandleFunc("POST /api/v1/users", s.handleCreateUser)
	mux.HandleFunc("POST /api/v1/users/token", s.handleIssueToken)
	mux.HandleFunc("GET /api/v1/users/me", s.withAuth(s.handleGetMe))
	mux.HandleFunc("PUT /api/v1/users/me", s.withAuth(s.handleUpdateMe))
	mux.HandleFunc("DELETE /api/v1/users/me", s.withAuth(s.handleDeleteMe))

	mux.HandleFunc("POST /api/v1/apikeys", s.withAuth(s.handleCreateAPIKey))
	mux.HandleFunc("GET /api/v1/apikeys", s.withAuth(s.handleListAPIKeys))
	mux.HandleFunc("DELETE /api/v1/apikeys/{id}", s.withAuth(s.handleDeleteAPIKey))

	return mux
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperr.BadInput("malformed id: " + s)
	}
	return id, nil
}
