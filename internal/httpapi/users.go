package httpapi

import (
	"net/http"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/auth"
	"github.com/nlbx/reqsched/internal/store"
)

type userCreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in userCreateRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.Name == "" || in.Email == "" || in.Password == "" {
		writeError(w, apperr.BadInput("name, email, and password are required"))
		return
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		writeError(w, apperr.BadInput("unable to hash password"))
		return
	}
	u := &store.User{Name: in.Name, Email: in.Email, PasswordHash: hash, IsActive: true}
	if err := s.Users.Insert(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uid": u.ID.String()})
}

type tokenRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleIssueToken implements spec.md §6 POST /api/v1/users/token:
// identify by name or email, then verify password (spec.md "400 no
// identity, 401 bad credentials").
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var in tokenRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.Email == "" && in.Name == "" {
		writeError(w, apperr.BadInput("name or email is required"))
		return
	}

	var (
		u   *store.User
		err error
	)
	if in.Email != "" {
		u, err = s.Users.GetByEmail(r.Context(), in.Email)
	} else {
		u, err = s.Users.GetByName(r.Context(), in.Name)
	}
	if err != nil || !u.IsActive || !auth.CheckPassword(u.PasswordHash, in.Password) {
		writeError(w, apperr.AuthRequired("invalid credentials"))
		return
	}

	tok, err := s.Issuer.Issue(u.ID)
	if err != nil {
		writeError(w, apperr.New(apperr.KindUnknown, "token issuance failed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request, userIDStr string) {
	userID, err := parseUUID(userIDStr)
	if err != nil {
		writeError(w, err)
		return
	}
	u, err := s.Users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id": u.ID.String(), "name": u.Name, "email": u.Email, "is_active": u.IsActive,
	})
}

type userUpdateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request, userIDStr string) {
	userID, err := parseUUID(userIDStr)
	if err != nil {
		writeError(w, err)
		return
	}
	var in userUpdateRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	u, err := s.Users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if in.Name != "" {
		u.Name = in.Name
	}
	if in.Email != "" {
		u.Email = in.Email
	}
	if err := s.Users.Update(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request, userIDStr string) {
	userID, err := parseUUID(userIDStr)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Users.Delete(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
