package httpapi

import (
	"net/http"
	"time"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/auth"
	"github.com/nlbx/reqsched/internal/store"
)

type apiKeyCreateRequest struct {
	Name      string `json:"name"`
	ExpiresIn *int64 `json:"expires_in_seconds,omitempty"`
}

// handleCreateAPIKey issues a new API key and returns the raw secret
// exactly once (spec.md §3 "the raw secret is never persisted").
func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request, userIDStr string) {
	userID, err := parseUUID(userIDStr)
	if err != nil {
		writeError(w, err)
		return
	}
	var in apiKeyCreateRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	raw, prefix, err := auth.GenerateAPIKey()
	if err != nil {
		writeError(w, apperr.New(apperr.KindUnknown, "key generation failed"))
		return
	}
	key := &store.ApiKey{
		UserID:    userID,
		Name:      in.Name,
		Prefix:    prefix,
		SecretSHA: auth.HashAPIKey(raw),
		Active:    true,
	}
	if in.ExpiresIn != nil {
		exp := time.Now().Add(time.Duration(*in.ExpiresIn) * time.Second)
		key.ExpiresAt = &exp
	}
	if err := s.ApiKeys.Insert(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": key.ID.String(), "key": raw, "prefix": prefix})
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request, userIDStr string) {
	userID, err := parseUUID(userIDStr)
	if err != nil {
		writeError(w, err)
		return
	}
	keys, err := s.ApiKeys.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	type keyDict struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		Prefix    string  `json:"prefix"`
		Active    bool    `json:"active"`
		ExpiresAt *string `json:"expires_at,omitempty"`
	}
	out := make([]keyDict, len(keys))
	for i, k := range keys {
		d := keyDict{ID: k.ID.String(), Name: k.Name, Prefix: k.Prefix, Active: k.Active}
		if k.ExpiresAt != nil {
			s := k.ExpiresAt.Format(timeFormat)
			d.ExpiresAt = &s
		}
		out[i] = d
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": out})
}

func (s *Server) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request, userIDStr string) {
	userID, err := parseUUID(userIDStr)
	if err != nil {
		writeError(w, err)
		return
	}
	keyID, err := parseUUID(r.PathValue("id"))
	if err != nil {
		writeError(w, apperr.NotFound("api key not found"))
		return
	}
	if err := s.ApiKeys.DeleteByIDForUser(r.Context(), userID, keyID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
