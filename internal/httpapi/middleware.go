package httpapi

import (
	"net/http"

	"github.com/nlbx/reqsched/internal/apperr"
	"github.com/nlbx/reqsched/internal/auth"
	"github.com/nlbx/reqsched/internal/store"
)

// authenticate implements spec.md §6's two auth schemes: Bearer JWT, then
// X-API-KEY by prefix lookup + constant-time secret verification. Either
// scheme resolves to a user id stored in the request context via
// store.WithUserID, which every downstream admission call is scoped by.
func (s *Server) authenticate(r *http.Request) (userID string, err error) {
	if tok := auth.ExtractBearerToken(r.Header.Get("Authorization")); tok != "" {
		id, verr := s.Issuer.Verify(tok)
		if verr != nil {
			return "", apperr.AuthRequired("invalid bearer token")
		}
		u, gerr := s.Users.GetByID(r.Context(), id)
		if gerr != nil || !u.IsActive {
			return "", apperr.AuthRequired("unknown or inactive user")
		}
		return id.String(), nil
	}

	if key := r.Header.Get("X-API-KEY"); key != "" {
		if len(key) < auth.KeyPrefixLen {
			return "", apperr.AuthRequired("malformed api key")
		}
		rec, gerr := s.ApiKeys.GetByPrefix(r.Context(), key[:auth.KeyPrefixLen])
		if gerr != nil || !rec.Active || !auth.VerifyAPIKey(key, rec.SecretSHA) {
			return "", apperr.AuthRequired("invalid api key")
		}
		u, uerr := s.Users.GetByID(r.Context(), rec.UserID)
		if uerr != nil || !u.IsActive {
			return "", apperr.AuthRequired("unknown or inactive user")
		}
		return rec.UserID.String(), nil
	}

	return "", apperr.AuthRequired("missing bearer token or api key")
}

// withAuth wraps a handler so it only runs for an authenticated caller,
// with the caller's user id attached to the request context.
func (s *Server) withAuth(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userIDStr, err := s.authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		id, perr := parseUUID(userIDStr)
		if perr != nil {
			writeError(w, apperr.AuthRequired("malformed user id"))
			return
		}
		ctx := store.WithUserID(r.Context(), id)
		next(w, r.WithContext(ctx), userIDStr)
	}
}
