// Package api exposes the note collection controller over HTTP using chi.
package api

import (
	"net/http"
	"strings"

	"github.com/starford/notepane/internal/notes"
)

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RejectWhileMutating answers 409 while the controller has a save or delete
// in flight, mirroring a disabled form in an interactive client.
func RejectWhileMutating(ctl *notes.Controller) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ctl.Snapshot().Mutating {
				writeJSON(w, http.StatusConflict, errorBody("a save or delete is in progress"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
