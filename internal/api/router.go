package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notepane/internal/notes"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(ctl *notes.Controller, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(ctl)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Reads.
	r.Get("/state", h.GetState)
	r.Get("/notes", h.ListNotes)

	// Intents. Rejected while a save or delete is in flight.
	r.Group(func(r chi.Router) {
		r.Use(RejectWhileMutating(ctl))

		r.Post("/refresh", h.Refresh)
		r.Post("/select/{id}", h.Select)
		r.Post("/create", h.BeginCreate)
		r.Post("/edit", h.BeginEdit)
		r.Patch("/draft", h.UpdateDraft)
		r.Post("/save", h.Save)
		r.Post("/cancel", h.CancelEdit)
		r.Delete("/notes/{id}", h.DeleteNote)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
