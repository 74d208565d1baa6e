package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notepane/internal/models"
	"github.com/starford/notepane/internal/notes"
)

// Handler holds API route handlers.
type Handler struct {
	ctl *notes.Controller
}

// NewHandler creates a new Handler.
func NewHandler(ctl *notes.Controller) *Handler {
	return &Handler{ctl: ctl}
}

// GetState handles GET /api/state.
//
//	@Summary		Current controller state
//	@Tags			state
//	@Produce		json
//	@Success		200	{object}	State
//	@Security		BearerAuth
//	@Router			/state [get]
func (h *Handler) GetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, newest first
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, _ *http.Request) {
	st := h.ctl.Snapshot()
	items := make([]NoteListItem, 0, len(st.Notes))
	for _, n := range st.Notes {
		items = append(items, NoteListItem{
			ID:        n.ID,
			Title:     n.DisplayTitle(),
			UpdatedAt: n.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// Refresh handles POST /api/refresh.
//
//	@Summary		Re-fetch the note collection
//	@Tags			state
//	@Produce		json
//	@Success		200	{object}	State
//	@Security		BearerAuth
//	@Router			/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// Select handles POST /api/select/{id}.
//
//	@Summary		Select a note
//	@Tags			state
//	@Produce		json
//	@Param			id	path		string	true	"Note ID"
//	@Success		200	{object}	State
//	@Security		BearerAuth
//	@Router			/select/{id} [post]
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	h.ctl.Select(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// BeginCreate handles POST /api/create.
//
//	@Summary		Start a new draft
//	@Tags			drafts
//	@Produce		json
//	@Success		200	{object}	State
//	@Security		BearerAuth
//	@Router			/create [post]
func (h *Handler) BeginCreate(w http.ResponseWriter, _ *http.Request) {
	h.ctl.BeginCreate()
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// BeginEdit handles POST /api/edit.
//
//	@Summary		Copy the selected note into a draft
//	@Tags			drafts
//	@Produce		json
//	@Success		200	{object}	State
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/edit [post]
func (h *Handler) BeginEdit(w http.ResponseWriter, _ *http.Request) {
	if err := h.ctl.BeginEdit(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// UpdateDraft handles PATCH /api/draft.
//
//	@Summary		Change draft fields
//	@Tags			drafts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DraftRequest	true	"Fields to change"
//	@Success		200		{object}	State
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/draft [patch]
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.ctl.UpdateDraft(models.DraftPatch{Title: req.Title, Content: req.Content}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// Save handles POST /api/save.
//
//	@Summary		Persist the current draft
//	@Tags			drafts
//	@Produce		json
//	@Success		200	{object}	SaveResponse
//	@Failure		400	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	saved, err := h.ctl.Save(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{Note: saved, State: h.ctl.Snapshot()})
}

// CancelEdit handles POST /api/cancel.
//
//	@Summary		Discard the current draft
//	@Tags			drafts
//	@Produce		json
//	@Success		200	{object}	State
//	@Security		BearerAuth
//	@Router			/cancel [post]
func (h *Handler) CancelEdit(w http.ResponseWriter, _ *http.Request) {
	h.ctl.CancelEdit()
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// DeleteNote handles DELETE /api/notes/{id}.
// The controller resets selection and draft even when the store refuses,
// so the reset state is returned alongside a 502.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note ID"
//	@Success		200	{object}	DeleteResponse
//	@Failure		502	{object}	DeleteResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	err := h.ctl.Delete(r.Context(), id)
	resp := DeleteResponse{State: h.ctl.Snapshot()}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
