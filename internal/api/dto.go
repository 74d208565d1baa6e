package api

import (
	"github.com/starford/notepane/internal/models"
)

// State is the controller snapshot returned by most endpoints.
type State = models.State

// Note is a single stored note.
type Note = models.Note

// DraftRequest is the body of PATCH /draft. Omitted fields are left unchanged.
type DraftRequest struct {
	Title   *string `json:"title,omitempty" example:"Groceries"`
	Content *string `json:"content,omitempty" example:"milk, eggs"`
}

// NoteListResponse wraps the current note list.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        string `json:"id" validate:"required"`
	Title     string `json:"title" example:"Groceries" validate:"required"`
	UpdatedAt string `json:"updated_at" example:"2024-01-01T10:00:00Z" validate:"required"`
}

// SaveResponse is returned by a successful POST /save.
type SaveResponse struct {
	Note  Note  `json:"note" validate:"required"`
	State State `json:"state" validate:"required"`
}

// DeleteResponse is returned by DELETE /notes/{id}. Error is set when the
// store refused the delete; State is reset either way.
type DeleteResponse struct {
	State State  `json:"state" validate:"required"`
	Error string `json:"error,omitempty"`
}
