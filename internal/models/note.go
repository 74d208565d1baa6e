// Package models defines the domain types for notepane.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Field limits enforced when a draft is saved.
const (
	MaxTitleLength   = 100
	MaxContentLength = 2000
)

// Note is a single record held by the remote store.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayTitle returns the title, or a placeholder for untitled notes.
func (n Note) DisplayTitle() string {
	if n.Title == "" {
		return "(No Title)"
	}
	return n.Title
}

// Draft is the in-progress copy of a note being created or edited.
// ID is empty while creating.
type Draft struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DraftPatch carries a partial draft update; nil fields are left untouched.
type DraftPatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Apply merges the set fields of p into d.
func (p DraftPatch) Apply(d *Draft) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Content != nil {
		d.Content = *p.Content
	}
}

// Mode is the controller's interaction state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeCreating
	ModeEditing
)

func (m Mode) String() string {
	switch m {
	case ModeCreating:
		return "creating"
	case ModeEditing:
		return "editing"
	default:
		return "idle"
	}
}

// MarshalJSON encodes the mode as its name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a mode name.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "idle", "":
		*m = ModeIdle
	case "creating":
		*m = ModeCreating
	case "editing":
		*m = ModeEditing
	default:
		return fmt.Errorf("unknown mode %q", s)
	}
	return nil
}
