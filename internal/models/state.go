package models

// State is a read-only snapshot of the note collection handed to presentation layers.
type State struct {
	Notes      []Note `json:"notes"`
	SelectedID string `json:"selected_id,omitempty"`
	// Selected is resolved from SelectedID; nil when the id is not a current member.
	Selected  *Note  `json:"selected,omitempty"`
	Mode      Mode   `json:"mode"`
	Draft     *Draft `json:"draft,omitempty"`
	Loading   bool   `json:"loading"`
	Mutating  bool   `json:"mutating"`
	LastError string `json:"last_error,omitempty"`
}

// Find returns the note with the given id.
func (s State) Find(id string) (Note, bool) {
	if id == "" {
		return Note{}, false
	}
	for _, n := range s.Notes {
		if n.ID == id {
			return n, true
		}
	}
	return Note{}, false
}

// Clone returns a deep copy of s with Selected re-resolved.
func (s *State) Clone() State {
	out := *s
	out.Notes = make([]Note, len(s.Notes))
	copy(out.Notes, s.Notes)
	if s.Draft != nil {
		d := *s.Draft
		out.Draft = &d
	}
	out.Selected = nil
	if n, ok := out.Find(out.SelectedID); ok {
		out.Selected = &n
	}
	return out
}
