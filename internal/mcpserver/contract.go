package mcpserver

import (
	"fmt"

	"github.com/starford/notepane/internal/models"
)

// NoteRules describes what a note must look like to be accepted on save.
var NoteRules = fmt.Sprintf(`# Notepane Note Rules

Every note has a title and a body. Both are plain text.

## Rules

1. **Title is required.** It may not be empty or whitespace only.
2. **Title length** is at most %d characters.
3. **Content is required.** It may not be empty or whitespace only.
4. **Content length** is at most %d characters.
5. **Identifiers** are assigned by the store. Use the id returned by list_notes
   or get_state when editing, selecting or deleting.
6. **Ordering**: notes are listed most recently updated first. Saving a note
   moves it to the top.

A note with an empty title is shown as "(No Title)".
`, models.MaxTitleLength, models.MaxContentLength)
