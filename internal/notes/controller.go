// Package notes implements the note collection controller: it owns the local
// list of notes, the selection and the editing draft, and routes every
// mutation through the gateway before re-fetching the collection.
package notes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/starford/notepane/internal/apperr"
	"github.com/starford/notepane/internal/gateway"
	"github.com/starford/notepane/internal/models"
)

// Controller is the single owner of the collection state.
//
// Operations are expected to arrive one at a time from user intents. The
// mutex only keeps snapshots race-free; gateway calls run without holding it,
// so overlapping Save/Delete calls resolve as "last refresh wins".
type Controller struct {
	gw     gateway.Gateway
	logger *slog.Logger

	mu      sync.Mutex
	st      models.State
	subs    map[int]func(models.State)
	nextSub int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a controller in its initial state: no notes, loading, idle.
func New(gw gateway.Gateway, opts ...Option) *Controller {
	c := &Controller{
		gw:     gw,
		logger: slog.Default(),
		st: models.State{
			Notes:   []models.Note{},
			Mode:    models.ModeIdle,
			Loading: true,
		},
		subs: make(map[int]func(models.State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() models.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.Clone()
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function removes the subscription.
func (c *Controller) Subscribe(fn func(models.State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// update applies fn under the lock and notifies subscribers afterwards.
// fn reports whether it changed anything.
func (c *Controller) update(fn func(st *models.State) bool) {
	c.mu.Lock()
	if !fn(&c.st) {
		c.mu.Unlock()
		return
	}
	snap := c.st.Clone()
	subs := make([]func(models.State), 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s(snap)
	}
}

// Refresh re-fetches the collection. Gateway failures are swallowed: the
// previous notes are kept, Loading is cleared and LastError is recorded.
// It only returns an error when ctx is already done.
func (c *Controller) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.update(func(st *models.State) bool {
		st.Loading = true
		return true
	})

	list, err := c.gw.List(ctx)
	if err != nil {
		c.logger.Warn("refresh failed, keeping last known notes", slog.String("error", err.Error()))
	}

	c.update(func(st *models.State) bool {
		st.Loading = false
		if err != nil {
			st.LastError = err.Error()
			return true
		}
		st.LastError = ""
		st.Notes = normalize(list)
		reselect(st)
		return true
	})
	return nil
}

// Select points the selection at id and drops any draft.
// id does not need to exist; a later Refresh reselects if it does not.
func (c *Controller) Select(id string) {
	c.update(func(st *models.State) bool {
		st.SelectedID = id
		st.Draft = nil
		st.Mode = models.ModeIdle
		return true
	})
}

// BeginCreate starts a new, empty draft and clears the selection.
func (c *Controller) BeginCreate() {
	c.update(func(st *models.State) bool {
		st.Mode = models.ModeCreating
		st.Draft = &models.Draft{}
		st.SelectedID = ""
		return true
	})
}

// BeginEdit copies the selected note into the draft. When nothing valid is
// selected the state is left untouched and ErrNotFound is returned.
func (c *Controller) BeginEdit() error {
	var err error
	c.update(func(st *models.State) bool {
		n, ok := st.Find(st.SelectedID)
		if !ok {
			err = fmt.Errorf("edit: no selected note: %w", apperr.ErrNotFound)
			return false
		}
		st.Mode = models.ModeEditing
		st.Draft = &models.Draft{ID: n.ID, Title: n.Title, Content: n.Content}
		return true
	})
	return err
}

// UpdateDraft merges patch into the draft while creating or editing.
func (c *Controller) UpdateDraft(patch models.DraftPatch) error {
	var err error
	c.update(func(st *models.State) bool {
		if st.Mode == models.ModeIdle || st.Draft == nil {
			err = fmt.Errorf("update draft in %s mode: %w", st.Mode, apperr.ErrInvalidState)
			return false
		}
		patch.Apply(st.Draft)
		return true
	})
	return err
}

// CancelEdit drops the draft. If nothing is selected afterwards and notes
// exist, the first note becomes selected.
func (c *Controller) CancelEdit() {
	c.update(func(st *models.State) bool {
		st.Mode = models.ModeIdle
		st.Draft = nil
		if st.SelectedID == "" && len(st.Notes) > 0 {
			st.SelectedID = st.Notes[0].ID
		}
		return true
	})
}

// Save validates the draft and persists it. On success the collection is
// re-fetched, the saved note is selected and the controller returns to idle.
// On failure mode and draft are kept so the caller can retry.
func (c *Controller) Save(ctx context.Context) (models.Note, error) {
	var (
		mode  models.Mode
		draft models.Draft
		err   error
	)
	c.update(func(st *models.State) bool {
		if st.Mode == models.ModeIdle || st.Draft == nil {
			err = fmt.Errorf("save in %s mode: %w", st.Mode, apperr.ErrInvalidState)
			return false
		}
		mode, draft = st.Mode, *st.Draft
		if err = validateDraft(draft); err != nil {
			return false
		}
		st.Mutating = true
		return true
	})
	if err != nil {
		return models.Note{}, err
	}

	var saved models.Note
	switch mode {
	case models.ModeCreating:
		saved, err = c.gw.Insert(ctx, draft.Title, draft.Content)
		if err != nil {
			err = &apperr.GatewayError{Op: "insert", Err: err}
		}
	default:
		err = c.gw.Update(ctx, draft.ID, draft.Title, draft.Content)
		if err != nil {
			err = &apperr.GatewayError{Op: "update", Err: err}
		}
		saved = models.Note{ID: draft.ID, Title: draft.Title, Content: draft.Content}
	}
	if err != nil {
		c.logger.Error("save failed",
			slog.String("mode", mode.String()), slog.String("error", err.Error()))
		c.update(func(st *models.State) bool {
			st.Mutating = false
			return true
		})
		return models.Note{}, err
	}

	_ = c.Refresh(ctx)

	c.update(func(st *models.State) bool {
		st.SelectedID = saved.ID
		st.Mode = models.ModeIdle
		st.Draft = nil
		st.Mutating = false
		if n, ok := st.Find(saved.ID); ok {
			saved = n
		}
		return true
	})
	c.logger.Debug("note saved", slog.String("id", saved.ID), slog.String("mode", mode.String()))
	return saved, nil
}

// Delete removes the note, re-fetches, and resets mode, draft and selection
// whatever the gateway answered. A gateway failure is still returned.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.update(func(st *models.State) bool {
		st.Mutating = true
		return true
	})

	err := c.gw.Delete(ctx, id)
	if err != nil {
		c.logger.Error("delete failed", slog.String("id", id), slog.String("error", err.Error()))
		err = &apperr.GatewayError{Op: "delete", Err: err}
	}

	_ = c.Refresh(ctx)

	c.update(func(st *models.State) bool {
		st.Mode = models.ModeIdle
		st.Draft = nil
		st.SelectedID = ""
		st.Mutating = false
		return true
	})
	if err == nil {
		c.logger.Debug("note deleted", slog.String("id", id))
	}
	return err
}

// normalize sorts newest first and drops repeated ids, keeping the newest copy.
func normalize(list []models.Note) []models.Note {
	out := make([]models.Note, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	seen := make(map[string]struct{}, len(out))
	uniq := out[:0]
	for _, n := range out {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		uniq = append(uniq, n)
	}
	return uniq
}

// reselect moves a dangling selection to the first note, or clears it.
func reselect(st *models.State) {
	if st.SelectedID == "" {
		return
	}
	if _, ok := st.Find(st.SelectedID); ok {
		return
	}
	if len(st.Notes) > 0 {
		st.SelectedID = st.Notes[0].ID
	} else {
		st.SelectedID = ""
	}
}
