// Package vault stores notes as Markdown files with YAML frontmatter,
// one file per note named after its id.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notepane/internal/apperr"
	"github.com/starford/notepane/internal/models"
)

const ext = ".md"

// Vault implements the notes gateway on a local directory.
type Vault struct {
	root   string // absolute path to vault directory
	logger *slog.Logger
	now    func() time.Time

	// mu serializes read-modify-write cycles on note files.
	mu sync.Mutex
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the logger used for skipped files.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithClock overrides the timestamp source used for updated_at.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		v.now = now
	}
}

// New creates a Vault rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Vault, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("vault: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault: root is not a directory: %s", abs)
	}
	v := &Vault{root: abs, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Close is a no-op; the vault holds no open handles.
func (v *Vault) Close() error { return nil }

// List reads every note file and returns them newest first.
// Files that cannot be parsed are skipped with a warning.
func (v *Vault) List(ctx context.Context) ([]models.Note, error) {
	entries, err := os.ReadDir(v.root)
	if err != nil {
		return nil, fmt.Errorf("vault: list: %w", err)
	}
	out := []models.Note{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(v.root, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("vault: read %s: %w", e.Name(), err)
		}
		n, err := decode(data)
		if err != nil {
			v.logger.Warn("vault: skipping unreadable note",
				slog.String("file", e.Name()), slog.String("error", err.Error()))
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Insert writes a new note file.
func (v *Vault) Insert(_ context.Context, title, content string) (models.Note, error) {
	n := models.Note{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		UpdatedAt: v.now().UTC(),
	}
	abs, err := v.safePath(n.ID + ext)
	if err != nil {
		return models.Note{}, err
	}
	data, err := encode(n)
	if err != nil {
		return models.Note{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := writeFile(abs, data); err != nil {
		return models.Note{}, err
	}
	return n, nil
}

// Update rewrites an existing note file with an advanced updated_at.
func (v *Vault) Update(_ context.Context, id, title, content string) error {
	abs, err := v.safePath(id + ext)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("vault: update %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("vault: read %s: %w", id, err)
	}
	prev, err := decode(data)
	if err != nil {
		return err
	}

	ts := v.now().UTC()
	if !ts.After(prev.UpdatedAt) {
		ts = prev.UpdatedAt.Add(time.Nanosecond)
	}
	out, err := encode(models.Note{ID: id, Title: title, Content: content, UpdatedAt: ts})
	if err != nil {
		return err
	}
	return writeFile(abs, out)
}

// Delete removes a note file.
func (v *Vault) Delete(_ context.Context, id string) error {
	abs, err := v.safePath(id + ext)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("vault: delete %s: %w", id, apperr.ErrNotFound)
		}
		return fmt.Errorf("vault: delete %s: %w", id, err)
	}
	return nil
}
