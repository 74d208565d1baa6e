package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notepane/internal/apperr"
	"github.com/starford/notepane/internal/models"
)

// List returns all notes, most recently updated first.
func (db *DB) List(ctx context.Context) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, content, updated_at
		FROM notes
		ORDER BY updated_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		n.UpdatedAt = n.UpdatedAt.UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

// Insert stores a new note with a generated id.
func (db *DB) Insert(ctx context.Context, title, content string) (models.Note, error) {
	n := models.Note{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		UpdatedAt: db.now().UTC(),
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO notes (id, title, content, updated_at) VALUES (?, ?, ?, ?)`,
		n.ID, n.Title, n.Content, n.UpdatedAt)
	if err != nil {
		return models.Note{}, fmt.Errorf("sqlite: insert: %w", err)
	}
	return n, nil
}

// Update rewrites a note and advances its updated_at.
func (db *DB) Update(ctx context.Context, id, title, content string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var prev time.Time
	err = tx.QueryRowContext(ctx, `SELECT updated_at FROM notes WHERE id = ?`, id).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: update %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("sqlite: update lookup: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
		title, content, nextTimestamp(db.now(), prev), id); err != nil {
		return fmt.Errorf("sqlite: update: %w", err)
	}
	return tx.Commit()
}

// Delete removes a note.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: delete %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// nextTimestamp keeps updated_at strictly increasing per note even when the
// clock stalls or steps backwards.
func nextTimestamp(now, prev time.Time) time.Time {
	now = now.UTC()
	if !now.After(prev) {
		return prev.UTC().Add(time.Microsecond)
	}
	return now
}
