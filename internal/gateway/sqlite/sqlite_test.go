package sqlite

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/notepane/internal/apperr"
)

func testDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "notepane-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name(), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
}

func TestInsertAndList(t *testing.T) {
	ctx := context.Background()
	db := testDB(t, WithClock(stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))

	a, err := db.Insert(ctx, "A", "first")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if a.ID == "" {
		t.Fatal("insert must assign an id")
	}
	b, _ := db.Insert(ctx, "B", "second")

	notes, err := db.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("len = %d, want 2", len(notes))
	}
	if notes[0].ID != b.ID || notes[1].ID != a.ID {
		t.Errorf("order = [%s %s], want newest first", notes[0].ID, notes[1].ID)
	}
	if !notes[0].UpdatedAt.Equal(b.UpdatedAt) {
		t.Errorf("updated_at = %v, want %v", notes[0].UpdatedAt, b.UpdatedAt)
	}
}

func TestUpdateMovesNoteToFront(t *testing.T) {
	ctx := context.Background()
	db := testDB(t, WithClock(stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))

	a, _ := db.Insert(ctx, "A", "first")
	_, _ = db.Insert(ctx, "B", "second")

	if err := db.Update(ctx, a.ID, "A2", "edited"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	notes, _ := db.List(ctx)
	if notes[0].ID != a.ID || notes[0].Title != "A2" || notes[0].Content != "edited" {
		t.Errorf("front note = %+v", notes[0])
	}
	if !notes[0].UpdatedAt.After(a.UpdatedAt) {
		t.Error("updated_at must advance on write")
	}
}

func TestUpdateMonotonicWithStalledClock(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	db := testDB(t, WithClock(func() time.Time { return fixed }))

	n, _ := db.Insert(ctx, "A", "x")
	_ = db.Update(ctx, n.ID, "A", "y")
	notes, _ := db.List(ctx)
	if !notes[0].UpdatedAt.After(n.UpdatedAt) {
		t.Errorf("updated_at %v not after %v", notes[0].UpdatedAt, n.UpdatedAt)
	}
}

func TestUpdateAndDelete_NotFound(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	if err := db.Update(ctx, "missing", "t", "c"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update missing err = %v, want ErrNotFound", err)
	}
	if err := db.Delete(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("delete missing err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	n, _ := db.Insert(ctx, "bye", "gone")
	if err := db.Delete(ctx, n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	notes, _ := db.List(ctx)
	if len(notes) != 0 {
		t.Errorf("len = %d after delete", len(notes))
	}
}

func TestListEmptyIsNonNil(t *testing.T) {
	db := testDB(t)
	notes, err := db.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if notes == nil {
		t.Error("empty list should be non-nil")
	}
}
