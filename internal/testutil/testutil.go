// Package testutil provides shared test helpers for setting up stores and controllers.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/notepane/internal/gateway"
	"github.com/starford/notepane/internal/gateway/sqlite"
	"github.com/starford/notepane/internal/gateway/vault"
	"github.com/starford/notepane/internal/notes"
)

// SQLiteGateway creates a temporary SQLite store that is automatically cleaned up.
func SQLiteGateway(t *testing.T) *sqlite.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notepane-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := sqlite.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// VaultGateway creates a temporary Markdown vault store.
func VaultGateway(t *testing.T) (string, *vault.Vault) {
	t.Helper()
	dir := t.TempDir()
	v, err := vault.New(dir, vault.WithLogger(DiscardLogger()))
	if err != nil {
		t.Fatal(err)
	}
	return dir, v
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Controller builds a controller over gw and runs the initial refresh.
func Controller(t *testing.T, gw gateway.Gateway) *notes.Controller {
	t.Helper()
	ctl := notes.New(gw, notes.WithLogger(DiscardLogger()))
	if err := ctl.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return ctl
}

// Seed inserts notes directly into gw, in order, so the last one is newest.
func Seed(t *testing.T, gw gateway.Gateway, titles ...string) {
	t.Helper()
	for _, title := range titles {
		if _, err := gw.Insert(context.Background(), title, "content of "+title); err != nil {
			t.Fatalf("Insert %q: %v", title, err)
		}
	}
}
