// Package checksum fingerprints note lists so consumers can tell whether the
// collection itself changed between two state snapshots.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/starford/notepane/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Notes returns a digest over the ids, timestamps and order of notes.
// Titles and content are not hashed: every write bumps updated_at.
func Notes(notes []models.Note) string {
	var buf bytes.Buffer
	for _, n := range notes {
		buf.WriteString(n.ID)
		buf.WriteByte(0)
		buf.WriteString(n.UpdatedAt.UTC().Format(time.RFC3339Nano))
		buf.WriteByte('\n')
	}
	return Sum(buf.Bytes())
}
