package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// safePath resolves a note file name against the vault root and rejects
// any result that escapes it (directory traversal).
func (v *Vault) safePath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("vault: empty path")
	}
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("vault: absolute paths not allowed: %s", name)
	}
	abs, err := filepath.Abs(filepath.Join(v.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("vault: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, v.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("vault: path escapes vault root: %s", name)
	}
	return abs, nil
}

// writeFile atomically writes content: tmp file → fsync → rename.
func writeFile(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	tmp, err := os.CreateTemp(dir, ".notepane-tmp-*")
	if err != nil {
		return fmt.Errorf("vault: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("vault: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("vault: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("vault: rename: %w", err)
	}
	success = true
	return nil
}
