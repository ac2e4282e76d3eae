// Package jobstore implements the atomic, crash-safe on-disk envelope that
// backs the scheduler's job collection. It knows nothing about jobs; it
// persists and loads whatever JSON-shaped payload it is given.
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a single JSON document at a fixed path, written with a
// tmp-then-rename sequence and read back with fail-open semantics on a
// missing file. Saves are serialized through a mutex so that the order in
// which snapshots land on disk always matches the order callers requested
// them, even if two Save calls race.
type File struct {
	path string
	mu   sync.Mutex
}

// New returns a File bound to path. The parent directory is created lazily
// on first Save.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the bound file path.
func (f *File) Path() string {
	return f.path
}

// Load reads the file into out. A missing file is reported via
// os.IsNotExist(err) so callers can distinguish "never written" from a
// parse failure and decide whether to fail open.
func (f *File) Load(out any) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", f.path, err)
	}
	return nil
}

// Save atomically writes payload to the file: marshal, write to a temp file
// beside the destination, then rename over it. If the rename fails because
// the destination already exists (a stale artifact from a previous crash
// mid-rename on some platforms), the destination is removed once and the
// rename retried before giving up.
func (f *File) Save(payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		if errors.Is(err, os.ErrExist) || os.IsExist(err) {
			if rmErr := os.Remove(f.path); rmErr == nil {
				if retryErr := os.Rename(tmp, f.path); retryErr == nil {
					return nil
				}
			}
		}
		_ = os.Remove(tmp)
		return fmt.Errorf("rename store into place: %w", err)
	}
	return nil
}
