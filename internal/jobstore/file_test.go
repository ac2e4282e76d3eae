package jobstore

import (
	"os"
	"path/filepath"
	"testing"
)

type payload struct {
	Version int      `json:"version"`
	Jobs    []string `json:"jobs"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := New(filepath.Join(dir, "jobs.json"))

	in := payload{Version: 1, Jobs: []string{"a", "b"}}
	if err := f.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out payload
	if err := f.Load(&out); err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.Version != in.Version || len(out.Jobs) != 2 {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	if _, err := os.Stat(f.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be gone, stat err=%v", err)
	}
}

func TestLoadMissingFileIsNotExist(t *testing.T) {
	dir := t.TempDir()
	f := New(filepath.Join(dir, "missing.json"))
	var out payload
	err := f.Load(&out)
	if !os.IsNotExist(err) {
		t.Fatalf("expected IsNotExist, got %v", err)
	}
}

func TestLoadCorruptFileReturnsParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	f := New(path)
	var out payload
	if err := f.Load(&out); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveOverwritesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	f := New(filepath.Join(dir, "jobs.json"))

	if err := f.Save(payload{Version: 1}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := f.Save(payload{Version: 2}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	var out payload
	if err := f.Load(&out); err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.Version != 2 {
		t.Fatalf("expected version 2, got %d", out.Version)
	}
}
