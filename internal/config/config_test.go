package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BotName != Default().BotName {
		t.Fatalf("expected default bot name, got %q", cfg.BotName)
	}
	if cfg.Enabled == nil || !*cfg.Enabled {
		t.Fatal("expected enabled to default true")
	}
}

func TestParseFillsMissingSections(t *testing.T) {
	cfg, err := Parse([]byte("botName: myBot\nmaxJobsPerChat: 5\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.BotName != "myBot" || cfg.MaxJobsPerChat != 5 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.DefaultPolicy.RetryBackoffMs < 1000 {
		t.Fatalf("expected defaulted retry backoff, got %d", cfg.DefaultPolicy.RetryBackoffMs)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte("notAField: true\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsCorruptFileWithoutPanicking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("botName: [unterminated"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for corrupt yaml")
	}
}
