package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitSetsDefaultLevel(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(original)
	})

	Init(false)
	logger := slog.Default()
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("expected info to be disabled by default")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatalf("expected warn to be enabled by default")
	}

	Init(true)
	logger = slog.Default()
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("expected debug to be enabled with verbose")
	}
}

func TestInitWritesToStderr(t *testing.T) {
	original := slog.Default()
	stderr := os.Stderr
	t.Cleanup(func() {
		os.Stderr = stderr
		slog.SetDefault(original)
	})

	path := filepath.Join(t.TempDir(), "stderr.log")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	os.Stderr = f

	Init(false)
	slog.Info("load published", slog.Int("rows", 3))
	slog.Warn("load failed, keeping previous rows", slog.Uint64("generation", 2))
	os.Stderr = stderr

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "load published") {
		t.Fatalf("info must be dropped without verbose, got %q", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "generation=2") {
		t.Fatalf("expected warn record on stderr, got %q", out)
	}
}
