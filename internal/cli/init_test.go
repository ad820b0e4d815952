package cli

import (
	"context"
	"path/filepath"
	"testing"

	"registros/internal/config"
	"registros/internal/log"
)

func TestSetupLogger(t *testing.T) {
	l := SetupLogger(log.ComponentWorker, "debug")
	if l.Component() != log.ComponentWorker {
		t.Errorf("Component() = %q", l.Component())
	}
	if !l.Enabled(context.Background(), -4) { // slog.LevelDebug
		t.Error("debug level should be enabled")
	}
}

func TestOpenBackend(t *testing.T) {
	logger := log.New(log.DefaultConfig())

	cfg := &config.Config{DataBackend: "sqlite", SQLiteDBPath: filepath.Join(t.TempDir(), "r.db")}
	res, err := openBackend(context.Background(), logger, cfg)
	if err != nil {
		t.Fatalf("openBackend() error = %v", err)
	}
	defer res.Close()
	if res.Records == nil || res.Users == nil {
		t.Error("backend result is incomplete")
	}

	if _, err := openBackend(context.Background(), logger, &config.Config{DataBackend: "nope"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
