package backend

import (
	"context"

	"registros/internal/auth"
	"registros/internal/records"
)

// CleanupFunc releases what the backend opened.
type CleanupFunc func() error

// BackendResult bundles everything a process needs from one data backend.
// Users is backed by the same storage as Records.
type BackendResult struct {
	Records records.Repository
	Users   auth.UserStore
	Pinger  records.Pinger
	Cleanup CleanupFunc
}

// Close runs Cleanup when present.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds what backend creation needs from the app config.
type Config struct {
	Type BackendType

	// memory
	SeedFile string

	// sqlite
	SQLiteDBPath string

	// postgres
	DatabaseURL string
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
