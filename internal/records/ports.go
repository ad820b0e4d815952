// Package records defines the storage port for the registros table. Every
// backend (memory, SQLite, Postgres) implements Repository and the rest of
// the application only talks to it through this interface.
package records

import (
	"context"

	"registros/internal/core"
)

//go:generate mockgen -source=ports.go -destination=repository_mock.go -package=records
type Repository interface {
	// FetchRecords returns the whole table ordered by data.
	FetchRecords(ctx context.Context, order core.SortOrder) ([]core.Record, error)
	// GetRecord returns core.ErrNotFound when id does not exist.
	GetRecord(ctx context.Context, id int64) (core.Record, error)
	// CreateRecord ignores r.ID and returns the stored row.
	CreateRecord(ctx context.Context, r core.Record) (core.Record, error)
	// UpdateRecord replaces every mutable field of the row with r.ID.
	UpdateRecord(ctx context.Context, r core.Record) (core.Record, error)
	DeleteRecord(ctx context.Context, id int64) error
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
