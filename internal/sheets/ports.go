// Package sheets defines the spreadsheet mirror that record events are
// replayed into.
package sheets

import (
	"context"

	"registros/internal/core"
)

type (
	// Mirror keeps one row per record, keyed by record id.
	Mirror interface {
		UpsertRecord(ctx context.Context, r core.Record) error
		// DeleteRecord is a no-op for ids the mirror does not hold.
		DeleteRecord(ctx context.Context, id int64) error
	}

	// IDLister is implemented by mirrors that can report which ids they
	// hold, so a full reconcile can prune rows for deleted records.
	IDLister interface {
		RecordIDs(ctx context.Context) ([]int64, error)
	}
)
