// Package worker applies record events to the spreadsheet mirror.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"registros/internal/amqp"
	"registros/internal/core"
	"registros/internal/log"
	"registros/internal/records"
	"registros/internal/sheets"
)

// MirrorWorker replays events into a sheets.Mirror. When a repository is
// set, create/update events re-read the row so out-of-order deliveries
// still converge on the latest state.
type MirrorWorker struct {
	mirror sheets.Mirror
	repo   records.Repository

	processed atomic.Int64
	failed    atomic.Int64
}

func NewMirrorWorker(mirror sheets.Mirror, repo records.Repository) *MirrorWorker {
	return &MirrorWorker{mirror: mirror, repo: repo}
}

// HandleRecordEvent is the amqp consumer callback. A returned error
// requeues the delivery.
func (w *MirrorWorker) HandleRecordEvent(ctx context.Context, ev *amqp.RecordEvent) error {
	err := w.apply(ctx, ev)
	if err != nil {
		w.failed.Add(1)
		return err
	}
	w.processed.Add(1)
	return nil
}

func (w *MirrorWorker) apply(ctx context.Context, ev *amqp.RecordEvent) error {
	switch ev.Type {
	case amqp.RecordDeleted:
		if err := w.mirror.DeleteRecord(ctx, ev.ID); err != nil {
			return fmt.Errorf("delete mirrored registro %d: %w", ev.ID, err)
		}
		slog.InfoContext(ctx, "Removed registro from mirror", log.FieldRecordID, ev.ID)
		return nil

	case amqp.RecordCreated, amqp.RecordUpdated:
		rec, gone, err := w.latest(ctx, ev)
		if err != nil {
			return err
		}
		if gone {
			slog.InfoContext(ctx, "Registro deleted before sync, removing from mirror", log.FieldRecordID, ev.ID)
			return w.mirror.DeleteRecord(ctx, ev.ID)
		}
		if err := w.mirror.UpsertRecord(ctx, rec); err != nil {
			return fmt.Errorf("upsert mirrored registro %d: %w", ev.ID, err)
		}
		slog.InfoContext(ctx, "Mirrored registro", log.FieldRecordID, ev.ID, log.FieldEventType, ev.Type)
		return nil

	default:
		// Unknown types cannot succeed on retry.
		slog.WarnContext(ctx, "Ignoring unknown record event", log.FieldEventType, ev.Type, log.FieldRecordID, ev.ID)
		return nil
	}
}

func (w *MirrorWorker) latest(ctx context.Context, ev *amqp.RecordEvent) (core.Record, bool, error) {
	if w.repo == nil {
		if ev.Record == nil {
			return core.Record{}, false, fmt.Errorf("%s event %d carries no record", ev.Type, ev.ID)
		}
		return *ev.Record, false, nil
	}

	rec, err := w.repo.GetRecord(ctx, ev.ID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Record{}, true, nil
	}
	if err != nil {
		return core.Record{}, false, fmt.Errorf("get registro %d: %w", ev.ID, err)
	}
	return rec, false, nil
}

// Stats returns processed and failed event counts.
func (w *MirrorWorker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}
