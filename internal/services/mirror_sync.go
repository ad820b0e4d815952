package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"registros/internal/core"
	"registros/internal/log"
	"registros/internal/records"
	"registros/internal/sheets"
)

type MirrorSyncConfig struct {
	// PollInterval is how often the whole table is replayed (default: 10m).
	PollInterval time.Duration
}

func DefaultMirrorSyncConfig() MirrorSyncConfig {
	return MirrorSyncConfig{PollInterval: 10 * time.Minute}
}

// MirrorSync periodically replays the repository into the mirror and
// prunes rows whose record is gone. It covers events lost while the broker
// was unreachable, and is the only sync path when no broker is configured.
type MirrorSync struct {
	repo   records.Repository
	mirror sheets.Mirror
	config MirrorSyncConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMirrorSync(repo records.Repository, mirror sheets.Mirror, config MirrorSyncConfig) *MirrorSync {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultMirrorSyncConfig().PollInterval
	}
	return &MirrorSync{repo: repo, mirror: mirror, config: config}
}

// Start begins the loop. Returns an error if already running.
func (p *MirrorSync) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror sync is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Mirror sync started", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop signals the loop and waits for it, or for ctx.
func (p *MirrorSync) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Mirror sync stopped")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror sync stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *MirrorSync) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MirrorSync) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.reconcileAndLog(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reconcileAndLog(ctx)
		}
	}
}

func (p *MirrorSync) reconcileAndLog(ctx context.Context) {
	upserted, pruned, err := p.Reconcile(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Mirror reconcile failed", log.FieldOperation, log.OpSync, log.FieldError, err)
		return
	}
	slog.InfoContext(ctx, "Mirror reconciled", log.FieldOperation, log.OpSync, "upserted", upserted, "pruned", pruned)
}

// Reconcile upserts every record and, when the mirror can list its ids,
// deletes rows for records that no longer exist.
func (p *MirrorSync) Reconcile(ctx context.Context) (upserted, pruned int, err error) {
	fetchCtx, cancel := context.WithTimeout(ctx, DefaultRepoTimeout)
	rows, err := p.repo.FetchRecords(fetchCtx, core.Ascending)
	cancel()
	if err != nil {
		return 0, 0, fmt.Errorf("fetch registros: %w", err)
	}

	present := make(map[int64]bool, len(rows))
	for _, r := range rows {
		present[r.ID] = true
		if err := p.mirror.UpsertRecord(ctx, r); err != nil {
			return upserted, 0, fmt.Errorf("upsert %d: %w", r.ID, err)
		}
		upserted++
	}

	lister, ok := p.mirror.(sheets.IDLister)
	if !ok {
		return upserted, 0, nil
	}
	ids, err := lister.RecordIDs(ctx)
	if err != nil {
		return upserted, 0, fmt.Errorf("list mirrored ids: %w", err)
	}
	for _, id := range ids {
		if present[id] {
			continue
		}
		if err := p.mirror.DeleteRecord(ctx, id); err != nil {
			return upserted, pruned, fmt.Errorf("prune %d: %w", id, err)
		}
		pruned++
	}
	return upserted, pruned, nil
}
