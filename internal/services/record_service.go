// Package services holds the application use cases that sit between the
// HTTP layer and the repository.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"registros/internal/amqp"
	"registros/internal/cache"
	"registros/internal/core"
	"registros/internal/records"
)

// DefaultRepoTimeout bounds every repository call made by the service.
const DefaultRepoTimeout = 7 * time.Second

// Publisher receives an event after each successful write.
type Publisher interface {
	PublishRecordEvent(ctx context.Context, ev *amqp.RecordEvent) error
}

// Report is what the report page renders.
type Report struct {
	Buckets    []core.Bucket
	Categories []string
	Total      int // records that contributed to a bucket
}

// RecordService reads through a versioned cache and writes straight to the
// repository. A write bumps the version so the next read refetches.
type RecordService struct {
	repo      records.Repository
	cache     *cache.LRUCache[[]core.Record]
	group     singleflight.Group
	version   atomic.Int64
	publisher Publisher
	timeout   time.Duration
}

func NewRecordService(repo records.Repository, c *cache.LRUCache[[]core.Record], pub Publisher) *RecordService {
	if c == nil {
		c = cache.NewLRUCache[[]core.Record](8, time.Minute)
	}
	return &RecordService{
		repo:      repo,
		cache:     c,
		publisher: pub,
		timeout:   DefaultRepoTimeout,
	}
}

func (s *RecordService) cacheKey(order core.SortOrder) string {
	return fmt.Sprintf("registros:%d:%s", s.version.Load(), order)
}

// Version is the current cache generation.
func (s *RecordService) Version() int64 {
	return s.version.Load()
}

func (s *RecordService) invalidate() {
	s.version.Add(1)
	s.cache.Purge()
}

// Fetch returns the whole table in the given order. The slice is the
// caller's to modify.
func (s *RecordService) Fetch(ctx context.Context, order core.SortOrder) ([]core.Record, error) {
	if order != core.Descending {
		order = core.Ascending
	}
	key := s.cacheKey(order)
	if cached, ok := s.cache.Get(key); ok {
		return core.CloneAll(cached), nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		rows, err := s.repo.FetchRecords(ctx, order)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, rows)
		return rows, nil
	})
	if err != nil {
		var fe *core.FetchError
		if !errors.As(err, &fe) {
			err = &core.FetchError{Op: "fetch", Err: err}
		}
		return nil, err
	}
	if shared {
		slog.DebugContext(ctx, "Coalesced registros fetch", "key", key)
	}
	return core.CloneAll(v.([]core.Record)), nil
}

// List is Fetch followed by the filter pipeline.
func (s *RecordService) List(ctx context.Context, order core.SortOrder, f core.Filter, now time.Time) ([]core.Record, error) {
	all, err := s.Fetch(ctx, order)
	if err != nil {
		return nil, err
	}
	if f.IsZero() {
		return all, nil
	}
	return core.ApplyFilter(all, f, now), nil
}

// Report aggregates the filtered records in ascending order.
func (s *RecordService) Report(ctx context.Context, f core.Filter, now time.Time) (Report, error) {
	rows, err := s.List(ctx, core.Ascending, f, now)
	if err != nil {
		return Report{}, err
	}
	buckets := core.Aggregate(rows)
	n := 0
	for _, b := range buckets {
		n += b.Count
	}
	return Report{
		Buckets:    buckets,
		Categories: core.Categories(rows),
		Total:      n,
	}, nil
}

// Categories is the form's category list: defaults plus those in use.
func (s *RecordService) Categories(ctx context.Context) []string {
	rows, err := s.Fetch(ctx, core.Ascending)
	if err != nil {
		slog.WarnContext(ctx, "Falling back to default categories", "error", err)
		return append([]string(nil), core.DefaultCategories...)
	}
	return core.KnownCategories(rows)
}

func (s *RecordService) Get(ctx context.Context, id int64) (core.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.GetRecord(ctx, id)
}

// Create validates the draft and stores it. Validation errors never reach
// the repository.
func (s *RecordService) Create(ctx context.Context, d core.RecordDraft) (core.Record, error) {
	r, err := d.Parse()
	if err != nil {
		return core.Record{}, err
	}

	repoCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	created, err := s.repo.CreateRecord(repoCtx, r)
	if err != nil {
		return core.Record{}, err
	}

	s.invalidate()
	s.publish(ctx, amqp.RecordCreated, created)
	return created, nil
}

// Update replaces every mutable field of record id with the draft.
func (s *RecordService) Update(ctx context.Context, id int64, d core.RecordDraft) (core.Record, error) {
	r, err := d.Parse()
	if err != nil {
		return core.Record{}, err
	}
	r.ID = id

	repoCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	updated, err := s.repo.UpdateRecord(repoCtx, r)
	if err != nil {
		return core.Record{}, err
	}

	s.invalidate()
	s.publish(ctx, amqp.RecordUpdated, updated)
	return updated, nil
}

func (s *RecordService) Delete(ctx context.Context, id int64) error {
	repoCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.DeleteRecord(repoCtx, id); err != nil {
		return err
	}

	s.invalidate()
	s.publish(ctx, amqp.RecordDeleted, core.Record{ID: id})
	return nil
}

// publish never fails the write; the mirror catches up on the next
// reconcile.
func (s *RecordService) publish(ctx context.Context, t amqp.EventType, r core.Record) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping record event", "id", r.ID)
		return
	}
	if err := s.publisher.PublishRecordEvent(ctx, amqp.NewRecordEvent(t, r)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record event",
			"type", t,
			"id", r.ID,
			"error", err)
	}
}

// CacheStats feeds /metrics.
func (s *RecordService) CacheStats() cache.Stats {
	return s.cache.Stats()
}
