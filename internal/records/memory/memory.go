// Package memory is the in-process Repository used for local development
// and tests. Data is lost on restart unless a seed file is provided.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"registros/internal/core"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Record
	now    func() time.Time
}

func New(seed ...core.Record) *Store {
	s := &Store{nextID: 1, now: time.Now}
	for _, r := range seed {
		if r.ID == 0 {
			r.ID = s.nextID
		}
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = s.now()
		}
		s.items = append(s.items, r.Clone())
	}
	return s
}

// NewFromFile seeds the store from a JSON array of records. A missing file
// yields an empty store; a malformed one is an error.
func NewFromFile(path string) (*Store, error) {
	if path == "" {
		return New(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed []core.Record
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return New(seed...), nil
}

func (s *Store) FetchRecords(ctx context.Context, order core.SortOrder) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &core.FetchError{Op: "memory", Err: err}
	}
	s.mu.Lock()
	out := core.CloneAll(s.items)
	s.mu.Unlock()
	if out == nil {
		out = []core.Record{}
	}
	core.SortByDate(out, order)
	return out, nil
}

func (s *Store) GetRecord(_ context.Context, id int64) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Record{}, core.ErrNotFound
	}
	return s.items[i].Clone(), nil
}

func (s *Store) CreateRecord(ctx context.Context, r core.Record) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return core.Record{}, &core.WriteError{Op: "create", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextID
	s.nextID++
	r.CreatedAt = s.now()
	s.items = append(s.items, r.Clone())
	return r, nil
}

func (s *Store) UpdateRecord(ctx context.Context, r core.Record) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return core.Record{}, &core.WriteError{Op: "update", ID: r.ID, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(r.ID)
	if i < 0 {
		return core.Record{}, &core.WriteError{Op: "update", ID: r.ID, Err: core.ErrNotFound}
	}
	r.CreatedAt = s.items[i].CreatedAt
	s.items[i] = r.Clone()
	return r, nil
}

func (s *Store) DeleteRecord(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return &core.WriteError{Op: "delete", ID: id, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return &core.WriteError{Op: "delete", ID: id, Err: core.ErrNotFound}
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) indexOf(id int64) int {
	for i, r := range s.items {
		if r.ID == id {
			return i
		}
	}
	return -1
}
