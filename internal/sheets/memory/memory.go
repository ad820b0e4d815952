// Package memory is an in-process sheets.Mirror used when no spreadsheet
// is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"registros/internal/core"
	"registros/internal/sheets"
)

var (
	_ sheets.Mirror   = (*Mirror)(nil)
	_ sheets.IDLister = (*Mirror)(nil)
)

type Mirror struct {
	mu   sync.Mutex
	rows map[int64]core.Record
}

func New() *Mirror {
	return &Mirror{rows: make(map[int64]core.Record)}
}

func (m *Mirror) UpsertRecord(_ context.Context, r core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.ID] = r.Clone()
	return nil
}

func (m *Mirror) DeleteRecord(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *Mirror) RecordIDs(context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Get returns the mirrored copy of a record.
func (m *Mirror) Get(id int64) (core.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	return r.Clone(), ok
}

func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
