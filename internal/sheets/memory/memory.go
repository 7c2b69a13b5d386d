package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"expenses/internal/core"
	ports "expenses/internal/sheets"
)

// Store is an in-process exporter used when no spreadsheet is configured.
type Store struct {
	mu    sync.Mutex
	items map[int64]core.Expense
}

var (
	_ ports.ExpenseExporter = (*Store)(nil)
	_ ports.BulkExporter    = (*Store)(nil)
)

func New() *Store {
	return &Store{items: make(map[int64]core.Expense)}
}

// Upsert stores the expense and returns a synthetic row reference.
func (s *Store) Upsert(_ context.Context, e core.Expense) (string, error) {
	if e.ID <= 0 {
		return "", fmt.Errorf("expense has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Tags = append([]string(nil), e.Tags...)
	s.items[e.ID] = e
	return fmt.Sprintf("mem:%d", e.ID), nil
}

// UpsertAll stores every expense, stopping at the first one without an id.
func (s *Store) UpsertAll(ctx context.Context, expenses []core.Expense) (int, error) {
	for i, e := range expenses {
		if _, err := s.Upsert(ctx, e); err != nil {
			return i, err
		}
	}
	return len(expenses), nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *Store) Get(id int64) (core.Expense, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	return e, ok
}

// Rows returns the exported expenses ordered by id.
func (s *Store) Rows() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
