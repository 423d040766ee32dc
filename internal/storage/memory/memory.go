// Package memory provides a volatile Store, used by tests and for
// throwaway sessions that should not touch disk.
package memory

import (
	"errors"
	"slices"
	"sync"

	"smartexpense/internal/core"
)

// ErrSaveFailed is returned by SaveAll while failure injection is on.
var ErrSaveFailed = errors.New("memory store: save failed")

type Store struct {
	mu       sync.Mutex
	items    []core.Expense
	saves    int
	failSave bool
}

// New seeds the store with items.
func New(items ...core.Expense) *Store {
	return &Store{items: slices.Clone(items)}
}

// LoadAll returns a copy of the stored collection. Nothing is ever skipped.
func (s *Store) LoadAll() ([]core.Expense, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.items)
	if out == nil {
		out = []core.Expense{}
	}
	return out, 0, nil
}

// SaveAll replaces the stored collection.
func (s *Store) SaveAll(expenses []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return ErrSaveFailed
	}
	s.items = slices.Clone(expenses)
	s.saves++
	return nil
}

// FailSaves toggles failure injection for SaveAll.
func (s *Store) FailSaves(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = fail
}

// Saves reports how many SaveAll calls succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
