// Package memstore is a map-backed account store for tests and
// single-process deployments that do not need durability.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-sh/custodia/model"
	"github.com/custodia-sh/custodia/store"
)

type Store struct {
	mu    sync.RWMutex
	accts map[string]*model.Account
}

func New() *Store {
	return &Store{accts: make(map[string]*model.Account)}
}

func (s *Store) Get(ctx context.Context, id string) (*model.Account, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accts[id]
	return ok, nil
}

func (s *Store) Put(ctx context.Context, account *model.Account) error {
	_ = ctx
	if account == nil || account.ID == "" {
		return store.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accts[account.ID] = account.Clone()
	return nil
}

func (s *Store) Scan(ctx context.Context) ([]*model.Account, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Account, 0, len(s.accts))
	for _, a := range s.accts {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Apply installs the whole batch under one lock; concurrent readers see
// either none or all of it.
func (s *Store) Apply(ctx context.Context, batch []*model.Account) error {
	_ = ctx
	for _, a := range batch {
		if a == nil || a.ID == "" {
			return store.ErrInvalidID
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range batch {
		s.accts[a.ID] = a.Clone()
	}
	return nil
}
