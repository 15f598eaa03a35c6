package memory

import (
	"context"
	"sync"

	"coupong/core"
)

// Store is a concurrent in-memory leaderboard snapshot store.
type Store struct {
	boards sync.Map // map[core.Category]*boardRecord
}

type boardRecord struct {
	mu   sync.Mutex
	snap core.Snapshot
}

func New() *Store { return &Store{} }

func (s *Store) Save(_ context.Context, snap core.Snapshot) error {
	rec := &boardRecord{}
	if v, loaded := s.boards.LoadOrStore(snap.Category, rec); loaded {
		rec = v.(*boardRecord)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.snap = snap.Clone()
	return nil
}

func (s *Store) Load(_ context.Context, c core.Category) (core.Snapshot, error) {
	v, ok := s.boards.Load(c)
	if !ok {
		return core.Snapshot{}, core.ErrNotFound
	}
	rec := v.(*boardRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snap.Clone(), nil
}

var _ interface {
	Save(context.Context, core.Snapshot) error
	Load(context.Context, core.Category) (core.Snapshot, error)
} = (*Store)(nil)
