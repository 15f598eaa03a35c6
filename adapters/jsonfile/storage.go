package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"coupong/core"
)

// Store persists every category's leaderboard to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.Category]core.Snapshot
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.Category]core.Snapshot{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]core.Snapshot
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		v.Category = core.Category(k)
		s.data[core.Category(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]core.Snapshot, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Save(_ context.Context, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := snap.Clone()
	prev, had := s.data[snap.Category]
	s.data[snap.Category] = cp
	if err := s.persist(); err != nil {
		// keep the cache consistent with the file
		if had {
			s.data[snap.Category] = prev
		} else {
			delete(s.data, snap.Category)
		}
		return err
	}
	return nil
}

func (s *Store) Load(_ context.Context, c core.Category) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.data[c]
	if !ok {
		return core.Snapshot{}, core.ErrNotFound
	}
	return snap.Clone(), nil
}
