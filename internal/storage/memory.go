package storage

import (
	"context"
	"strings"
	"sync"
)

// memStore keeps the mapping in process memory only. Used when persistence
// is disabled (the bot re-posts after every restart) and in tests.
type memStore struct {
	mu  sync.Mutex
	ids map[string]string
}

func NewMemory() Store {
	return &memStore{ids: map[string]string{}}
}

func (s *memStore) Close() error { return nil }

func (s *memStore) Get(ctx context.Context, dest string) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[strings.TrimSpace(dest)]
	return id, ok, nil
}

func (s *memStore) Set(ctx context.Context, dest, id string) error {
	_ = ctx
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.TrimSpace(id) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[dest] = id
	return nil
}

func (s *memStore) Delete(ctx context.Context, dest string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, strings.TrimSpace(dest))
	return nil
}
