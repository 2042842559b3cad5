package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "scorebot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// It keeps the whole mapping in one JSON file (<prefix>.messages.json) and
// rewrites it atomically (tmp + rename) on every mutation. The mapping is a
// handful of entries (one per destination), so a full rewrite per Set/Delete
// is the simplest way to satisfy the flush-before-return contract.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	path string
	ids  map[string]string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".messages.json"

	// Startup reads are tolerant: a missing file is a fresh start, a corrupt
	// file is logged and replaced on the next write. The bot then re-posts
	// instead of editing, which is the documented degraded mode.
	ids := map[string]string{}
	if err := loadSnapshot(snapPath, ids); err != nil && !os.IsNotExist(err) {
		log.Warn("message-id snapshot unreadable; starting empty",
			logx.String("path", snapPath), logx.Any("err", err))
		ids = map[string]string{}
	}

	return &fileStore{log: log, path: snapPath, ids: ids}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = nil
	return nil
}

func (s *fileStore) Get(ctx context.Context, dest string) (string, bool, error) {
	_ = ctx
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return "", false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids == nil {
		return "", false, ErrClosed
	}
	id, ok := s.ids[dest]
	return id, ok, nil
}

func (s *fileStore) Set(ctx context.Context, dest, id string) error {
	_ = ctx
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.TrimSpace(id) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids == nil {
		return ErrClosed
	}
	s.ids[dest] = id
	return s.flushLocked()
}

func (s *fileStore) Delete(ctx context.Context, dest string) error {
	_ = ctx
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids == nil {
		return ErrClosed
	}
	if _, ok := s.ids[dest]; !ok {
		return nil
	}
	delete(s.ids, dest)
	return s.flushLocked()
}

// flushLocked writes the snapshot atomically. Partial writes never clobber
// the previous snapshot because the rename happens last.
func (s *fileStore) flushLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.ids); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func loadSnapshot(path string, out map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]string
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return nil
}
