package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("store closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free single-file backend (JSON snapshot)
//   - "sqlite": SQLite database file (optional build tag)
//   - "memory": process-local, lost on restart
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
