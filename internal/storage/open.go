package storage

import (
	"context"
	"errors"
	"strings"

	logx "scorebot/pkg/logx"
)

// Store is the delivered-message bookkeeping API used by the delivery engine.
//
// It maps a destination key to the id of the message last posted there, so
// the next cycle can edit in place instead of posting again.
//
// Contract:
//   - Set and Delete are durable before they return.
//   - A missing or unreadable backing file yields an empty mapping, never
//     an open error.
type Store interface {
	Get(ctx context.Context, dest string) (id string, ok bool, err error)
	Set(ctx context.Context, dest, id string) error
	Delete(ctx context.Context, dest string) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory", "mem":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
