//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "scorebot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Get(ctx context.Context, dest string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrDisabled
	}
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return "", false, nil
	}
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT message_id FROM messages WHERE dest = ?`, dest).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

func (s *sqliteStore) Set(ctx context.Context, dest, id string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.TrimSpace(id) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(dest, message_id, updated_at) VALUES(?,?,?)
		 ON CONFLICT(dest) DO UPDATE SET message_id=excluded.message_id, updated_at=excluded.updated_at`,
		dest, id, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, dest string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE dest = ?`, dest)
	return err
}
