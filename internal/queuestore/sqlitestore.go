package queuestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/campuskit/attendsync/internal/types"
)

// SQLiteStore persists the queue blob in a one-row SQLite table. The
// engine's transactional writes give the same crash-atomicity as the
// file store's rename.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite-backed store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Single writer; WAL keeps readers from blocking it.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("wal mode: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sync_queue (
		key        TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (types.Queue, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM sync_queue WHERE key = ?`, StorageKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NewQueue(), nil
	}
	if err != nil {
		return types.Queue{}, fmt.Errorf("read queue: %w", err)
	}
	return decodeQueue(data)
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, q types.Queue) error {
	data, err := encodeQueue(q)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sync_queue (key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		StorageKey, data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write queue: %w", err)
	}
	return nil
}

// Reset moves the current blob into an archive row before clearing it.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	archiveKey := fmt.Sprintf("%s.corrupt-%d", StorageKey, time.Now().Unix())
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET key = ? WHERE key = ?`, archiveKey, StorageKey)
	if err != nil {
		return fmt.Errorf("archive queue: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
