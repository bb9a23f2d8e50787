package queuestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/campuskit/attendsync/internal/types"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	q, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(q.Items) != 0 {
		t.Fatalf("expected empty queue, got %d", len(q.Items))
	}

	q.Items = append(q.Items, testItem("a"), testItem("b"))
	if err := s.Save(ctx, q); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen, simulating restart.
	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Load(ctx)
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].ID != "a" || got.Items[1].ID != "b" {
		t.Fatalf("unexpected items after reopen: %+v", got.Items)
	}
}

func TestSQLiteStoreSaveReplaces(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	q := types.NewQueue()
	q.Items = append(q.Items, testItem("a"))
	if err := s.Save(ctx, q); err != nil {
		t.Fatalf("save 1: %v", err)
	}

	q.Items = q.Items[:0]
	if err := s.Save(ctx, q); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Items) != 0 {
		t.Fatalf("save did not replace contents: %+v", got.Items)
	}
}

func TestSQLiteStoreCorruptAndReset(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_queue (key, payload, updated_at) VALUES (?, ?, ?)`,
		StorageKey, []byte("not json"), "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("seed corrupt: %v", err)
	}

	if _, err := s.Load(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	q, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load after reset: %v", err)
	}
	if len(q.Items) != 0 {
		t.Fatal("expected empty queue after reset")
	}

	// The corrupt blob is archived, not destroyed.
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE key LIKE ?`, StorageKey+".corrupt-%").Scan(&n); err != nil {
		t.Fatalf("count archive: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 archived row, got %d", n)
	}
}
