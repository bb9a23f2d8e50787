package queue

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campuskit/attendsync/internal/queuestore"
	"github.com/campuskit/attendsync/internal/types"
)

func mark(student string, status types.Status) types.AttendanceMark {
	return types.AttendanceMark{
		StudentID: student,
		SubjectID: "sub-1",
		Date:      "2026-03-14",
		Status:    status,
		MarkedBy:  "fac-1",
	}
}

func newManager(t *testing.T, online bool, opts Options) (*Manager, *queuestore.FileStore, *atomic.Int32) {
	t.Helper()
	store, err := queuestore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	var triggers atomic.Int32
	m := NewManager(store,
		func() bool { return online },
		func(ctx context.Context) { triggers.Add(1) },
		nil, opts)
	return m, store, &triggers
}

func TestEnqueueWhileOffline(t *testing.T) {
	m, store, triggers := newManager(t, false, Options{})

	item, err := m.Enqueue(context.Background(), mark("stu-1", types.StatusPresent))
	if err != nil {
		t.Fatalf("enqueue must succeed offline: %v", err)
	}
	if item.ID == "" || item.Synced || item.Retries != 0 {
		t.Fatalf("bad item: %+v", item)
	}
	if triggers.Load() != 0 {
		t.Fatal("no sync trigger while offline")
	}
	if m.Count() != 1 {
		t.Fatalf("Count = %d, want 1", m.Count())
	}

	// Durable: visible from a fresh store handle, as after a restart.
	q, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(q.Items) != 1 || q.Items[0].Synced {
		t.Fatalf("item not durably unsynced: %+v", q.Items)
	}
}

func TestEnqueueOnlineFiresTrigger(t *testing.T) {
	m, _, triggers := newManager(t, true, Options{})
	if _, err := m.Enqueue(context.Background(), mark("stu-1", types.StatusPresent)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if triggers.Load() != 1 {
		t.Fatalf("triggers = %d, want 1", triggers.Load())
	}
}

func TestEnqueuePreservesOrderAndIDs(t *testing.T) {
	m, store, _ := newManager(t, false, Options{})
	ctx := context.Background()

	a, _ := m.Enqueue(ctx, mark("stu-1", types.StatusPresent))
	b, _ := m.Enqueue(ctx, mark("stu-2", types.StatusAbsent))
	if a.ID == b.ID {
		t.Fatal("ids must be unique")
	}

	q, _ := store.Load(ctx)
	if len(q.Items) != 2 || q.Items[0].ID != a.ID || q.Items[1].ID != b.ID {
		t.Fatalf("insertion order lost: %+v", q.Items)
	}
}

func TestEnqueueRejectsInvalidMark(t *testing.T) {
	m, _, _ := newManager(t, true, Options{})
	bad := mark("stu-1", "gone")
	if _, err := m.Enqueue(context.Background(), bad); err == nil {
		t.Fatal("invalid status must be rejected at enqueue")
	}
	if m.Count() != 0 {
		t.Fatal("rejected mark must not be queued")
	}
}

func TestDedupeSupersedesPendingMark(t *testing.T) {
	m, store, _ := newManager(t, false, Options{Dedupe: true})
	ctx := context.Background()

	m.Enqueue(ctx, mark("stu-1", types.StatusAbsent))
	m.Enqueue(ctx, mark("stu-1", types.StatusPresent)) // same key, later intent

	q, _ := store.Load(ctx)
	if len(q.Items) != 1 {
		t.Fatalf("expected 1 item after supersede, got %d", len(q.Items))
	}
	if q.Items[0].Payload.Status != types.StatusPresent {
		t.Fatalf("later intent must win, got %s", q.Items[0].Payload.Status)
	}
	if m.Count() != 1 {
		t.Fatalf("Count = %d, want 1", m.Count())
	}
}

func TestDedupeLeavesSyncedItemsAlone(t *testing.T) {
	m, store, _ := newManager(t, false, Options{Dedupe: true})
	ctx := context.Background()

	first, _ := m.Enqueue(ctx, mark("stu-1", types.StatusAbsent))
	q, _ := store.Load(ctx)
	q.Items[0].Synced = true
	if err := store.Save(ctx, q); err != nil {
		t.Fatalf("save: %v", err)
	}

	m.Enqueue(ctx, mark("stu-1", types.StatusPresent))
	q, _ = store.Load(ctx)
	if len(q.Items) != 2 {
		t.Fatalf("synced item must not be superseded, got %d items", len(q.Items))
	}
	if q.Items[0].ID != first.ID {
		t.Fatal("synced item displaced")
	}
}

func TestDedupeOffKeepsBothIntents(t *testing.T) {
	m, store, _ := newManager(t, false, Options{})
	ctx := context.Background()

	m.Enqueue(ctx, mark("stu-1", types.StatusAbsent))
	m.Enqueue(ctx, mark("stu-1", types.StatusPresent))

	q, _ := store.Load(ctx)
	if len(q.Items) != 2 {
		t.Fatalf("with dedupe off both intents stay queued, got %d", len(q.Items))
	}
}

func TestCorruptPolicyFail(t *testing.T) {
	store, err := queuestore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := os.WriteFile(store.Path(), []byte("garbage"), 0640); err != nil {
		t.Fatalf("write: %v", err)
	}

	m := NewManager(store, nil, nil, nil, Options{})
	if _, err := m.Enqueue(context.Background(), mark("stu-1", types.StatusPresent)); !errors.Is(err, queuestore.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt surfaced, got %v", err)
	}
}

func TestCorruptPolicyReset(t *testing.T) {
	store, err := queuestore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := os.WriteFile(store.Path(), []byte("garbage"), 0640); err != nil {
		t.Fatalf("write: %v", err)
	}

	m := NewManager(store, nil, nil, nil, Options{CorruptPolicy: CorruptReset})
	if _, err := m.Enqueue(context.Background(), mark("stu-1", types.StatusPresent)); err != nil {
		t.Fatalf("reset policy should recover: %v", err)
	}

	q, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(q.Items) != 1 {
		t.Fatalf("expected fresh queue with the new item, got %+v", q.Items)
	}
}

func TestRefreshRecomputesCounts(t *testing.T) {
	m, store, _ := newManager(t, false, Options{})
	ctx := context.Background()

	m.Enqueue(ctx, mark("stu-1", types.StatusPresent))
	m.Enqueue(ctx, mark("stu-2", types.StatusPresent))

	// Simulate the sync engine retiring one item out of band.
	q, _ := store.Load(ctx)
	q.Items[0].Synced = true
	if err := store.Save(ctx, q); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if m.Count() != 1 {
		t.Fatalf("Count = %d, want 1", m.Count())
	}
}

func TestEnqueueTimestampsAreUTC(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	m, _, _ := newManager(t, false, Options{Now: func() time.Time { return fixed }})

	item, err := m.Enqueue(context.Background(), mark("stu-1", types.StatusPresent))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if item.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp zone = %v, want UTC", item.Timestamp.Location())
	}
	if !item.Timestamp.Equal(fixed) {
		t.Fatalf("timestamp = %v, want instant of %v", item.Timestamp, fixed)
	}
}
