// Package queue is the producing side of the offline subsystem: it
// turns attendance marks into durable queue items and reports queue
// depth to the UI layer. Every mark is queued first, even while
// online; the sync engine drains opportunistically afterwards. That
// ordering is the central reliability guarantee: marking attendance
// never blocks on, or is lost to, the network.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/attendsync/internal/queuestore"
	"github.com/campuskit/attendsync/internal/types"
)

// CorruptPolicy decides what happens when the persisted queue fails to
// decode.
type CorruptPolicy string

const (
	// CorruptFail surfaces the error and blocks queue operations until
	// someone resolves the state. The default.
	CorruptFail CorruptPolicy = "fail"

	// CorruptReset archives the corrupt blob and starts over with an
	// empty queue, logging a warning.
	CorruptReset CorruptPolicy = "reset"
)

// Options tune a Manager.
type Options struct {
	// Dedupe replaces a pending item that carries the same
	// (student, subject, date) key as a newly enqueued mark, so the
	// later intent supersedes the earlier one within the offline
	// window. Off by default: the original client relied on the remote
	// uniqueness constraint instead, and this flag preserves that
	// behavior for compatibility.
	Dedupe bool

	CorruptPolicy CorruptPolicy

	// Now overrides the clock, for tests.
	Now func() time.Time

	// Lock serializes the load-modify-save against other writers of
	// the same store, normally shared with the sync engine. Left nil,
	// the manager uses its own mutex.
	Lock sync.Locker
}

// Manager enqueues queue items and tracks the unsynced count.
type Manager struct {
	store   queuestore.Store
	online  func() bool
	trigger func(ctx context.Context)
	logger  *slog.Logger
	opts    Options

	// qmu guards the store's load-modify-save; mu guards only the
	// cached counters. Lock order is always qmu before mu.
	qmu     sync.Locker
	mu      sync.RWMutex
	pending int
	failed  int
}

// NewManager creates a manager. online reports current connectivity;
// trigger fires a background drain and must not block.
func NewManager(store queuestore.Store, online func() bool, trigger func(ctx context.Context), logger *slog.Logger, opts Options) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CorruptPolicy == "" {
		opts.CorruptPolicy = CorruptFail
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	qmu := opts.Lock
	if qmu == nil {
		qmu = new(sync.Mutex)
	}
	return &Manager{
		store:   store,
		online:  online,
		trigger: trigger,
		logger:  logger.With("component", "queue"),
		opts:    opts,
		qmu:     qmu,
	}
}

// Enqueue validates the mark, appends it durably to the queue, and, if
// online, kicks off a background drain. It returns once the item is
// persisted; network completion is never waited on. Works fully
// offline.
func (m *Manager) Enqueue(ctx context.Context, mark types.AttendanceMark) (types.QueueItem, error) {
	if err := mark.Validate(); err != nil {
		return types.QueueItem{}, fmt.Errorf("invalid mark: %w", err)
	}

	item := types.QueueItem{
		ID:        uuid.NewString(),
		Type:      types.TypeAttendanceMark,
		Payload:   mark,
		Timestamp: m.opts.Now().UTC(),
	}

	m.qmu.Lock()
	defer m.qmu.Unlock()

	q, err := m.load(ctx)
	if err != nil {
		return types.QueueItem{}, err
	}

	if m.opts.Dedupe {
		q.Items = m.supersede(q.Items, mark)
	}
	q.Items = append(q.Items, item)

	if err := m.store.Save(ctx, q); err != nil {
		return types.QueueItem{}, fmt.Errorf("persist queue: %w", err)
	}

	pending := q.PendingCount()
	m.mu.Lock()
	m.pending = pending
	m.failed = q.FailedCount()
	m.mu.Unlock()
	m.logger.Info("mark enqueued", "id", item.ID, "key", mark.Hash(), "pending", pending)

	if m.online != nil && m.online() && m.trigger != nil {
		m.trigger(ctx)
	}
	return item, nil
}

// supersede drops pending items holding the same logical key as mark.
func (m *Manager) supersede(items []types.QueueItem, mark types.AttendanceMark) []types.QueueItem {
	key := mark.Key()
	kept := items[:0]
	for _, it := range items {
		if it.Pending() && it.Type == types.TypeAttendanceMark && it.Payload.Key() == key {
			m.logger.Info("superseded pending mark", "id", it.ID, "key", mark.Hash())
			continue
		}
		kept = append(kept, it)
	}
	return kept
}

// Count returns the number of items awaiting sync. A UI signal, not a
// transactional guarantee; it may lag concurrent mutations briefly.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending
}

// FailedCount returns the number of terminally failed items.
func (m *Manager) FailedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failed
}

// SetCounts lets the sync engine publish fresh counts after a drain.
func (m *Manager) SetCounts(pending, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = pending
	m.failed = failed
}

// Refresh recomputes counts from the store, typically at startup.
func (m *Manager) Refresh(ctx context.Context) error {
	m.qmu.Lock()
	defer m.qmu.Unlock()

	q, err := m.load(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.pending = q.PendingCount()
	m.failed = q.FailedCount()
	m.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the persisted queue for status surfaces
// and tests.
func (m *Manager) Snapshot(ctx context.Context) (types.Queue, error) {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	return m.load(ctx)
}

// load reads the queue, applying the corrupt-recovery policy.
func (m *Manager) load(ctx context.Context) (types.Queue, error) {
	q, err := m.store.Load(ctx)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, queuestore.ErrCorrupt) || m.opts.CorruptPolicy != CorruptReset {
		return types.Queue{}, err
	}

	m.logger.Warn("queue state corrupt, resetting", "error", err)
	if err := m.store.Reset(ctx); err != nil {
		return types.Queue{}, fmt.Errorf("reset corrupt queue: %w", err)
	}
	return types.NewQueue(), nil
}
