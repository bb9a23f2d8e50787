// Package syncengine reconciles pending queue items against the remote
// attendance store. One drain cycle loads the queue, processes unsynced
// items oldest-first, resolves conflicts in the server's favor, updates
// retry state, prunes entries past the retention window, and persists
// the result. At most one drain runs at a time; overlapping requests
// are dropped, not queued.
package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campuskit/attendsync/internal/queuestore"
	"github.com/campuskit/attendsync/internal/remote"
	"github.com/campuskit/attendsync/internal/types"
)

// DefaultRetention is how long synced (and terminally failed) items
// stay in the queue before pruning.
const DefaultRetention = 30 * 24 * time.Hour

// Options tune an Engine.
type Options struct {
	// Retention overrides DefaultRetention.
	Retention time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time

	// OnCounts is published after every drain with the pending and
	// terminally failed item counts.
	OnCounts func(pending, failed int)

	// Lock serializes the load-modify-save against other writers of
	// the same store, normally shared with the queue manager. Left
	// nil, the engine uses its own mutex.
	Lock sync.Locker
}

// Engine drains the offline queue.
type Engine struct {
	store  queuestore.Store
	remote remote.Store
	online func() bool
	logger *slog.Logger

	retention time.Duration
	now       func() time.Time
	onCounts  func(pending, failed int)
	lock      sync.Locker

	syncing atomic.Bool
	wg      sync.WaitGroup
}

// New creates an engine. online gates drains; a nil online func means
// always online.
func New(store queuestore.Store, rs remote.Store, online func() bool, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:     store,
		remote:    rs,
		online:    online,
		logger:    logger.With("component", "syncengine"),
		retention: opts.Retention,
		now:       opts.Now,
		onCounts:  opts.OnCounts,
		lock:      opts.Lock,
	}
	if e.retention <= 0 {
		e.retention = DefaultRetention
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.lock == nil {
		e.lock = new(sync.Mutex)
	}
	return e
}

// IsSyncing reports whether a drain cycle is in flight.
func (e *Engine) IsSyncing() bool {
	return e.syncing.Load()
}

// TrySync spawns a drain in the background. Fire-and-forget: the
// caller never blocks on network completion, and a drain already in
// flight makes this a no-op.
func (e *Engine) TrySync(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.Sync(ctx); err != nil {
			e.logger.Warn("background sync failed", "error", err)
		}
	}()
}

// Wait blocks until all background drains have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Sync runs one drain cycle. Offline, or with a drain already in
// flight, it returns nil immediately; the next trigger picks up the
// remaining work.
func (e *Engine) Sync(ctx context.Context) error {
	if e.online != nil && !e.online() {
		return nil
	}
	if !e.syncing.CompareAndSwap(false, true) {
		return nil
	}
	defer e.syncing.Store(false)

	return e.drain(ctx)
}

func (e *Engine) drain(ctx context.Context) error {
	// An enqueue landing between Load and Save would otherwise be
	// overwritten by the saved copy.
	e.lock.Lock()
	defer e.lock.Unlock()

	q, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}

	processed := 0
	for i := range q.Items {
		if !q.Items[i].Pending() {
			continue
		}
		// Sequential, in enqueue order: the remote uniqueness
		// constraint makes the first upload for a key win, so order is
		// part of the contract.
		e.reconcile(ctx, &q.Items[i])
		processed++
	}

	if processed > 0 {
		if err := e.store.Save(ctx, q); err != nil {
			return fmt.Errorf("save queue: %w", err)
		}
	}

	pruned := e.prune(&q)
	if pruned > 0 {
		if err := e.store.Save(ctx, q); err != nil {
			return fmt.Errorf("save pruned queue: %w", err)
		}
		e.logger.Info("pruned retired items", "count", pruned)
	}

	if e.onCounts != nil {
		e.onCounts(q.PendingCount(), q.FailedCount())
	}
	return nil
}

// reconcile performs the per-item state transition. Only Synced,
// Retries, and Failed ever change.
func (e *Engine) reconcile(ctx context.Context, it *types.QueueItem) {
	if it.Type != types.TypeAttendanceMark {
		e.logger.Warn("unknown queue item type", "id", it.ID, "type", it.Type)
		it.Retries++
		return
	}

	mark := it.Payload
	existing, err := e.remote.FindRecord(ctx, mark.StudentID, mark.SubjectID, mark.Date)
	if err != nil {
		it.Retries++
		e.logger.Warn("conflict lookup failed", "id", it.ID, "key", mark.Hash(), "error", err)
		return
	}
	if existing != nil {
		// Server-authoritative data wins; suppress the upload.
		it.Synced = true
		e.logger.Info("conflict resolved, remote wins", "id", it.ID, "key", mark.Hash())
		return
	}

	switch err := e.remote.InsertRecord(ctx, mark); {
	case err == nil:
		it.Synced = true
	case remote.IsConflict(err):
		// Raced with a direct write between lookup and insert. Same as
		// the conflict case.
		it.Synced = true
		e.logger.Info("insert hit uniqueness constraint, remote wins", "id", it.ID, "key", mark.Hash())
	case remote.IsRejected(err):
		it.Retries++
		it.Failed = true
		e.logger.Error("record rejected, will not retry", "id", it.ID, "key", mark.Hash(), "error", err)
	default:
		it.Retries++
		e.logger.Warn("upload failed, will retry", "id", it.ID, "retries", it.Retries, "error", err)
	}
}

// prune drops retired items past the retention window. Pruning is the
// only removal path; it runs every cycle even when nothing was pending
// so retention applies to an otherwise idle queue.
func (e *Engine) prune(q *types.Queue) int {
	cutoff := e.now().Add(-e.retention)
	kept := q.Items[:0]
	pruned := 0
	for _, it := range q.Items {
		retired := it.Synced || it.Failed
		if retired && it.Timestamp.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, it)
	}
	q.Items = kept
	return pruned
}
