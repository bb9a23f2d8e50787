// Package queuestore persists the offline attendance queue as a single
// serialized unit under a fixed storage key. Two engines implement the
// same contract: a JSON file written atomically via temp-and-rename,
// and a SQLite-backed store whose transactions provide the same
// guarantee. The queue is always read and written as a whole; there are
// no partial updates.
package queuestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/campuskit/attendsync/internal/types"
)

// StorageKey is the fixed name the queue is persisted under.
const StorageKey = "attendance_sync_queue"

// ErrCorrupt is returned when persisted state exists but cannot be
// decoded, or carries a schema version this build does not know. The
// store never silently discards state; recovery policy belongs to the
// caller.
var ErrCorrupt = errors.New("queue state corrupt")

// Store is the durable queue persistence contract.
type Store interface {
	// Load returns the persisted queue, or an empty queue when no
	// prior state exists. A decode failure returns ErrCorrupt.
	Load(ctx context.Context) (types.Queue, error)

	// Save persists the full queue, replacing prior contents. The
	// write is atomic with respect to process termination: a crash
	// mid-save leaves the previous valid state intact.
	Save(ctx context.Context, q types.Queue) error

	// Reset discards persisted state so a corrupt blob can be
	// recovered from. File stores archive the blob first.
	Reset(ctx context.Context) error

	Close() error
}

func encodeQueue(q types.Queue) ([]byte, error) {
	q.Version = types.QueueSchemaVersion
	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal queue: %w", err)
	}
	return data, nil
}

func decodeQueue(data []byte) (types.Queue, error) {
	var q types.Queue
	if err := json.Unmarshal(data, &q); err != nil {
		return types.Queue{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	switch q.Version {
	case types.QueueSchemaVersion:
	case 0:
		// Pre-envelope layout written before versioning. Accept and
		// upgrade on the next save.
		q.Version = types.QueueSchemaVersion
	default:
		return types.Queue{}, fmt.Errorf("%w: unknown schema version %d", ErrCorrupt, q.Version)
	}
	return q, nil
}
