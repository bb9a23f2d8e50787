// Package remote talks to the backend's attendance-record table. The
// sync engine depends only on the Store interface and the error
// taxonomy here; the REST client is one implementation of it.
package remote

import (
	"context"
	"errors"

	"github.com/campuskit/attendsync/internal/types"
)

var (
	// ErrConflict means the remote already holds a record for the same
	// (student, subject, date) key. Uniqueness violations from insert
	// map here too; callers treat both as the conflict case.
	ErrConflict = errors.New("remote: record already exists")

	// ErrUnavailable covers transport failures, timeouts, and server
	// errors. The operation may succeed later and should be retried.
	ErrUnavailable = errors.New("remote: unavailable")

	// ErrRejected means the remote refused the payload as invalid.
	// Retrying the same payload can never succeed.
	ErrRejected = errors.New("remote: record rejected")
)

// IsConflict reports whether err is the conflict case.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsUnavailable reports whether err is transient.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

// IsRejected reports whether err is a permanent validation rejection.
func IsRejected(err error) bool { return errors.Is(err, ErrRejected) }

// Store is the remote attendance-record contract the sync engine
// consumes. The backing table enforces uniqueness per
// (student_id, subject_id, date).
type Store interface {
	// FindRecord returns the existing record for the key, or nil when
	// none exists.
	FindRecord(ctx context.Context, studentID, subjectID, date string) (*types.AttendanceRecord, error)

	// InsertRecord uploads a new attendance record. A uniqueness
	// violation returns ErrConflict.
	InsertRecord(ctx context.Context, mark types.AttendanceMark) error
}
