// Package types provides the shared data model for attendsync:
// attendance marks, queue items, and the persisted queue envelope.
// It has no dependencies on other attendsync packages so that the
// store, queue, and sync layers can all import it freely.
package types

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Status is an attendance status value.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// DateLayout is the calendar-day format used for attendance dates.
// Dates carry no time component.
const DateLayout = "2006-01-02"

// ItemType tags a queue item with the operation it represents.
type ItemType string

// TypeAttendanceMark is currently the only queue item type. The tag
// exists so other offline-capable operations can be added later.
const TypeAttendanceMark ItemType = "attendance_mark"

// AttendanceMark is the payload of an attendance_mark queue item and
// the row shape inserted into the remote attendance table.
type AttendanceMark struct {
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
	Date      string `json:"date"`
	Status    Status `json:"status"`
	MarkedBy  string `json:"marked_by"`
	Notes     string `json:"notes,omitempty"`
}

// Validate checks that the mark is well formed.
func (m AttendanceMark) Validate() error {
	if m.StudentID == "" {
		return fmt.Errorf("student_id required")
	}
	if m.SubjectID == "" {
		return fmt.Errorf("subject_id required")
	}
	if _, err := time.Parse(DateLayout, m.Date); err != nil {
		return fmt.Errorf("date must be %s: %w", DateLayout, err)
	}
	if !m.Status.Valid() {
		return fmt.Errorf("unknown status %q", m.Status)
	}
	if m.MarkedBy == "" {
		return fmt.Errorf("marked_by required")
	}
	return nil
}

// Key returns the logical identity of the mark. The remote store
// enforces uniqueness on exactly this triple.
func (m AttendanceMark) Key() string {
	return m.StudentID + "|" + m.SubjectID + "|" + m.Date
}

// Hash returns a short digest of the mark's key, used for dedup
// checks and log correlation. It is never used as item identity.
func (m AttendanceMark) Hash() string {
	sum := blake2b.Sum256([]byte(m.Key()))
	return hex.EncodeToString(sum[:8])
}

// QueueItem is a single pending offline operation. ID, Type, Payload,
// and Timestamp are immutable after creation; only Synced, Retries,
// and Failed mutate.
type QueueItem struct {
	ID        string         `json:"id"`
	Type      ItemType       `json:"type"`
	Payload   AttendanceMark `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
	Synced    bool           `json:"synced"`
	Retries   int            `json:"retries"`

	// Failed marks an item whose upload was rejected as permanently
	// invalid. Failed items are skipped by the drain loop and fall out
	// of the queue via the same retention window as synced items.
	Failed bool `json:"failed,omitempty"`
}

// Pending reports whether the item still needs a sync attempt.
func (it QueueItem) Pending() bool {
	return !it.Synced && !it.Failed
}

// QueueSchemaVersion is the persisted envelope version.
const QueueSchemaVersion = 1

// Queue is the persisted ordered collection of queue items, oldest
// first. It is always loaded and saved as a whole.
type Queue struct {
	Version int         `json:"version"`
	Items   []QueueItem `json:"queue"`
}

// NewQueue returns an empty queue at the current schema version.
func NewQueue() Queue {
	return Queue{Version: QueueSchemaVersion}
}

// PendingCount returns the number of items awaiting sync.
func (q Queue) PendingCount() int {
	n := 0
	for _, it := range q.Items {
		if it.Pending() {
			n++
		}
	}
	return n
}

// FailedCount returns the number of terminally failed items.
func (q Queue) FailedCount() int {
	n := 0
	for _, it := range q.Items {
		if it.Failed {
			n++
		}
	}
	return n
}

// AttendanceRecord is a row in the remote attendance table.
type AttendanceRecord struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	SubjectID string    `json:"subject_id"`
	Date      string    `json:"date"`
	Status    Status    `json:"status"`
	MarkedBy  string    `json:"marked_by"`
	Notes     string    `json:"notes,omitempty"`
	MarkedAt  time.Time `json:"marked_at"`
}
