package queuestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/campuskit/attendsync/internal/types"
)

// FileStore persists the queue as a single JSON file. Saves write to a
// temp file in the same directory and rename over the target, so a
// crash mid-write never clobbers the previous valid state.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates or opens a file-backed store in dir. The file
// name is derived from StorageKey.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, StorageKey+".json")}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context) (types.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewQueue(), nil
		}
		return types.Queue{}, fmt.Errorf("read queue: %w", err)
	}
	return decodeQueue(data)
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, q types.Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodeQueue(q)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".queue-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0640); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename queue: %w", err)
	}
	return nil
}

// Reset archives the current blob next to the store file and removes
// the original, so corrupt state stays inspectable.
func (s *FileStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	archive := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
	if err := os.Rename(s.path, archive); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("archive queue: %w", err)
	}
	return nil
}

// Close implements Store. The file store holds no open handles.
func (s *FileStore) Close() error {
	return nil
}
