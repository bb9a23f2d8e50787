// Package connectivity tracks whether the device can actually reach
// the backend. Online means both a connected network interface and a
// reachable internet route; link-up on a non-routing network counts as
// offline. The Monitor consumes observations from a Watcher and fires
// its OnOnline hook exactly once per offline-to-online edge.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
)

// State is a single reachability observation.
type State struct {
	Connected         bool
	InternetReachable bool
}

// Online reports whether the state counts as online. Both conditions
// are required.
func (s State) Online() bool {
	return s.Connected && s.InternetReachable
}

// Watcher delivers reachability observations. Implementations send a
// State for every observation, not only on change, and close the
// channel when the context ends.
type Watcher interface {
	Watch(ctx context.Context) (<-chan State, error)
}

// Monitor folds Watcher observations into an online flag and
// edge-triggered notifications.
type Monitor struct {
	watcher Watcher
	logger  *slog.Logger

	// OnOnline runs once per offline-to-online transition. Set before
	// Start.
	OnOnline func()

	mu          sync.RWMutex
	online      bool
	subscribers []func(bool)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor over the given watcher. The initial
// state is optimistically online so the first enqueue is not blocked
// before any observation arrives; the first real observation corrects
// it.
func NewMonitor(watcher Watcher, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		watcher: watcher,
		logger:  logger.With("component", "connectivity"),
		online:  true,
	}
}

// IsOnline returns the current online flag.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers a callback invoked on every online flag change.
// This is the UI-facing signal; it fires on both edges.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Start begins consuming observations until ctx ends or Stop is
// called.
func (m *Monitor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	states, err := m.watcher.Watch(ctx)
	if err != nil {
		cancel()
		return err
	}
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		for state := range states {
			m.observe(state)
		}
	}()
	return nil
}

// Stop halts observation. Safe to call once after Start.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

func (m *Monitor) observe(state State) {
	online := state.Online()

	m.mu.Lock()
	was := m.online
	m.online = online
	subs := make([]func(bool), len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	if online == was {
		// Still-online (or still-offline) observations are not edges.
		return
	}

	m.logger.Info("connectivity changed",
		"online", online,
		"connected", state.Connected,
		"internet_reachable", state.InternetReachable)

	for _, fn := range subs {
		fn(online)
	}
	if online && m.OnOnline != nil {
		m.OnOnline()
	}
}
