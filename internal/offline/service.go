// Package offline assembles the attendance sync subsystem: durable
// queue store, connectivity monitor, queue manager, sync engine, and
// the periodic schedule. The Service is an explicit context object
// with init and teardown tied to the session lifecycle; nothing in the
// subsystem lives in package-level state.
package offline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/campuskit/attendsync/internal/config"
	"github.com/campuskit/attendsync/internal/connectivity"
	"github.com/campuskit/attendsync/internal/queue"
	"github.com/campuskit/attendsync/internal/queuestore"
	"github.com/campuskit/attendsync/internal/remote"
	"github.com/campuskit/attendsync/internal/scheduler"
	"github.com/campuskit/attendsync/internal/syncengine"
	"github.com/campuskit/attendsync/internal/types"
)

// Deps lets callers swap the external collaborators, mainly in tests.
// Zero values mean "build from config".
type Deps struct {
	Remote  remote.Store
	Watcher connectivity.Watcher
	Store   queuestore.Store
}

// Service owns the subsystem and exposes its UI-facing surface.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	store   queuestore.Store
	session *remote.Session
	monitor *connectivity.Monitor
	manager *queue.Manager
	engine  *syncengine.Engine
	sched   *scheduler.Scheduler
}

// NewService wires the subsystem from config.
func NewService(cfg *config.Config, logger *slog.Logger, deps Deps) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:     cfg,
		logger:  logger,
		store:   deps.Store,
		session: remote.NewSession(cfg.Remote.AccessToken),
	}

	if s.store == nil {
		var err error
		switch cfg.Store.Driver {
		case "sqlite":
			s.store, err = queuestore.NewSQLiteStore(filepath.Join(cfg.Store.Dir, "attendsync.db"))
		default:
			s.store, err = queuestore.NewFileStore(cfg.Store.Dir)
		}
		if err != nil {
			return nil, fmt.Errorf("open queue store: %w", err)
		}
	}

	rs := deps.Remote
	if rs == nil {
		rs = remote.NewRESTStore(cfg.Remote.BaseURL, cfg.Remote.APIKey, s.session, logger)
	}

	watcher := deps.Watcher
	if watcher == nil {
		interval := time.Duration(cfg.Connectivity.IntervalSeconds) * time.Second
		switch cfg.Connectivity.Watcher {
		case "websocket":
			watcher = connectivity.NewWSWatcher(cfg.Connectivity.RealtimeURL, interval)
		default:
			probeURL := cfg.Connectivity.ProbeURL
			if probeURL == "" {
				probeURL = cfg.Remote.BaseURL
			}
			watcher = connectivity.NewHTTPWatcher(probeURL, interval)
		}
	}
	s.monitor = connectivity.NewMonitor(watcher, logger)

	// The manager and the engine both do load-modify-save on the same
	// store; one lock covers both critical sections.
	queueLock := new(sync.Mutex)

	s.engine = syncengine.New(s.store, rs, s.monitor.IsOnline, logger, syncengine.Options{
		Retention: time.Duration(cfg.Sync.RetentionDays) * 24 * time.Hour,
		OnCounts:  func(pending, failed int) { s.manager.SetCounts(pending, failed) },
		Lock:      queueLock,
	})

	s.manager = queue.NewManager(s.store, s.monitor.IsOnline, s.engine.TrySync, logger, queue.Options{
		Dedupe:        cfg.Sync.Dedupe,
		CorruptPolicy: queue.CorruptPolicy(cfg.Sync.CorruptPolicy),
		Lock:          queueLock,
	})

	s.monitor.OnOnline = func() {
		s.engine.TrySync(context.Background())
	}

	var err error
	s.sched, err = scheduler.New(
		time.Duration(cfg.Sync.IntervalMinutes)*time.Minute,
		cfg.Sync.CronExpr,
		s.engine.TrySync,
		logger,
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Start brings the subsystem up: initial count from disk, connectivity
// observation, the periodic schedule, and one catch-up drain for marks
// queued before the previous shutdown.
func (s *Service) Start(ctx context.Context) error {
	if err := s.manager.Refresh(ctx); err != nil {
		// With the fail policy a corrupt queue blocks sync but should
		// not kill the process; every queue operation keeps surfacing
		// the error until the state is resolved.
		s.logger.Error("initial queue load failed", "error", err)
	}

	if err := s.monitor.Start(ctx); err != nil {
		return fmt.Errorf("start connectivity monitor: %w", err)
	}
	s.sched.Start(ctx)
	s.engine.TrySync(ctx)
	return nil
}

// Stop tears the subsystem down, waiting for in-flight drains.
func (s *Service) Stop() error {
	s.sched.Stop()
	s.monitor.Stop()
	s.engine.Wait()
	return s.store.Close()
}

// Session returns the remote session so the host app can install
// refreshed tokens.
func (s *Service) Session() *remote.Session {
	return s.session
}

// IsOnline reports current connectivity.
func (s *Service) IsOnline() bool { return s.monitor.IsOnline() }

// IsSyncing reports whether a drain cycle is in flight.
func (s *Service) IsSyncing() bool { return s.engine.IsSyncing() }

// QueueCount reports items awaiting sync.
func (s *Service) QueueCount() int { return s.manager.Count() }

// FailedCount reports terminally failed items.
func (s *Service) FailedCount() int { return s.manager.FailedCount() }

// SubscribeOnline registers a callback for online state changes.
func (s *Service) SubscribeOnline(fn func(online bool)) { s.monitor.Subscribe(fn) }

// EnqueueAttendanceMark queues a mark durably and returns immediately.
// Connectivity never makes this fail.
func (s *Service) EnqueueAttendanceMark(ctx context.Context, mark types.AttendanceMark) error {
	_, err := s.manager.Enqueue(ctx, mark)
	return err
}

// ForceSyncNow runs a drain synchronously, subject to the same
// concurrency guard as every other trigger.
func (s *Service) ForceSyncNow(ctx context.Context) error {
	return s.engine.Sync(ctx)
}
