// Package status exposes the subsystem's UI-facing surface over a
// loopback HTTP endpoint: reactive state for display, enqueue for
// producing marks, and a manual sync trigger.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/campuskit/attendsync/internal/queuestore"
	"github.com/campuskit/attendsync/internal/types"
)

// Service is the offline subsystem as the status server sees it.
type Service interface {
	IsOnline() bool
	IsSyncing() bool
	QueueCount() int
	FailedCount() int
	EnqueueAttendanceMark(ctx context.Context, mark types.AttendanceMark) error
	ForceSyncNow(ctx context.Context) error
}

// Snapshot is the GET /status response body.
type Snapshot struct {
	Online     bool `json:"online"`
	Syncing    bool `json:"syncing"`
	QueueCount int  `json:"queue_count"`
	Failed     int  `json:"failed_count"`
}

// Server serves the local status API.
type Server struct {
	addr       string
	svc        Service
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a status server bound to addr. The address should
// stay loopback; there is no authentication on this surface.
func NewServer(addr string, svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:   addr,
		svc:    svc,
		logger: logger.With("component", "status"),
	}
}

// Handler returns the route mux, exported for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/sync", s.handleSync)
	mux.HandleFunc("/mark", s.handleMark)
	return mux
}

// Start serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status endpoint listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("status server: %w", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, Snapshot{
		Online:     s.svc.IsOnline(),
		Syncing:    s.svc.IsSyncing(),
		QueueCount: s.svc.QueueCount(),
		Failed:     s.svc.FailedCount(),
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.svc.ForceSyncNow(r.Context()); err != nil {
		s.logger.Warn("forced sync failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleMark(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var mark types.AttendanceMark
	if err := json.NewDecoder(r.Body).Decode(&mark); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	err := s.svc.EnqueueAttendanceMark(r.Context(), mark)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, queuestore.ErrCorrupt):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		// Validation problems are the caller's to fix; connectivity is
		// never a reason for enqueue to fail.
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
