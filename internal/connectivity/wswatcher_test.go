package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestWSWatcherReportsOnlineWhileConnected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		// Hold the connection open; Ping is answered by the library.
		ctx := r.Context()
		conn.Reader(ctx)
	}))
	defer srv.Close()

	w := NewWSWatcher("ws"+strings.TrimPrefix(srv.URL, "http"), 50*time.Millisecond)
	w.linkUp = func() bool { return true }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	states, err := w.Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	select {
	case s := <-states:
		if !s.Online() {
			t.Fatalf("expected online observation, got %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no observation received")
	}
}

func TestWSWatcherReportsOfflineWhenDialFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	w := NewWSWatcher("ws"+strings.TrimPrefix(srv.URL, "http"), 50*time.Millisecond)
	w.linkUp = func() bool { return true }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	states, err := w.Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	select {
	case s := <-states:
		if s.Online() {
			t.Fatal("failed dial must not report online")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no observation received")
	}
}
