package connectivity

import (
	"context"
	"time"

	"github.com/coder/websocket"
)

// WSWatcher derives reachability from a long-lived websocket to the
// backend's realtime endpoint: an open socket with acknowledged pings
// means the internet is reachable, a failed dial or ping means it is
// not. Compared to HTTP polling this notices outages within one ping
// interval and produces no request spam while healthy.
type WSWatcher struct {
	URL          string
	PingInterval time.Duration

	maxBackoff time.Duration
	linkUp     func() bool
}

// NewWSWatcher creates a websocket-backed watcher.
func NewWSWatcher(url string, pingInterval time.Duration) *WSWatcher {
	if pingInterval <= 0 {
		pingInterval = 15 * time.Second
	}
	return &WSWatcher{
		URL:          url,
		PingInterval: pingInterval,
		maxBackoff:   2 * time.Minute,
		linkUp:       anyInterfaceUp,
	}
}

// Watch implements Watcher.
func (w *WSWatcher) Watch(ctx context.Context) (<-chan State, error) {
	out := make(chan State, 1)
	go func() {
		defer close(out)
		backoff := w.PingInterval
		for {
			conn, _, err := websocket.Dial(ctx, w.URL, nil)
			if err != nil {
				w.send(ctx, out, State{Connected: w.linkUp()})
				if !sleep(ctx, backoff) {
					return
				}
				backoff = min(backoff*2, w.maxBackoff)
				continue
			}
			backoff = w.PingInterval

			w.send(ctx, out, State{Connected: true, InternetReachable: true})
			w.pingLoop(ctx, conn, out)
			conn.CloseNow()

			if ctx.Err() != nil {
				return
			}
		}
	}()
	return out, nil
}

// pingLoop holds the connection open, reporting a healthy observation
// per successful ping. Returns when a ping fails or ctx ends.
func (w *WSWatcher) pingLoop(ctx context.Context, conn *websocket.Conn, out chan<- State) {
	ticker := time.NewTicker(w.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				w.send(ctx, out, State{Connected: w.linkUp()})
				return
			}
			w.send(ctx, out, State{Connected: true, InternetReachable: true})
		}
	}
}

func (w *WSWatcher) send(ctx context.Context, out chan<- State, s State) {
	select {
	case out <- s:
	case <-ctx.Done():
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
