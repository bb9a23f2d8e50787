package connectivity

import (
	"context"
	"net"
	"net/http"
	"time"
)

// HTTPWatcher polls reachability: interface state from the kernel,
// internet reachability from a probe request to the backend. A captive
// portal or non-routing Wi-Fi yields Connected without
// InternetReachable, which the Monitor treats as offline.
type HTTPWatcher struct {
	ProbeURL string
	Interval time.Duration

	httpClient *http.Client
	// linkUp is swappable in tests.
	linkUp func() bool
}

// NewHTTPWatcher creates a poller against probeURL.
func NewHTTPWatcher(probeURL string, interval time.Duration) *HTTPWatcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HTTPWatcher{
		ProbeURL: probeURL,
		Interval: interval,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		linkUp: anyInterfaceUp,
	}
}

// Watch implements Watcher.
func (w *HTTPWatcher) Watch(ctx context.Context) (<-chan State, error) {
	out := make(chan State, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()

		// Observe immediately so the optimistic initial state is
		// corrected without waiting a full interval.
		w.emit(ctx, out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.emit(ctx, out)
			}
		}
	}()
	return out, nil
}

func (w *HTTPWatcher) emit(ctx context.Context, out chan<- State) {
	state := State{Connected: w.linkUp()}
	if state.Connected {
		state.InternetReachable = w.probe(ctx)
	}
	select {
	case out <- state:
	case <-ctx.Done():
	}
}

func (w *HTTPWatcher) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.ProbeURL, nil)
	if err != nil {
		return false
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	// Any answer below 500 proves the route; auth failures still mean
	// the network works.
	return resp.StatusCode < 500
}

// anyInterfaceUp reports whether a non-loopback interface is up.
func anyInterfaceUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagRunning != 0 {
			return true
		}
	}
	return false
}
