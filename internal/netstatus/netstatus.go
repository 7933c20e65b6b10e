package netstatus

import (
	"context"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Status is the connectivity signal consulted before network decisions.
type Status interface {
	Online() bool
}

// Monitor tracks the device's online state and fans out transition
// notifications. The zero state is offline; NewMonitor starts online.
type Monitor struct {
	online atomic.Bool

	mu        sync.Mutex
	listeners []func(online bool)
}

func NewMonitor() *Monitor {
	m := &Monitor{}
	m.online.Store(true)
	return m
}

func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Set updates the online state. Listeners are notified only on transitions.
func (m *Monitor) Set(online bool) {
	if m.online.Swap(online) == online {
		return
	}
	if online {
		log.Printf("[netstatus] connection restored")
	} else {
		log.Printf("[netstatus] connection lost - switching to cached mode")
	}

	m.mu.Lock()
	listeners := make([]func(bool), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(online)
	}
}

// Notify registers a callback invoked on every online/offline transition.
func (m *Monitor) Notify(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Probe checks reachability of the given URL and updates the state.
func (m *Monitor) Probe(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		m.Set(false)
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		m.Set(false)
		return false
	}
	resp.Body.Close()
	m.Set(true)
	return true
}

// Watch probes periodically until the context is cancelled.
func (m *Monitor) Watch(ctx context.Context, url string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Probe(ctx, url)
		case <-ctx.Done():
			return
		}
	}
}
