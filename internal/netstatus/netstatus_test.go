package netstatus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewMonitorStartsOnline(t *testing.T) {
	m := NewMonitor()
	if !m.Online() {
		t.Fatal("expected new monitor to start online")
	}
}

func TestSetNotifiesOnTransitionOnly(t *testing.T) {
	m := NewMonitor()

	var calls []bool
	m.Notify(func(online bool) {
		calls = append(calls, online)
	})

	m.Set(true) // already online, no transition
	m.Set(false)
	m.Set(false) // repeated, no transition
	m.Set(true)

	if len(calls) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(calls))
	}
	if calls[0] != false || calls[1] != true {
		t.Fatalf("unexpected notification sequence: %v", calls)
	}
}

func TestProbeReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMonitor()
	m.Set(false)

	if !m.Probe(context.Background(), srv.URL) {
		t.Fatal("expected probe to succeed")
	}
	if !m.Online() {
		t.Fatal("expected monitor online after successful probe")
	}
}

func TestWatchRestoresWhenBackendReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMonitor()
	m.Set(false)

	restored := make(chan struct{}, 1)
	m.Notify(func(online bool) {
		if online {
			select {
			case restored <- struct{}{}:
			default:
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx, srv.URL, 5*time.Millisecond)

	select {
	case <-restored:
	case <-time.After(2 * time.Second):
		t.Fatal("watch never restored the online state")
	}
	if !m.Online() {
		t.Fatal("expected monitor online after watch probe")
	}
}

func TestWatchDetectsOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed server refuses connections

	m := NewMonitor()

	lost := make(chan struct{}, 1)
	m.Notify(func(online bool) {
		if !online {
			select {
			case lost <- struct{}{}:
			default:
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx, srv.URL, 5*time.Millisecond)

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("watch never noticed the outage")
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMonitor()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Watch(ctx, srv.URL, 5*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop on context cancel")
	}
}

func TestProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed server refuses connections

	m := NewMonitor()
	if m.Probe(context.Background(), srv.URL) {
		t.Fatal("expected probe to fail")
	}
	if m.Online() {
		t.Fatal("expected monitor offline after failed probe")
	}
}
