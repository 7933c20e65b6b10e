package feedback

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stellarlinkco/myalex/internal/netstatus"
	"github.com/stellarlinkco/myalex/internal/storage"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []map[string]any
	failNext int
}

func (f *fakeSender) SendFeedback(ctx context.Context, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return errors.New("backend down")
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeNet struct {
	online bool
}

func (f *fakeNet) Online() bool { return f.online }

func openKV(t *testing.T) *storage.KV {
	t.Helper()
	kv, err := storage.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("storage.Open error: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestSubmitOnlineSendsDirectly(t *testing.T) {
	kv := openKV(t)
	sender := &fakeSender{}
	q := NewQueue(sender, &fakeNet{online: true}, kv)

	id, err := q.Submit(context.Background(), Item{UserID: "u1", Category: "bug", Message: "broken map"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}
	if sender.sentCount() != 1 {
		t.Fatalf("expected direct send, got %d", sender.sentCount())
	}

	pending, err := q.Pending()
	if err != nil {
		t.Fatalf("Pending error: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("direct send must not queue, got %d pending", len(pending))
	}
}

func TestSubmitOfflineQueues(t *testing.T) {
	kv := openKV(t)
	sender := &fakeSender{}
	q := NewQueue(sender, &fakeNet{online: false}, kv)

	if _, err := q.Submit(context.Background(), Item{UserID: "u1", Message: "offline note"}); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if sender.sentCount() != 0 {
		t.Fatal("offline submit must not hit the sender")
	}

	pending, err := q.Pending()
	if err != nil {
		t.Fatalf("Pending error: %v", err)
	}
	if len(pending) != 1 || pending[0].Message != "offline note" {
		t.Fatalf("unexpected pending queue: %+v", pending)
	}
	if pending[0].QueuedAt == 0 {
		t.Fatal("queued item must carry a queued_at timestamp")
	}
}

func TestSubmitFailureFallsBackToQueue(t *testing.T) {
	kv := openKV(t)
	sender := &fakeSender{failNext: 1}
	q := NewQueue(sender, &fakeNet{online: true}, kv)

	if _, err := q.Submit(context.Background(), Item{UserID: "u1", Message: "flaky"}); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	pending, _ := q.Pending()
	if len(pending) != 1 {
		t.Fatalf("failed send must queue, got %d pending", len(pending))
	}
}

func TestProcessPendingDrainsInOrder(t *testing.T) {
	kv := openKV(t)
	sender := &fakeSender{}
	net := &fakeNet{online: false}
	q := NewQueue(sender, net, kv)

	for i, msg := range []string{"first", "second", "third"} {
		if _, err := q.Submit(context.Background(), Item{UserID: "u1", Message: msg, QueuedAt: int64(i + 1)}); err != nil {
			t.Fatalf("Submit error: %v", err)
		}
	}

	net.online = true
	sent, err := q.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending error: %v", err)
	}
	if sent != 3 {
		t.Fatalf("expected 3 delivered, got %d", sent)
	}

	sender.mu.Lock()
	messages := make([]string, len(sender.sent))
	for i, p := range sender.sent {
		messages[i] = p["message"].(string)
	}
	sender.mu.Unlock()
	for i, want := range []string{"first", "second", "third"} {
		if messages[i] != want {
			t.Fatalf("delivery order broken: got %v", messages)
		}
	}

	pending, _ := q.Pending()
	if len(pending) != 0 {
		t.Fatalf("queue not drained, %d left", len(pending))
	}
}

func TestProcessPendingStopsAtFirstFailure(t *testing.T) {
	kv := openKV(t)
	net := &fakeNet{online: false}
	sender := &fakeSender{}
	q := NewQueue(sender, net, kv)

	q.Submit(context.Background(), Item{UserID: "u1", Message: "first", QueuedAt: 1})
	q.Submit(context.Background(), Item{UserID: "u1", Message: "second", QueuedAt: 2})

	net.online = true
	sender.failNext = 1
	sent, err := q.ProcessPending(context.Background())
	if err == nil {
		t.Fatal("expected error when delivery fails")
	}
	if sent != 0 {
		t.Fatalf("expected 0 delivered before failure, got %d", sent)
	}

	// Both items remain for the next drain, in order.
	pending, _ := q.Pending()
	if len(pending) != 2 || pending[0].Message != "first" {
		t.Fatalf("queue corrupted after failed drain: %+v", pending)
	}
}

func TestProcessPendingSkipsWhileOffline(t *testing.T) {
	kv := openKV(t)
	sender := &fakeSender{}
	net := &fakeNet{online: false}
	q := NewQueue(sender, net, kv)

	q.Submit(context.Background(), Item{UserID: "u1", Message: "waiting"})

	sent, err := q.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending error: %v", err)
	}
	if sent != 0 || sender.sentCount() != 0 {
		t.Fatal("offline drain must be a no-op")
	}
}

func TestQueueDrainsWhenProbeRestoresConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	kv := openKV(t)
	sender := &fakeSender{}
	monitor := netstatus.NewMonitor()
	q := NewQueue(sender, monitor, kv)
	q.WatchConnectivity(monitor)

	monitor.Set(false)
	if _, err := q.Submit(context.Background(), Item{UserID: "u1", Message: "spooled"}); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if sender.sentCount() != 0 {
		t.Fatal("offline submit must spool")
	}

	// A successful reachability probe flips the monitor online, which must
	// drain the spool through the registered listener.
	if !monitor.Probe(context.Background(), srv.URL) {
		t.Fatal("expected probe to succeed")
	}
	if sender.sentCount() != 1 {
		t.Fatalf("expected drain after probe restored connectivity, got %d sends", sender.sentCount())
	}
}

func TestWatchConnectivityDrainsOnRestore(t *testing.T) {
	kv := openKV(t)
	sender := &fakeSender{}
	monitor := netstatus.NewMonitor()
	q := NewQueue(sender, monitor, kv)
	q.WatchConnectivity(monitor)

	monitor.Set(false)
	if _, err := q.Submit(context.Background(), Item{UserID: "u1", Message: "queued while down"}); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	monitor.Set(true) // listeners run synchronously
	if sender.sentCount() != 1 {
		t.Fatalf("expected drain on connectivity restore, got %d sends", sender.sentCount())
	}
}
