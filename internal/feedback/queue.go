package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stellarlinkco/myalex/internal/netstatus"
	"github.com/stellarlinkco/myalex/internal/storage"
)

// Sender submits one feedback payload to the backend.
type Sender interface {
	SendFeedback(ctx context.Context, payload map[string]any) error
}

// Item is one piece of user feedback. QueuedAt is set when the item lands in
// the durable queue instead of going out directly.
type Item struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Rating   int    `json:"rating,omitempty"`
	QueuedAt int64  `json:"queued_at,omitempty"`
}

// Queue submits feedback when online and spools it durably when not. Spooled
// items drain in arrival order on the next connectivity recovery.
type Queue struct {
	sender Sender
	net    netstatus.Status
	kv     *storage.KV
}

func NewQueue(sender Sender, net netstatus.Status, kv *storage.KV) *Queue {
	return &Queue{sender: sender, net: net, kv: kv}
}

// Submit sends the item immediately when online; on failure or while offline
// it is queued for a later drain. The returned id identifies the item either
// way.
func (q *Queue) Submit(ctx context.Context, item Item) (string, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	if q.net == nil || q.net.Online() {
		err := q.sender.SendFeedback(ctx, q.payload(item))
		if err == nil {
			return item.ID, nil
		}
		log.Printf("[feedback] submit failed, queueing for retry: %v", err)
	}

	if err := q.enqueue(item); err != nil {
		return "", err
	}
	return item.ID, nil
}

func (q *Queue) payload(item Item) map[string]any {
	p := map[string]any{
		"id":       item.ID,
		"user_id":  item.UserID,
		"category": item.Category,
		"message":  item.Message,
	}
	if item.Rating > 0 {
		p["rating"] = item.Rating
	}
	return p
}

func (q *Queue) enqueue(item Item) error {
	if q.kv == nil {
		return fmt.Errorf("feedback queue has no storage")
	}
	if item.QueuedAt == 0 {
		item.QueuedAt = time.Now().UnixMilli()
	}
	blob, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("serialize feedback: %w", err)
	}
	if err := q.kv.Put(storage.FeedbackQueueStore, item.ID, blob); err != nil {
		return fmt.Errorf("queue feedback: %w", err)
	}
	log.Printf("[feedback] queued %s for later delivery", item.ID)
	return nil
}

// Pending returns the spooled items in arrival order.
func (q *Queue) Pending() ([]Item, error) {
	if q.kv == nil {
		return nil, nil
	}
	blobs, err := q.kv.List(storage.FeedbackQueueStore)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(blobs))
	for id, blob := range blobs {
		var item Item
		if err := json.Unmarshal(blob, &item); err != nil {
			log.Printf("[feedback] dropping unreadable queued item %s: %v", id, err)
			_ = q.kv.Delete(storage.FeedbackQueueStore, id)
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].QueuedAt < items[j].QueuedAt })
	return items, nil
}

// ProcessPending drains the spooled items oldest first, deleting each after a
// successful send. The first failure stops the drain so ordering is
// preserved for the next attempt. Returns how many items were delivered.
func (q *Queue) ProcessPending(ctx context.Context) (int, error) {
	if q.net != nil && !q.net.Online() {
		return 0, nil
	}

	items, err := q.Pending()
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	log.Printf("[feedback] processing %d queued items", len(items))
	sent := 0
	for _, item := range items {
		if err := q.sender.SendFeedback(ctx, q.payload(item)); err != nil {
			return sent, fmt.Errorf("deliver queued feedback %s: %w", item.ID, err)
		}
		if err := q.kv.Delete(storage.FeedbackQueueStore, item.ID); err != nil {
			return sent, fmt.Errorf("dequeue feedback %s: %w", item.ID, err)
		}
		sent++
	}
	return sent, nil
}

// WatchConnectivity drains the queue whenever the network comes back.
func (q *Queue) WatchConnectivity(monitor *netstatus.Monitor) {
	monitor.Notify(func(online bool) {
		if !online {
			return
		}
		if sent, err := q.ProcessPending(context.Background()); err != nil {
			log.Printf("[feedback] queued delivery stopped: %v", err)
		} else if sent > 0 {
			log.Printf("[feedback] delivered %d queued items", sent)
		}
	})
}
