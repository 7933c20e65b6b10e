package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store names used across the app. Each logical store is a namespace inside
// the single on-device database.
const (
	HistoricalCacheStore = "historical_cache"
	FeedbackQueueStore   = "feedback_queue"
)

// KV is a durable key-value store backed by SQLite. Values are opaque blobs;
// callers own serialization.
type KV struct {
	db *sql.DB
	mu sync.Mutex
}

func Open(dbPath string) (*KV, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	kv := &KV{db: db}
	if err := kv.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := kv.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return kv, nil
}

func (kv *KV) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := kv.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (kv *KV) initSchema() error {
	_, err := kv.db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		store TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now')),
		PRIMARY KEY (store, key)
	)`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (kv *KV) Close() error {
	if kv.db == nil {
		return nil
	}
	return kv.db.Close()
}

// Put inserts or replaces the blob stored under (store, key).
func (kv *KV) Put(store, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	_, err := kv.db.Exec(`
		INSERT INTO kv (store, key, value, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(store, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, store, key, value)
	if err != nil {
		return fmt.Errorf("kv put %s/%s: %w", store, key, err)
	}
	return nil
}

// Get returns the blob stored under (store, key), or (nil, false) when the
// key has never been written.
func (kv *KV) Get(store, key string) ([]byte, bool, error) {
	var value []byte
	err := kv.db.QueryRow(`SELECT value FROM kv WHERE store = ? AND key = ?`, store, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get %s/%s: %w", store, key, err)
	}
	return value, true, nil
}

// List returns every blob in a store keyed by its key, oldest write first.
func (kv *KV) List(store string) (map[string][]byte, error) {
	rows, err := kv.db.Query(`SELECT key, value FROM kv WHERE store = ? ORDER BY updated_at, key`, store)
	if err != nil {
		return nil, fmt.Errorf("kv list %s: %w", store, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("kv list %s: %w", store, err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kv list %s: %w", store, err)
	}
	return out, nil
}

func (kv *KV) Delete(store, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	_, err := kv.db.Exec(`DELETE FROM kv WHERE store = ? AND key = ?`, store, key)
	if err != nil {
		return fmt.Errorf("kv delete %s/%s: %w", store, key, err)
	}
	return nil
}
