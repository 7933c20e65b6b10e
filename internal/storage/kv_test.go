package storage

import (
	"path/filepath"
	"testing"
)

func TestOpenReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	kv, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if err := kv.Put(HistoricalCacheStore, "k", []byte("v")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Reopen against the same path and read back.
	kv2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open reopen error: %v", err)
	}
	defer kv2.Close()

	value, ok, err := kv2.Get(HistoricalCacheStore, "k")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok || string(value) != "v" {
		t.Fatalf("expected persisted value %q, got %q (ok=%v)", "v", value, ok)
	}
}

func TestPutOverwrites(t *testing.T) {
	kv, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer kv.Close()

	if err := kv.Put("s", "k", []byte("first")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := kv.Put("s", "k", []byte("second")); err != nil {
		t.Fatalf("Put overwrite error: %v", err)
	}

	value, ok, err := kv.Get("s", "k")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok || string(value) != "second" {
		t.Fatalf("expected %q, got %q", "second", value)
	}
}

func TestGetMissing(t *testing.T) {
	kv, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer kv.Close()

	value, ok, err := kv.Get("s", "nope")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ok || value != nil {
		t.Fatalf("expected miss, got %q (ok=%v)", value, ok)
	}
}

func TestStoresAreIsolated(t *testing.T) {
	kv, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer kv.Close()

	if err := kv.Put(HistoricalCacheStore, "k", []byte("a")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := kv.Put(FeedbackQueueStore, "k", []byte("b")); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	value, _, err := kv.Get(FeedbackQueueStore, "k")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(value) != "b" {
		t.Fatalf("expected %q, got %q", "b", value)
	}
}

func TestDeleteAndList(t *testing.T) {
	kv, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer kv.Close()

	for _, key := range []string{"a", "b", "c"} {
		if err := kv.Put("s", key, []byte(key)); err != nil {
			t.Fatalf("Put %s error: %v", key, err)
		}
	}
	if err := kv.Delete("s", "b"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	items, err := kv.List("s")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if _, ok := items["b"]; ok {
		t.Fatal("deleted key still listed")
	}

	// Deleting a missing key is not an error.
	if err := kv.Delete("s", "b"); err != nil {
		t.Fatalf("Delete missing error: %v", err)
	}
}
