package histcache

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/stellarlinkco/myalex/internal/api"
	"github.com/stellarlinkco/myalex/internal/netstatus"
	"github.com/stellarlinkco/myalex/internal/storage"
)

const (
	cacheBlobKey        = "cache_data"
	defaultPreloadDelay = 500 * time.Millisecond
)

// Fetcher is the historical-context collaborator consumed by the manager.
type Fetcher interface {
	HistoricalContext(ctx context.Context, lat, lng float64, language, userID string) (api.HistoricalContextResponse, error)
}

// Options tunes the historical-context query.
type Options struct {
	Language string
}

// cacheEntry is the durable form: the whole cache is persisted as one
// serialized array of key/record pairs under a fixed record id.
type cacheEntry struct {
	Key  string `json:"key"`
	Data Record `json:"data"`
}

// Manager owns the historical-context cache: it decides network-vs-cache per
// query, mirrors every successful fetch to durable storage, and serves
// cached browsing and search.
//
// The map mutex only protects map access; fetch and persist run outside it,
// so concurrent inserts to the same key resolve last-write-wins. Cache
// content is idempotent per coordinate, which makes that acceptable.
type Manager struct {
	fetcher Fetcher
	net     netstatus.Status
	kv      *storage.KV

	mu    sync.RWMutex
	cache map[string]Record

	preloadDelay time.Duration
}

func NewManager(fetcher Fetcher, net netstatus.Status, kv *storage.KV) *Manager {
	m := &Manager{
		fetcher:      fetcher,
		net:          net,
		kv:           kv,
		cache:        make(map[string]Record),
		preloadDelay: defaultPreloadDelay,
	}
	m.hydrate()
	return m
}

// SetPreloadDelay overrides the inter-landmark pause used by PreloadNearby.
func (m *Manager) SetPreloadDelay(d time.Duration) {
	if d > 0 {
		m.preloadDelay = d
	}
}

// hydrate loads the durable blob into memory. Runs once at construction;
// storage failures leave an empty cache and memory stays authoritative.
func (m *Manager) hydrate() {
	if m.kv == nil {
		return
	}
	blob, ok, err := m.kv.Get(storage.HistoricalCacheStore, cacheBlobKey)
	if err != nil {
		log.Printf("[histcache] failed to initialize cache: %v", err)
		return
	}
	if !ok {
		return
	}

	var entries []cacheEntry
	if err := json.Unmarshal(blob, &entries); err != nil {
		log.Printf("[histcache] failed to parse cached entries: %v", err)
		return
	}
	for _, e := range entries {
		m.cache[e.Key] = e.Data
	}
	log.Printf("[histcache] loaded %d cached historical entries", len(entries))
}

// persist mirrors the in-memory cache to durable storage. Failures are
// logged; the in-memory state remains authoritative for the process.
func (m *Manager) persist() {
	if m.kv == nil {
		return
	}

	m.mu.RLock()
	entries := make([]cacheEntry, 0, len(m.cache))
	for key, data := range m.cache {
		entries = append(entries, cacheEntry{Key: key, Data: data})
	}
	m.mu.RUnlock()

	blob, err := json.Marshal(entries)
	if err != nil {
		log.Printf("[histcache] failed to serialize cache: %v", err)
		return
	}
	if err := m.kv.Put(storage.HistoricalCacheStore, cacheBlobKey, blob); err != nil {
		log.Printf("[histcache] failed to save cache: %v", err)
	}
}

// GetContextOffline returns the best available record for a coordinate:
// a live fetch when online, else the cached record annotated as
// cache-sourced, else a synthetic not-available-offline placeholder. It
// never returns an error; all degradation is folded into the record.
func (m *Manager) GetContextOffline(ctx context.Context, lat, lng float64, userID string, opts Options) Record {
	language := opts.Language
	if language == "" {
		language = "en"
	}
	key := Key(lat, lng, language)

	if m.net == nil || m.net.Online() {
		resp, err := m.fetcher.HistoricalContext(ctx, lat, lng, language, userID)
		if err != nil {
			log.Printf("[histcache] online request failed, checking cache: %v", err)
		} else if resp.Success {
			rec := Record{
				HistoricalContextResponse: resp,
				Coordinates:               Coordinates{Lat: lat, Lng: lng},
				CachedAt:                  time.Now().UnixMilli(),
				OfflineAvailable:          true,
			}
			m.mu.Lock()
			m.cache[key] = rec
			m.mu.Unlock()
			m.persist()
			return rec
		}
	}

	m.mu.RLock()
	cached, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		cached.FromCache = true
		cached.OfflineMode = true
		return cached
	}

	return placeholder(lat, lng, language)
}

// PreloadNearby warms the cache for the fixed landmark set, skipping keys
// already cached and pausing between fetches to rate-limit the backend.
// Per-landmark failures are logged and do not abort the remaining set; the
// cache is persisted once at the end if anything changed.
func (m *Manager) PreloadNearby(ctx context.Context, userID string) {
	if m.net != nil && !m.net.Online() {
		return
	}

	log.Printf("[histcache] pre-loading historical data for major landmarks...")
	changed := false
	for _, lm := range Landmarks {
		key := Key(lm.Lat, lm.Lng, "en")
		m.mu.RLock()
		_, ok := m.cache[key]
		m.mu.RUnlock()
		if ok {
			continue
		}

		resp, err := m.fetcher.HistoricalContext(ctx, lm.Lat, lm.Lng, "en", userID)
		if err != nil {
			log.Printf("[histcache] failed to cache %s: %v", lm.Name, err)
			continue
		}
		if resp.Success {
			rec := Record{
				HistoricalContextResponse: resp,
				LandmarkName:              lm.Name,
				Coordinates:               Coordinates{Lat: lm.Lat, Lng: lm.Lng},
				CachedAt:                  time.Now().UnixMilli(),
				OfflineAvailable:          true,
			}
			m.mu.Lock()
			m.cache[key] = rec
			m.mu.Unlock()
			changed = true
		}

		select {
		case <-time.After(m.preloadDelay):
		case <-ctx.Done():
			if changed {
				m.persist()
			}
			return
		}
	}

	if changed {
		m.persist()
	}
}

// GetAllCached returns the successful, non-empty cached records, newest
// first, each annotated as cache-sourced.
func (m *Manager) GetAllCached() []Record {
	m.mu.RLock()
	records := make([]Record, 0, len(m.cache))
	for _, rec := range m.cache {
		if rec.Success && rec.HistoricalContext != "" {
			rec.FromCache = true
			records = append(records, rec)
		}
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].CachedAt > records[j].CachedAt
	})
	return records
}

// SearchCached filters the cached records by a case-insensitive substring
// match over narrative, location name, landmark label and period. Queries
// under two characters return the full set.
func (m *Manager) SearchCached(query string) []Record {
	all := m.GetAllCached()
	term := strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(term) < 2 {
		return all
	}

	matched := make([]Record, 0, len(all))
	for _, rec := range all {
		searchable := strings.ToLower(strings.Join([]string{
			rec.HistoricalContext,
			rec.LocationInfo.Name,
			rec.LandmarkName,
			rec.LocationInfo.HistoricalPeriod,
		}, " "))
		if strings.Contains(searchable, term) {
			matched = append(matched, rec)
		}
	}
	return matched
}

// Len reports how many records are cached, regardless of success flag.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}
