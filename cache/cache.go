/*
Package cache provides a read-through cache in front of the scheme store.

PURPOSE:
  Transaction-entry screens compute charges for the same handful of schemes
  over and over. CachedSchemes serves GetScheme from a SchemeCache and only
  falls through to the database on a miss.

IMPLEMENTATIONS:
  - Redis:  Shared cache for several API instances (redis.go)
  - Memory: In-process cache for a single instance and for tests

CONSISTENCY:
  Writes go to the store first, then refresh (save) or evict (delete) the
  cache entry. A cache failure never fails a request: it is logged and the
  store answers instead.

  Reads and the warmer only Fill: they write a record the store returned
  earlier, so they never replace an entry that is already present. Eviction
  leaves a tombstone for one TTL so a fill that raced a delete cannot bring
  the scheme back.

SEE ALSO:
  - charges/store.go: SchemeStore interface
  - cmd/server/main.go: Picks Redis when REDIS_ADDR is configured
*/
package cache

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/warp/charge-engine/charges"
)

// =============================================================================
// SCHEME CACHE INTERFACE
// =============================================================================

// SchemeCache stores scheme records by ID.
type SchemeCache interface {
	// Get returns (record, true, nil) on a hit and (zero, false, nil) on a
	// miss. A tombstone is a miss.
	Get(ctx context.Context, id charges.SchemeID) (charges.SchemeRecord, bool, error)
	// Set writes rec unconditionally, replacing any entry or tombstone.
	Set(ctx context.Context, rec charges.SchemeRecord) error
	// Fill writes rec only when the key holds nothing, not even a tombstone.
	// It reports whether the write happened.
	Fill(ctx context.Context, rec charges.SchemeRecord) (bool, error)
	// Delete replaces the entry with a tombstone that lives for one TTL.
	Delete(ctx context.Context, id charges.SchemeID) error
}

// =============================================================================
// CACHED SCHEMES - Read-through SchemeStore
// =============================================================================

// CachedSchemes wraps a SchemeStore with a SchemeCache.
type CachedSchemes struct {
	Store charges.SchemeStore
	Cache SchemeCache
}

var _ charges.SchemeStore = (*CachedSchemes)(nil)

func NewCachedSchemes(store charges.SchemeStore, cache SchemeCache) *CachedSchemes {
	return &CachedSchemes{Store: store, Cache: cache}
}

func (c *CachedSchemes) GetScheme(ctx context.Context, id charges.SchemeID) (charges.SchemeRecord, error) {
	rec, ok, err := c.Cache.Get(ctx, id)
	if err != nil {
		log.WithError(err).WithField("scheme_id", id).Warn("scheme cache read failed")
	}
	if ok {
		return rec, nil
	}

	rec, err = c.Store.GetScheme(ctx, id)
	if err != nil {
		return rec, err
	}
	if _, err := c.Cache.Fill(ctx, rec); err != nil {
		log.WithError(err).WithField("scheme_id", id).Warn("scheme cache fill failed")
	}
	return rec, nil
}

func (c *CachedSchemes) CreateScheme(ctx context.Context, r charges.SchemeRecord) (charges.SchemeRecord, error) {
	created, err := c.Store.CreateScheme(ctx, r)
	if err != nil {
		return created, err
	}
	if err := c.Cache.Set(ctx, created); err != nil {
		log.WithError(err).WithField("scheme_id", created.ID).Warn("scheme cache refresh failed")
		c.evict(ctx, created.ID)
	}
	return created, nil
}

func (c *CachedSchemes) SaveScheme(ctx context.Context, r charges.SchemeRecord) (charges.SchemeRecord, error) {
	saved, err := c.Store.SaveScheme(ctx, r)
	if err != nil {
		return saved, err
	}
	if err := c.Cache.Set(ctx, saved); err != nil {
		// Evict so a stale version is not served.
		log.WithError(err).WithField("scheme_id", saved.ID).Warn("scheme cache refresh failed")
		c.evict(ctx, saved.ID)
	}
	return saved, nil
}

func (c *CachedSchemes) ListSchemes(ctx context.Context, filter charges.SchemeFilter) ([]charges.SchemeRecord, error) {
	return c.Store.ListSchemes(ctx, filter)
}

func (c *CachedSchemes) DeleteScheme(ctx context.Context, id charges.SchemeID) error {
	if err := c.Store.DeleteScheme(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

func (c *CachedSchemes) evict(ctx context.Context, id charges.SchemeID) {
	if err := c.Cache.Delete(ctx, id); err != nil {
		log.WithError(err).WithField("scheme_id", id).Error("scheme cache eviction failed")
	}
}

// =============================================================================
// MEMORY CACHE
// =============================================================================

type memoryEntry struct {
	rec     charges.SchemeRecord
	deleted bool
	expires time.Time
}

// Memory is an in-process SchemeCache with a fixed TTL.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[charges.SchemeID]memoryEntry

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewMemory creates a memory cache. A zero TTL never expires entries.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[charges.SchemeID]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, id charges.SchemeID) (charges.SchemeRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(id)
	if !ok || e.deleted {
		return charges.SchemeRecord{}, false, nil
	}
	return e.rec, true, nil
}

func (m *Memory) Set(_ context.Context, rec charges.SchemeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(rec.ID, memoryEntry{rec: rec})
	return nil
}

func (m *Memory) Fill(_ context.Context, rec charges.SchemeRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(rec.ID); ok {
		return false, nil
	}
	m.put(rec.ID, memoryEntry{rec: rec})
	return true, nil
}

func (m *Memory) Delete(_ context.Context, id charges.SchemeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(id, memoryEntry{deleted: true})
	return nil
}

// live returns the unexpired entry of id, dropping an expired one.
// Callers hold mu.
func (m *Memory) live(id charges.SchemeID) (memoryEntry, bool) {
	e, ok := m.entries[id]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, id)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *Memory) put(id charges.SchemeID, e memoryEntry) {
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries[id] = e
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
