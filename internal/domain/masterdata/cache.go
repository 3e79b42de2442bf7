// Package masterdata provides counterparty master-data access for the
// matching engine, fronted by an explicit bounded cache.
package masterdata

import (
	"context"
	"sync"
	"time"

	"github.com/clearledger/bankrecon-backend/internal/domain/ledger"
)

// CacheConfig bounds the IBAN lookup cache.
type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

// DefaultCacheConfig returns the standard cache bounds.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries: 1000,
		TTL:        15 * time.Minute,
	}
}

type cacheEntry struct {
	iban      string
	found     bool
	expiresAt time.Time
}

// CachedDirectory wraps a CounterpartyDirectory with an in-memory cache.
// The cache is owned by whoever constructs it, not a package global, and is
// bounded both in entry count and entry age. Negative lookups are cached
// too, since most statement lines name counterparties the master data has
// never heard of.
type CachedDirectory struct {
	inner ledger.CounterpartyDirectory
	cfg   CacheConfig
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

var _ ledger.CounterpartyDirectory = (*CachedDirectory)(nil)

// NewCachedDirectory wraps inner with a bounded TTL cache.
func NewCachedDirectory(inner ledger.CounterpartyDirectory, cfg CacheConfig) *CachedDirectory {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultCacheConfig().MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	return &CachedDirectory{
		inner:   inner,
		cfg:     cfg,
		clock:   time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// LookupIBAN resolves a counterparty name, consulting the cache first.
func (d *CachedDirectory) LookupIBAN(ctx context.Context, name string) (string, bool) {
	now := d.clock()

	d.mu.RLock()
	entry, ok := d.entries[name]
	d.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.iban, entry.found
	}

	iban, found := d.inner.LookupIBAN(ctx, name)

	d.mu.Lock()
	if len(d.entries) >= d.cfg.MaxEntries {
		d.evictExpiredLocked(now)
	}
	if len(d.entries) < d.cfg.MaxEntries {
		d.entries[name] = cacheEntry{iban: iban, found: found, expiresAt: now.Add(d.cfg.TTL)}
	}
	d.mu.Unlock()

	return iban, found
}

// Size returns the number of cached entries, expired or not.
func (d *CachedDirectory) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// evictExpiredLocked drops expired entries; if none expired the cache simply
// stops admitting until something does. Callers hold the write lock.
func (d *CachedDirectory) evictExpiredLocked(now time.Time) {
	for name, entry := range d.entries {
		if !now.Before(entry.expiresAt) {
			delete(d.entries, name)
		}
	}
}
