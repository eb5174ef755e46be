package authz

import (
	"errors"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aegisauth/aegis/pkg/metrics"
)

const defaultCacheSize = 16384

type cacheEntry struct {
	roles   []string
	version uint64
}

// Cache holds resolved role sets keyed by (userID, tenantID). Every entry is
// guarded by a version counter composed of a global, a per-tenant and a
// per-subject generation: each Invalidate* bumps the matching generation, so
// an entry (or an in-flight fill) written before any invalidation fails the
// version check and is treated as a miss. Subject generations are only
// allocated when a pair is explicitly invalidated and live for the process
// lifetime.
type Cache struct {
	entries *lru.Cache[string, cacheEntry]

	mu       sync.RWMutex
	global   uint64
	tenants  map[string]uint64
	subjects map[string]uint64
}

// NewCache constructs a decision cache bounded to size entries.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		entries:  entries,
		tenants:  make(map[string]uint64),
		subjects: make(map[string]uint64),
	}, nil
}

func cacheKey(userID, tenantID string) string {
	return userID + "\x00" + tenantID
}

func (c *Cache) version(userID, tenantID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.global + c.tenants[tenantID] + c.subjects[cacheKey(userID, tenantID)]
}

// GetRoles returns the cached role set for (userID, tenantID) when it is
// still current for the pair's version.
func (c *Cache) GetRoles(userID, tenantID string) ([]string, bool) {
	entry, ok := c.entries.Get(cacheKey(userID, tenantID))
	if !ok || entry.version != c.version(userID, tenantID) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return entry.roles, true
}

// StoreRoles caches the resolved role set for (userID, tenantID). version
// must be the value Snapshot returned before the roles were loaded from the
// store; a mismatch means an invalidation raced the load and the entry is
// discarded.
func (c *Cache) StoreRoles(userID, tenantID string, roles []string, version uint64) {
	if c.version(userID, tenantID) != version {
		// An invalidation landed while the roles were being resolved;
		// caching now could resurrect pre-mutation state.
		return
	}
	c.entries.Add(cacheKey(userID, tenantID), cacheEntry{roles: roles, version: version})
}

// Snapshot returns the pair's current version to pass back into StoreRoles.
func (c *Cache) Snapshot(userID, tenantID string) uint64 {
	return c.version(userID, tenantID)
}

// InvalidateUser drops the cached role set for one (userID, tenantID) pair.
// The subject generation bump also voids any fill snapshotted before the call.
func (c *Cache) InvalidateUser(userID, tenantID string) {
	key := cacheKey(userID, tenantID)
	c.mu.Lock()
	c.subjects[key]++
	c.mu.Unlock()
	c.entries.Remove(key)
}

// InvalidateTenant drops every cached entry for the tenant.
func (c *Cache) InvalidateTenant(tenantID string) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return
	}
	c.mu.Lock()
	c.tenants[tenantID]++
	c.mu.Unlock()
}

// InvalidateAll drops every cached entry across all tenants. Used when a
// global role changes, since the affected tenants cannot be enumerated.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.global++
	c.mu.Unlock()
	c.entries.Purge()
}

// Purge empties the cache entirely. Intended for tests.
func (c *Cache) Purge() {
	c.entries.Purge()
	c.mu.Lock()
	c.global = 0
	c.tenants = make(map[string]uint64)
	c.subjects = make(map[string]uint64)
	c.mu.Unlock()
}

// Invalidator is the cache-invalidation contract exposed to mutation paths,
// including ones outside this engine such as membership changes.
type Invalidator interface {
	InvalidateUser(userID, tenantID string)
	InvalidateTenant(tenantID string)
	InvalidateAll()
}

var errNilCache = errors.New("authz: cache is required")
