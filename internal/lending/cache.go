package lending

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// DefaultStaleness is the age after which a cached snapshot is considered stale.
	DefaultStaleness = 5 * time.Minute

	// MaxSnapshotAge is how long a snapshot is kept on disk without a refresh.
	MaxSnapshotAge = 7 * 24 * time.Hour
)

// Snapshot is the last good set of estimates for a pool, and optionally one user.
type Snapshot struct {
	PoolID       string                `json:"pool_id"`
	UserID       string                `json:"user_id,omitempty"`
	Pool         *PoolEstimate         `json:"pool,omitempty"`
	Positions    *PositionsEstimate    `json:"positions,omitempty"`
	Backstop     *BackstopEstimate     `json:"backstop,omitempty"`
	UserBackstop *BackstopUserEstimate `json:"user_backstop,omitempty"`
	UpdatedAt    time.Time             `json:"updated_at"`

	// Stale is set on lookups older than the staleness window. It is never persisted.
	Stale bool `json:"stale,omitempty"`
}

// CacheRecorder counts cache lookups.
type CacheRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Cache holds the last good snapshot per pool and user.
type Cache struct {
	mu      sync.RWMutex        `json:"-"`
	Entries map[string]Snapshot `json:"entries"`

	clock    clock.Clock
	recorder CacheRecorder
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		Entries: make(map[string]Snapshot),
		clock:   clock.New(),
	}
}

// SetClock replaces the clock used to stamp and age entries.
func (c *Cache) SetClock(clk clock.Clock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clk
}

// SetRecorder sets the hit/miss recorder.
func (c *Cache) SetRecorder(r CacheRecorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorder = r
}

// Key generates a cache key for a pool and optional user.
func Key(poolID, userID string) string {
	if userID != "" {
		return poolID + ":" + userID
	}
	return poolID
}

// Get returns the snapshot for poolID and userID, whether it exists, and its age.
func (c *Cache) Get(poolID, userID string) (*Snapshot, bool, time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.Entries[Key(poolID, userID)]
	if !ok {
		if c.recorder != nil {
			c.recorder.RecordCacheMiss()
		}
		return nil, false, 0
	}
	if c.recorder != nil {
		c.recorder.RecordCacheHit()
	}
	return &snap, true, c.clock.Since(snap.UpdatedAt)
}

// Set stores snap, stamping it with the current time, and returns the stored copy.
func (c *Cache) Set(snap Snapshot) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap.UpdatedAt = c.clock.Now()
	c.Entries[Key(snap.PoolID, snap.UserID)] = snap
	return snap
}

// Lookup returns the snapshot for poolID and userID with Stale set when it
// is older than staleness.
func (c *Cache) Lookup(poolID, userID string, staleness time.Duration) (*Snapshot, bool) {
	snap, ok, age := c.Get(poolID, userID)
	if !ok {
		return nil, false
	}
	snap.Stale = age > staleness
	return snap, true
}

// Prune removes entries older than maxAge and returns how many were removed.
func (c *Cache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	cutoff := c.clock.Now().Add(-maxAge)
	for key, snap := range c.Entries {
		if snap.UpdatedAt.Before(cutoff) {
			delete(c.Entries, key)
			removed++
		}
	}
	return removed
}
