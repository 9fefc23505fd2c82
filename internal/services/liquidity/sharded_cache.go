package liquidity

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/swapmesh/route-resolver/internal/domain"
)

const numShards = 16

type cacheEntry struct {
	edges     []domain.Edge
	expiresAt time.Time
}

// shardedEdgeCache is a sharded TTL cache for oracle pair lookups. It is
// the only state shared across concurrent requests: read-mostly, with
// insert-or-replace writes per key and no cross-key locking.
type shardedEdgeCache struct {
	shards [numShards]edgeShard
	ttl    time.Duration
	now    func() time.Time
}

type edgeShard struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newShardedEdgeCache(ttl time.Duration, now func() time.Time) *shardedEdgeCache {
	c := &shardedEdgeCache{ttl: ttl, now: now}
	if c.now == nil {
		c.now = time.Now
	}
	for i := 0; i < numShards; i++ {
		c.shards[i].entries = make(map[string]cacheEntry)
	}
	return c
}

func (c *shardedEdgeCache) getShard(key string) *edgeShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &c.shards[h.Sum32()%numShards]
}

// Get returns the cached edges for key, or false when absent or expired.
// Expired entries are left in place; Set overwrites them.
func (c *shardedEdgeCache) Get(key string) ([]domain.Edge, bool) {
	shard := c.getShard(key)
	shard.mu.RLock()
	entry, ok := shard.entries[key]
	shard.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.edges, true
}

func (c *shardedEdgeCache) Set(key string, edges []domain.Edge) {
	shard := c.getShard(key)
	shard.mu.Lock()
	shard.entries[key] = cacheEntry{edges: edges, expiresAt: c.now().Add(c.ttl)}
	shard.mu.Unlock()
}

func (c *shardedEdgeCache) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		c.shards[i].mu.RLock()
		total += len(c.shards[i].entries)
		c.shards[i].mu.RUnlock()
	}
	return total
}

// Sweep drops expired entries. Called periodically from the oracle's
// background loop so the cache does not grow without bound.
func (c *shardedEdgeCache) Sweep() int {
	removed := 0
	now := c.now()
	for i := 0; i < numShards; i++ {
		shard := &c.shards[i]
		shard.mu.Lock()
		for k, e := range shard.entries {
			if now.After(e.expiresAt) {
				delete(shard.entries, k)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}
