package session

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"campusCanteen/pkg/logger"
)

const shardCount = 64

// View is a read-only copy of a session entry handed to callers. The
// served set is copied under the shard lock, so a caller can build its
// exclusion filter without racing concurrent appends.
type View struct {
	ServedIDs map[uint64]struct{}
	LastPage  int
	Created   bool // true when this call created (or reset) the entry
}

type entry struct {
	servedOrder []uint64
	served      map[uint64]struct{}
	lastPage    int
	lastTouch   time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Cache maps (userID, requestID) to the ids already served in that
// browsing session. Keys are spread over fixed shards so unrelated
// sessions never contend on one lock.
type Cache struct {
	shards [shardCount]*shard
	ttl    time.Duration

	now      func() time.Time
	stopOnce sync.Once
	stop     chan struct{}
}

func NewCache(ttl, sweepEvery time.Duration) *Cache {
	c := &Cache{
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}

	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]*entry)}
	}

	if sweepEvery > 0 {
		go c.sweepLoop(sweepEvery)
	}

	return c
}

func sessionKey(userID uint, requestID string) string {
	return fmt.Sprintf("%d:%s", userID, requestID)
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	return c.shards[h.Sum32()%shardCount]
}

// GetOrCreate resolves the session entry for a page request:
//   - no entry: create one
//   - entry exists, page == 1: discard and recreate (explicit session reset)
//   - entry exists, page > 1: return it unchanged
//
// Expired entries are treated as absent; a miss just behaves as a fresh
// session.
func (c *Cache) GetOrCreate(userID uint, requestID string, page int) View {
	key := sessionKey(userID, requestID)
	sh := c.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := c.now()

	e, ok := sh.entries[key]
	if ok && c.expired(e, now) {
		delete(sh.entries, key)
		ok = false
	}

	if !ok || page <= 1 {
		e = &entry{
			served:    make(map[uint64]struct{}),
			lastPage:  0,
			lastTouch: now,
		}
		sh.entries[key] = e

		return View{ServedIDs: map[uint64]struct{}{}, LastPage: 0, Created: true}
	}

	e.lastTouch = now

	servedCopy := make(map[uint64]struct{}, len(e.served))
	for id := range e.served {
		servedCopy[id] = struct{}{}
	}

	return View{ServedIDs: servedCopy, LastPage: e.lastPage, Created: false}
}

// RecordServed appends newly served ids to the session and advances the
// furthest-page marker. Duplicate ids are ignored.
func (c *Cache) RecordServed(userID uint, requestID string, ids []uint64, page int) {
	key := sessionKey(userID, requestID)
	sh := c.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := c.now()

	e, ok := sh.entries[key]
	if !ok || c.expired(e, now) {
		e = &entry{served: make(map[uint64]struct{})}
		sh.entries[key] = e
	}

	for _, id := range ids {
		if _, dup := e.served[id]; dup {
			continue
		}
		e.served[id] = struct{}{}
		e.servedOrder = append(e.servedOrder, id)
	}

	if page > e.lastPage {
		e.lastPage = page
	}
	e.lastTouch = now
}

// ServedIDs returns the ordered list of ids served so far in a session.
func (c *Cache) ServedIDs(userID uint, requestID string) []uint64 {
	key := sessionKey(userID, requestID)
	sh := c.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok || c.expired(e, c.now()) {
		return nil
	}

	out := make([]uint64, len(e.servedOrder))
	copy(out, e.servedOrder)

	return out
}

func (c *Cache) Len() int {
	total := 0
	for _, sh := range c.shards {
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}

	return total
}

func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.lastTouch) > c.ttl
}

func (c *Cache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			removed := c.sweep()
			if removed > 0 {
				logger.Debug("session sweep", "removed", removed, "remaining", c.Len())
			}
		}
	}
}

func (c *Cache) sweep() int {
	removed := 0
	now := c.now()

	for _, sh := range c.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if c.expired(e, now) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	return removed
}
