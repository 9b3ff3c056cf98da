package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(ttl time.Duration) *Cache {
	c := NewCache(ttl, 0) // no background sweep in tests
	return c
}

func TestGetOrCreateFreshSession(t *testing.T) {
	c := newTestCache(time.Minute)
	defer c.Stop()

	v := c.GetOrCreate(1, "req-1", 1)
	assert.True(t, v.Created)
	assert.Empty(t, v.ServedIDs)
	assert.Equal(t, 0, v.LastPage)
	assert.Equal(t, 1, c.Len())
}

func TestRecordServedAccumulates(t *testing.T) {
	c := newTestCache(time.Minute)
	defer c.Stop()

	c.GetOrCreate(1, "req-1", 1)
	c.RecordServed(1, "req-1", []uint64{10, 20, 30}, 1)
	c.RecordServed(1, "req-1", []uint64{30, 40}, 2) // 30 is a duplicate

	v := c.GetOrCreate(1, "req-1", 3)
	assert.False(t, v.Created)
	assert.Equal(t, 2, v.LastPage)
	assert.Len(t, v.ServedIDs, 4)

	assert.Equal(t, []uint64{10, 20, 30, 40}, c.ServedIDs(1, "req-1"))
}

func TestPageOneResetsSession(t *testing.T) {
	c := newTestCache(time.Minute)
	defer c.Stop()

	c.GetOrCreate(1, "req-1", 1)
	c.RecordServed(1, "req-1", []uint64{10, 20}, 1)

	v := c.GetOrCreate(1, "req-1", 1)
	assert.True(t, v.Created, "page-1 retry must discard and recreate the entry")
	assert.Empty(t, v.ServedIDs)
	assert.Empty(t, c.ServedIDs(1, "req-1"))
}

func TestLaterPageKeepsServedSet(t *testing.T) {
	c := newTestCache(time.Minute)
	defer c.Stop()

	c.GetOrCreate(1, "req-1", 1)
	c.RecordServed(1, "req-1", []uint64{10, 20}, 1)

	v := c.GetOrCreate(1, "req-1", 2)
	assert.False(t, v.Created)
	require.Len(t, v.ServedIDs, 2)
	_, has := v.ServedIDs[10]
	assert.True(t, has)
}

func TestSessionsAreKeyedByUserAndRequest(t *testing.T) {
	c := newTestCache(time.Minute)
	defer c.Stop()

	c.GetOrCreate(1, "req-1", 1)
	c.RecordServed(1, "req-1", []uint64{10}, 1)

	// same request id, different user: independent session
	v := c.GetOrCreate(2, "req-1", 2)
	assert.True(t, v.Created)
	assert.Empty(t, v.ServedIDs)

	// same user, different request id: independent session
	v = c.GetOrCreate(1, "req-2", 2)
	assert.True(t, v.Created)
	assert.Empty(t, v.ServedIDs)
}

func TestExpiredEntryBehavesAsFresh(t *testing.T) {
	c := newTestCache(10 * time.Minute)
	defer c.Stop()

	base := time.Now()
	c.now = func() time.Time { return base }

	c.GetOrCreate(1, "req-1", 1)
	c.RecordServed(1, "req-1", []uint64{10, 20}, 1)

	c.now = func() time.Time { return base.Add(11 * time.Minute) }

	v := c.GetOrCreate(1, "req-1", 2)
	assert.True(t, v.Created, "expired entry must be recreated on access")
	assert.Empty(t, v.ServedIDs)
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	c := newTestCache(10 * time.Minute)
	defer c.Stop()

	base := time.Now()
	c.now = func() time.Time { return base }

	for u := uint(1); u <= 50; u++ {
		c.GetOrCreate(u, "req", 1)
	}
	require.Equal(t, 50, c.Len())

	c.now = func() time.Time { return base.Add(time.Hour) }

	removed := c.sweep()
	assert.Equal(t, 50, removed)
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentRecordServedSameKey(t *testing.T) {
	c := newTestCache(time.Minute)
	defer c.Stop()

	c.GetOrCreate(1, "req-1", 1)

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(offset uint64) {
			defer wg.Done()
			for i := uint64(0); i < 100; i++ {
				c.RecordServed(1, "req-1", []uint64{offset*1000 + i}, 2)
			}
		}(uint64(g))
	}
	wg.Wait()

	ids := c.ServedIDs(1, "req-1")
	assert.Len(t, ids, 16*100, "no appends may be lost under concurrency")

	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "id %d recorded twice", id)
		seen[id] = struct{}{}
	}
}

func TestConcurrentResetAndAppendResolveConsistently(t *testing.T) {
	c := newTestCache(time.Minute)
	defer c.Stop()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if n%2 == 0 {
					c.GetOrCreate(1, "req-1", 1) // reset
				} else {
					c.RecordServed(1, "req-1", []uint64{uint64(i)}, 2)
				}
			}
		}(g)
	}
	wg.Wait()

	// whichever writer won last, the served set must be internally consistent
	ids := c.ServedIDs(1, "req-1")
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
