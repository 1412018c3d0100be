package gdbm

import (
	"fmt"

	"github.com/calvinalkan/gdbm/internal/wire"
)

// cacheEntry is one resident, decoded bucket.
type cacheEntry struct {
	addr     uint64
	bucket   *wire.Bucket
	dirty    bool
	lastUsed uint64
}

// bucketCache is a bounded, LRU-evicting cache of decoded buckets with
// dirty tracking. Open creates it at DefaultCacheSize; a single
// SetOpt(CacheSize, ...) before the first lookup replaces it with one of
// the requested capacity. It may not be resized afterward.
type bucketCache struct {
	entries  []*cacheEntry
	byAddr   map[uint64]*cacheEntry
	capacity int
	clock    uint64
	cur      *cacheEntry
	sized    bool
}

func newBucketCache(capacity int) *bucketCache {
	if capacity < MinCacheSize {
		capacity = MinCacheSize
	}

	return &bucketCache{
		capacity: capacity,
		byAddr:   make(map[uint64]*cacheEntry, capacity),
	}
}

// current returns the bucket most recently returned by getBucket, and
// its address. It panics if called before any getBucket call, which
// would be an engine bug (every mutating operation must locate a bucket
// before touching one).
func (c *bucketCache) current() (*wire.Bucket, uint64) {
	if c.cur == nil {
		panic("gdbm: no current bucket")
	}

	return c.cur.bucket, c.cur.addr
}

// markCurrentDirty flags the current bucket for writeback.
func (c *bucketCache) markCurrentDirty() {
	c.cur.dirty = true
}

// getBucket loads the bucket at addr, evicting an LRU victim if the
// cache is full, and makes it the current bucket.
func (db *DB) getBucket(addr uint64) (*wire.Bucket, error) {
	c := db.cache

	if e, ok := c.byAddr[addr]; ok {
		c.clock++
		e.lastUsed = c.clock
		c.cur = e

		return e.bucket, nil
	}

	bucket, err := db.readBucketAt(addr)
	if err != nil {
		return nil, err
	}

	c.clock++
	entry := &cacheEntry{addr: addr, bucket: bucket, lastUsed: c.clock}

	if len(c.entries) < c.capacity {
		c.entries = append(c.entries, entry)
	} else {
		victim := c.evictionVictim()
		if victim.dirty {
			if err := db.writeBucketAt(victim.addr, victim.bucket); err != nil {
				return nil, err
			}
		}

		delete(c.byAddr, victim.addr)

		for i, e := range c.entries {
			if e == victim {
				c.entries[i] = entry

				break
			}
		}
	}

	c.byAddr[addr] = entry
	c.cur = entry

	return bucket, nil
}

// evictionVictim picks the least-recently-used entry that is not the
// current one.
func (c *bucketCache) evictionVictim() *cacheEntry {
	var victim *cacheEntry

	for _, e := range c.entries {
		if e == c.cur {
			continue
		}

		if victim == nil || e.lastUsed < victim.lastUsed {
			victim = e
		}
	}

	if victim == nil {
		// Every slot is the current entry (capacity 1 edge case).
		victim = c.entries[0]
	}

	return victim
}

// invalidate removes addr from the cache without writing it back. Used
// by splitOne, which writes new contents to the split bucket's address
// itself, so the cached copy no longer matters.
func (c *bucketCache) invalidate(addr uint64) {
	e, ok := c.byAddr[addr]
	if !ok {
		return
	}

	delete(c.byAddr, addr)

	for i, x := range c.entries {
		if x == e {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)

			break
		}
	}

	if c.cur == e {
		c.cur = nil
	}
}

// flushCache writes back every dirty entry.
func (db *DB) flushCache() error {
	for _, e := range db.cache.entries {
		if !e.dirty {
			continue
		}

		if err := db.writeBucketAt(e.addr, e.bucket); err != nil {
			return err
		}

		e.dirty = false
	}

	return nil
}

func (db *DB) readBucketAt(addr uint64) (*wire.Bucket, error) {
	buf := make([]byte, db.header.BucketSize)
	if err := db.view.ReadAt(buf, int64(addr)); err != nil {
		return nil, fmt.Errorf("read bucket at %d: %w", addr, ErrCorrupt)
	}

	return wire.DecodeBucket(buf, int(db.header.BucketElems)), nil
}

func (db *DB) writeBucketAt(addr uint64, b *wire.Bucket) error {
	buf := wire.EncodeBucket(b, db.header.BucketSize)

	return db.view.WriteAt(buf, int64(addr))
}
