package web

type cacheEntry struct {
	hash       uint64
	data       []byte
	compressed bool
}

// cache remembers the most recently sent frames, so a repeated frame is
// sent as its index. It is only used from the hub goroutine.
type cache struct {
	entries []cacheEntry
	idx     int
}

func newCache(size int) *cache {
	return &cache{entries: make([]cacheEntry, size)}
}

func (c *cache) add(hash uint64, data []byte, compressed bool) int {
	i := c.idx
	c.entries[i] = cacheEntry{hash: hash, data: data, compressed: compressed}
	c.idx = (c.idx + 1) % len(c.entries)
	return i
}

// index returns the slot holding hash, or -1.
func (c *cache) index(hash uint64) int {
	for i, e := range c.entries {
		if e.data != nil && e.hash == hash {
			return i
		}
	}
	return -1
}
