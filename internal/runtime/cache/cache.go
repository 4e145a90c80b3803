package cache

import (
	"context"
	"slices"
	"sync"

	"github.com/rwasm-go/rwasmvm/internal/runtime/crypto"
	"github.com/rwasm-go/rwasmvm/internal/runtime/rwasm"
	"github.com/rwasm-go/rwasmvm/internal/runtime/wasm"
	"github.com/rwasm-go/rwasmvm/types"
)

// Module is a decoded contract ready to instantiate. Exactly one field is set.
type Module struct {
	Rwasm *rwasm.Module
	Wasm  *wasm.Module
}

func (m *Module) close() {
	if m.Wasm != nil {
		_ = m.Wasm.Close(context.Background())
	}
}

// Stats are counters of module lookups.
type Stats struct {
	HitsPinned uint32
	HitsMemory uint32
	Misses     uint32
	Pinned     int
	Cached     int
}

// Cache keeps contract bytecode by keccak256 code hash together with decoded modules.
// Pinned modules are never evicted; the rest are kept in least-recently-used order up
// to the configured size.
type Cache struct {
	mu         sync.RWMutex
	codeCache  map[types.B256][]byte
	modules    map[types.B256]*Module
	pinned     map[types.B256]*Module
	cacheOrder []types.B256
	moduleHits map[types.B256]uint32
	size       int
	stats      Stats
}

// New creates a cache holding at most size unpinned modules.
func New(size int) *Cache {
	return &Cache{
		codeCache:  make(map[types.B256][]byte),
		modules:    make(map[types.B256]*Module),
		pinned:     make(map[types.B256]*Module),
		moduleHits: make(map[types.B256]uint32),
		size:       size,
	}
}

// Save stores bytecode and returns its code hash.
func (c *Cache) Save(code []byte) types.B256 {
	hash := types.B256(crypto.Keccak256(code))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.codeCache[hash]; !ok {
		c.codeCache[hash] = append([]byte(nil), code...)
	}
	return hash
}

// Load returns the bytecode stored under hash.
func (c *Cache) Load(hash types.B256) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	code, ok := c.codeCache[hash]
	return code, ok
}

// Preimage implements host.PreimageResolver.
func (c *Cache) Preimage(hash types.B256) ([]byte, bool) {
	return c.Load(hash)
}

// Pin keeps the decoded module of hash resident regardless of the cache size.
func (c *Cache) Pin(hash types.B256) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pinned[hash]; ok {
		return
	}
	var m *Module
	if cached, ok := c.modules[hash]; ok {
		m = cached
		delete(c.modules, hash)
		c.dropOrder(hash)
	}
	c.pinned[hash] = m
}

// Unpin moves a pinned module back into the LRU part of the cache.
func (c *Cache) Unpin(hash types.B256) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.pinned[hash]
	if !ok {
		return
	}
	delete(c.pinned, hash)
	if m != nil {
		c.insert(hash, m)
	}
}

// Remove deletes the code and module of hash unless it is pinned.
func (c *Cache) Remove(hash types.B256) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, isPinned := c.pinned[hash]; isPinned {
		return false
	}
	if m, ok := c.modules[hash]; ok {
		m.close()
	}
	delete(c.codeCache, hash)
	delete(c.modules, hash)
	delete(c.moduleHits, hash)
	c.dropOrder(hash)
	return true
}

// SaveModule stores a decoded module for hash.
func (c *Cache) SaveModule(hash types.B256, m *Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pinned[hash]; ok {
		c.pinned[hash] = m
		return
	}
	c.insert(hash, m)
}

// LoadModule returns the decoded module of hash and counts the lookup.
func (c *Cache) LoadModule(hash types.B256) (*Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.pinned[hash]; ok && m != nil {
		c.stats.HitsPinned++
		c.moduleHits[hash]++
		return m, true
	}
	if m, ok := c.modules[hash]; ok {
		c.stats.HitsMemory++
		c.moduleHits[hash]++
		c.dropOrder(hash)
		c.cacheOrder = append(c.cacheOrder, hash)
		return m, true
	}
	c.stats.Misses++
	return nil, false
}

// Hits returns how often the module of hash was served from the cache.
func (c *Cache) Hits(hash types.B256) uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.moduleHits[hash]
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Pinned = len(c.pinned)
	s.Cached = len(c.modules)
	return s
}

func (c *Cache) insert(hash types.B256, m *Module) {
	if old, ok := c.modules[hash]; ok && old != m {
		old.close()
	}
	c.modules[hash] = m
	c.dropOrder(hash)
	c.cacheOrder = append(c.cacheOrder, hash)
	for c.size >= 0 && len(c.cacheOrder) > c.size {
		oldest := c.cacheOrder[0]
		c.cacheOrder = c.cacheOrder[1:]
		if evicted, ok := c.modules[oldest]; ok {
			evicted.close()
			delete(c.modules, oldest)
		}
	}
}

func (c *Cache) dropOrder(hash types.B256) {
	if i := slices.Index(c.cacheOrder, hash); i >= 0 {
		c.cacheOrder = slices.Delete(c.cacheOrder, i, i+1)
	}
}
