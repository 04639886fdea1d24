package terrain

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Faultbox/midgard-terrain/internal/logger"
)

// Loader loads the block at a resource path.
type Loader func(path string) (Block, error)

// Cache shares loaded blocks by resource path. Each FindOrLoad returns a
// Handle holding one reference; the block is dropped from the cache when the
// last handle is released.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry

	load    Loader
	dedupe  bool
	group   singleflight.Group
	onEvict func(path string)
	log     *zap.Logger
}

// CacheEntry is a cached block and its reference count.
type CacheEntry struct {
	cache *Cache
	path  string
	block Block
	refs  int // guarded by cache.mu
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithDedupe controls whether concurrent loads of the same path share one
// load. Without it, racing loaders each load and the first insert wins.
func WithDedupe(dedupe bool) CacheOption {
	return func(c *Cache) { c.dedupe = dedupe }
}

// WithOnEvict registers fn to run, outside the cache lock, for the requested
// and the resolved resource path of every evicted block. Resource byte
// caches hook in here so a reload reads what is on disk now.
func WithOnEvict(fn func(path string)) CacheOption {
	return func(c *Cache) { c.onEvict = fn }
}

// WithLogger sets the cache's logger.
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) { c.log = l }
}

// NewCache creates a cache that loads missing blocks with load.
func NewCache(load Loader, opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]*CacheEntry),
		load:    load,
		dedupe:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("terrain.cache")
	}
	return c
}

// FindOrLoad returns a handle to the block at path, loading it if no live
// entry exists. Loading happens outside the cache lock.
func (c *Cache) FindOrLoad(path string) (*Handle, error) {
	if h := c.find(path); h != nil {
		return h, nil
	}

	block, err := c.loadBlock(path)
	if err != nil {
		c.log.Error("terrain block load failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[path]; ok {
		// Someone else loaded the same block meanwhile.
		e.refs++
		c.log.Debug("discarding duplicate terrain block load", zap.String("path", path))
		return &Handle{entry: e}, nil
	}

	e := &CacheEntry{cache: c, path: path, block: block, refs: 1}
	c.entries[path] = e
	c.log.Debug("terrain block cached", zap.String("path", path), zap.Int("entries", len(c.entries)))
	return &Handle{entry: e}, nil
}

func (c *Cache) find(path string) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		return nil
	}
	e.refs++
	return &Handle{entry: e}
}

func (c *Cache) loadBlock(path string) (Block, error) {
	if !c.dedupe {
		return c.load(path)
	}
	v, err, _ := c.group.Do(path, func() (any, error) {
		return c.load(path)
	})
	if err != nil {
		return nil, err
	}
	return v.(Block), nil
}

func (c *Cache) incRef(e *CacheEntry) {
	c.mu.Lock()
	e.refs++
	c.mu.Unlock()
}

// decRef drops a reference. The entry leaves the map before its last
// reference goes, so a concurrent lookup never revives a dying entry.
func (c *Cache) decRef(e *CacheEntry) {
	c.mu.Lock()
	evicted := e.refs == 1 && c.entries[e.path] == e
	if evicted {
		delete(c.entries, e.path)
		c.log.Debug("terrain block evicted", zap.String("path", e.path))
	}
	e.refs--
	c.mu.Unlock()

	if evicted && c.onEvict != nil {
		c.onEvict(e.path)
		if p := e.block.ResourcePath(); p != e.path {
			c.onEvict(p)
		}
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RefCount returns the reference count of the live entry for path, or 0.
func (c *Cache) RefCount(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok {
		return e.refs
	}
	return 0
}

// Paths returns the paths of all live entries.
func (c *Cache) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	return paths
}

// Handle holds one reference to a cached block.
type Handle struct {
	entry    *CacheEntry
	released sync.Once
}

// Block returns the cached block.
func (h *Handle) Block() Block { return h.entry.block }

// Path returns the resource path the block was requested under.
func (h *Handle) Path() string { return h.entry.path }

// Clone returns a new handle sharing the same entry.
func (h *Handle) Clone() *Handle {
	h.entry.cache.incRef(h.entry)
	return &Handle{entry: h.entry}
}

// Release drops the handle's reference. Further calls do nothing.
func (h *Handle) Release() {
	h.released.Do(func() {
		h.entry.cache.decRef(h.entry)
	})
}
