package parser

import (
	"container/list"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/source"
	"staticreflect/internal/shared/observability"
)

// DefaultCacheSize is the resident file limit used when none is configured.
const DefaultCacheSize = 256

// Cache is a thread-safe, capacity-bounded memo of parsed files.
// Eviction is first-in-first-out: a hit does not refresh an entry.
//
// Usage:
//
//	cache := NewCache(NewParser(), 512)
//	file, err := cache.Parse("src/Foo.php", nil)
type Cache struct {
	mu       sync.Mutex
	parser   *Parser
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = oldest insertion
	readFile func(string) ([]byte, error)
}

type cacheEntry struct {
	path string
	file *source.File
}

// NewCache creates a cache over p. Capacity values <= 0 use DefaultCacheSize.
func NewCache(p *Parser, capacity int) *Cache {
	if p == nil {
		p = NewParser()
	}
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		parser:   p,
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		readFile: os.ReadFile,
	}
}

// Parse returns the parsed file at path. A non-nil override is parsed in
// place of the file's content and replaces any cached tree for that path.
func (c *Cache) Parse(path string, override []byte) (*source.File, error) {
	key := filepath.Clean(path)
	if override == nil {
		if f, ok := c.Peek(key); ok {
			observability.ParseCacheHits.Inc()
			return f, nil
		}
	}
	observability.ParseCacheMisses.Inc()

	content := override
	if content == nil {
		data, err := c.readFile(key)
		if err != nil {
			code := errors.CodeInternal
			if stderrors.Is(err, fs.ErrNotExist) {
				code = errors.CodeNotFound
			}
			return nil, errors.AddContext(errors.Wrap(err, code, "read source file"), errors.CtxPath, key)
		}
		content = data
	}

	file, err := c.parser.ParseFile(key, content)
	if err != nil {
		return nil, err
	}
	return c.store(key, file, override != nil), nil
}

func (c *Cache) store(key string, file *source.File, replace bool) *source.File {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		if !replace {
			// another caller parsed the same file first
			return el.Value.(*cacheEntry).file
		}
		c.order.Remove(el)
		delete(c.items, key)
	}
	for c.order.Len() >= c.capacity {
		c.evictOldestLocked()
	}
	c.items[key] = c.order.PushBack(&cacheEntry{path: key, file: file})
	observability.ParseCacheResident.Set(float64(c.order.Len()))
	return file
}

// Peek returns a cached tree without parsing.
func (c *Cache) Peek(path string) (*source.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[filepath.Clean(path)]
	if !ok {
		return nil, false
	}
	return el.Value.(*cacheEntry).file, true
}

// Evict removes path from the cache. It is a no-op if the path is not cached.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := filepath.Clean(path)
	el, ok := c.items[key]
	if !ok {
		return
	}
	c.order.Remove(el)
	delete(c.items, key)
	observability.ParseCacheResident.Set(float64(c.order.Len()))
}

// Paths returns the cached paths, oldest first.
func (c *Cache) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*cacheEntry).path)
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) Cap() int {
	return c.capacity
}

// Clear removes all parsed files.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element, c.capacity)
	observability.ParseCacheResident.Set(0)
}

// Shrink evicts the oldest entries until at most keep remain and returns the
// number evicted.
func (c *Cache) Shrink(keep int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	n := 0
	for c.order.Len() > keep {
		c.evictOldestLocked()
		n++
	}
	observability.ParseCacheResident.Set(float64(c.order.Len()))
	return n
}

// evictOldestLocked removes the front (first inserted) element.
// Caller must hold c.mu.
func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.order.Remove(front)
	delete(c.items, front.Value.(*cacheEntry).path)
	observability.ParseCacheEvictions.Inc()
}
