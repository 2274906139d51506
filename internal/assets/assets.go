// Package assets loads meshlet assets and caches them by handle.
package assets

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/tessera/internal/logger"
	"github.com/Faultbox/tessera/pkg/formats"
	"github.com/Faultbox/tessera/pkg/meshlet"
)

// ErrNotFound is returned when no root holds the requested asset.
var ErrNotFound = errors.New("asset not found")

// Handle identifies an asset by its cleaned, slash-separated path.
type Handle uint64

// HandleOf returns the handle for an asset path.
func HandleOf(path string) Handle {
	h := fnv.New64a()
	h.Write([]byte(filepath.ToSlash(filepath.Clean(path))))
	return Handle(h.Sum64())
}

// String formats the handle as hex.
func (h Handle) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Asset is a loaded meshlet asset ready for decoding.
type Asset struct {
	Handle    Handle
	Path      string // resolved file path
	Container *formats.MLT
	Words     []uint32
	Headers   []meshlet.Header
}

// Registry resolves asset paths against a list of root directories and
// keeps loaded assets in a cache.
type Registry struct {
	roots []string
	cache *Cache
	mu    sync.RWMutex
	log   *zap.Logger
}

// NewRegistry creates a new registry. Absolute paths and paths relative to
// the working directory resolve even with no roots added.
func NewRegistry() *Registry {
	return &Registry{
		cache: NewCache(),
		log:   logger.Named("assets"),
	}
}

// AddRoot adds a directory to search.
// Roots are searched in reverse order (last added = highest priority).
func (r *Registry) AddRoot(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("adding root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("adding root %s: not a directory", dir)
	}

	r.mu.Lock()
	r.roots = append(r.roots, dir)
	r.mu.Unlock()
	return nil
}

// Load returns the asset at path, reading and validating it on first use.
func (r *Registry) Load(path string) (*Asset, error) {
	h := HandleOf(path)
	if a, ok := r.cache.Get(h); ok {
		return a, nil
	}

	file, err := r.resolve(path)
	if err != nil {
		return nil, err
	}

	c, err := formats.ParseMLTFile(file)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	words, err := meshlet.WordsFromBytes(c.Data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	headers, err := meshlet.ParseHeaders(words, int(c.MeshletCount))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	a := &Asset{Handle: h, Path: file, Container: c, Words: words, Headers: headers}
	r.cache.Set(h, a)
	r.log.Debug("loaded asset",
		zap.String("path", file),
		zap.Stringer("handle", h),
		zap.Uint32("meshlets", c.MeshletCount),
		zap.Int("bytes", len(c.Data)),
		zap.Bool("compressed", c.Compressed))
	return a, nil
}

// Get returns a cached asset without touching the file system.
func (r *Registry) Get(h Handle) (*Asset, bool) {
	return r.cache.Get(h)
}

// Invalidate drops path from the cache so the next Load rereads it.
func (r *Registry) Invalidate(path string) {
	r.cache.Delete(HandleOf(path))
}

// Stats returns cache statistics.
func (r *Registry) Stats() (hits, misses int) {
	return r.cache.Stats()
}

// Close drops all roots and cached assets.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots = nil
	r.cache.Clear()
}

func (r *Registry) resolve(path string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !filepath.IsAbs(path) {
		for i := len(r.roots) - 1; i >= 0; i-- {
			candidate := filepath.Join(r.roots[i], path)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, path)
}

// Cache is a simple in-memory cache for loaded assets.
type Cache struct {
	data map[Handle]*Asset
	mu   sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[Handle]*Asset),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(h Handle) (*Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.data[h]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return a, ok
}

// Set stores an item in cache.
func (c *Cache) Set(h Handle, a *Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[h] = a
}

// Delete removes an item.
func (c *Cache) Delete(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, h)
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[Handle]*Asset)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
