package imaging

import (
	"fmt"
	"os"
	"sync"
)

// AssetCache provides thread-safe caching of page assets loaded from disk.
//
// Assets are keyed by the exact path string passed to Load. Once a file has
// been loaded, later calls return the cached Asset without disk I/O or a
// second decode.
//
// # Memory Management
//
// Cached assets remain in memory until removed via Evict or Clear. The
// server evicts a path after it has been added to a submission.
//
// # Example Usage
//
//	cache := imaging.NewAssetCache()
//	page, err := cache.Load("/scans/student-1.jpg")
//	if err != nil {
//	    return err
//	}
//	cache.Evict("/scans/student-1.jpg")
type AssetCache struct {
	mu     sync.RWMutex
	assets map[string]Asset
}

// NewAssetCache creates an empty cache ready for concurrent use.
func NewAssetCache() *AssetCache {
	return &AssetCache{
		assets: make(map[string]Asset),
	}
}

// Load returns the asset for path, reading and decoding the file on the
// first request.
//
// # Errors
//
//   - Returns a wrapped os error if the file cannot be read
//   - Returns *DecodeError if the file is not a supported image
func (c *AssetCache) Load(path string) (Asset, error) {
	c.mu.RLock()
	if a, ok := c.assets[path]; ok {
		c.mu.RUnlock()
		return a, nil
	}
	c.mu.RUnlock()

	a, err := LoadAsset(path)
	if err != nil {
		return Asset{}, err
	}

	c.mu.Lock()
	c.assets[path] = a
	c.mu.Unlock()

	return a, nil
}

// Len reports how many assets are cached.
func (c *AssetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.assets)
}

// Clear removes every cached asset.
func (c *AssetCache) Clear() {
	c.mu.Lock()
	c.assets = make(map[string]Asset)
	c.mu.Unlock()
}

// Evict removes path from the cache. Unknown paths are ignored.
func (c *AssetCache) Evict(path string) {
	c.mu.Lock()
	delete(c.assets, path)
	c.mu.Unlock()
}

// LoadAsset reads path and wraps its contents in an Asset without caching.
func LoadAsset(path string) (Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to read image: %w", err)
	}
	return NewAsset(data)
}
