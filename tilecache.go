package gojp2

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/coocood/freecache"
)

// TileCache holds decoded tiles in a fixed-size freecache so repeated reads
// of overlapping regions skip the codec. It is safe for concurrent use and
// may be shared between image I/O instances.
type TileCache struct {
	cache *freecache.Cache
	size  int
}

// CacheStats summarizes cache usage.
type CacheStats struct {
	Entries   int64
	Hits      int64
	Misses    int64
	HitRate   float64
	Evictions int64
}

// NewTileCache returns a cache of about sizeMB megabytes, or nil if sizeMB is 0.
// Tiles larger than 1/1024 of the cache are never cached.
func NewTileCache(sizeMB int) *TileCache {
	if sizeMB <= 0 {
		return nil
	}
	numBytes := sizeMB << 20
	return &TileCache{cache: freecache.NewCache(numBytes), size: numBytes}
}

// tileKey identifies a tile of one version of a file.
func tileKey(identity string, tileIndex int) []byte {
	key := make([]byte, 0, len(identity)+9)
	key = append(key, identity...)
	key = append(key, 0)
	return binary.BigEndian.AppendUint64(key, uint64(tileIndex))
}

func (c *TileCache) get(identity string, tileIndex int) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.cache.Get(tileKey(identity, tileIndex))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *TileCache) put(identity string, tileIndex int, data []byte) error {
	if c == nil {
		return nil
	}
	err := c.cache.Set(tileKey(identity, tileIndex), data, 0)
	if errors.Is(err, freecache.ErrLargeEntry) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("caching tile %d: %w", tileIndex, err)
	}
	return nil
}

// Stats returns the current usage counters.
func (c *TileCache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	return CacheStats{
		Entries:   c.cache.EntryCount(),
		Hits:      c.cache.HitCount(),
		Misses:    c.cache.MissCount(),
		HitRate:   c.cache.HitRate(),
		Evictions: c.cache.EvacuateCount(),
	}
}

// Size returns the cache capacity in bytes.
func (c *TileCache) Size() int {
	if c == nil {
		return 0
	}
	return c.size
}

// Clear drops all cached tiles and resets the counters.
func (c *TileCache) Clear() {
	if c == nil {
		return
	}
	c.cache.Clear()
	c.cache.ResetStatistics()
}
