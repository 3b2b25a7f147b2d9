// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/wneessen/everymap/internal/geobus"
)

// coordPrecision is the precision used to quantize coordinates (0.01 degrees ≈ 1.1 km)
const coordPrecision = 1e-2

// CachedGeocoder caches reverse and forward lookups of another Geocoder. Found addresses and
// non-empty search results are kept for ttlHit, misses for ttlMiss. Errors are never cached.
// Expired entries are not returned but stay in memory until DeleteExpired is called.
type CachedGeocoder struct {
	coder   Geocoder
	ttlHit  time.Duration
	ttlMiss time.Duration

	cache *cache.Cache
	group singleflight.Group
}

func NewCachedGeocoder(coder Geocoder, ttlHit, ttlMiss time.Duration) *CachedGeocoder {
	return &CachedGeocoder{
		coder:   coder,
		ttlHit:  ttlHit,
		ttlMiss: ttlMiss,
		cache:   cache.New(ttlHit, 0),
	}
}

func (c *CachedGeocoder) Name() string {
	return "geocoder cache using " + c.coder.Name()
}

func (c *CachedGeocoder) Reverse(ctx context.Context, coords geobus.Coordinate) (Address, error) {
	key := reverseKey(c.coder.Name(), coords.Lat, coords.Lon)
	if entry, ok := c.cache.Get(key); ok {
		addr := entry.(Address)
		addr.CacheHit = true
		return addr, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		addr, err := c.coder.Reverse(ctx, coords)
		if err != nil {
			return addr, err
		}
		ttl := c.ttlHit
		if !addr.AddressFound {
			ttl = c.ttlMiss
		}
		c.cache.Set(key, addr, ttl)
		return addr, nil
	})
	addr, _ := val.(Address)
	return addr, err
}

func (c *CachedGeocoder) Search(ctx context.Context, query string) (SearchResult, error) {
	key := searchKey(c.coder.Name(), query)
	if entry, ok := c.cache.Get(key); ok {
		result := entry.(SearchResult)
		result.CacheHit = true
		return result, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := c.coder.Search(ctx, query)
		if err != nil {
			return result, err
		}
		ttl := c.ttlHit
		if result.Empty() {
			ttl = c.ttlMiss
		}
		c.cache.Set(key, result, ttl)
		return result, nil
	})
	result, _ := val.(SearchResult)
	return result, err
}

// DeleteExpired removes all expired entries from memory.
func (c *CachedGeocoder) DeleteExpired() {
	c.cache.DeleteExpired()
}

// Len returns the number of entries in memory, including expired ones.
func (c *CachedGeocoder) Len() int {
	return c.cache.ItemCount()
}

// Flush drops all cached entries.
func (c *CachedGeocoder) Flush() {
	c.cache.Flush()
}

func quantizeCoord(val float64) int32 {
	return int32(math.Round(val / coordPrecision))
}

func reverseKey(provider string, lat, lon float64) string {
	return fmt.Sprintf("reverse|%s|%d|%d", provider, quantizeCoord(lat), quantizeCoord(lon))
}

func searchKey(provider, query string) string {
	return fmt.Sprintf("search|%s|%s", provider, strings.ToLower(strings.Join(strings.Fields(query), " ")))
}
