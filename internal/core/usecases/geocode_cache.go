package usecases

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/flightmap/internal/core/domain"
)

type geocodeEntry struct {
	point domain.GeoPoint
	err   error
}

// GeocodeCache maps normalized place names to a resolved point or a cached
// failure. Entries live until Reset; concurrent loads of one name share a
// single fetch.
type GeocodeCache struct {
	mu      sync.RWMutex
	entries map[string]geocodeEntry
	epoch   uint64

	group singleflight.Group
}

// NewGeocodeCache creates an empty cache.
func NewGeocodeCache() *GeocodeCache {
	return &GeocodeCache{entries: make(map[string]geocodeEntry)}
}

// Get returns the cached outcome for key. ok is false on a miss; on a hit
// err is non-nil for a cached failure.
func (c *GeocodeCache) Get(key string) (p domain.GeoPoint, err error, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.point, e.err, ok
}

// Put stores a resolved point for key.
func (c *GeocodeCache) Put(key string, p domain.GeoPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = geocodeEntry{point: p}
}

// Len returns the number of cached names, failures included.
func (c *GeocodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every entry. Fetches already in flight still answer their
// waiters but their results are not stored.
func (c *GeocodeCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]geocodeEntry)
	c.epoch++
}

// Load returns the cached outcome for key, or runs fetch exactly once for all
// concurrent callers of the same key. Successful results and errors matching
// domain.ErrUnresolvedLocation are stored; other errors are not.
//
// fetch runs detached from ctx: a caller giving up stops waiting but does
// not cancel the shared fetch.
func (c *GeocodeCache) Load(ctx context.Context, key string, fetch func() (domain.GeoPoint, error)) (domain.GeoPoint, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		c.mu.RLock()
		e, ok := c.entries[key]
		epoch := c.epoch
		c.mu.RUnlock()
		if ok {
			return e.point, e.err
		}

		p, err := fetch()
		if err == nil || errors.Is(err, domain.ErrUnresolvedLocation) {
			c.store(epoch, key, geocodeEntry{point: p, err: err})
		}
		return p, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.GeoPoint{}, res.Err
		}
		return res.Val.(domain.GeoPoint), nil
	case <-ctx.Done():
		return domain.GeoPoint{}, ctx.Err()
	}
}

func (c *GeocodeCache) store(epoch uint64, key string, e geocodeEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	c.entries[key] = e
}
