// Package pricecache is a small TTL cache for prices and fee tiers.
package pricecache

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags the payload held by a Value.
type Kind int

const (
	Scalar Kind = iota
	Map
)

// Value is either a single decimal or a map of decimals.
type Value struct {
	Kind   Kind
	Scalar decimal.Decimal
	Map    map[string]decimal.Decimal
}

// ScalarValue wraps d.
func ScalarValue(d decimal.Decimal) Value {
	return Value{Kind: Scalar, Scalar: d}
}

// MapValue wraps a copy of m.
func MapValue(m map[string]decimal.Decimal) Value {
	return Value{Kind: Map, Map: copyMap(m)}
}

func copyMap(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (v Value) clone() Value {
	if v.Kind == Map {
		v.Map = copyMap(v.Map)
	}
	return v
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type entry struct {
	value   Value
	expires time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Cache is safe for concurrent use.
type Cache struct {
	clock Clock

	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty cache. A nil clock uses SystemClock.
func New(clock Clock) *Cache {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Cache{clock: clock, entries: make(map[string]entry)}
}

// Get returns the live value for key. Expired entries are evicted.
func (c *Cache) Get(key string) (Value, bool) {
	now := c.clock.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Value{}, false
	}
	if !e.expired(now) {
		return e.value.clone(), true
	}

	c.mu.Lock()
	// A concurrent Set may have replaced the entry since the read.
	if cur, ok := c.entries[key]; ok && cur.expired(now) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return Value{}, false
}

// GetScalar is Get restricted to scalar values.
func (c *Cache) GetScalar(key string) (decimal.Decimal, bool) {
	v, ok := c.Get(key)
	if !ok || v.Kind != Scalar {
		return decimal.Zero, false
	}
	return v.Scalar, true
}

// GetMap is Get restricted to map values.
func (c *Cache) GetMap(key string) (map[string]decimal.Decimal, bool) {
	v, ok := c.Get(key)
	if !ok || v.Kind != Map {
		return nil, false
	}
	return v.Map, true
}

// Set stores value under key. A ttl <= 0 never expires.
func (c *Cache) Set(key string, value Value, ttl time.Duration) {
	e := entry{value: value.clone()}
	if ttl > 0 {
		e.expires = c.clock.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// MergeMap overlays m onto the live map under key. A live map keeps its
// deadline so merged prices never outlive the oldest price in the map. With
// no live map, m is stored with ttl.
func (c *Cache) MergeMap(key string, m map[string]decimal.Decimal, ttl time.Duration) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[key]; ok && !cur.expired(now) && cur.value.Kind == Map {
		merged := copyMap(cur.value.Map)
		for k, v := range m {
			merged[k] = v
		}
		c.entries[key] = entry{value: MapValue(merged), expires: cur.expires}
		return
	}
	e := entry{value: MapValue(m).clone()}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	c.entries[key] = e
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet evicted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
