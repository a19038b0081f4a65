// Package aggregation implements the lazy, day-stamped aggregation
// cache from spec §4.4, plus the six window aggregation functions it
// fronts.
//
// Grounded on caching/caching.go's Engine: a sync.RWMutex-guarded map
// with exact-key lookup, atomic.Int64 hit/miss/eviction counters, and a
// bounded capacity with eviction on insert. That engine backs similarity
// search with an unbounded per-namespace slice; this cache instead needs
// true least-recently-used eviction over a flat key space, so recency
// is tracked with container/list (the standard library's doubly linked
// list — the idiomatic building block for an LRU, and what every LRU
// cache in the Go ecosystem reaches for when avoiding a dependency).
package aggregation

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// ValueKind discriminates CachedValue's variant (spec §3:
// "value: variant{int64, float64}").
type ValueKind int

const (
	KindInt ValueKind = iota
	KindFloat
)

// CachedValue is the int64/float64 variant spec §3 describes.
type CachedValue struct {
	Kind  ValueKind
	Int   int64
	Float float64
}

func IntValue(v int64) CachedValue   { return CachedValue{Kind: KindInt, Int: v} }
func FloatValue(v float64) CachedValue { return CachedValue{Kind: KindFloat, Float: v} }

// CachedAggregation is one cache entry (spec §3/§4.4).
type CachedAggregation struct {
	Value           CachedValue
	ComputedAtDayID int32
}

// Cache is the bounded, LRU-evicted aggregation cache from spec §4.4.
// Capacity defaults to S, the same in-memory historical window size
// (spec §2's "bounded size S entries (configured at startup)").
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type cacheElem struct {
	key   string
	value CachedAggregation
}

// New returns an empty Cache bounded to capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns a hit iff the entry exists and
// entry.ComputedAtDayID == currentDayID (spec §4.4).
func (c *Cache) Get(key string, currentDayID int32) (CachedAggregation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return CachedAggregation{}, false
	}
	entry := el.Value.(*cacheElem).value
	if entry.ComputedAtDayID != currentDayID {
		c.misses.Add(1)
		return CachedAggregation{}, false
	}
	c.order.MoveToFront(el)
	c.hits.Add(1)
	return entry, true
}

// Put inserts or overwrites an entry and marks it most-recently-used,
// evicting the least-recently-used entry if the cache is at capacity
// (spec §4.4).
func (c *Cache) Put(key string, value CachedAggregation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheElem).value = value
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheElem{key: key, value: value})
	c.entries[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheElem).key)
			c.evictions.Add(1)
		}
	}
}

// InvalidateOnNewEvent drops every cached entry whose key names product
// as one of its colon-separated segments (spec §4.4: "substring match on
// the product segment suffices given the key format").
func (c *Cache) InvalidateOnNewEvent(product string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, el := range c.entries {
		if keyMentionsProduct(key, product) {
			c.order.Remove(el)
			delete(c.entries, key)
		}
	}
}

func keyMentionsProduct(key, product string) bool {
	parts := strings.Split(key, ":")
	for _, p := range parts[1:] { // parts[0] is the kind prefix
		if p == product {
			return true
		}
	}
	return false
}

// InvalidateOnNewDay clears the cache entirely, since every windowed
// aggregation can shift once the current day rotates (spec §4.4).
func (c *Cache) InvalidateOnNewDay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Stats is a point-in-time snapshot of cache counters, surfaced by the
// admin HTTP /stats endpoint (SPEC_FULL §3).
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   n,
	}
}

// Key builders — spec §4.4's "<kind>:<args…>" format.

func QuantityKey(product string, days int32) string  { return fmt.Sprintf("qty:%s:%d", product, days) }
func RevenueKey(product string, days int32) string    { return fmt.Sprintf("rev:%s:%d", product, days) }
func AvgPriceKey(product string, days int32) string   { return fmt.Sprintf("avg:%s:%d", product, days) }
func MaxPriceKey(product string, days int32) string   { return fmt.Sprintf("max:%s:%d", product, days) }
func CommonDaysKey(p1, p2 string, days int32) string  { return fmt.Sprintf("common:%s:%s:%d", p1, p2, days) }
func MaxConsecutiveKey(product string, days int32) string {
	return fmt.Sprintf("maxseq:%s:%d", product, days)
}
