package timeseries

import (
	"fmt"
	"sync"
	"time"

	"github.com/sbar/dailysales/wire"
)

// DiskStore is the subset of the persistence layer (spec §4.5) the
// time-series store depends on. Defined here, implemented in package
// persistence, to avoid an import cycle between the two.
type DiskStore interface {
	SaveDay(dayID int32, events []wire.Event) error
	LoadDay(dayID int32) ([]wire.Event, bool, error)
	DeleteDay(dayID int32) error
	SaveState(currentDayID int32) error
}

// CacheInvalidator is the aggregation cache's invalidation hooks (spec
// §4.4), consumed here so AddEvent/NewDay can notify it without the
// time-series package importing the cache package.
type CacheInvalidator interface {
	InvalidateOnNewEvent(product string)
	InvalidateOnNewDay()
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateOnNewEvent(string) {}
func (noopInvalidator) InvalidateOnNewDay()         {}

// Config bounds the store per spec §2/§6: S is the in-memory historical
// window (and the aggregation cache's capacity), D is the disk-retained
// window, with S <= D.
type Config struct {
	S int
	D int
}

// Store is the time-series store from spec §4.3: one current (live) day,
// an in-memory window of at most S completed days (most-recent first),
// and a disk-backed window of D days behind it.
//
// Concurrency follows spec §4.3/§5: a single sync.RWMutex guards all
// state. Reads (aggregation scans, snapshots) take the read side;
// mutations and the condition-waiter loops take the write side, because
// the waiters block on a sync.Cond bound to that same lock. Go's
// sync.Cond only composes with a sync.Locker, and RWMutex's write-side
// Locker is exactly what we want waiters to reacquire after waking, so
// the condition is constructed over &s.mu (its Locker interface uses
// Lock/Unlock, i.e. the write lock) — see the waiter loops in waiters.go.
type Store struct {
	mu   sync.RWMutex
	cond *sync.Cond

	cfg Config
	now func() int64

	currentDay *Day
	history    []*Day // most-recent-first, len <= S
	disk       DiskStore
	invalidate CacheInvalidator
}

// New constructs a Store starting at dayID 0 with an empty current day.
// Use Restore to seed state recovered from disk instead, before serving
// any traffic.
func New(cfg Config, disk DiskStore, invalidate CacheInvalidator) *Store {
	if invalidate == nil {
		invalidate = noopInvalidator{}
	}
	s := &Store{
		cfg:        cfg,
		now:        func() int64 { return time.Now().UnixMilli() },
		currentDay: newDay(0, time.Now().UnixMilli()),
		disk:       disk,
		invalidate: invalidate,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Restore installs a recovered currentDayID and in-memory history
// (most-recent-first), per the load protocol in spec §4.5. Must be
// called before the store is exposed to concurrent callers.
func (s *Store) Restore(currentDayID int32, history []*Day) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentDay = newDay(currentDayID, s.now())
	if len(history) > s.cfg.S {
		history = history[:s.cfg.S]
	}
	s.history = history
}

// CurrentDayID returns the id of the live day.
func (s *Store) CurrentDayID() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentDay.DayID
}

// HistoricalDayCount returns the number of completed days held in
// memory.
func (s *Store) HistoricalDayCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// MaxDays returns the configured in-memory/disk window sizes.
func (s *Store) MaxDays() (s_, d int) {
	return s.cfg.S, s.cfg.D
}

// AddEvent appends a new event with timestamp := now() to the current
// day (spec §4.3) and wakes any blocked waiter to re-check its
// predicate.
func (s *Store) AddEvent(product string, quantity int32, price float64) (wire.Event, error) {
	s.mu.Lock()
	if s.currentDay.Completed {
		s.mu.Unlock()
		return wire.Event{}, fmt.Errorf("timeseries: current day is completed")
	}
	e := wire.Event{Product: product, Quantity: quantity, Price: price, Timestamp: s.now()}
	s.currentDay.append(e)
	s.cond.Broadcast()
	s.mu.Unlock()

	s.invalidate.InvalidateOnNewEvent(product)

	return e, nil
}

// AddPrehashedEvent appends an already-timestamped event without
// recomputing now() — used by persistence replay on startup (spec
// §4.3's addPrehashedEvent).
func (s *Store) AddPrehashedEvent(e wire.Event) error {
	s.mu.Lock()
	if s.currentDay.Completed {
		s.mu.Unlock()
		return fmt.Errorf("timeseries: current day is completed")
	}
	s.currentDay.append(e)
	s.mu.Unlock()
	return nil
}

// NewDay runs the rotation protocol from spec §4.3. Steps 1-5 and 7 run
// atomically under the write lock; step 6 runs just after the lock is
// released:
//  1. mark current day completed, broadcast
//  2. persist (dayID, events) to disk, update state header
//  3. insert completed day at history head
//  4. evict tail while len(history) > S
//  5. delete the disk file at currentDayId - D, if any
//  6. notify the aggregation cache to invalidate fully
//  7. increment currentDayId, install a new empty current day
//
// Persistence errors are logged by the caller (server layer) and do not
// abort rotation: spec §7 documents this as an explicit availability
// trade-off.
func (s *Store) NewDay() (persistErr error) {
	s.mu.Lock()
	completed := s.currentDay
	completed.Completed = true
	s.cond.Broadcast()

	if s.disk != nil {
		if err := s.disk.SaveDay(completed.DayID, completed.snapshot()); err != nil {
			persistErr = fmt.Errorf("timeseries: persist day %d: %w", completed.DayID, err)
		} else if err := s.disk.SaveState(completed.DayID + 1); err != nil {
			persistErr = fmt.Errorf("timeseries: persist state after day %d: %w", completed.DayID, err)
		}
	}

	s.history = append([]*Day{completed}, s.history...)
	for len(s.history) > s.cfg.S {
		s.history = s.history[:len(s.history)-1]
	}

	nextID := completed.DayID + 1
	if evictID := completed.DayID - int32(s.cfg.D); evictID >= 0 && s.disk != nil {
		_ = s.disk.DeleteDay(evictID)
	}

	s.currentDay = newDay(nextID, s.now())
	s.mu.Unlock()

	s.invalidate.InvalidateOnNewDay()
	return persistErr
}

// GetCurrentDayEvents returns a defensive copy of the live day's events.
func (s *Store) GetCurrentDayEvents() []wire.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentDay.snapshot()
}

// GetHistoricalDayEvents returns the events of the k-th most-recently
// completed day (k=0 is the first historical day), reading from memory
// when available and falling back to disk otherwise (spec §4.3). Returns
// an empty slice, not an error, for an out-of-range or missing day.
func (s *Store) GetHistoricalDayEvents(k int) []wire.Event {
	s.mu.RLock()
	if k < 0 {
		s.mu.RUnlock()
		return []wire.Event{}
	}
	if k < len(s.history) {
		events := s.history[k].snapshot()
		s.mu.RUnlock()
		return events
	}
	targetID := s.currentDay.DayID - 1 - int32(k)
	s.mu.RUnlock()

	if targetID < 0 || s.disk == nil {
		return []wire.Event{}
	}
	events, ok, err := s.disk.LoadDay(targetID)
	if err != nil || !ok {
		return []wire.Event{}
	}
	return events
}

// GetFilteredEvents implements FILTER_EVENTS (spec §4.1/§4.3): dayOffset
// 0 or the current day selects the live day, k>=1 selects the k-th most
// recently completed day. A nil/empty products list means "all
// products"; otherwise only matching events are kept, preserving
// original order.
func (s *Store) GetFilteredEvents(products []string, dayOffset int32) []wire.Event {
	var source []wire.Event
	if dayOffset <= 0 {
		source = s.GetCurrentDayEvents()
	} else {
		source = s.GetHistoricalDayEvents(int(dayOffset) - 1)
	}

	if len(products) == 0 {
		return source
	}
	wanted := make(map[string]struct{}, len(products))
	for _, p := range products {
		wanted[p] = struct{}{}
	}
	out := make([]wire.Event, 0, len(source))
	for _, e := range source {
		if _, ok := wanted[e.Product]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ValidDayOffset reports whether k is in range [0, min(currentDayId, D)]
// per spec §4.3.
func (s *Store) ValidDayOffset(k int32) bool {
	s.mu.RLock()
	currentDayID := s.currentDay.DayID
	s.mu.RUnlock()
	limit := currentDayID
	if int32(s.cfg.D) < limit {
		limit = int32(s.cfg.D)
	}
	return k >= 0 && k <= limit
}
