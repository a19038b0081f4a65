package timeseries

import (
	"context"

	"github.com/sbar/dailysales/wire"
)

// waiters.go implements the two blocking condition queries from spec
// §4.3: waitForSimultaneousSales and waitForConsecutiveSales. Both
// follow the same shape: take the write lock, test the predicate
// against the live day, and if it isn't satisfied yet, Wait on the
// shared condition variable (which atomically releases the lock and
// reacquires it on wakeup) and retest — the classic "lock, test, wait,
// retest" loop spec §9's design notes call out explicitly, to guard
// against spurious wakeups.
//
// No third-party concurrency primitive in the example pack models a
// condition variable (the pack's KeyedMutex/Semaphore in
// middleware/concurrency.go are plain mutex/channel based); this is
// stdlib sync.Cond used in its textbook idiom.

// WaitForSimultaneousSales blocks until an AddEvent has made both
// products present in the current day's events, returning true. If the
// current day completes (NewDay) before that happens, it returns false.
// If ctx is canceled first — e.g. the owning connection closed (spec
// §5) — it returns false with the interrupt flag observable via
// ctx.Err().
func (s *Store) WaitForSimultaneousSales(ctx context.Context, product1, product2 string) bool {
	stopWaiting := s.wakeOnCancel(ctx)
	defer stopWaiting()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Pin the day being watched: NewDay installs a fresh current day
	// before waiters reacquire the lock, so s.currentDay would otherwise
	// never be observed as completed.
	day := s.currentDay
	for {
		if bothPresent(day.Events, product1, product2) {
			return true
		}
		if day.Completed || ctx.Err() != nil {
			return false
		}
		s.cond.Wait()
	}
}

// wakeOnCancel arranges for s.cond to be broadcast when ctx is done, so
// a Wait()-ing goroutine re-checks its predicate (and ctx.Err()) instead
// of blocking forever on a canceled request. Returns a cleanup func that
// must be called once the waiter returns.
func (s *Store) wakeOnCancel(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func bothPresent(events []wire.Event, p1, p2 string) bool {
	var seen1, seen2 bool
	for _, e := range events {
		if e.Product == p1 {
			seen1 = true
		}
		if e.Product == p2 {
			seen2 = true
		}
		if seen1 && seen2 {
			return true
		}
	}
	return false
}

// WaitForConsecutiveSales blocks until the tail-most n events of the
// current day all share one product, returning that product. If the
// current day completes first, or ctx is canceled first, it returns
// ("", false).
func (s *Store) WaitForConsecutiveSales(ctx context.Context, n int) (string, bool) {
	stopWaiting := s.wakeOnCancel(ctx)
	defer stopWaiting()

	s.mu.Lock()
	defer s.mu.Unlock()

	day := s.currentDay // pinned for the same reason as in WaitForSimultaneousSales
	for {
		if p, ok := tailRun(day.Events, n); ok {
			return p, true
		}
		if day.Completed || ctx.Err() != nil {
			return "", false
		}
		s.cond.Wait()
	}
}

func tailRun(events []wire.Event, n int) (string, bool) {
	if n <= 0 || len(events) < n {
		return "", false
	}
	tail := events[len(events)-n:]
	product := tail[0].Product
	for _, e := range tail[1:] {
		if e.Product != product {
			return "", false
		}
	}
	return product, true
}
