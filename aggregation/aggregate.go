package aggregation

import "github.com/sbar/dailysales/wire"

// dataSource is the subset of timeseries.Store the aggregation
// functions need — kept as a narrow interface here (rather than
// importing *timeseries.Store directly) so this package's tests can
// supply an in-memory fake without standing up a full store.
type dataSource interface {
	CurrentDayID() int32
	HistoricalDayCount() int
	MaxDays() (s, d int)
	GetHistoricalDayEvents(k int) []wire.Event
}

// errInsufficientData is returned when fewer than `days` historical
// days exist yet (spec §4.4: "fails with -1 when fewer than days
// historical days exist"; §7 translates this to STATUS_ERROR "Dados
// insuficientes" at the handler layer).
var errInsufficientData = insufficientDataError{}

type insufficientDataError struct{}

func (insufficientDataError) Error() string { return "aggregation: insufficient data" }

// availableHistoricalDays is the number of completed days an aggregation
// window can actually draw on: spec §4.3's ValidDayOffset bound,
// min(currentDayId, D). GetHistoricalDayEvents falls back to disk for
// k beyond the in-memory window, so gating on HistoricalDayCount (the
// in-memory-only count, <= S) would wrongly reject windows that the
// disk-backed D-day tier can still serve (spec §4.4: aggregations
// "consult TimeSeries.getHistoricalDayEvents(0..days-1)", which is
// defined over the full disk-backed window, not just memory).
func availableHistoricalDays(ts dataSource) int {
	_, d := ts.MaxDays()
	currentDayID := int(ts.CurrentDayID())
	if currentDayID < d {
		return currentDayID
	}
	return d
}

// windowEvents collects every event for `days` completed days, most
// recent first is not required here since aggregations only sum/compare.
func windowEvents(ts dataSource, days int32) ([]wire.Event, bool) {
	if int(days) > availableHistoricalDays(ts) {
		return nil, false
	}
	var out []wire.Event
	for k := 0; k < int(days); k++ {
		out = append(out, ts.GetHistoricalDayEvents(k)...)
	}
	return out, true
}

// AggregateQuantity sums Quantity over matching events in the window
// (spec §4.4).
func AggregateQuantity(cache *Cache, ts dataSource, product string, days int32) (int64, error) {
	key := QuantityKey(product, days)
	currentDayID := ts.CurrentDayID()
	if cached, ok := cache.Get(key, currentDayID); ok {
		return cached.Value.Int, nil
	}

	events, ok := windowEvents(ts, days)
	if !ok {
		return -1, errInsufficientData
	}

	var sum int64
	for _, e := range events {
		if e.Product == product {
			sum += int64(e.Quantity)
		}
	}

	cache.Put(key, CachedAggregation{Value: IntValue(sum), ComputedAtDayID: currentDayID})
	return sum, nil
}

// AggregateRevenue sums quantity*price over matching events (spec §4.4).
func AggregateRevenue(cache *Cache, ts dataSource, product string, days int32) (float64, error) {
	key := RevenueKey(product, days)
	currentDayID := ts.CurrentDayID()
	if cached, ok := cache.Get(key, currentDayID); ok {
		return cached.Value.Float, nil
	}

	events, ok := windowEvents(ts, days)
	if !ok {
		return -1, errInsufficientData
	}

	var sum float64
	for _, e := range events {
		if e.Product == product {
			sum += e.TotalValue()
		}
	}

	cache.Put(key, CachedAggregation{Value: FloatValue(sum), ComputedAtDayID: currentDayID})
	return sum, nil
}

// AggregateAveragePrice computes sum(qty*price)/sum(qty); returns 0 if
// there are no matching events, -1 if the window itself is insufficient
// (spec §4.4).
func AggregateAveragePrice(cache *Cache, ts dataSource, product string, days int32) (float64, error) {
	key := AvgPriceKey(product, days)
	currentDayID := ts.CurrentDayID()
	if cached, ok := cache.Get(key, currentDayID); ok {
		return cached.Value.Float, nil
	}

	events, ok := windowEvents(ts, days)
	if !ok {
		return -1, errInsufficientData
	}

	var qtySum int64
	var valueSum float64
	for _, e := range events {
		if e.Product == product {
			qtySum += int64(e.Quantity)
			valueSum += e.TotalValue()
		}
	}

	var avg float64
	if qtySum > 0 {
		avg = valueSum / float64(qtySum)
	}

	cache.Put(key, CachedAggregation{Value: FloatValue(avg), ComputedAtDayID: currentDayID})
	return avg, nil
}

// AggregateMaxPrice returns the maximum price among matching events; 0
// if not found, -1 if the window is insufficient (spec §4.4).
func AggregateMaxPrice(cache *Cache, ts dataSource, product string, days int32) (float64, error) {
	key := MaxPriceKey(product, days)
	currentDayID := ts.CurrentDayID()
	if cached, ok := cache.Get(key, currentDayID); ok {
		return cached.Value.Float, nil
	}

	events, ok := windowEvents(ts, days)
	if !ok {
		return -1, errInsufficientData
	}

	var max float64
	var found bool
	for _, e := range events {
		if e.Product == product {
			if !found || e.Price > max {
				max = e.Price
				found = true
			}
		}
	}

	cache.Put(key, CachedAggregation{Value: FloatValue(max), ComputedAtDayID: currentDayID})
	return max, nil
}

// CountCommonDays counts, within the window, how many days contain at
// least one event of each of p1 and p2 (spec §4.4).
func CountCommonDays(cache *Cache, ts dataSource, p1, p2 string, days int32) (int64, error) {
	key := CommonDaysKey(p1, p2, days)
	currentDayID := ts.CurrentDayID()
	if cached, ok := cache.Get(key, currentDayID); ok {
		return cached.Value.Int, nil
	}

	if int(days) > availableHistoricalDays(ts) {
		return -1, errInsufficientData
	}

	var count int64
	for k := 0; k < int(days); k++ {
		var has1, has2 bool
		for _, e := range ts.GetHistoricalDayEvents(k) {
			if e.Product == p1 {
				has1 = true
			}
			if e.Product == p2 {
				has2 = true
			}
		}
		if has1 && has2 {
			count++
		}
	}

	cache.Put(key, CachedAggregation{Value: IntValue(count), ComputedAtDayID: currentDayID})
	return count, nil
}

// FindMaxConsecutive finds the longest run of consecutive events for
// `product` within a single day of the window (spec §4.4).
func FindMaxConsecutive(cache *Cache, ts dataSource, product string, days int32) (int64, error) {
	key := MaxConsecutiveKey(product, days)
	currentDayID := ts.CurrentDayID()
	if cached, ok := cache.Get(key, currentDayID); ok {
		return cached.Value.Int, nil
	}

	if int(days) > availableHistoricalDays(ts) {
		return -1, errInsufficientData
	}

	var best int64
	for k := 0; k < int(days); k++ {
		var run int64
		for _, e := range ts.GetHistoricalDayEvents(k) {
			if e.Product == product {
				run++
				if run > best {
					best = run
				}
			} else {
				run = 0
			}
		}
	}

	cache.Put(key, CachedAggregation{Value: IntValue(best), ComputedAtDayID: currentDayID})
	return best, nil
}

// IsInsufficientData reports whether err is the sentinel returned when
// the requested window exceeds available historical data.
func IsInsufficientData(err error) bool {
	_, ok := err.(insufficientDataError)
	return ok
}
