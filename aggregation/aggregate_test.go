package aggregation

import (
	"math"
	"testing"

	"github.com/sbar/dailysales/wire"
)

// fakeSource is a minimal in-memory dataSource for exercising the
// aggregation functions without a full timeseries.Store.
type fakeSource struct {
	currentDayID int32
	days         [][]wire.Event // days[0] is the most recently completed day
	s, d         int
}

func (f *fakeSource) CurrentDayID() int32        { return f.currentDayID }
func (f *fakeSource) HistoricalDayCount() int     { return len(f.days) }
func (f *fakeSource) MaxDays() (int, int)         { return f.s, f.d }
func (f *fakeSource) GetHistoricalDayEvents(k int) []wire.Event {
	if k < 0 || k >= len(f.days) {
		return nil
	}
	return f.days[k]
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregateQuantityAndRevenue(t *testing.T) {
	src := &fakeSource{
		currentDayID: 2,
		d:            30,
		days: [][]wire.Event{
			{ // most recent completed day
				{Product: "apple", Quantity: 4, Price: 2.00, Timestamp: 1},
				{Product: "pear", Quantity: 1, Price: 3.00, Timestamp: 2},
			},
			{
				{Product: "apple", Quantity: 2, Price: 2.50, Timestamp: 3},
				{Product: "apple", Quantity: 0, Price: 5.00, Timestamp: 4}, // worked example includes a 0-qty max-price probe
			},
		},
	}
	cache := New(8)

	qty, err := AggregateQuantity(cache, src, "apple", 2)
	if err != nil {
		t.Fatalf("AggregateQuantity: %v", err)
	}
	if qty != 6 {
		t.Fatalf("quantity = %d, want 6", qty)
	}

	rev, err := AggregateRevenue(cache, src, "apple", 2)
	if err != nil {
		t.Fatalf("AggregateRevenue: %v", err)
	}
	if !approxEqual(rev, 13.00) {
		t.Fatalf("revenue = %v, want 13.00", rev)
	}

	avg, err := AggregateAveragePrice(cache, src, "apple", 2)
	if err != nil {
		t.Fatalf("AggregateAveragePrice: %v", err)
	}
	if !approxEqual(avg, 13.00/6.0) {
		t.Fatalf("avg price = %v, want %v", avg, 13.00/6.0)
	}

	max, err := AggregateMaxPrice(cache, src, "apple", 2)
	if err != nil {
		t.Fatalf("AggregateMaxPrice: %v", err)
	}
	if !approxEqual(max, 5.00) {
		t.Fatalf("max price = %v, want 5.00", max)
	}

	// Second call should hit the cache — verify stats reflect it.
	if _, err := AggregateQuantity(cache, src, "apple", 2); err != nil {
		t.Fatalf("AggregateQuantity (cached): %v", err)
	}
	if stats := cache.Stats(); stats.Hits == 0 {
		t.Fatalf("expected at least one cache hit, got %+v", stats)
	}
}

func TestAggregateInsufficientData(t *testing.T) {
	src := &fakeSource{
		currentDayID: 1,
		d:            30,
		days: [][]wire.Event{
			{{Product: "apple", Quantity: 1, Price: 1.0, Timestamp: 1}},
		},
	}
	cache := New(8)

	if _, err := AggregateQuantity(cache, src, "apple", 5); !IsInsufficientData(err) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
	if _, err := AggregateAveragePrice(cache, src, "apple", 5); !IsInsufficientData(err) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
	if _, err := CountCommonDays(cache, src, "apple", "pear", 5); !IsInsufficientData(err) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
	if _, err := FindMaxConsecutive(cache, src, "apple", 5); !IsInsufficientData(err) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
}

func TestAggregateAveragePriceNoMatchesIsZero(t *testing.T) {
	src := &fakeSource{
		currentDayID: 1,
		d:            30,
		days: [][]wire.Event{
			{{Product: "pear", Quantity: 1, Price: 1.0, Timestamp: 1}},
		},
	}
	cache := New(8)

	avg, err := AggregateAveragePrice(cache, src, "apple", 1)
	if err != nil {
		t.Fatalf("AggregateAveragePrice: %v", err)
	}
	if avg != 0 {
		t.Fatalf("avg price = %v, want 0 for no matches", avg)
	}
}

func TestCountCommonDays(t *testing.T) {
	src := &fakeSource{
		currentDayID: 3,
		d:            30,
		days: [][]wire.Event{
			{{Product: "apple", Quantity: 1, Price: 1.0, Timestamp: 1}, {Product: "pear", Quantity: 1, Price: 1.0, Timestamp: 2}},
			{{Product: "apple", Quantity: 1, Price: 1.0, Timestamp: 3}},
			{{Product: "apple", Quantity: 1, Price: 1.0, Timestamp: 4}, {Product: "pear", Quantity: 1, Price: 1.0, Timestamp: 5}},
		},
	}
	cache := New(8)

	n, err := CountCommonDays(cache, src, "apple", "pear", 3)
	if err != nil {
		t.Fatalf("CountCommonDays: %v", err)
	}
	if n != 2 {
		t.Fatalf("common days = %d, want 2", n)
	}
}

func TestFindMaxConsecutive(t *testing.T) {
	src := &fakeSource{
		currentDayID: 2,
		d:            30,
		days: [][]wire.Event{
			{
				{Product: "apple", Quantity: 1, Price: 1.0, Timestamp: 1},
				{Product: "apple", Quantity: 1, Price: 1.0, Timestamp: 2},
				{Product: "pear", Quantity: 1, Price: 1.0, Timestamp: 3},
				{Product: "apple", Quantity: 1, Price: 1.0, Timestamp: 4},
				{Product: "apple", Quantity: 1, Price: 1.0, Timestamp: 5},
				{Product: "apple", Quantity: 1, Price: 1.0, Timestamp: 6},
			},
		},
	}
	cache := New(8)

	n, err := FindMaxConsecutive(cache, src, "apple", 1)
	if err != nil {
		t.Fatalf("FindMaxConsecutive: %v", err)
	}
	if n != 3 {
		t.Fatalf("max consecutive = %d, want 3", n)
	}
}

func TestCacheInvalidationAffectsNextAggregate(t *testing.T) {
	src := &fakeSource{
		currentDayID: 1,
		d:            30,
		days: [][]wire.Event{
			{{Product: "apple", Quantity: 2, Price: 1.0, Timestamp: 1}},
		},
	}
	cache := New(8)

	qty, _ := AggregateQuantity(cache, src, "apple", 1)
	if qty != 2 {
		t.Fatalf("quantity = %d, want 2", qty)
	}

	// Mutate the underlying window and invalidate — cached value must
	// not be returned stale.
	src.days[0] = append(src.days[0], wire.Event{Product: "apple", Quantity: 5, Price: 1.0, Timestamp: 2})
	cache.InvalidateOnNewEvent("apple")

	qty, err := AggregateQuantity(cache, src, "apple", 1)
	if err != nil {
		t.Fatalf("AggregateQuantity: %v", err)
	}
	if qty != 7 {
		t.Fatalf("quantity after invalidation = %d, want 7", qty)
	}
}
