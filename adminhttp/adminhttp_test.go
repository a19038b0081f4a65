package adminhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sbar/dailysales/wire"
)

type fakeSource struct {
	stats Stats
	ready bool
	days  map[int32][]wire.Event
}

func (f *fakeSource) Stats() Stats { return f.stats }
func (f *fakeSource) Ready() bool  { return f.ready }
func (f *fakeSource) HistoricalDay(offset int32) (DayDebug, bool) {
	events, ok := f.days[offset]
	if !ok {
		return DayDebug{}, false
	}
	return BuildDayDebug(offset, events), true
}

func TestHealthzReflectsReadiness(t *testing.T) {
	src := &fakeSource{ready: false}
	h := New(src, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when not ready", rec.Code)
	}

	src.ready = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when ready", rec.Code)
	}
}

func TestStatsReturnsJSON(t *testing.T) {
	src := &fakeSource{ready: true, stats: Stats{CurrentDayID: 3, HistoricalDayCount: 2, CacheHits: 5}}
	h := New(src, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != src.stats {
		t.Fatalf("stats = %+v, want %+v", got, src.stats)
	}
}

func TestDebugDayNotFound(t *testing.T) {
	src := &fakeSource{ready: true, days: map[int32][]wire.Event{}}
	h := New(src, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/day/1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDebugDayFound(t *testing.T) {
	src := &fakeSource{ready: true, days: map[int32][]wire.Event{
		1: {
			{Product: "apple", Quantity: 1, Price: 1.0, Timestamp: 1},
			{Product: "pear", Quantity: 1, Price: 1.0, Timestamp: 2},
			{Product: "apple", Quantity: 1, Price: 1.0, Timestamp: 3},
		},
	}}
	h := New(src, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/day/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got DayDebug
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.EventCount != 3 || len(got.Products) != 2 {
		t.Fatalf("unexpected debug payload: %+v", got)
	}
}

func TestDebugDayInvalidOffset(t *testing.T) {
	src := &fakeSource{ready: true}
	h := New(src, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/day/notanumber", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
