// Package adminhttp is the read-only HTTP observability surface from
// SPEC_FULL §3: health, stats, and a debug view of historical days,
// run alongside the framed TCP listener. It never mutates the time
// series and never participates in request/response correlation for
// the core wire protocol.
//
// Grounded on router/router.go's composition style: chi.NewRouter(),
// the chi middleware stack (RequestID, Recoverer), and routes mounted
// with r.Get/r.Post — here trimmed to the handful of middlewares that
// make sense for an internal read-only surface.
package adminhttp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/sbar/dailysales/wire"
)

// StatsSource is the subset of *server.Server this surface reads.
// Defined here (consumer side) so adminhttp need not import server,
// keeping the dependency direction main.go already establishes:
// server owns business logic, adminhttp only observes it.
type StatsSource interface {
	Stats() Stats
	HistoricalDay(offset int32) (DayDebug, bool)
	Ready() bool
}

// Stats is the snapshot (*server.Server).Stats returns, encoded as the
// /stats JSON payload.
type Stats struct {
	CurrentDayID       int32
	HistoricalDayCount int
	ActiveConnections  int
	WorkerQueueDepth   int
	CacheHits          int64
	CacheMisses        int64
	CacheEvictions     int64
	CacheEntries       int
}

// DayDebug is the read-only dump /debug/day/{offset} returns.
type DayDebug struct {
	Offset     int32    `json:"offset"`
	EventCount int      `json:"eventCount"`
	Products   []string `json:"products"`
}

// New builds the chi router. log is used only for request logging;
// business logic lives entirely behind src.
func New(src StatsSource, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", healthzHandler(src))
	r.Get("/stats", statsHandler(src))
	r.Get("/debug/day/{offset}", debugDayHandler(src))

	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("adminhttp request")
			next.ServeHTTP(w, r)
		})
	}
}

func healthzHandler(src StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !src.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func statsHandler(src StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(src.Stats())
	}
}

func debugDayHandler(src StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "offset")
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
		day, ok := src.HistoricalDay(int32(offset))
		if !ok {
			http.Error(w, "day not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(day)
	}
}

// productSet is a small helper used by the server adapter that
// implements StatsSource, to build DayDebug.Products from a day's
// events without exposing wire.Event to this package's callers.
func productSet(events []wire.Event) []string {
	seen := make(map[string]struct{}, len(events))
	out := make([]string, 0, len(events))
	for _, e := range events {
		if _, ok := seen[e.Product]; ok {
			continue
		}
		seen[e.Product] = struct{}{}
		out = append(out, e.Product)
	}
	return out
}

// BuildDayDebug is exported so the server adapter can construct a
// DayDebug from raw events without this package needing to import
// server (avoiding an import cycle).
func BuildDayDebug(offset int32, events []wire.Event) DayDebug {
	return DayDebug{Offset: offset, EventCount: len(events), Products: productSet(events)}
}
