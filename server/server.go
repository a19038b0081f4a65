// Package server implements the per-connection framed request handler
// and worker-pool dispatch from spec §4.7: one reader goroutine per
// accepted TCP connection, a shared worker pool executing each request
// as an independent task, and a per-connection writer mutex.
//
// Grounded on router/router.go's top-level composition (construct once,
// wire subsystems together, expose a single entry point) translated
// from an http.Handler into a net.Listener accept loop, since the wire
// protocol here is raw framed TCP rather than HTTP.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sbar/dailysales/adminhttp"
	"github.com/sbar/dailysales/aggregation"
	"github.com/sbar/dailysales/auth"
	"github.com/sbar/dailysales/persistence"
	"github.com/sbar/dailysales/timeseries"
	"github.com/sbar/dailysales/workerpool"
)

// Config bounds the server's own knobs (SPEC_FULL §2), separate from
// the time-series S/D window which timeseries.Config already owns.
type Config struct {
	Addr          string
	MaxConns      int // bounded accept-loop backpressure, SPEC_FULL §4
	AcceptTimeout time.Duration
}

// Server owns the TCP listener and every subsystem a connection's
// worker tasks dispatch against.
type Server struct {
	cfg     Config
	log     zerolog.Logger
	auth    *auth.Store
	ts      *timeseries.Store
	cache   *aggregation.Cache
	persist *persistence.Store
	pool    *workerpool.Pool
	connSem chan struct{} // bounded accept-loop backpressure

	listener net.Listener

	mu         sync.Mutex
	conns      map[int64]*connection
	nextConnID atomic.Int64
	closing    atomic.Bool
}

// New wires a Server over already-constructed subsystems. Subsystems
// are constructed by main.go (config → logger → persistence → auth/
// timeseries/aggregation → workerpool → server), matching the
// teacher's wiring order in main.go.
func New(cfg Config, log zerolog.Logger, authStore *auth.Store, ts *timeseries.Store, cache *aggregation.Cache, persist *persistence.Store, pool *workerpool.Pool) *Server {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 1024
	}
	return &Server{
		cfg:     cfg,
		log:     log.With().Str("component", "server").Logger(),
		auth:    authStore,
		ts:      ts,
		cache:   cache,
		persist: persist,
		pool:    pool,
		connSem: make(chan struct{}, cfg.MaxConns),
		conns:   make(map[int64]*connection),
	}
}

// ListenAndServe opens the listener and accepts connections until ctx
// is canceled or Close is called. It blocks until the accept loop
// exits.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.log.Info().Str("addr", s.cfg.Addr).Msg("server listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		select {
		case s.connSem <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			<-s.connSem
			if s.closing.Load() || ctx.Err() != nil {
				return nil
			}
			s.log.Warn().Err(err).Msg("accept error")
			continue
		}

		c := s.newConnection(conn)
		go func() {
			defer func() { <-s.connSem }()
			c.run()
		}()
	}
}

// Close stops accepting new connections and closes every live
// connection, unblocking any waiter tasks via their per-connection
// context (spec §5: "connection close cancels outstanding requests").
// It does not stop the worker pool — callers drain that separately so
// in-flight tasks still complete.
func (s *Server) Close() error {
	s.closing.Store(true)
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.mu.Lock()
	conns := make([]*connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
	return err
}

func (s *Server) newConnection(nc net.Conn) *connection {
	id := s.nextConnID.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	c := &connection{
		id:     id,
		nc:     nc,
		srv:    s,
		ctx:    ctx,
		cancel: cancel,
		log:    s.log.With().Int64("conn_id", id).Logger(),
	}
	s.mu.Lock()
	s.conns[id] = c
	s.mu.Unlock()
	return c
}

func (s *Server) forgetConnection(id int64) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

// Stats returns a point-in-time snapshot consumed by the adminhttp
// /stats endpoint (SPEC_FULL §3); Server implements adminhttp.StatsSource.
func (s *Server) Stats() adminhttp.Stats {
	s.mu.Lock()
	activeConns := len(s.conns)
	s.mu.Unlock()

	cacheStats := s.cache.Stats()
	return adminhttp.Stats{
		CurrentDayID:       s.ts.CurrentDayID(),
		HistoricalDayCount: s.ts.HistoricalDayCount(),
		ActiveConnections:  activeConns,
		WorkerQueueDepth:   s.pool.QueueDepth(),
		CacheHits:          cacheStats.Hits,
		CacheMisses:        cacheStats.Misses,
		CacheEvictions:     cacheStats.Evictions,
		CacheEntries:       cacheStats.Entries,
	}
}

// Ready reports whether the server has finished startup recovery and
// is listening (adminhttp /healthz).
func (s *Server) Ready() bool {
	return s.listener != nil && !s.closing.Load()
}

// HistoricalDay returns a read-only debug view of a completed day, for
// adminhttp's /debug/day/{offset}. offset 0 is not a valid historical
// day (it would be the live day, which this endpoint deliberately does
// not expose — SPEC_FULL §3 keeps this surface read-only and decoupled
// from live mutation).
func (s *Server) HistoricalDay(offset int32) (adminhttp.DayDebug, bool) {
	if offset <= 0 || !s.ts.ValidDayOffset(offset) {
		return adminhttp.DayDebug{}, false
	}
	events := s.ts.GetHistoricalDayEvents(int(offset) - 1)
	return adminhttp.BuildDayDebug(offset, events), true
}

// NewDay runs the time-series rotation protocol (spec §4.3), which
// invalidates the aggregation cache itself via the CacheInvalidator it
// was constructed with — the operation behind both the NEW_DAY opcode
// and the admin console's "newday" command (SPEC_FULL §4).
func (s *Server) NewDay() error {
	return s.ts.NewDay()
}

// Save persists the full user table and, implicitly, whatever the
// time-series store has already written via its own rotation-time
// saves — the operation behind the admin console's "save" command
// (SPEC_FULL §4). It does not re-save completed days; those are
// durable as of their NewDay call.
func (s *Server) Save() error {
	return s.persist.SaveUsers(s.auth.All())
}

// TimeSeries exposes the underlying time-series store. The adminhttp
// /debug/day endpoint does not use it; it reads through HistoricalDay.
func (s *Server) TimeSeries() *timeseries.Store { return s.ts }
