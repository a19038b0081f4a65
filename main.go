package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/sbar/dailysales/adminhttp"
	"github.com/sbar/dailysales/aggregation"
	"github.com/sbar/dailysales/auth"
	"github.com/sbar/dailysales/config"
	"github.com/sbar/dailysales/logger"
	"github.com/sbar/dailysales/persistence"
	"github.com/sbar/dailysales/server"
	"github.com/sbar/dailysales/timeseries"
	"github.com/sbar/dailysales/workerpool"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Str("addr", cfg.Addr).Msg("dailysales starting")

	store := persistence.New(cfg.DataDir)
	if err := store.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare data directory")
	}

	authStore := auth.NewStore()
	users, err := store.LoadUsers()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load users")
	}
	for _, u := range users {
		authStore.RegisterPrehashed(u)
	}
	log.Info().Int("count", len(users)).Msg("users recovered")

	cache := aggregation.New(cfg.CacheCapacity)
	ts := timeseries.New(timeseries.Config{S: cfg.HistoryMemoryDays, D: cfg.HistoryDiskDays}, store, cache)

	currentDayID, hasState, err := store.LoadState()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load time-series state")
	}
	if hasState {
		history := loadHistory(store, log, currentDayID, cfg.HistoryMemoryDays)
		ts.Restore(currentDayID, history)
		log.Info().Int32("current_day_id", currentDayID).Int("historical_days", len(history)).Msg("time series recovered")
	} else {
		log.Info().Msg("no prior state found, starting at day 0")
	}

	pool := workerpool.New(cfg.WorkerPoolSize, log)

	srv := server.New(server.Config{Addr: cfg.Addr, MaxConns: cfg.MaxConnections}, log, authStore, ts, cache, store, pool)

	adminSrv := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: adminhttp.New(srv, log),
	}

	serveCtx, cancelServe := context.WithCancel(context.Background())

	go func() {
		if err := srv.ListenAndServe(serveCtx); err != nil {
			log.Error().Err(err).Msg("server accept loop failed")
		}
	}()

	go func() {
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin http listening")
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("admin http server failed")
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go runConsole(srv, log, done)

	<-done
	log.Info().Msg("shutdown signal received")

	cancelServe()
	if err := srv.Close(); err != nil {
		log.Warn().Err(err).Msg("server close reported an error")
	}
	pool.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()
	if err := adminSrv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("admin http graceful shutdown failed")
	}

	if err := srv.Save(); err != nil {
		log.Error().Err(err).Msg("failed to persist users on shutdown")
	}

	log.Info().Msg("dailysales stopped gracefully")
}

// loadHistory reconstructs the in-memory history window (most-recent
// first) by reading the completed day files in
// [max(0, currentDayId-S), currentDayId-1] off disk, per the load-on-
// start protocol (spec §4.5). A day whose file is unreadable or corrupt
// is skipped with a warning, and one whose file is missing is skipped
// silently; neither aborts startup.
func loadHistory(store *persistence.Store, log zerolog.Logger, currentDayID int32, s int) []*timeseries.Day {
	floor := currentDayID - int32(s)
	if floor < 0 {
		floor = 0
	}
	history := make([]*timeseries.Day, 0, s)
	for id := currentDayID - 1; id >= floor; id-- {
		events, ok, err := store.LoadDay(id)
		if err != nil {
			log.Warn().Err(err).Int32("day_id", id).Msg("skipping unreadable historical day")
			continue
		}
		if !ok {
			continue
		}
		history = append(history, timeseries.NewCompletedDay(id, events))
	}
	return history
}

// runConsole implements the operator CLI from SPEC_FULL §4: newday,
// stats, save, help, quit, read from stdin alongside the TCP and admin
// HTTP listeners. "quit" re-signals the shutdown channel so main's
// single shutdown path handles both OS signals and console-driven exits.
func runConsole(srv *server.Server, log zerolog.Logger, done chan<- os.Signal) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "newday":
			if err := srv.NewDay(); err != nil {
				log.Error().Err(err).Msg("console: newday failed")
			} else {
				fmt.Println("ok")
			}
		case "save":
			if err := srv.Save(); err != nil {
				log.Error().Err(err).Msg("console: save failed")
			} else {
				fmt.Println("ok")
			}
		case "stats":
			s := srv.Stats()
			fmt.Printf("current_day_id=%d historical_days=%d connections=%d queue_depth=%d cache[hits=%d misses=%d evictions=%d entries=%d]\n",
				s.CurrentDayID, s.HistoricalDayCount, s.ActiveConnections, s.WorkerQueueDepth,
				s.CacheHits, s.CacheMisses, s.CacheEvictions, s.CacheEntries)
		case "help":
			fmt.Println("commands: newday | stats | save | help | quit")
		case "quit", "exit":
			done <- os.Interrupt
			return
		default:
			fmt.Printf("unknown command %q (try: help)\n", line)
		}
	}
}
