// Package workerpool implements the fixed-size task worker pool from
// spec §4.6: a bounded number of goroutines drain a FIFO task queue,
// and a stopped pool drains to empty before its goroutines exit.
//
// Grounded on middleware/concurrency.go's Semaphore and Deduplicator —
// both guard a plain slice/map with a mutex and hand work to
// goroutines without any framework help. This pool follows the same
// texture, using a sync.Cond over that mutex (as timeseries.Store
// does for its waiters): each submission signals exactly one idle
// worker, and Stop broadcasts so every worker observes the flag. Unlike
// a single-slot channel signal, no wakeup is dropped under a task burst.
package workerpool

import (
	"sync"

	"github.com/rs/zerolog"
)

// Task is a unit of work submitted to the pool (spec §4.6).
type Task func()

// Pool is a fixed-size pool of worker goroutines draining a FIFO queue.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	stopped bool
	wg      sync.WaitGroup

	log zerolog.Logger
}

// New starts a Pool with n worker goroutines. n is clamped to at least 1.
func New(n int, log zerolog.Logger) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{
		log: log.With().Str("component", "workerpool").Logger(),
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker(i)
	}
	return p
}

// Execute enqueues task for execution by the next free worker. It
// returns false without enqueuing if the pool has been stopped (spec
// §4.6: "submissions after Stop are rejected, not queued").
func (p *Pool) Execute(task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return true
}

// Stop signals all workers to drain the remaining queue and exit once
// it is empty, then blocks until every worker has returned (spec §4.6).
// No new tasks are accepted once Stop has been called.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

// QueueDepth reports the number of tasks waiting to start, surfaced by
// the admin HTTP /stats endpoint (SPEC_FULL §3).
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		task, ok := p.next()
		if !ok {
			return
		}
		p.runSafely(task)
	}
}

// next blocks until a task is available or the pool has stopped with
// an empty queue. Queued work still runs after Stop; only new
// submissions are rejected.
func (p *Pool) next() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 {
		if p.stopped {
			return nil, false
		}
		p.cond.Wait()
	}
	task := p.queue[0]
	p.queue = p.queue[1:]
	return task, true
}

// runSafely executes task, recovering a panic so one bad task can't
// kill its worker goroutine (spec §4.6).
func (p *Pool) runSafely(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("task panicked")
		}
	}()
	task()
}
