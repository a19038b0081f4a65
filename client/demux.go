// Package client implements the per-connection demultiplexer from
// spec §4.8: a monotone tag allocator, a single background reader
// goroutine, and per-call blocking that does not hold up other
// in-flight calls on the same TCP connection.
//
// Grounded on franz-go's broker correlation pattern (pkg/kgo/broker.go
// in the example pack): a single reader goroutine dispatches responses
// by correlation id to whichever caller is waiting on it. That broker
// uses one promisedResp per in-flight request read serially off a
// response channel; the idiomatic Go translation of spec §4.8's
// "per-tag condition variable" is a channel per pending tag rather than
// a literal sync.Cond, since a buffered channel already composes
// correctly with select/timeout and needs no separate mutex per entry.
package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/sbar/dailysales/wire"
)

// entry is the bookkeeping for one in-flight request (spec §4.8's
// "Entry{condition, optional<bytes>, optional<error>}"). ch receives
// exactly one value — either a response body or an error — and is
// never written to twice.
type entry struct {
	ch chan entryResult
}

type entryResult struct {
	body []byte
	err  error
}

// Conn is a demultiplexing client over one TCP connection: many
// goroutines may call Send concurrently; each blocks only on its own
// response, never on another's (spec §4.8).
type Conn struct {
	nc net.Conn

	sendMu sync.Mutex // serializes frame writes (spec §4.8 sendLock)

	mapMu   sync.Mutex // guards pending + nextTag + closeErr (spec §4.8 mapLock)
	pending map[int32]*entry
	nextTag int32
	closeErr error
}

// Dial opens a TCP connection to addr and starts its background reader.
func Dial(addr string) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return newConn(nc), nil
}

func newConn(nc net.Conn) *Conn {
	c := &Conn{
		nc:      nc,
		pending: make(map[int32]*entry),
	}
	go c.readLoop()
	return c
}

// Close closes the underlying connection; the reader goroutine's own
// read error will then unblock any still-pending calls.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// Send writes body as a new framed request and blocks until its
// correlated response body arrives, the connection fails, or ctx is
// canceled (spec §4.8's send()).
func (c *Conn) Send(ctx context.Context, body []byte) ([]byte, error) {
	c.mapMu.Lock()
	if c.closeErr != nil {
		err := c.closeErr
		c.mapMu.Unlock()
		return nil, err
	}
	c.nextTag++
	tag := c.nextTag
	e := &entry{ch: make(chan entryResult, 1)}
	c.pending[tag] = e
	c.mapMu.Unlock()

	c.sendMu.Lock()
	err := wire.WriteFrame(c.nc, tag, body)
	c.sendMu.Unlock()
	if err != nil {
		c.removeEntry(tag)
		return nil, fmt.Errorf("client: write frame: %w", err)
	}

	select {
	case res := <-e.ch:
		return res.body, res.err
	case <-ctx.Done():
		c.removeEntry(tag)
		return nil, ctx.Err()
	}
}

func (c *Conn) removeEntry(tag int32) {
	c.mapMu.Lock()
	delete(c.pending, tag)
	c.mapMu.Unlock()
}

// readLoop is the single background reader thread spec §4.8 requires:
// it owns the only read of the socket, so response bytes for different
// tags are never raced over or interleaved on the read side.
func (c *Conn) readLoop() {
	for {
		frame, err := wire.ReadFrame(c.nc)
		if err != nil {
			c.failAll(err)
			return
		}

		c.mapMu.Lock()
		e, ok := c.pending[frame.Tag]
		if ok {
			delete(c.pending, frame.Tag)
		}
		c.mapMu.Unlock()

		if ok {
			e.ch <- entryResult{body: frame.Body}
		}
		// An unmatched tag (already removed by a canceled Send) is
		// simply dropped — the caller has stopped waiting.
	}
}

// failAll records the terminal I/O error and wakes every pending Entry
// with it (spec §4.8: "signal all pending Entries to unblock them with
// that error").
func (c *Conn) failAll(err error) {
	if err == io.EOF {
		err = fmt.Errorf("client: connection closed")
	} else {
		err = fmt.Errorf("client: connection failed: %w", err)
	}

	c.mapMu.Lock()
	c.closeErr = err
	pending := c.pending
	c.pending = make(map[int32]*entry)
	c.mapMu.Unlock()

	for _, e := range pending {
		e.ch <- entryResult{err: err}
	}
}
