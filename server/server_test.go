package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sbar/dailysales/aggregation"
	"github.com/sbar/dailysales/auth"
	"github.com/sbar/dailysales/timeseries"
	"github.com/sbar/dailysales/wire"
	"github.com/sbar/dailysales/workerpool"
)

// testServer starts a Server on an ephemeral port for the lifetime of
// the test, per the teacher's httptest-free style of standing up real
// sockets in integration tests rather than mocking net.Conn.
func testServer(t *testing.T) (addr string, srv *Server) {
	t.Helper()

	authStore := auth.NewStore()
	cache := aggregation.New(8)
	ts := timeseries.New(timeseries.Config{S: 3, D: 3}, nil, cache)
	pool := workerpool.New(4, zerolog.Nop())
	srv = New(Config{Addr: "127.0.0.1:0"}, zerolog.Nop(), authStore, ts, cache, nil, pool)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = ln.Addr().String()
	ln.Close()
	srv.cfg.Addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	go srv.ListenAndServe(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})

	waitForListener(t, addr)
	return addr, srv
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server at %s never became reachable", addr)
}

// rawClient is a minimal, non-demultiplexing test harness: one
// request in flight at a time over its own connection, enough to
// exercise the wire protocol and handler dispatch without pulling in
// the full client package.
type rawClient struct {
	t    *testing.T
	conn net.Conn
	tag  int32
}

func dial(t *testing.T, addr string) *rawClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &rawClient{t: t, conn: conn}
}

func (c *rawClient) call(req wire.Request) wire.Response {
	c.tag++
	body, err := wire.EncodeRequest(req)
	require.NoError(c.t, err)
	require.NoError(c.t, wire.WriteFrame(c.conn, c.tag, body))

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := wire.ReadFrame(c.conn)
	require.NoError(c.t, err)
	require.Equal(c.t, c.tag, frame.Tag)

	resp, err := wire.DecodeResponse(frame.Body, req.Opcode)
	require.NoError(c.t, err)
	return resp
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	addr, _ := testServer(t)

	cl := dial(t, addr)
	resp := cl.call(wire.Request{Opcode: wire.OpRegister, Username: "alice", Password: "secret"})
	require.Equal(t, wire.StatusOK, resp.Status)

	resp = cl.call(wire.Request{Opcode: wire.OpLogin, Username: "alice", Password: "wrong"})
	require.Equal(t, wire.StatusAuthFailed, resp.Status)

	resp = cl.call(wire.Request{Opcode: wire.OpLogin, Username: "alice", Password: "secret"})
	require.Equal(t, wire.StatusOK, resp.Status)

	// A fresh connection has never authenticated.
	other := dial(t, addr)
	resp = other.call(wire.Request{Opcode: wire.OpAddEvent, Product: "apple", Quantity: 1, Price: 1.0})
	require.Equal(t, wire.StatusNotAuthenticated, resp.Status)

	resp = cl.call(wire.Request{Opcode: wire.OpLogout})
	require.Equal(t, wire.StatusOK, resp.Status)

	resp = cl.call(wire.Request{Opcode: wire.OpAddEvent, Product: "apple", Quantity: 1, Price: 1.0})
	require.Equal(t, wire.StatusNotAuthenticated, resp.Status)
}

func TestWindowAggregationWithRotation(t *testing.T) {
	addr, _ := testServer(t)
	cl := dial(t, addr)

	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpRegister, Username: "bob", Password: "pw"}).Status)
	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpLogin, Username: "bob", Password: "pw"}).Status)

	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpAddEvent, Product: "apple", Quantity: 2, Price: 1.00}).Status)
	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpAddEvent, Product: "apple", Quantity: 3, Price: 2.00}).Status)
	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpNewDay}).Status)
	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpAddEvent, Product: "apple", Quantity: 1, Price: 5.00}).Status)
	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpNewDay}).Status)

	qty := cl.call(wire.Request{Opcode: wire.OpQuantitySold, Product: "apple", Days: 2})
	require.Equal(t, wire.StatusOK, qty.Status)
	require.EqualValues(t, 6, qty.QuantityResult)

	vol := cl.call(wire.Request{Opcode: wire.OpSalesVolume, Product: "apple", Days: 2})
	require.Equal(t, wire.StatusOK, vol.Status)
	require.InDelta(t, 13.00, vol.Revenue, 1e-9)

	avg := cl.call(wire.Request{Opcode: wire.OpAveragePrice, Product: "apple", Days: 2})
	require.Equal(t, wire.StatusOK, avg.Status)
	require.InDelta(t, 13.00/6.0, avg.AvgPrice, 1e-9)

	max := cl.call(wire.Request{Opcode: wire.OpMaxPrice, Product: "apple", Days: 2})
	require.Equal(t, wire.StatusOK, max.Status)
	require.InDelta(t, 5.00, max.MaxPriceResult, 1e-9)
}

func TestInsufficientData(t *testing.T) {
	addr, _ := testServer(t)
	cl := dial(t, addr)

	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpRegister, Username: "carol", Password: "pw"}).Status)
	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpLogin, Username: "carol", Password: "pw"}).Status)
	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpAddEvent, Product: "apple", Quantity: 1, Price: 1.0}).Status)
	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpNewDay}).Status)

	resp := cl.call(wire.Request{Opcode: wire.OpQuantitySold, Product: "apple", Days: 5})
	require.Equal(t, wire.StatusError, resp.Status)
	require.Equal(t, insufficientDataMessage, resp.ErrorMessage)
}

func TestSimultaneousSales(t *testing.T) {
	addr, _ := testServer(t)
	loginConn := dial(t, addr)
	require.Equal(t, wire.StatusOK, loginConn.call(wire.Request{Opcode: wire.OpRegister, Username: "dave", Password: "pw"}).Status)
	require.Equal(t, wire.StatusOK, loginConn.call(wire.Request{Opcode: wire.OpLogin, Username: "dave", Password: "pw"}).Status)

	waiter := dial(t, addr)
	require.Equal(t, wire.StatusOK, waiter.call(wire.Request{Opcode: wire.OpLogin, Username: "dave", Password: "pw"}).Status)

	resultCh := make(chan wire.Response, 1)
	go func() {
		resultCh <- waiter.call(wire.Request{Opcode: wire.OpSimultaneousSales, Product1: "a", Product2: "b"})
	}()

	time.Sleep(50 * time.Millisecond) // let the waiter block before events arrive
	require.Equal(t, wire.StatusOK, loginConn.call(wire.Request{Opcode: wire.OpAddEvent, Product: "a", Quantity: 1, Price: 1.0}).Status)
	require.Equal(t, wire.StatusOK, loginConn.call(wire.Request{Opcode: wire.OpAddEvent, Product: "b", Quantity: 1, Price: 1.0}).Status)

	select {
	case resp := <-resultCh:
		require.Equal(t, wire.StatusOK, resp.Status)
		require.True(t, resp.Result)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for SIMULTANEOUS_SALES response")
	}
}

func TestConsecutiveSales(t *testing.T) {
	addr, _ := testServer(t)
	loginConn := dial(t, addr)
	require.Equal(t, wire.StatusOK, loginConn.call(wire.Request{Opcode: wire.OpRegister, Username: "erin", Password: "pw"}).Status)
	require.Equal(t, wire.StatusOK, loginConn.call(wire.Request{Opcode: wire.OpLogin, Username: "erin", Password: "pw"}).Status)

	waiter := dial(t, addr)
	require.Equal(t, wire.StatusOK, waiter.call(wire.Request{Opcode: wire.OpLogin, Username: "erin", Password: "pw"}).Status)

	resultCh := make(chan wire.Response, 1)
	go func() {
		resultCh <- waiter.call(wire.Request{Opcode: wire.OpConsecutiveSales, N: 3})
	}()

	time.Sleep(50 * time.Millisecond)
	for _, p := range []string{"a", "a", "b", "a", "a", "a"} {
		require.Equal(t, wire.StatusOK, loginConn.call(wire.Request{Opcode: wire.OpAddEvent, Product: p, Quantity: 1, Price: 1.0}).Status)
	}

	select {
	case resp := <-resultCh:
		require.Equal(t, wire.StatusOK, resp.Status)
		require.Equal(t, "a", resp.ProductResult)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for CONSECUTIVE_SALES response")
	}
}

func TestBlockedWaiterDoesNotStallOtherConnection(t *testing.T) {
	addr, _ := testServer(t)
	cl := dial(t, addr)
	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpRegister, Username: "frank", Password: "pw"}).Status)
	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpLogin, Username: "frank", Password: "pw"}).Status)

	// This test exercises the server's ability to run a blocking request
	// concurrently with fast ones on the same logical session — the
	// client package's demultiplexer (tested separately) is what makes
	// this safe over one physical TCP connection; here we approximate
	// it with two connections sharing the authenticated session's
	// underlying time-series state, matching spec §5's statement that
	// requests on a connection execute in parallel server-side.
	blockedConn := dial(t, addr)
	require.Equal(t, wire.StatusOK, blockedConn.call(wire.Request{Opcode: wire.OpLogin, Username: "frank", Password: "pw"}).Status)

	done := make(chan wire.Response, 1)
	go func() {
		done <- blockedConn.call(wire.Request{Opcode: wire.OpSimultaneousSales, Product1: "x", Product2: "y"})
	}()

	time.Sleep(50 * time.Millisecond)
	resp := cl.call(wire.Request{Opcode: wire.OpAddEvent, Product: "z", Quantity: 1, Price: 1.0})
	require.Equal(t, wire.StatusOK, resp.Status)

	select {
	case <-done:
		t.Fatal("blocked call should not have completed yet")
	default:
	}

	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpAddEvent, Product: "x", Quantity: 1, Price: 1.0}).Status)
	require.Equal(t, wire.StatusOK, cl.call(wire.Request{Opcode: wire.OpAddEvent, Product: "y", Quantity: 1, Price: 1.0}).Status)

	select {
	case r := <-done:
		require.Equal(t, wire.StatusOK, r.Status)
		require.True(t, r.Result)
	case <-time.After(3 * time.Second):
		t.Fatal("blocked call never completed")
	}
}
