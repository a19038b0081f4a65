package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// echoServer is a minimal test double: it reads frames and writes each
// request body back under the same tag so tests can assert that
// Send returns exactly the bytes correlated to its own request (spec
// §8: "each call receives exactly the response bytes produced for its
// own request").
func echoServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				var writeMu sync.Mutex
				for {
					frame, err := readTestFrame(conn)
					if err != nil {
						return
					}
					// Echo the request body back, with an artificial
					// delay for odd tags to exercise out-of-order
					// response delivery.
					go func(frame testFrame) {
						if frame.tag%2 == 1 {
							time.Sleep(30 * time.Millisecond)
						}
						writeMu.Lock()
						defer writeMu.Unlock()
						writeTestFrame(t, conn, frame.tag, frame.body)
					}(frame)
				}
			}()
		}
	}()

	return ln.Addr().String(), func() { ln.Close() }
}

type testFrame struct {
	tag  int32
	body []byte
}

func readTestFrame(conn net.Conn) (testFrame, error) {
	var header [8]byte
	if _, err := readFull(conn, header[:]); err != nil {
		return testFrame{}, err
	}
	tag := int32(be32(header[0:4]))
	length := be32(header[4:8])
	body := make([]byte, length)
	if length > 0 {
		if _, err := readFull(conn, body); err != nil {
			return testFrame{}, err
		}
	}
	return testFrame{tag: tag, body: body}, nil
}

func writeTestFrame(t *testing.T, conn net.Conn, tag int32, body []byte) {
	t.Helper()
	var header [8]byte
	putBE32(header[0:4], uint32(tag))
	putBE32(header[4:8], uint32(len(body)))
	_, err := conn.Write(header[:])
	require.NoError(t, err)
	_, err = conn.Write(body)
	require.NoError(t, err)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putBE32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func TestSendReturnsCorrelatedResponse(t *testing.T) {
	addr, stop := echoServer(t)
	defer stop()

	conn, err := Dial(addr)
	require.NoError(t, err)
	defer conn.Close()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			payload := []byte{byte(i), byte(i >> 8)}
			resp, err := conn.Send(context.Background(), payload)
			require.NoError(t, err)
			require.Equal(t, payload, resp)
		}(i)
	}
	wg.Wait()
}

func TestSendUnblocksOnConnectionClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	conn, err := Dial(ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	serverSide := <-accepted

	done := make(chan error, 1)
	go func() {
		_, err := conn.Send(context.Background(), []byte("hello"))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	serverSide.Close() // simulate the peer vanishing mid-request

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not unblock after connection close")
	}
}

func TestSendRespectsContextCancellation(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			// Never respond — the caller must unblock via ctx.
			_ = c
		}
	}()

	conn, err := Dial(ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = conn.Send(ctx, []byte("hello"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
