package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sbar/dailysales/wire"
)

// connection is one accepted TCP connection: a dedicated reader that
// frames requests and submits a worker-pool task per request, plus a
// writer mutex serializing response frames (spec §4.7).
type connection struct {
	id  int64
	nc  net.Conn
	srv *Server
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	authMu   sync.Mutex
	username string // "" means not authenticated (spec §4.7)
}

func (c *connection) run() {
	defer c.close()
	c.log.Info().Str("remote", c.nc.RemoteAddr().String()).Msg("connection accepted")

	for {
		frame, err := wire.ReadFrame(c.nc)
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.log.Info().Msg("connection closed by peer")
			} else {
				c.log.Warn().Err(err).Msg("frame read error")
			}
			return
		}

		tag, body := frame.Tag, frame.Body
		c.srv.pool.Execute(func() {
			c.handleFrame(tag, body)
		})
	}
}

// handleFrame decodes one request body, dispatches it, and writes the
// framed response — entirely inside a worker-pool task, per spec
// §4.7(2). A decode failure still produces a framed error response
// rather than silently dropping the request.
func (c *connection) handleFrame(tag int32, body []byte) {
	req, err := wire.DecodeRequest(body)
	if err != nil {
		c.writeResponse(tag, wire.OpRegister, wire.Response{Status: wire.StatusError, ErrorMessage: err.Error()})
		return
	}

	resp := c.dispatch(req)
	c.writeResponse(tag, req.Opcode, resp)
}

func (c *connection) writeResponse(tag int32, op wire.Opcode, resp wire.Response) {
	body, err := wire.EncodeResponse(resp, op)
	if err != nil {
		c.log.Error().Err(err).Msg("encode response")
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := wire.WriteFrame(c.nc, tag, body); err != nil {
		c.log.Warn().Err(err).Msg("write response frame")
	}
}

func (c *connection) close() {
	c.cancel()
	_ = c.nc.Close()
	c.srv.forgetConnection(c.id)
}

// currentUser returns a snapshot of the authenticated username, per
// spec §4.7/§9: handler tasks take a reference snapshot at entry; a
// racing LOGOUT may pass or fail the in-flight operation, both
// acceptable as long as nothing crashes.
func (c *connection) currentUser() (string, bool) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.username, c.username != ""
}

func (c *connection) setUser(username string) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	c.username = username
}

func (c *connection) clearUser() {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	c.username = ""
}
