package client

import (
	"context"
	"fmt"

	"github.com/sbar/dailysales/wire"
)

// Client is a typed convenience wrapper over Conn: one Call per opcode
// instead of hand-building wire.Request values at every call site. It
// adds no protocol behavior beyond Conn.Send — all correlation and
// concurrency guarantees come from the demultiplexer.
type Client struct {
	conn *Conn
}

// New wraps an already-dialed Conn.
func New(conn *Conn) *Client { return &Client{conn: conn} }

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) call(ctx context.Context, req wire.Request) (wire.Response, error) {
	body, err := wire.EncodeRequest(req)
	if err != nil {
		return wire.Response{}, fmt.Errorf("client: encode request: %w", err)
	}
	respBody, err := c.conn.Send(ctx, body)
	if err != nil {
		return wire.Response{}, err
	}
	return wire.DecodeResponse(respBody, req.Opcode)
}

func (c *Client) Register(ctx context.Context, username, password string) (wire.Response, error) {
	return c.call(ctx, wire.Request{Opcode: wire.OpRegister, Username: username, Password: password})
}

func (c *Client) Login(ctx context.Context, username, password string) (wire.Response, error) {
	return c.call(ctx, wire.Request{Opcode: wire.OpLogin, Username: username, Password: password})
}

func (c *Client) Logout(ctx context.Context) (wire.Response, error) {
	return c.call(ctx, wire.Request{Opcode: wire.OpLogout})
}

func (c *Client) AddEvent(ctx context.Context, product string, quantity int32, price float64) (wire.Response, error) {
	return c.call(ctx, wire.Request{Opcode: wire.OpAddEvent, Product: product, Quantity: quantity, Price: price})
}

func (c *Client) NewDay(ctx context.Context) (wire.Response, error) {
	return c.call(ctx, wire.Request{Opcode: wire.OpNewDay})
}

func (c *Client) QuantitySold(ctx context.Context, product string, days int32) (wire.Response, error) {
	return c.call(ctx, wire.Request{Opcode: wire.OpQuantitySold, Product: product, Days: days})
}

func (c *Client) SalesVolume(ctx context.Context, product string, days int32) (wire.Response, error) {
	return c.call(ctx, wire.Request{Opcode: wire.OpSalesVolume, Product: product, Days: days})
}

func (c *Client) AveragePrice(ctx context.Context, product string, days int32) (wire.Response, error) {
	return c.call(ctx, wire.Request{Opcode: wire.OpAveragePrice, Product: product, Days: days})
}

func (c *Client) MaxPrice(ctx context.Context, product string, days int32) (wire.Response, error) {
	return c.call(ctx, wire.Request{Opcode: wire.OpMaxPrice, Product: product, Days: days})
}

func (c *Client) FilterEvents(ctx context.Context, products []string, dayOffset int32) (wire.Response, error) {
	return c.call(ctx, wire.Request{Opcode: wire.OpFilterEvents, Products: products, DayOffset: dayOffset})
}

func (c *Client) SimultaneousSales(ctx context.Context, product1, product2 string) (wire.Response, error) {
	return c.call(ctx, wire.Request{Opcode: wire.OpSimultaneousSales, Product1: product1, Product2: product2})
}

func (c *Client) ConsecutiveSales(ctx context.Context, n int32) (wire.Response, error) {
	return c.call(ctx, wire.Request{Opcode: wire.OpConsecutiveSales, N: n})
}
