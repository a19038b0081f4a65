package server

import (
	"github.com/sbar/dailysales/aggregation"
	"github.com/sbar/dailysales/auth"
	"github.com/sbar/dailysales/wire"
)

// dispatch implements spec §4.7(2a-2b): authenticate, validate
// parameters, execute against the time-series/aggregation subsystems,
// and build a Response. It never touches the socket — handleFrame owns
// framing and writing.
func (c *connection) dispatch(req wire.Request) wire.Response {
	switch req.Opcode {
	case wire.OpRegister:
		return c.handleRegister(req)
	case wire.OpLogin:
		return c.handleLogin(req)
	case wire.OpLogout:
		return c.handleLogout()
	case wire.OpAddEvent:
		return c.authenticated(func() wire.Response { return c.handleAddEvent(req) })
	case wire.OpNewDay:
		return c.authenticated(func() wire.Response { return c.handleNewDay() })
	case wire.OpQuantitySold:
		return c.authenticated(func() wire.Response { return c.handleQuantitySold(req) })
	case wire.OpSalesVolume:
		return c.authenticated(func() wire.Response { return c.handleSalesVolume(req) })
	case wire.OpAveragePrice:
		return c.authenticated(func() wire.Response { return c.handleAveragePrice(req) })
	case wire.OpMaxPrice:
		return c.authenticated(func() wire.Response { return c.handleMaxPrice(req) })
	case wire.OpFilterEvents:
		return c.authenticated(func() wire.Response { return c.handleFilterEvents(req) })
	case wire.OpSimultaneousSales:
		return c.authenticated(func() wire.Response { return c.handleSimultaneousSales(req) })
	case wire.OpConsecutiveSales:
		return c.authenticated(func() wire.Response { return c.handleConsecutiveSales(req) })
	default:
		return wire.Response{Status: wire.StatusError, ErrorMessage: "unknown opcode"}
	}
}

// authenticated gates every non-auth opcode behind a logged-in
// connection (spec §4.7(2a)): "Unauthenticated non-auth ops return
// STATUS_NOT_AUTHENTICATED."
func (c *connection) authenticated(fn func() wire.Response) wire.Response {
	if _, ok := c.currentUser(); !ok {
		return wire.Response{Status: wire.StatusNotAuthenticated, ErrorMessage: "not authenticated"}
	}
	return fn()
}

func (c *connection) handleRegister(req wire.Request) wire.Response {
	switch c.srv.auth.Register(req.Username, req.Password) {
	case auth.RegisterCreated:
		return wire.Response{Status: wire.StatusOK}
	case auth.RegisterAlreadyExists:
		return wire.Response{Status: wire.StatusUserExists, ErrorMessage: "user already exists"}
	default:
		return wire.Response{Status: wire.StatusInvalidParams, ErrorMessage: "invalid username or password"}
	}
}

func (c *connection) handleLogin(req wire.Request) wire.Response {
	if _, ok := c.srv.auth.Authenticate(req.Username, req.Password); !ok {
		return wire.Response{Status: wire.StatusAuthFailed, ErrorMessage: "authentication failed"}
	}
	c.setUser(req.Username)
	return wire.Response{Status: wire.StatusOK}
}

func (c *connection) handleLogout() wire.Response {
	c.clearUser()
	return wire.Response{Status: wire.StatusOK}
}

func (c *connection) handleAddEvent(req wire.Request) wire.Response {
	if req.Product == "" || req.Quantity < 0 || req.Price < 0 {
		return wire.Response{Status: wire.StatusInvalidParams, ErrorMessage: "invalid event parameters"}
	}
	// Cache invalidation happens inside ts.AddEvent via the
	// CacheInvalidator it was constructed with (spec §4.3 step
	// "notify the aggregation cache"), not here.
	if _, err := c.srv.ts.AddEvent(req.Product, req.Quantity, req.Price); err != nil {
		return wire.Response{Status: wire.StatusError, ErrorMessage: err.Error()}
	}
	return wire.Response{Status: wire.StatusOK}
}

func (c *connection) handleNewDay() wire.Response {
	if err := c.srv.NewDay(); err != nil {
		// Spec §7: persistence errors on rotation are logged; rotation
		// still proceeds in memory. The caller still sees OK.
		c.log.Error().Err(err).Msg("day rotation persistence error")
	}
	return wire.Response{Status: wire.StatusOK}
}

const insufficientDataMessage = "Dados insuficientes"

func invalidWindowParams(product string, days int32) bool {
	return product == "" || days <= 0
}

func (c *connection) handleQuantitySold(req wire.Request) wire.Response {
	if invalidWindowParams(req.Product, req.Days) {
		return wire.Response{Status: wire.StatusInvalidParams, ErrorMessage: "invalid product or days"}
	}
	v, err := aggregation.AggregateQuantity(c.srv.cache, c.srv.ts, req.Product, req.Days)
	if aggregation.IsInsufficientData(err) {
		return wire.Response{Status: wire.StatusError, ErrorMessage: insufficientDataMessage}
	}
	return wire.Response{Status: wire.StatusOK, QuantityResult: int32(v)}
}

func (c *connection) handleSalesVolume(req wire.Request) wire.Response {
	if invalidWindowParams(req.Product, req.Days) {
		return wire.Response{Status: wire.StatusInvalidParams, ErrorMessage: "invalid product or days"}
	}
	v, err := aggregation.AggregateRevenue(c.srv.cache, c.srv.ts, req.Product, req.Days)
	if aggregation.IsInsufficientData(err) {
		return wire.Response{Status: wire.StatusError, ErrorMessage: insufficientDataMessage}
	}
	return wire.Response{Status: wire.StatusOK, Revenue: v}
}

func (c *connection) handleAveragePrice(req wire.Request) wire.Response {
	if invalidWindowParams(req.Product, req.Days) {
		return wire.Response{Status: wire.StatusInvalidParams, ErrorMessage: "invalid product or days"}
	}
	v, err := aggregation.AggregateAveragePrice(c.srv.cache, c.srv.ts, req.Product, req.Days)
	if aggregation.IsInsufficientData(err) {
		return wire.Response{Status: wire.StatusError, ErrorMessage: insufficientDataMessage}
	}
	return wire.Response{Status: wire.StatusOK, AvgPrice: v}
}

func (c *connection) handleMaxPrice(req wire.Request) wire.Response {
	if invalidWindowParams(req.Product, req.Days) {
		return wire.Response{Status: wire.StatusInvalidParams, ErrorMessage: "invalid product or days"}
	}
	v, err := aggregation.AggregateMaxPrice(c.srv.cache, c.srv.ts, req.Product, req.Days)
	if aggregation.IsInsufficientData(err) {
		return wire.Response{Status: wire.StatusError, ErrorMessage: insufficientDataMessage}
	}
	return wire.Response{Status: wire.StatusOK, MaxPriceResult: v}
}

func (c *connection) handleFilterEvents(req wire.Request) wire.Response {
	events := c.srv.ts.GetFilteredEvents(req.Products, req.DayOffset)
	return wire.Response{Status: wire.StatusOK, Events: events}
}

func (c *connection) handleSimultaneousSales(req wire.Request) wire.Response {
	if req.Product1 == "" || req.Product2 == "" {
		return wire.Response{Status: wire.StatusInvalidParams, ErrorMessage: "invalid products"}
	}
	result := c.srv.ts.WaitForSimultaneousSales(c.ctx, req.Product1, req.Product2)
	return wire.Response{Status: wire.StatusOK, Result: result}
}

func (c *connection) handleConsecutiveSales(req wire.Request) wire.Response {
	if req.N <= 0 {
		return wire.Response{Status: wire.StatusInvalidParams, ErrorMessage: "n must be positive"}
	}
	product, _ := c.srv.ts.WaitForConsecutiveSales(c.ctx, int(req.N))
	return wire.Response{Status: wire.StatusOK, ProductResult: product}
}
