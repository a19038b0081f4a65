// Command dsclient is a small interactive demo of the client package:
// dial, register/login, push a few events, and issue the aggregation
// queries over the framed wire protocol. It exists to exercise the
// demultiplexer end-to-end against a running server, the same way a
// hand-written curl session exercises an HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sbar/dailysales/client"
	"github.com/sbar/dailysales/wire"
)

func main() {
	addr := flag.String("addr", "localhost:12345", "dailysales server address")
	username := flag.String("username", "demo", "account username")
	password := flag.String("password", "demo-password", "account password")
	flag.Parse()

	conn, err := client.Dial(*addr)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	c := client.New(conn)
	ctx := context.Background()

	must(c.Register(ctx, *username, *password))("register")
	must(c.Login(ctx, *username, *password))("login")

	events := []struct {
		product string
		qty     int32
		price   float64
	}{
		{"banana", 4, 1.50},
		{"banana", 2, 2.00},
		{"orange", 5, 3.00},
	}
	for _, e := range events {
		must(c.AddEvent(ctx, e.product, e.qty, e.price))("add_event " + e.product)
	}

	qty := must(c.QuantitySold(ctx, "banana", 1))("quantity_sold")
	fmt.Printf("banana quantity sold (last completed day): %d\n", qty.QuantityResult)

	revenue := must(c.SalesVolume(ctx, "banana", 1))("sales_volume")
	fmt.Printf("banana revenue (last completed day): %.2f\n", revenue.Revenue)

	avg := must(c.AveragePrice(ctx, "banana", 1))("average_price")
	fmt.Printf("banana average price (last completed day): %.2f\n", avg.AvgPrice)

	maxPrice := must(c.MaxPrice(ctx, "banana", 1))("max_price")
	fmt.Printf("banana max price (last completed day): %.2f\n", maxPrice.MaxPriceResult)

	filtered := must(c.FilterEvents(ctx, []string{"banana"}, 0))("filter_events")
	fmt.Printf("banana events today: %d\n", len(filtered.Events))

	simCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	sim, err := c.SimultaneousSales(simCtx, "banana", "orange")
	if err != nil {
		fmt.Printf("simultaneous_sales: %v (both products must sell in the current day)\n", err)
	} else if sim.Status == wire.StatusOK {
		fmt.Printf("banana and orange sold on the same day: %v\n", sim.Result)
	}

	must(c.Logout(ctx))("logout")
}

// must aborts the demo on a transport error or non-OK status, naming
// which call failed.
func must(resp wire.Response, err error) func(op string) wire.Response {
	return func(op string) wire.Response {
		if err != nil {
			log.Fatalf("%s: %v", op, err)
		}
		if resp.Status != wire.StatusOK {
			log.Fatalf("%s failed: status=%s message=%q", op, resp.Status, resp.ErrorMessage)
		}
		return resp
	}
}
