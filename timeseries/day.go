// Package timeseries implements the current-day/in-memory-history/
// disk-backed-history store and its blocking condition waiters from
// spec §4.3, plus the rotation protocol in spec §3/§4.3.
package timeseries

import "github.com/sbar/dailysales/wire"

// Day is a single logical bucket of events (spec §3). Events is
// append-only and order-preserving; "simultaneous" and "consecutive"
// queries depend on that order.
type Day struct {
	DayID     int32
	Events    []wire.Event
	StartTime int64
	Completed bool
}

func newDay(id int32, startTime int64) *Day {
	return &Day{DayID: id, StartTime: startTime, Events: make([]wire.Event, 0, 64)}
}

// NewCompletedDay builds a historical Day from events recovered off
// disk (spec §4.5's load-on-start protocol), ready to seed Restore.
func NewCompletedDay(id int32, events []wire.Event) *Day {
	return &Day{DayID: id, Events: events, Completed: true}
}

func (d *Day) append(e wire.Event) {
	d.Events = append(d.Events, e)
}

// snapshot returns a defensive copy of the day's events — callers must
// never observe the live, mutating slice (spec §4.3).
func (d *Day) snapshot() []wire.Event {
	out := make([]wire.Event, len(d.Events))
	copy(out, d.Events)
	return out
}
