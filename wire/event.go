package wire

import (
	"bytes"
	"fmt"
	"io"
)

// Event is the wire/value representation of a single point-in-time sale.
// It mirrors the data model in spec §3: immutable once constructed.
type Event struct {
	Product   string
	Quantity  int32
	Price     float64
	Timestamp int64
}

// TotalValue is the derived quantity*price field from spec §3.
func (e Event) TotalValue() float64 {
	return float64(e.Quantity) * e.Price
}

// WriteEventList encodes a dictionary-compressed event list per spec §4.1:
// a null list is signalled by dictSize == -1; otherwise the product
// dictionary is written once, followed by (productIdx, qty, price, ts)
// records that index into it. Repeated product names are common in
// realistic workloads, so this shares their encoding across events.
func WriteEventList(buf *bytes.Buffer, events []Event) {
	if events == nil {
		writeInt32(buf, -1)
		return
	}

	dict := make([]string, 0, len(events))
	index := make(map[string]int, len(events))
	for _, e := range events {
		if _, ok := index[e.Product]; !ok {
			index[e.Product] = len(dict)
			dict = append(dict, e.Product)
		}
	}

	writeInt32(buf, int32(len(dict)))
	for _, p := range dict {
		writeString(buf, p)
	}

	writeInt32(buf, int32(len(events)))
	for _, e := range events {
		writeInt16(buf, int16(index[e.Product]))
		writeInt32(buf, e.Quantity)
		writeFloat64(buf, e.Price)
		writeInt64(buf, e.Timestamp)
	}
}

// ReadEventList decodes what WriteEventList produced. A dictSize of -1
// decodes to a nil slice.
func ReadEventList(r io.Reader) ([]Event, error) {
	dictSize, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if dictSize == -1 {
		return nil, nil
	}
	if dictSize < 0 || dictSize > maxListCount {
		return nil, fmt.Errorf("wire: invalid event-list dictionary size %d", dictSize)
	}

	dict := make([]string, dictSize)
	for i := range dict {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		dict[i] = s
	}

	count, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if count < 0 || count > maxListCount {
		return nil, fmt.Errorf("wire: invalid event count %d", count)
	}

	events := make([]Event, count)
	for i := range events {
		idx, err := readInt16(r)
		if err != nil {
			return nil, err
		}
		if int(idx) < 0 || int(idx) >= len(dict) {
			return nil, fmt.Errorf("wire: event product index %d out of range [0,%d)", idx, len(dict))
		}
		qty, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		price, err := readFloat64(r)
		if err != nil {
			return nil, err
		}
		ts, err := readInt64(r)
		if err != nil {
			return nil, err
		}
		events[i] = Event{Product: dict[idx], Quantity: qty, Price: price, Timestamp: ts}
	}
	return events, nil
}
