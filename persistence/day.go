package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sbar/dailysales/wire"
)

// SaveDay writes one day's event log per spec §4.5:
// int32 magic | int32 version | int32 eventCount | eventCount * (string product, int32 qty, float64 price, int64 timestamp).
func (s *Store) SaveDay(dayID int32, events []wire.Event) error {
	var buf bytes.Buffer
	writeInt32(&buf, dayMagic)
	writeInt32(&buf, dayVersion)
	writeInt32(&buf, int32(len(events)))
	for _, e := range events {
		writeInt32(&buf, int32(len(e.Product)))
		buf.WriteString(e.Product)
		writeInt32(&buf, e.Quantity)
		writeFloat64(&buf, e.Price)
		writeInt64(&buf, e.Timestamp)
	}
	return atomicWrite(s.dayPath(dayID), buf.Bytes())
}

// LoadDay reads a day's event log. ok is false if the file doesn't
// exist (spec §4.5).
func (s *Store) LoadDay(dayID int32) ([]wire.Event, bool, error) {
	data, ok, err := readAll(s.dayPath(dayID))
	if err != nil || !ok {
		return nil, ok, err
	}

	r := bytes.NewReader(data)
	magic, err := readInt32(r)
	if err != nil {
		return nil, false, fmt.Errorf("persistence: read day %d magic: %w", dayID, err)
	}
	version, err := readInt32(r)
	if err != nil {
		return nil, false, fmt.Errorf("persistence: read day %d version: %w", dayID, err)
	}
	if magic != dayMagic || version != dayVersion {
		return nil, false, fmt.Errorf("%w: day-%d.dat magic=0x%x version=%d", ErrCorrupt, dayID, magic, version)
	}

	count, err := readInt32(r)
	if err != nil {
		return nil, false, fmt.Errorf("persistence: read day %d event count: %w", dayID, err)
	}
	if count < 0 {
		return nil, false, fmt.Errorf("%w: negative event count in day %d", ErrCorrupt, dayID)
	}

	events := make([]wire.Event, 0, count)
	for i := int32(0); i < count; i++ {
		plen, err := readInt32(r)
		if err != nil {
			return nil, false, fmt.Errorf("%w: day %d: %v", ErrCorrupt, dayID, err)
		}
		product := make([]byte, plen)
		if _, err := io.ReadFull(r, product); err != nil {
			return nil, false, fmt.Errorf("%w: day %d: %v", ErrCorrupt, dayID, err)
		}
		qty, err := readInt32(r)
		if err != nil {
			return nil, false, fmt.Errorf("%w: day %d: %v", ErrCorrupt, dayID, err)
		}
		price, err := readFloat64(r)
		if err != nil {
			return nil, false, fmt.Errorf("%w: day %d: %v", ErrCorrupt, dayID, err)
		}
		ts, err := readInt64(r)
		if err != nil {
			return nil, false, fmt.Errorf("%w: day %d: %v", ErrCorrupt, dayID, err)
		}
		events = append(events, wire.Event{Product: string(product), Quantity: qty, Price: price, Timestamp: ts})
	}
	return events, true, nil
}

// DeleteDay removes a day's event log file, e.g. once it falls outside
// the D-day retention window (spec §4.3 rotation step 5). A missing
// file is not an error.
func (s *Store) DeleteDay(dayID int32) error {
	if err := os.Remove(s.dayPath(dayID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("persistence: delete day %d: %w", dayID, err)
	}
	return nil
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	buf.Write(tmp[:])
}

func writeFloat64(buf *bytes.Buffer, v float64) {
	writeInt64(buf, int64(math.Float64bits(v)))
}

func readInt64(r io.Reader) (int64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(tmp[:])), nil
}

func readFloat64(r io.Reader) (float64, error) {
	bits, err := readInt64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(bits)), nil
}
