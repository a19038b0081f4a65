package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// primitives.go holds the field-level encode/decode helpers the rest of
// the codec builds on. All integers are big-endian; see spec §4.1.

func writeInt32(buf *bytes.Buffer, v int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	buf.Write(tmp[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	buf.Write(tmp[:])
}

func writeInt16(buf *bytes.Buffer, v int16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(v))
	buf.Write(tmp[:])
}

func writeFloat64(buf *bytes.Buffer, v float64) {
	writeInt64(buf, int64(math.Float64bits(v)))
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	writeInt32(buf, int32(len(s)))
	buf.WriteString(s)
}

func writeStringList(buf *bytes.Buffer, items []string) {
	writeInt32(buf, int32(len(items)))
	for _, it := range items {
		writeString(buf, it)
	}
}

func readInt32(r io.Reader) (int32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(tmp[:])), nil
}

func readInt64(r io.Reader) (int64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(tmp[:])), nil
}

func readInt16(r io.Reader) (int16, error) {
	var tmp [2]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(tmp[:])), nil
}

func readFloat64(r io.Reader) (float64, error) {
	bits, err := readInt64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(bits)), nil
}

func readBool(r io.Reader) (bool, error) {
	var tmp [1]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return false, err
	}
	return tmp[0] != 0, nil
}

func readString(r io.Reader) (string, error) {
	n, err := readInt32(r)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("wire: negative string length %d", n)
	}
	if n > maxFrameBody {
		return "", fmt.Errorf("wire: string length %d exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readStringList(r io.Reader) ([]string, error) {
	n, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("wire: negative list count %d", n)
	}
	if n > maxListCount {
		return nil, fmt.Errorf("wire: list count %d exceeds limit", n)
	}
	if n == 0 {
		// The wire format has no null marker for string lists; an empty
		// list decodes as nil, the form an absent list is encoded from.
		return nil, nil
	}
	out := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

const (
	maxFrameBody = 64 * 1024 * 1024
	maxListCount = 1 << 20
)
