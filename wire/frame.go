package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame is the outer envelope shared by request and response frames
// (spec §6): int32 tag | int32 bodyLen | body. The tag is the only
// correlation mechanism; bodyLen tells the reader exactly how many body
// bytes to read, and a bodyLen above maxFrameBody is rejected before any
// body is allocated.
type Frame struct {
	Tag  int32
	Body []byte
}

// WriteFrame writes tag, length and body to w. Grounded on the same
// length-prefixed framing idiom as the kafkatest broker implementation
// in the example pack: length/tag header written with binary.BigEndian,
// body written raw.
func WriteFrame(w io.Writer, tag int32, body []byte) error {
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(tag))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("wire: write frame body: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one frame from r. io.EOF is returned verbatim when the
// peer closes the connection cleanly between frames; any other error is
// wrapped.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("wire: read frame header: %w", err)
	}
	tag := int32(binary.BigEndian.Uint32(header[0:4]))
	length := binary.BigEndian.Uint32(header[4:8])
	if length > maxFrameBody {
		return Frame{}, fmt.Errorf("wire: frame body length %d exceeds limit", length)
	}
	body := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return Frame{}, fmt.Errorf("wire: read frame body: %w", err)
		}
	}
	return Frame{Tag: tag, Body: body}, nil
}
