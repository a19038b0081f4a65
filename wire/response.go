package wire

import (
	"bytes"
	"fmt"
)

// Response is the decoded body of a response frame (spec §6). Like
// Request, the embedded RequestID is informational only; callers
// correlate by the outer frame tag.
type Response struct {
	RequestID    int32
	Status       Status
	ErrorMessage string

	// Success payload, opcode-dependent (spec §4.1).
	QuantityResult int32
	Revenue        float64
	AvgPrice       float64
	MaxPriceResult float64
	Events         []Event
	Result         bool
	ProductResult  string
}

// EncodeResponse serializes a Response body for the given opcode. The
// opcode determines the success-payload shape; a non-OK status always
// encodes to just {errorMessage} regardless of opcode (spec §4.1).
func EncodeResponse(resp Response, op Opcode) ([]byte, error) {
	var buf bytes.Buffer
	writeInt32(&buf, resp.RequestID)
	buf.WriteByte(byte(resp.Status))

	if resp.Status != StatusOK {
		writeString(&buf, resp.ErrorMessage)
		return buf.Bytes(), nil
	}

	switch op {
	case OpRegister, OpLogin, OpLogout, OpAddEvent, OpNewDay:
		// no payload
	case OpQuantitySold:
		writeInt32(&buf, resp.QuantityResult)
	case OpSalesVolume:
		writeFloat64(&buf, resp.Revenue)
	case OpAveragePrice:
		writeFloat64(&buf, resp.AvgPrice)
	case OpMaxPrice:
		writeFloat64(&buf, resp.MaxPriceResult)
	case OpFilterEvents:
		WriteEventList(&buf, resp.Events)
	case OpSimultaneousSales:
		writeBool(&buf, resp.Result)
	case OpConsecutiveSales:
		writeString(&buf, resp.ProductResult)
	default:
		return nil, fmt.Errorf("wire: unknown opcode 0x%02x", byte(op))
	}

	return buf.Bytes(), nil
}

// DecodeResponse is the inverse of EncodeResponse; the caller must supply
// the opcode of the request this response answers, since the wire shape
// alone doesn't self-describe it (spec §4.1).
func DecodeResponse(body []byte, op Opcode) (Response, error) {
	r := bytes.NewReader(body)
	var resp Response

	reqID, err := readInt32(r)
	if err != nil {
		return Response{}, err
	}
	resp.RequestID = reqID

	statusByte := make([]byte, 1)
	if n, err := r.Read(statusByte); err != nil || n != 1 {
		return Response{}, fmt.Errorf("wire: read status: %w", err)
	}
	resp.Status = Status(statusByte[0])

	if resp.Status != StatusOK {
		if resp.ErrorMessage, err = readString(r); err != nil {
			return Response{}, err
		}
		return resp, nil
	}

	switch op {
	case OpRegister, OpLogin, OpLogout, OpAddEvent, OpNewDay:
		// no payload
	case OpQuantitySold:
		resp.QuantityResult, err = readInt32(r)
	case OpSalesVolume:
		resp.Revenue, err = readFloat64(r)
	case OpAveragePrice:
		resp.AvgPrice, err = readFloat64(r)
	case OpMaxPrice:
		resp.MaxPriceResult, err = readFloat64(r)
	case OpFilterEvents:
		resp.Events, err = ReadEventList(r)
	case OpSimultaneousSales:
		resp.Result, err = readBool(r)
	case OpConsecutiveSales:
		resp.ProductResult, err = readString(r)
	default:
		return Response{}, fmt.Errorf("wire: unknown opcode 0x%02x", byte(op))
	}
	if err != nil {
		return Response{}, err
	}

	return resp, nil
}
