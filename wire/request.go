package wire

import (
	"bytes"
	"fmt"
	"io"
)

// Request is the decoded body of a request frame (spec §6). RequestID is
// the legacy inner correlation field: clients MUST write it as zero and
// servers MUST NOT use it for correlation — the frame's outer tag is the
// only correlation mechanism (spec §9, Open Question).
type Request struct {
	RequestID int32
	Opcode    Opcode

	// Params is a closed union over every opcode's input shape (spec
	// §4.1). Only the fields relevant to Opcode are populated; the codec
	// is the single place that enforces which fields apply to which
	// opcode.
	Username  string
	Password  string
	Product   string
	Quantity  int32
	Price     float64
	Days      int32
	Products  []string
	DayOffset int32
	Product1  string
	Product2  string
	N         int32
}

// EncodeRequest serializes a Request body (without the outer frame
// length/tag — see WriteFrame).
func EncodeRequest(req Request) ([]byte, error) {
	var buf bytes.Buffer
	writeInt32(&buf, req.RequestID)
	buf.WriteByte(byte(req.Opcode))

	switch req.Opcode {
	case OpRegister, OpLogin:
		writeString(&buf, req.Username)
		writeString(&buf, req.Password)
	case OpLogout, OpNewDay:
		// no payload
	case OpAddEvent:
		writeString(&buf, req.Product)
		writeInt32(&buf, req.Quantity)
		writeFloat64(&buf, req.Price)
	case OpQuantitySold, OpSalesVolume, OpAveragePrice, OpMaxPrice:
		writeString(&buf, req.Product)
		writeInt32(&buf, req.Days)
	case OpFilterEvents:
		writeStringList(&buf, req.Products)
		writeInt32(&buf, req.DayOffset)
	case OpSimultaneousSales:
		writeString(&buf, req.Product1)
		writeString(&buf, req.Product2)
	case OpConsecutiveSales:
		writeInt32(&buf, req.N)
	default:
		return nil, fmt.Errorf("wire: unknown opcode 0x%02x", byte(req.Opcode))
	}

	return buf.Bytes(), nil
}

// DecodeRequest is the inverse of EncodeRequest. It returns a protocol
// error (ErrUnknownOpcode) for an unrecognized opcode so the caller can
// translate it to STATUS_ERROR without tearing down the connection.
func DecodeRequest(body []byte) (Request, error) {
	r := bytes.NewReader(body)
	var req Request

	reqID, err := readInt32(r)
	if err != nil {
		return Request{}, fmt.Errorf("wire: read request id: %w", err)
	}
	req.RequestID = reqID

	opByte := make([]byte, 1)
	if _, err := io.ReadFull(r, opByte); err != nil {
		return Request{}, fmt.Errorf("wire: read opcode: %w", err)
	}
	req.Opcode = Opcode(opByte[0])

	switch req.Opcode {
	case OpRegister, OpLogin:
		if req.Username, err = readString(r); err != nil {
			return Request{}, err
		}
		if req.Password, err = readString(r); err != nil {
			return Request{}, err
		}
	case OpLogout, OpNewDay:
		// no payload
	case OpAddEvent:
		if req.Product, err = readString(r); err != nil {
			return Request{}, err
		}
		if req.Quantity, err = readInt32(r); err != nil {
			return Request{}, err
		}
		if req.Price, err = readFloat64(r); err != nil {
			return Request{}, err
		}
	case OpQuantitySold, OpSalesVolume, OpAveragePrice, OpMaxPrice:
		if req.Product, err = readString(r); err != nil {
			return Request{}, err
		}
		if req.Days, err = readInt32(r); err != nil {
			return Request{}, err
		}
	case OpFilterEvents:
		if req.Products, err = readStringList(r); err != nil {
			return Request{}, err
		}
		if req.DayOffset, err = readInt32(r); err != nil {
			return Request{}, err
		}
	case OpSimultaneousSales:
		if req.Product1, err = readString(r); err != nil {
			return Request{}, err
		}
		if req.Product2, err = readString(r); err != nil {
			return Request{}, err
		}
	case OpConsecutiveSales:
		if req.N, err = readInt32(r); err != nil {
			return Request{}, err
		}
	default:
		return Request{}, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, byte(req.Opcode))
	}

	return req, nil
}

// ErrUnknownOpcode is returned by DecodeRequest for an unrecognized opcode.
var ErrUnknownOpcode = fmt.Errorf("wire: unknown opcode")
