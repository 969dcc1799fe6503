/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Wire codec: PTP container framing
 */

// Package wire implements the bit-exact PTP/MTP wire format: container
// framing, length-prefixed UTF-16LE strings and u32-prefixed arrays.
package wire

import (
	"encoding/binary"
	"fmt"
)

// ContainerType enumerates the four PTP container types.
type ContainerType uint16

// Container types, per the PTP/MTP wire format.
const (
	TypeCommand  ContainerType = 1
	TypeData     ContainerType = 2
	TypeResponse ContainerType = 3
	TypeEvent    ContainerType = 4
)

// String returns a textual representation of ContainerType.
func (t ContainerType) String() string {
	switch t {
	case TypeCommand:
		return "command"
	case TypeData:
		return "data"
	case TypeResponse:
		return "response"
	case TypeEvent:
		return "event"
	}
	return fmt.Sprintf("unknown (0x%x)", uint16(t))
}

// HeaderSize is the size, in bytes, of the PTP container header.
const HeaderSize = 12

// MaxParams is the maximum number of u32 parameters a command or
// response container may carry.
const MaxParams = 5

// Container represents a single PTP container: header plus an
// optional parameter list (commands/responses) or opaque payload
// (data containers).
type Container struct {
	Type    ContainerType
	Code    uint16
	TxID    uint32
	Params  []uint32 // up to MaxParams, command/response containers only
	Payload []byte   // data container payload only
}

// ErrMalformed is returned when decoding a truncated or otherwise
// invalid container.
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed PTP container: %s", e.Reason)
}

// EncodeCommand encodes a command container with up to MaxParams
// parameters.
func EncodeCommand(code uint16, txid uint32, params []uint32) []byte {
	return encodeParamContainer(TypeCommand, code, txid, params)
}

// EncodeResponse encodes a response container with up to MaxParams
// parameters.
func EncodeResponse(code uint16, txid uint32, params []uint32) []byte {
	return encodeParamContainer(TypeResponse, code, txid, params)
}

// EncodeDataHeader encodes the 12-byte header of a data container
// whose payload is payloadLen bytes; the payload itself is written
// separately by the caller (streaming).
func EncodeDataHeader(code uint16, txid uint32, payloadLen int) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(HeaderSize+payloadLen))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(TypeData))
	binary.LittleEndian.PutUint16(buf[6:8], code)
	binary.LittleEndian.PutUint32(buf[8:12], txid)
	return buf
}

// EncodeData encodes a complete (non-streamed) data container.
func EncodeData(code uint16, txid uint32, payload []byte) []byte {
	buf := EncodeDataHeader(code, txid, len(payload))
	return append(buf, payload...)
}

func encodeParamContainer(typ ContainerType, code uint16, txid uint32, params []uint32) []byte {
	if len(params) > MaxParams {
		params = params[:MaxParams]
	}

	length := HeaderSize + 4*len(params)
	buf := make([]byte, length)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(length))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(typ))
	binary.LittleEndian.PutUint16(buf[6:8], code)
	binary.LittleEndian.PutUint32(buf[8:12], txid)

	for i, p := range params {
		off := HeaderSize + 4*i
		binary.LittleEndian.PutUint32(buf[off:off+4], p)
	}

	return buf
}

// DecodeHeader decodes just the 12-byte container header, returning
// the declared total container length (including the header) and the
// parsed fields. Callers use the returned length to know how many
// more bytes to read before calling DecodeContainer.
func DecodeHeader(b []byte) (totalLen int, typ ContainerType, code uint16, txid uint32, err error) {
	if len(b) < HeaderSize {
		return 0, 0, 0, 0, &ErrMalformed{Reason: "header shorter than 12 bytes"}
	}

	totalLen = int(binary.LittleEndian.Uint32(b[0:4]))
	typ = ContainerType(binary.LittleEndian.Uint16(b[4:6]))
	code = binary.LittleEndian.Uint16(b[6:8])
	txid = binary.LittleEndian.Uint32(b[8:12])

	if totalLen < HeaderSize {
		return 0, 0, 0, 0, &ErrMalformed{Reason: "declared length shorter than header"}
	}

	return totalLen, typ, code, txid, nil
}

// DecodeContainer decodes a complete container (header + body) that
// has already been fully read into memory. It is the inverse of
// EncodeCommand/EncodeResponse/EncodeData: for a well-formed input b,
// DecodeContainer(EncodeXxx(...)) reproduces the original fields.
func DecodeContainer(b []byte) (*Container, error) {
	totalLen, typ, code, txid, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}

	if len(b) < totalLen {
		return nil, &ErrMalformed{Reason: "body shorter than declared length"}
	}

	body := b[HeaderSize:totalLen]

	c := &Container{Type: typ, Code: code, TxID: txid}

	switch typ {
	case TypeCommand, TypeResponse, TypeEvent:
		if len(body)%4 != 0 {
			return nil, &ErrMalformed{Reason: "parameter block not a multiple of 4 bytes"}
		}
		n := len(body) / 4
		if n > MaxParams {
			return nil, &ErrMalformed{Reason: "too many parameters"}
		}
		c.Params = make([]uint32, n)
		for i := 0; i < n; i++ {
			c.Params[i] = binary.LittleEndian.Uint32(body[4*i : 4*i+4])
		}
	case TypeData:
		c.Payload = append([]byte(nil), body...)
	default:
		return nil, &ErrMalformed{Reason: fmt.Sprintf("unknown container type %d", typ)}
	}

	return c, nil
}

// EncodeEvent encodes an event container with up to MaxParams
// parameters, the same shape as a command/response container but with
// Type = TypeEvent.
func EncodeEvent(code uint16, txid uint32, params []uint32) []byte {
	return encodeParamContainer(TypeEvent, code, txid, params)
}

// Encode re-encodes a Container back to wire bytes. For command,
// response and event containers it uses Params; for data containers
// it uses Payload.
func (c *Container) Encode() []byte {
	switch c.Type {
	case TypeCommand, TypeResponse, TypeEvent:
		return encodeParamContainer(c.Type, c.Code, c.TxID, c.Params)
	default:
		buf := make([]byte, HeaderSize+len(c.Payload))
		binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
		binary.LittleEndian.PutUint16(buf[4:6], uint16(c.Type))
		binary.LittleEndian.PutUint16(buf[6:8], c.Code)
		binary.LittleEndian.PutUint32(buf[8:12], c.TxID)
		copy(buf[HeaderSize:], c.Payload)
		return buf
	}
}
