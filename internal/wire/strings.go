/* SwiftMTP-dev-sub005 - host-side MTP/PTP client stack
 *
 * Wire codec: MTP strings and arrays
 */

package wire

import (
	"encoding/binary"
	"unicode/utf16"
)

// EncodeString encodes s as an MTP string: a 1-byte code-unit count
// (including the trailing NUL) followed by that many UTF-16LE code
// units. An empty string encodes as a single zero byte with no
// following data.
func EncodeString(s string) []byte {
	if s == "" {
		return []byte{0}
	}

	units := utf16.Encode([]rune(s))
	units = append(units, 0) // trailing NUL

	if len(units) > 255 {
		units = units[:254]
		units = append(units, 0)
	}

	buf := make([]byte, 1+2*len(units))
	buf[0] = byte(len(units))

	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[1+2*i:3+2*i], u)
	}

	return buf
}

// DecodeString decodes an MTP string starting at b[0]. It returns the
// decoded string (without the trailing NUL) and the number of bytes
// consumed from b.
func DecodeString(b []byte) (string, int, error) {
	if len(b) < 1 {
		return "", 0, &ErrMalformed{Reason: "truncated string length"}
	}

	count := int(b[0])
	if count == 0 {
		return "", 1, nil
	}

	need := 1 + 2*count
	if len(b) < need {
		return "", 0, &ErrMalformed{Reason: "truncated string body"}
	}

	units := make([]uint16, count)
	for i := 0; i < count; i++ {
		units[i] = binary.LittleEndian.Uint16(b[1+2*i : 3+2*i])
	}

	// Strip the trailing NUL code unit, if present.
	if units[len(units)-1] == 0 {
		units = units[:len(units)-1]
	}

	return string(utf16.Decode(units)), need, nil
}

// EncodeU32Array encodes a u32-count-prefixed array of u32 elements.
func EncodeU32Array(elems []uint32) []byte {
	buf := make([]byte, 4+4*len(elems))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(elems)))
	for i, e := range elems {
		binary.LittleEndian.PutUint32(buf[4+4*i:8+4*i], e)
	}
	return buf
}

// DecodeU32Array decodes a u32-count-prefixed array of u32 elements.
func DecodeU32Array(b []byte) ([]uint32, int, error) {
	if len(b) < 4 {
		return nil, 0, &ErrMalformed{Reason: "truncated array count"}
	}

	count := binary.LittleEndian.Uint32(b[0:4])
	need := 4 + 4*int(count)
	if len(b) < need {
		return nil, 0, &ErrMalformed{Reason: "truncated array body"}
	}

	elems := make([]uint32, count)
	for i := range elems {
		off := 4 + 4*i
		elems[i] = binary.LittleEndian.Uint32(b[off : off+4])
	}

	return elems, need, nil
}

// EncodeU16Array encodes a u32-count-prefixed array of u16 elements,
// the shape MTP's GetDeviceInfo uses for its Supported* arrays.
func EncodeU16Array(elems []uint16) []byte {
	buf := make([]byte, 4+2*len(elems))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(elems)))
	for i, e := range elems {
		binary.LittleEndian.PutUint16(buf[4+2*i:6+2*i], e)
	}
	return buf
}

// DecodeU16Array decodes a u32-count-prefixed array of u16 elements.
func DecodeU16Array(b []byte) ([]uint16, int, error) {
	if len(b) < 4 {
		return nil, 0, &ErrMalformed{Reason: "truncated array count"}
	}

	count := binary.LittleEndian.Uint32(b[0:4])
	need := 4 + 2*int(count)
	if len(b) < need {
		return nil, 0, &ErrMalformed{Reason: "truncated array body"}
	}

	elems := make([]uint16, count)
	for i := range elems {
		off := 4 + 2*i
		elems[i] = binary.LittleEndian.Uint16(b[off : off+2])
	}

	return elems, need, nil
}
