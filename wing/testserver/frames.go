package testserver

import (
	"encoding/binary"
	"math"

	"github.com/dannydulai/libwing/wing"
)

// Wire-frame builders for scripting the console side of the protocol. Apart
// from SelectChannel the builders produce the same escape-coded byte
// sequences a real console emits.

// SelectChannel produces the side-band escape sequence that makes ch the
// active channel.
func SelectChannel(ch int) []byte {
	return []byte{0xdf, 0xd0 + byte(ch)}
}

// Escape applies payload escaping: every 0xDF is followed by 0xDE.
func Escape(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, v := range b {
		out = append(out, v)
		if v == 0xdf {
			out = append(out, 0xde)
		}
	}
	return out
}

// SetNode produces the frame that makes id the current node.
func SetNode(id wing.NodeID) []byte {
	var be [4]byte
	binary.BigEndian.PutUint32(be[:], uint32(id))
	return append([]byte{0xd7}, Escape(be[:])...)
}

// Int produces a data frame carrying an integer value, using the smallest
// encoding that fits.
func Int(v int32) []byte {
	switch {
	case v >= 0 && v <= 0x3f:
		return []byte{byte(v)}
	case v >= math.MinInt16 && v <= math.MaxInt16:
		var be [2]byte
		binary.BigEndian.PutUint16(be[:], uint16(int16(v)))
		return append([]byte{0xd3}, Escape(be[:])...)
	default:
		var be [4]byte
		binary.BigEndian.PutUint32(be[:], uint32(v))
		return append([]byte{0xd4}, Escape(be[:])...)
	}
}

// Float produces a data frame carrying a float value.
func Float(v float32) []byte {
	var be [4]byte
	binary.BigEndian.PutUint32(be[:], math.Float32bits(v))
	return append([]byte{0xd5}, Escape(be[:])...)
}

// Str produces a data frame carrying a string value. Strings longer than
// 256 bytes have no encoding; Str panics on them.
func Str(s string) []byte {
	switch n := len(s); {
	case n == 0:
		return []byte{0xd0}
	case n <= 64:
		return append([]byte{0x7f + byte(n)}, s...)
	case n <= 256:
		return append([]byte{0xd1, byte(n - 1)}, s...)
	}
	panic("string too long for wire encoding")
}

// RequestEnd produces the end-of-request marker.
func RequestEnd() []byte {
	return []byte{0xde}
}

// DefinitionFrame wraps a serialized definition record in a definition
// sub-frame: the 0xDF preamble, the u16 record length and the escape-coded
// record bytes. A channel must be active on the decoding side for the
// preamble to be recognized; send SelectChannel first.
func DefinitionFrame(def *wing.NodeDefinition) []byte {
	body := wing.MarshalDefinition(def)

	out := []byte{0xdf, byte(len(body) >> 8)}
	out = append(out, Escape(append([]byte{byte(len(body))}, body...))...)
	return out
}
