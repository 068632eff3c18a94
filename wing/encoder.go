package wing

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// The write path. Commands address a node by serializing its id behind the
// set-node opcode; every 0xDF byte of the id is followed by 0xDE on the
// wire. String payloads are written unescaped: the protocol does not permit
// 0xDF inside strings.

// appendID appends prefix, the big-endian id with inline escaping, and an
// optional suffix opcode.
func appendID(buf []byte, id NodeID, prefix byte, suffix ...byte) []byte {
	buf = append(buf, prefix)

	var be [4]byte
	binary.BigEndian.PutUint32(be[:], uint32(id))
	for _, b := range be {
		buf = append(buf, b)
		if b == escByte {
			buf = append(buf, escLiteral)
		}
	}

	return append(buf, suffix...)
}

func (s *sesImpl) RequestNodeDefinition(id NodeID) error {
	var buf []byte
	if id == Root {
		buf = []byte{opGotoRoot, opRequestDef}
	} else {
		buf = appendID(nil, id, opSetNode, opRequestDef)
	}
	return s.write(buf)
}

func (s *sesImpl) RequestNodeData(id NodeID) error {
	var buf []byte
	if id == Root {
		buf = []byte{opGotoRoot, opRequestData}
	} else {
		buf = appendID(nil, id, opSetNode, opRequestData)
	}
	return s.write(buf)
}

func (s *sesImpl) SetString(id NodeID, value string) error {
	buf := appendID(nil, id, opSetNode)

	switch n := len(value); {
	case n == 0:
		buf = append(buf, opEmptyString)
	case n <= 64:
		buf = append(buf, 0x7f+byte(n))
	case n <= 256:
		buf = append(buf, opLongString, byte(n-1))
	default:
		return errors.Wrapf(ErrInvalidData, "string length %d exceeds 256", n)
	}

	buf = append(buf, value...)
	return s.write(buf)
}

func (s *sesImpl) SetFloat(id NodeID, value float32) error {
	buf := appendID(nil, id, opSetNode, opFloat)
	buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(value))
	return s.write(buf)
}

func (s *sesImpl) SetInt(id NodeID, value int32) error {
	buf := appendID(nil, id, opSetNode)

	switch {
	case value >= 0 && value <= opSmallIntMax:
		buf = append(buf, byte(value))
	case value >= math.MinInt16 && value <= math.MaxInt16:
		buf = append(buf, opInt16)
		buf = binary.BigEndian.AppendUint16(buf, uint16(int16(value)))
	default:
		buf = append(buf, opInt32)
		buf = binary.BigEndian.AppendUint32(buf, uint32(value))
	}

	return s.write(buf)
}

// write emits one command. Writes are attempted once; the small payloads
// emitted here fit in kernel buffers, so the blocking write side completes
// or fails outright.
func (s *sesImpl) write(buf []byte) (err error) {
	defer func(begin time.Time) {
		s.config.trace.WriteDone(s.config, buf, err, time.Since(begin))
	}(time.Now())

	_, err = s.conn.Write(buf)
	s.lastWrite = s.clk.Now()
	if err != nil {
		return errors.Wrap(err, "write command")
	}
	return nil
}

// MarshalDefinition serializes a definition record in the layout the
// definition parser consumes. It is the inverse of the parse performed on a
// definition sub-frame and is used by tooling and the protocol tests;
// optional fields not populated for the definition's type are not emitted.
func MarshalDefinition(def *NodeDefinition) []byte {
	buf := make([]byte, 0, 32+len(def.Name)+len(def.LongName))

	buf = binary.BigEndian.AppendUint32(buf, uint32(def.ParentID))
	buf = binary.BigEndian.AppendUint32(buf, uint32(def.ID))
	buf = binary.BigEndian.AppendUint16(buf, def.Index)
	buf = append(buf, byte(len(def.Name)))
	buf = append(buf, def.Name...)
	buf = append(buf, byte(len(def.LongName)))
	buf = append(buf, def.LongName...)

	flags := uint16(def.Type)<<4 | uint16(def.Unit)
	if def.ReadOnly {
		flags |= flagReadOnly
	}
	buf = binary.BigEndian.AppendUint16(buf, flags)

	switch def.Type {
	case LinearFloat, LogarithmicFloat:
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(deref(def.MinFloat)))
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(deref(def.MaxFloat)))
		buf = binary.BigEndian.AppendUint32(buf, uint32(deref(def.Steps)))
	case Integer:
		buf = binary.BigEndian.AppendUint32(buf, uint32(deref(def.MinInt)))
		buf = binary.BigEndian.AppendUint32(buf, uint32(deref(def.MaxInt)))
	case String:
		buf = binary.BigEndian.AppendUint16(buf, deref(def.MaxStringLen))
	case StringEnum:
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(def.StringEnum)))
		for _, item := range def.StringEnum {
			buf = append(buf, byte(len(item.Item)))
			buf = append(buf, item.Item...)
			buf = append(buf, byte(len(item.LongItem)))
			buf = append(buf, item.LongItem...)
		}
	case FloatEnum:
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(def.FloatEnum)))
		for _, item := range def.FloatEnum {
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(item.Item))
			buf = append(buf, byte(len(item.LongItem)))
			buf = append(buf, item.LongItem...)
		}
	case Node, FaderLevel:
	}

	return buf
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
