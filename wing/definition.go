package wing

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// flagReadOnly is the low bit of the flags high byte.
const flagReadOnly = 0x0100

// parseDefinition decodes a definition sub-frame. Parsing is strict: a
// buffer too short for a declared field or a name that is not valid UTF-8
// fails the whole record.
func parseDefinition(buf []byte) (NodeDefinition, error) {
	r := defReader{buf: buf}

	parentID, err := r.i32()
	if err != nil {
		return NodeDefinition{}, err
	}
	id, err := r.i32()
	if err != nil {
		return NodeDefinition{}, err
	}
	index, err := r.u16()
	if err != nil {
		return NodeDefinition{}, err
	}
	name, err := r.lpString()
	if err != nil {
		return NodeDefinition{}, err
	}
	longName, err := r.lpString()
	if err != nil {
		return NodeDefinition{}, err
	}
	flags, err := r.u16()
	if err != nil {
		return NodeDefinition{}, err
	}

	def := NodeDefinition{
		ID:       NodeID(id),
		ParentID: NodeID(parentID),
		Index:    index,
		Name:     name,
		LongName: longName,
		Type:     nodeTypeFromWire(flags >> 4 & 0x0f),
		Unit:     nodeUnitFromWire(flags & 0x0f),
		ReadOnly: flags&flagReadOnly != 0,
	}

	if err := r.readTail(&def); err != nil {
		return NodeDefinition{}, err
	}
	return def, nil
}

// readTail consumes the type-dependent trailer of a definition record.
func (r *defReader) readTail(def *NodeDefinition) error {
	switch def.Type {
	case Node, FaderLevel:
		return nil

	case LinearFloat, LogarithmicFloat:
		minF, err := r.f32()
		if err != nil {
			return err
		}
		maxF, err := r.f32()
		if err != nil {
			return err
		}
		steps, err := r.i32()
		if err != nil {
			return err
		}
		def.MinFloat, def.MaxFloat, def.Steps = &minF, &maxF, &steps
		return nil

	case Integer:
		minI, err := r.i32()
		if err != nil {
			return err
		}
		maxI, err := r.i32()
		if err != nil {
			return err
		}
		def.MinInt, def.MaxInt = &minI, &maxI
		return nil

	case String:
		maxLen, err := r.u16()
		if err != nil {
			return err
		}
		def.MaxStringLen = &maxLen
		return nil

	case StringEnum:
		count, err := r.u16()
		if err != nil {
			return err
		}
		items := make([]StringEnumItem, 0, count)
		for i := 0; i < int(count); i++ {
			item, err := r.lpString()
			if err != nil {
				return err
			}
			long, err := r.lpString()
			if err != nil {
				return err
			}
			items = append(items, StringEnumItem{Item: item, LongItem: long})
		}
		def.StringEnum = items
		return nil

	case FloatEnum:
		count, err := r.u16()
		if err != nil {
			return err
		}
		items := make([]FloatEnumItem, 0, count)
		for i := 0; i < int(count); i++ {
			value, err := r.f32()
			if err != nil {
				return err
			}
			long, err := r.lpString()
			if err != nil {
				return err
			}
			items = append(items, FloatEnumItem{Item: value, LongItem: long})
		}
		def.FloatEnum = items
		return nil
	}

	return errors.Wrapf(ErrInvalidData, "unhandled node type %d", def.Type)
}

// defReader reads big-endian primitives from a bounded buffer.
type defReader struct {
	buf []byte
	off int
}

func (r *defReader) take(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, errors.Wrapf(ErrInvalidData, "definition truncated at offset %d", r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *defReader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *defReader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *defReader) i32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *defReader) f32() (float32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// lpString reads a u8 length followed by that many UTF-8 bytes.
func (r *defReader) lpString() (string, error) {
	n, err := r.u8()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.Wrap(ErrInvalidData, "definition string is not valid UTF-8")
	}
	return string(b), nil
}
