package wing

import (
	"io"
	"math"
	"net"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// The receive path decodes the console's escape-coded byte stream. 0xDF is
// the escape prefix; the byte following it selects the side-band channel,
// conveys a literal 0xDF, or is handed back through a one-byte lookahead so
// 0xDF itself can reach the frame layer as an opcode.

const (
	rxBufferSize = 2048

	escByte     = 0xdf
	escLiteral  = 0xde
	channelBase = 0xd0
)

// decodeNext delivers the next decoded byte from the stream, blocking
// (cooperatively, servicing the keep-alive) until transport data arrives.
// When raw is non-nil, the bytes a definition sub-frame is built from are
// appended to it.
func (s *sesImpl) decodeNext(raw *[]byte) (byte, error) {
	if s.rxHasInPipe {
		s.rxHasInPipe = false
		if raw != nil {
			*raw = append(*raw, s.rxInPipe)
		}
		return s.rxInPipe, nil
	}

	for {
		s.keepAlive()
		if s.rxSize == 0 {
			if err := s.fill(); err != nil {
				return 0, err
			}
		}

		b := s.rxBuf[s.rxTail]
		s.rxTail++
		s.rxSize--

		if !s.rxEsc {
			if b == escByte {
				s.rxEsc = true
				continue
			}
			if raw != nil {
				*raw = append(*raw, b)
			}
			return b, nil
		}

		if b == escByte {
			// escaped escape; the machine stays primed
			if raw != nil {
				*raw = append(*raw, escByte)
			}
			return escByte, nil
		}

		s.rxEsc = false
		switch {
		case b == escLiteral:
			if raw != nil {
				*raw = append(*raw, escByte)
			}
			return escByte, nil
		case b >= channelBase && b < escLiteral:
			s.rxChannel = int8(b - channelBase)
			continue
		case s.rxChannel >= 0:
			// synthetic 0xDF now, b on the next call
			s.rxInPipe = b
			s.rxHasInPipe = true
			if raw != nil {
				*raw = append(*raw, escByte)
			}
			return escByte, nil
		default:
			if raw != nil {
				*raw = append(*raw, b)
			}
			return b, nil
		}
	}
}

// fill refills the receive buffer from the transport. The connection is read
// under a short deadline; a deadline expiry is the would-block signal, on
// which the keep-alive is serviced and the read retried. A read that
// delivers nothing is fatal.
func (s *sesImpl) fill() error {
	for {
		if err := s.conn.SetReadDeadline(s.clk.Now().Add(s.config.pollInterval)); err != nil {
			return errors.Wrap(err, "set read deadline")
		}

		n, err := s.conn.Read(s.rxBuf[:])
		if n > 0 {
			s.config.trace.ReadDone(s.config, s.rxBuf[:n], nil)
			s.rxSize = n
			s.rxTail = 0
			return nil
		}

		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			s.keepAlive()
			continue
		}
		if err == nil || errors.Is(err, io.EOF) {
			s.config.trace.ReadDone(s.config, nil, ErrConnection)
			return ErrConnection
		}
		s.config.trace.ReadDone(s.config, nil, err)
		return errors.Wrap(err, "read")
	}
}

// Primitive readers compose decoded bytes; all integers are big-endian.

func (s *sesImpl) readU8(raw *[]byte) (uint8, error) {
	return s.decodeNext(raw)
}

func (s *sesImpl) readI8(raw *[]byte) (int8, error) {
	b, err := s.decodeNext(raw)
	return int8(b), err
}

func (s *sesImpl) readU16(raw *[]byte) (uint16, error) {
	a, err := s.decodeNext(raw)
	if err != nil {
		return 0, err
	}
	b, err := s.decodeNext(raw)
	if err != nil {
		return 0, err
	}
	return uint16(a)<<8 | uint16(b), nil
}

func (s *sesImpl) readI16(raw *[]byte) (int16, error) {
	v, err := s.readU16(raw)
	return int16(v), err
}

func (s *sesImpl) readU32(raw *[]byte) (uint32, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		b, err := s.decodeNext(raw)
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint32(b)
	}
	return v, nil
}

func (s *sesImpl) readI32(raw *[]byte) (int32, error) {
	v, err := s.readU32(raw)
	return int32(v), err
}

func (s *sesImpl) readF32(raw *[]byte) (float32, error) {
	v, err := s.readU32(raw)
	return math.Float32frombits(v), err
}

func (s *sesImpl) readString(length int, raw *[]byte) (string, error) {
	buf := make([]byte, length)
	for i := range buf {
		b, err := s.decodeNext(raw)
		if err != nil {
			return "", err
		}
		buf[i] = b
	}
	if !utf8.Valid(buf) {
		return "", errors.Wrap(ErrInvalidData, "string is not valid UTF-8")
	}
	return string(buf), nil
}
