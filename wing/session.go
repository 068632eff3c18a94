package wing

import (
	"net"
	"time"

	"github.com/benbjohnson/clock"
)

// Session represents a connection to a console.
//
// A session is single-threaded: Read blocks cooperatively until the console
// produces an event, and the request/set operations are synchronous writes.
// A caller interleaving reads and writes from different goroutines must
// provide its own mutual exclusion.
type Session interface {
	// Read blocks until the next protocol event arrives. Events are
	// delivered in the exact order the console produced them.
	Read() (Event, error)

	// RequestNodeDefinition asks the console to send the definition of the
	// node with the given id. The reply arrives through Read.
	RequestNodeDefinition(id NodeID) error

	// RequestNodeData asks the console to send the current value of the node
	// with the given id. The reply arrives through Read.
	RequestNodeData(id NodeID) error

	// SetString writes a string value to a node. Values longer than 256
	// bytes have no wire encoding and are rejected with ErrInvalidData.
	SetString(id NodeID, value string) error

	// SetFloat writes a float value to a node.
	SetFloat(id NodeID, value float32) error

	// SetInt writes an integer value to a node.
	SetInt(id NodeID, value int32) error

	// Close shuts down both directions of the connection. No farewell bytes
	// are sent.
	Close()
}

// The two-byte handshake, sent immediately after connect and re-sent as
// keep-alive.
var handshake = []byte{0xdf, 0xd1}

type sesImpl struct {
	conn   net.Conn
	config *SessionConfig
	clk    clock.Clock

	rxBuf       [rxBufferSize]byte
	rxTail      int
	rxSize      int
	rxEsc       bool
	rxChannel   int8
	rxInPipe    byte
	rxHasInPipe bool

	currentNodeID NodeID
	lastWrite     time.Time
}

func newSession(conn net.Conn, config *SessionConfig) *sesImpl {
	return &sesImpl{
		conn:      conn,
		config:    config,
		clk:       config.clock,
		rxChannel: -1,
		lastWrite: config.clock.Now(),
	}
}

// Opcode ranges of the frame layer. A decoded byte below the opcode
// constants is a small integer literal; the string ranges encode the length
// in the opcode itself.
const (
	opSmallIntMax   = 0x3f
	opIndexHintMax  = 0x7f
	opShortStrMax   = 0xbf
	opMediumStrMax  = 0xcf
	opEmptyString   = 0xd0
	opLongString    = 0xd1
	opIndexHint16   = 0xd2
	opInt16         = 0xd3
	opInt32         = 0xd4
	opFloat         = 0xd5
	opFloatAlt      = 0xd6
	opSetNode       = 0xd7
	opClick         = 0xd8
	opStep          = 0xd9
	opGotoRoot      = 0xda
	opGoUp          = 0xdb
	opRequestData   = 0xdc
	opRequestDef    = 0xdd
	opRequestEnd    = 0xde
	opDefinition    = 0xdf
)

func (s *sesImpl) Read() (Event, error) {
	for {
		op, err := s.decodeNext(nil)
		if err != nil {
			return nil, err
		}

		switch {
		case op <= opSmallIntMax:
			return s.dataEvent(IntData(int32(op))), nil

		case op <= opIndexHintMax:
			s.config.trace.WireEvent(s.config, OpNodeIndex, int(op-opSmallIntMax))

		case op <= opShortStrMax:
			v, err := s.readString(int(op-0x7f), nil)
			if err != nil {
				return nil, err
			}
			return s.dataEvent(StringData(v)), nil

		case op <= opMediumStrMax:
			v, err := s.readString(int(op-opShortStrMax), nil)
			if err != nil {
				return nil, err
			}
			return s.dataEvent(StringData(v)), nil

		case op == opEmptyString:
			return s.dataEvent(StringData("")), nil

		case op == opLongString:
			n, err := s.readU8(nil)
			if err != nil {
				return nil, err
			}
			v, err := s.readString(int(n)+1, nil)
			if err != nil {
				return nil, err
			}
			return s.dataEvent(StringData(v)), nil

		case op == opIndexHint16:
			v, err := s.readU16(nil)
			if err != nil {
				return nil, err
			}
			s.config.trace.WireEvent(s.config, OpNodeIndex, int(v)+1)

		case op == opInt16:
			v, err := s.readI16(nil)
			if err != nil {
				return nil, err
			}
			return s.dataEvent(IntData(int32(v))), nil

		case op == opInt32:
			v, err := s.readI32(nil)
			if err != nil {
				return nil, err
			}
			return s.dataEvent(IntData(v)), nil

		case op == opFloat || op == opFloatAlt:
			if op == opFloatAlt {
				s.config.trace.WireEvent(s.config, OpAltFloat, 0)
			}
			v, err := s.readF32(nil)
			if err != nil {
				return nil, err
			}
			return s.dataEvent(FloatData(v)), nil

		case op == opSetNode:
			id, err := s.readI32(nil)
			if err != nil {
				return nil, err
			}
			s.currentNodeID = NodeID(id)

		case op == opClick:
			s.config.trace.WireEvent(s.config, OpClick, 0)

		case op == opStep:
			v, err := s.readI8(nil)
			if err != nil {
				return nil, err
			}
			s.config.trace.WireEvent(s.config, OpStep, int(v))

		case op == opGotoRoot:
			s.config.trace.WireEvent(s.config, OpGotoRoot, 0)

		case op == opGoUp:
			s.config.trace.WireEvent(s.config, OpGoUp, 0)

		case op == opRequestData:
			s.config.trace.WireEvent(s.config, OpDataRequest, 0)

		case op == opRequestDef:
			s.config.trace.WireEvent(s.config, OpDefinitionRequest, 0)

		case op == opRequestEnd:
			return RequestEndEvent{}, nil

		case op == opDefinition:
			def, err := s.readDefinition()
			if err != nil {
				return nil, err
			}
			return NodeDefinitionEvent{Definition: def}, nil
		}
	}
}

func (s *sesImpl) dataEvent(d NodeData) NodeDataEvent {
	return NodeDataEvent{Channel: s.rxChannel, NodeID: s.currentNodeID, Data: d}
}

// readDefinition consumes a definition sub-frame: a u16 length (a zero
// length is followed by a u32 that is skipped), then exactly that many
// decoded bytes, parsed per the definition layout.
func (s *sesImpl) readDefinition() (NodeDefinition, error) {
	defLen, err := s.readU16(nil)
	if err != nil {
		return NodeDefinition{}, err
	}
	if defLen == 0 {
		if _, err = s.readU32(nil); err != nil {
			return NodeDefinition{}, err
		}
	}

	raw := make([]byte, 0, defLen)
	for i := 0; i < int(defLen); i++ {
		if _, err = s.decodeNext(&raw); err != nil {
			return NodeDefinition{}, err
		}
	}
	return parseDefinition(raw)
}

func (s *sesImpl) Close() {
	err := s.conn.Close()
	s.config.trace.ConnectionClosed(s.config, err)
}

// keepAlive re-sends the handshake if the write side has been idle for
// longer than the keep-alive interval. Failures are swallowed; a dead
// connection surfaces through the next read.
func (s *sesImpl) keepAlive() {
	if s.clk.Since(s.lastWrite) > s.config.keepAliveInterval {
		_, err := s.conn.Write(handshake)
		s.lastWrite = s.clk.Now()
		s.config.trace.KeepAlive(s.config, err)
	}
}
