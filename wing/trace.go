package wing

import (
	"encoding/hex"
	"log"
	"time"

	"github.com/imdario/mergo"
)

// WireOp identifies a protocol observation that produces no event: opcodes
// the console uses for its own request bookkeeping, echoed back on the data
// stream.
type WireOp int

const (
	OpNodeIndex WireOp = iota
	OpClick
	OpStep
	OpGotoRoot
	OpGoUp
	OpDataRequest
	OpDefinitionRequest
	// OpAltFloat is reported when a float frame arrives under opcode 0xD6
	// rather than 0xD5; the payloads are decoded identically.
	OpAltFloat
)

func (o WireOp) String() string {
	switch o {
	case OpNodeIndex:
		return "node index"
	case OpClick:
		return "click"
	case OpStep:
		return "step"
	case OpGotoRoot:
		return "tree: goto root"
	case OpGoUp:
		return "tree: go up 1"
	case OpDataRequest:
		return "request: data"
	case OpDefinitionRequest:
		return "request: definition"
	case OpAltFloat:
		return "alt float opcode"
	}
	return "unknown"
}

// SessionTrace defines a structure for handling trace events
type SessionTrace struct {
	// ConnectStart is called before establishing the TCP connection to a console.
	ConnectStart func(config *SessionConfig)

	// ConnectDone is called when the connection attempt and handshake complete,
	// with err indicating whether they were successful.
	ConnectDone func(config *SessionConfig, err error, d time.Duration)

	// ConnectionClosed is called after the connection has been shut down.
	ConnectionClosed func(config *SessionConfig, err error)

	// Error is called after an error condition has been detected.
	Error func(location string, config *SessionConfig, err error)

	// WriteDone is called after a command has been written.
	WriteDone func(config *SessionConfig, output []byte, err error, d time.Duration)

	// ReadDone is called after a transport read has delivered bytes into the
	// receive buffer.
	ReadDone func(config *SessionConfig, input []byte, err error)

	// KeepAlive is called after a keep-alive has been emitted, with err
	// indicating whether the write succeeded. Keep-alive failures are not
	// propagated; they surface as read errors later.
	KeepAlive func(config *SessionConfig, err error)

	// WireEvent is called when the stream carries a protocol observation that
	// produces no caller-visible event.
	WireEvent func(config *SessionConfig, op WireOp, value int)
}

// DefaultLoggingHooks provides a default logging hook to report errors.
var DefaultLoggingHooks = &SessionTrace{
	Error: func(location string, config *SessionConfig, err error) {
		log.Printf("WING-Error context:%s target:%s err:%v\n", location, config.address, err)
	},
}

// MetricLoggingHooks provides a set of hooks that log metrics.
var MetricLoggingHooks = &SessionTrace{
	ConnectDone: func(config *SessionConfig, err error, d time.Duration) {
		log.Printf("WING-ConnectDone target:%s err:%v took:%dms\n", config.address, err, d.Milliseconds())
	},
	Error: DefaultLoggingHooks.Error,
	WriteDone: func(config *SessionConfig, output []byte, err error, d time.Duration) {
		log.Printf("WING-WriteDone target:%s len:%d err:%v took:%dms\n", config.address, len(output), err, d.Milliseconds())
	},
	ReadDone: func(config *SessionConfig, input []byte, err error) {
		log.Printf("WING-ReadDone target:%s len:%d err:%v\n", config.address, len(input), err)
	},
}

// DiagnosticLoggingHooks provides a set of hooks that log all events with all data.
var DiagnosticLoggingHooks = &SessionTrace{
	ConnectStart: func(config *SessionConfig) {
		log.Printf("WING-ConnectStart target:%s\n", config.address)
	},
	ConnectDone: MetricLoggingHooks.ConnectDone,
	ConnectionClosed: func(config *SessionConfig, err error) {
		log.Printf("WING-ConnectionClosed target:%s err:%v\n", config.address, err)
	},
	Error: DefaultLoggingHooks.Error,
	WriteDone: func(config *SessionConfig, output []byte, err error, d time.Duration) {
		log.Printf("WING-WriteDone target:%s err:%v took:%dms data:%s\n", config.address, err, d.Milliseconds(), hex.EncodeToString(output))
	},
	ReadDone: func(config *SessionConfig, input []byte, err error) {
		log.Printf("WING-ReadDone target:%s err:%v data:%s\n", config.address, err, hex.EncodeToString(input))
	},
	KeepAlive: func(config *SessionConfig, err error) {
		log.Printf("WING-KeepAlive target:%s err:%v\n", config.address, err)
	},
	WireEvent: func(config *SessionConfig, op WireOp, value int) {
		log.Printf("WING-WireEvent target:%s op:%s value:%d\n", config.address, op, value)
	},
}

// mergeTraceDefaults backfills unset hooks with no-ops, so call sites never
// have to nil-check.
func mergeTraceDefaults(trace *SessionTrace) error {
	return mergo.Merge(trace, NoOpLoggingHooks)
}

// NoOpLoggingHooks provides a set of hooks that do nothing.
var NoOpLoggingHooks = &SessionTrace{
	ConnectStart:     func(config *SessionConfig) {},
	ConnectDone:      func(config *SessionConfig, err error, d time.Duration) {},
	ConnectionClosed: func(config *SessionConfig, err error) {},
	Error:            func(location string, config *SessionConfig, err error) {},
	WriteDone:        func(config *SessionConfig, output []byte, err error, d time.Duration) {},
	ReadDone:         func(config *SessionConfig, input []byte, err error) {},
	KeepAlive:        func(config *SessionConfig, err error) {},
	WireEvent:        func(config *SessionConfig, op WireOp, value int) {},
}
