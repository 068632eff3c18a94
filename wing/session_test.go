package wing

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/mock/gomock"
	realassert "github.com/stretchr/testify/assert"
	assert "github.com/stretchr/testify/require"

	"github.com/dannydulai/libwing/wing/mocks"
)

func TestReadSmallInteger(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	// set current node to 5, then a bare small-integer literal
	expectReads(mockConn, []byte{
		0xd7, 0x00, 0x00, 0x00, 0x05,
		0x2a,
	})

	s := newTestSession(mockConn)
	ev, err := s.Read()
	assert.NoError(t, err)
	data, ok := ev.(NodeDataEvent)
	assert.True(t, ok)
	assert.Equal(t, NodeID(5), data.NodeID)
	assert.True(t, data.Data.HasInt())
	assert.Equal(t, int32(42), data.Data.Int())
	assert.Equal(t, int8(-1), data.Channel)
}

func TestReadStrings(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	frame := []byte{0xd7, 0x00, 0x00, 0x00, 0x09}
	frame = append(frame, 0x84)
	frame = append(frame, "hello"...) // short form
	frame = append(frame, 0xd0)       // empty
	frame = append(frame, 0xc1, 'h', 'i')
	frame = append(frame, 0xd1, 0x04, 'w', 'o', 'r', 'l', 'd')
	expectReads(mockConn, frame)

	s := newTestSession(mockConn)
	for _, want := range []string{"hello", "", "hi", "world"} {
		ev, err := s.Read()
		assert.NoError(t, err)
		data, ok := ev.(NodeDataEvent)
		assert.True(t, ok)
		assert.Equal(t, NodeID(9), data.NodeID)
		assert.True(t, data.Data.HasString())
		assert.Equal(t, want, data.Data.String())
	}
}

func TestReadIntegersAndFloats(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	frame := []byte{0xd7, 0x00, 0x00, 0x00, 0x09}
	frame = append(frame, 0xd3, 0xff, 0xfe) // i16 -2
	frame = append(frame, 0xd4, 0x00, 0x01, 0x00, 0x00) // i32 65536
	frame = append(frame, 0xd5, 0x3f, 0x80, 0x00, 0x00) // f32 1.0
	frame = append(frame, 0xd6, 0xc0, 0x00, 0x00, 0x00) // alternate float opcode, -2.0
	expectReads(mockConn, frame)

	s := newTestSession(mockConn)

	ev, err := s.Read()
	assert.NoError(t, err)
	assert.Equal(t, int32(-2), ev.(NodeDataEvent).Data.Int())

	ev, err = s.Read()
	assert.NoError(t, err)
	assert.Equal(t, int32(65536), ev.(NodeDataEvent).Data.Int())

	ev, err = s.Read()
	assert.NoError(t, err)
	assert.True(t, ev.(NodeDataEvent).Data.HasFloat())
	assert.Equal(t, float32(1.0), ev.(NodeDataEvent).Data.Float())

	ev, err = s.Read()
	assert.NoError(t, err)
	assert.Equal(t, float32(-2.0), ev.(NodeDataEvent).Data.Float())
}

func TestReadRequestEnd(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	expectReads(mockConn, []byte{0xde})

	s := newTestSession(mockConn)
	ev, err := s.Read()
	assert.NoError(t, err)
	assert.IsType(t, RequestEndEvent{}, ev)
}

func TestReadDefinition(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	body := MarshalDefinition(&NodeDefinition{
		ID: 1, ParentID: 0, Index: 0, Name: "root", Type: Node, Unit: UnitNone,
	})

	frame := []byte{0xdf, 0xd1} // channel select 1
	frame = append(frame, 0xdf, byte(len(body)>>8), byte(len(body)))
	frame = append(frame, body...)
	frame = append(frame, 0xde)
	expectReads(mockConn, frame)

	s := newTestSession(mockConn)

	ev, err := s.Read()
	assert.NoError(t, err)
	def, ok := ev.(NodeDefinitionEvent)
	assert.True(t, ok)
	assert.Equal(t, NodeID(1), def.Definition.ID)
	assert.Equal(t, NodeID(0), def.Definition.ParentID)
	assert.Equal(t, "root", def.Definition.Name)
	assert.Equal(t, Node, def.Definition.Type)
	assert.Equal(t, UnitNone, def.Definition.Unit)
	assert.False(t, def.Definition.ReadOnly)

	ev, err = s.Read()
	assert.NoError(t, err)
	assert.IsType(t, RequestEndEvent{}, ev)
}

func TestReadDefinitionWithEscapedBytes(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	// an id with 0xDF bytes forces payload escaping inside the sub-frame
	want := NodeDefinition{
		ID: NodeID(-0x21000000 | 0x05), ParentID: 0, Index: 1, Name: "x", Type: FaderLevel, Unit: UnitDb,
	}
	body := MarshalDefinition(&want)

	frame := []byte{0xdf, 0xd1}
	frame = append(frame, 0xdf, byte(len(body)>>8))
	escaped := []byte{byte(len(body))}
	escaped = append(escaped, body...)
	for i, b := range escaped {
		frame = append(frame, b)
		if b == 0xdf && i > 0 {
			frame = append(frame, 0xde)
		}
	}
	expectReads(mockConn, frame)

	s := newTestSession(mockConn)
	ev, err := s.Read()
	assert.NoError(t, err)
	assert.Equal(t, want, ev.(NodeDefinitionEvent).Definition)
}

func TestReadZeroLengthDefinition(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	// a zero declared length skips a following u32 and parses an empty
	// record, which fails cleanly rather than looping
	frame := []byte{0xdf, 0xd1}
	frame = append(frame, 0xdf, 0x00, 0x00)
	frame = append(frame, 0x00, 0x00, 0x00, 0x00)
	expectReads(mockConn, frame)

	s := newTestSession(mockConn)
	_, err := s.Read()
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestReadChannelAccompaniesData(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	frame := []byte{0xdf, 0xd3} // channel select 3
	frame = append(frame, 0xd7, 0x00, 0x00, 0x00, 0x07, 0x01)
	expectReads(mockConn, frame)

	s := newTestSession(mockConn)
	ev, err := s.Read()
	assert.NoError(t, err)
	data := ev.(NodeDataEvent)
	assert.Equal(t, int8(3), data.Channel)
	assert.Equal(t, NodeID(7), data.NodeID)
}

func TestReadWireEvents(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	frame := []byte{
		0x41,       // node index hint 2
		0xd2, 0x00, 0x09, // node index hint, u16 form
		0xd8,       // click
		0xd9, 0xff, // step -1
		0xda, 0xdb, 0xdc, 0xdd, // tree and request markers
		0xde,
	}
	expectReads(mockConn, frame)

	var ops []WireOp
	var values []int
	trace := &SessionTrace{
		WireEvent: func(config *SessionConfig, op WireOp, value int) {
			ops = append(ops, op)
			values = append(values, value)
		},
	}

	config := defaultConfig
	config.address = "localhost:2222"
	config.trace = trace
	assert.NoError(t, mergeTraceDefaults(trace))
	s := newSession(mockConn, &config)

	ev, err := s.Read()
	assert.NoError(t, err)
	assert.IsType(t, RequestEndEvent{}, ev)

	assert.Equal(t, []WireOp{
		OpNodeIndex, OpNodeIndex, OpClick, OpStep,
		OpGotoRoot, OpGoUp, OpDataRequest, OpDefinitionRequest,
	}, ops)
	assert.Equal(t, []int{2, 10, 0, -1, 0, 0, 0, 0}, values)
}

func TestKeepAliveAfterWriteIdle(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	mockClock := clock.NewMock()

	config := defaultConfig
	config.address = "localhost:2222"
	config.trace = NoOpLoggingHooks
	config.clock = mockClock
	s := newSession(mockConn, &config)

	mockConn.EXPECT().SetReadDeadline(gomock.Any()).Return(nil).AnyTimes()
	gomock.InOrder(
		// the handshake precedes the next socket interaction
		mockConn.EXPECT().Write([]byte{0xdf, 0xd1}).Return(2, nil),
		mockConn.EXPECT().Read(gomock.Any()).DoAndReturn(deliver([]byte{0x2a})),
	)

	mockClock.Add(8 * time.Second)

	ev, err := s.Read()
	assert.NoError(t, err)
	assert.Equal(t, int32(42), ev.(NodeDataEvent).Data.Int())
}

func TestKeepAliveNotDueBeforeInterval(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	mockClock := clock.NewMock()

	config := defaultConfig
	config.address = "localhost:2222"
	config.trace = NoOpLoggingHooks
	config.clock = mockClock
	s := newSession(mockConn, &config)

	mockConn.EXPECT().SetReadDeadline(gomock.Any()).Return(nil).AnyTimes()
	mockConn.EXPECT().Read(gomock.Any()).DoAndReturn(deliver([]byte{0x2a}))

	mockClock.Add(6 * time.Second)

	_, err := s.Read()
	assert.NoError(t, err)
}

func TestKeepAliveFailureIsSwallowed(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	mockClock := clock.NewMock()

	var keepAliveErr error
	trace := &SessionTrace{
		KeepAlive: func(config *SessionConfig, err error) { keepAliveErr = err },
	}
	assert.NoError(t, mergeTraceDefaults(trace))

	config := defaultConfig
	config.address = "localhost:2222"
	config.trace = trace
	config.clock = mockClock
	s := newSession(mockConn, &config)

	mockConn.EXPECT().SetReadDeadline(gomock.Any()).Return(nil).AnyTimes()
	gomock.InOrder(
		mockConn.EXPECT().Write([]byte{0xdf, 0xd1}).Return(0, realassert.AnError),
		mockConn.EXPECT().Read(gomock.Any()).DoAndReturn(deliver([]byte{0x01})),
	)

	mockClock.Add(8 * time.Second)

	// the failed keep-alive does not surface from Read
	_, err := s.Read()
	assert.NoError(t, err)
	assert.ErrorIs(t, keepAliveErr, realassert.AnError)
}

func TestWriteRefreshesKeepAliveDeadline(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	mockClock := clock.NewMock()

	config := defaultConfig
	config.address = "localhost:2222"
	config.trace = NoOpLoggingHooks
	config.clock = mockClock
	s := newSession(mockConn, &config)

	mockConn.EXPECT().SetReadDeadline(gomock.Any()).Return(nil).AnyTimes()
	gomock.InOrder(
		mockConn.EXPECT().Write([]byte{0xda, 0xdc}).Return(2, nil),
		mockConn.EXPECT().Read(gomock.Any()).DoAndReturn(deliver([]byte{0x01})),
	)

	// a command write counts as traffic; no keep-alive is due afterwards
	mockClock.Add(6 * time.Second)
	assert.NoError(t, s.RequestNodeData(0))
	mockClock.Add(6 * time.Second)

	_, err := s.Read()
	assert.NoError(t, err)
}

func TestClose(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	mockConn := mocks.NewMockConn(mockCtrl)

	mockConn.EXPECT().Close().Return(nil)

	s := newTestSession(mockConn)
	s.Close()
}
