package wing

import (
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"
)

// invoke every hook on a trace; the prebuilt hook sets and merged partial
// traces must never leave a nil hook behind.
func invokeAllHooks(config *SessionConfig, trace *SessionTrace) {
	trace.ConnectStart(config)
	trace.ConnectDone(config, nil, time.Millisecond)
	trace.ConnectionClosed(config, nil)
	trace.Error("Test", config, ErrConnection)
	trace.WriteDone(config, []byte{0xdf, 0xd1}, nil, time.Millisecond)
	trace.ReadDone(config, []byte{0x2a}, nil)
	trace.KeepAlive(config, nil)
	trace.WireEvent(config, OpClick, 0)
}

func TestMergedPartialTraceIsComplete(t *testing.T) {
	var errors int
	trace := &SessionTrace{
		Error: func(location string, config *SessionConfig, err error) { errors++ },
	}
	assert.NoError(t, mergeTraceDefaults(trace))

	config := defaultConfig
	config.address = "localhost:2222"
	invokeAllHooks(&config, trace)
	assert.Equal(t, 1, errors)
}

func TestPrebuiltHookSets(t *testing.T) {
	config := defaultConfig
	config.address = "localhost:2222"

	for _, trace := range []*SessionTrace{
		NoOpLoggingHooks,
		DefaultLoggingHooks,
		MetricLoggingHooks,
		DiagnosticLoggingHooks,
	} {
		merged := *trace
		assert.NoError(t, mergeTraceDefaults(&merged))
		invokeAllHooks(&config, &merged)
	}
}

func TestWireOpStrings(t *testing.T) {
	ops := []WireOp{
		OpNodeIndex, OpClick, OpStep, OpGotoRoot, OpGoUp,
		OpDataRequest, OpDefinitionRequest, OpAltFloat,
	}
	seen := map[string]bool{}
	for _, op := range ops {
		s := op.String()
		assert.NotEqual(t, "unknown", s)
		assert.False(t, seen[s], "duplicate label %q", s)
		seen[s] = true
	}
}
