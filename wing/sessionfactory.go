package wing

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// Defines a factory method for instantiating console Sessions.
type SessionFactory interface {
	// NewSession connects to the console at target and delivers a session for
	// managing it. An empty target discovers consoles on the local network and
	// connects to the first one found.
	NewSession(ctx context.Context, target string, opts ...SessionOption) (Session, error)
}

// Delivers a new session factory.
func NewFactory() SessionFactory {
	return &factoryImpl{}
}

type factoryImpl struct{}

func (f *factoryImpl) NewSession(ctx context.Context, target string, opts ...SessionOption) (Session, error) {
	config := defaultConfig
	for _, opt := range opts {
		opt(&config)
	}

	_ = mergeTraceDefaults(config.trace)

	if target == "" {
		devices, err := scan(true, &config)
		if err != nil {
			config.trace.Error("Discovery", &config, err)
			return nil, err
		}
		if len(devices) == 0 {
			config.trace.Error("Discovery", &config, ErrNoDeviceFound)
			return nil, ErrNoDeviceFound
		}
		target = devices[0].IP
	}
	if !strings.Contains(target, ":") {
		target = net.JoinHostPort(target, consolePort)
	}
	config.address = target

	conn, err := newConnection(ctx, &config)
	if err != nil {
		config.trace.Error("Network Connection", &config, err)
		return nil, err
	}

	return newSession(conn, &config), nil
}

// Connect is a convenience wrapper over the factory: it connects to the
// console at target, or discovers one if target is empty.
func Connect(target string, opts ...SessionOption) (Session, error) {
	return NewFactory().NewSession(context.Background(), target, opts...)
}

// SessionOption implements options for configuring session behaviour.
type SessionOption func(*SessionConfig)

// DialTimeout defines the timeout for establishing the TCP connection.
// Default value is 5s.
func DialTimeout(timeout time.Duration) SessionOption {
	return func(c *SessionConfig) {
		c.dialTimeout = timeout
	}
}

// KeepAliveInterval defines the write-idle interval after which the
// keep-alive handshake is re-sent.
// Default value is 7s.
func KeepAliveInterval(interval time.Duration) SessionOption {
	return func(c *SessionConfig) {
		c.keepAliveInterval = interval
	}
}

// PollInterval defines how long a read waits for transport data before
// servicing the keep-alive and retrying.
// Default value is 10ms.
func PollInterval(interval time.Duration) SessionOption {
	return func(c *SessionConfig) {
		c.pollInterval = interval
	}
}

// DiscoveryAddress defines the address discovery requests are broadcast to.
// Default value is 255.255.255.255:2222.
func DiscoveryAddress(addr string) SessionOption {
	return func(c *SessionConfig) {
		c.discoveryAddr = addr
	}
}

// DiscoveryTimeout defines the receive timeout of one discovery poll.
// Default value is 500ms.
func DiscoveryTimeout(timeout time.Duration) SessionOption {
	return func(c *SessionConfig) {
		c.discoveryTimeout = timeout
	}
}

// LoggingHooks defines a set of logging hooks to be used by the session.
// Default value is DefaultLoggingHooks.
func LoggingHooks(trace *SessionTrace) SessionOption {
	return func(c *SessionConfig) {
		c.trace = trace
	}
}

// WithClock defines the clock used for keep-alive timing. Tests substitute a
// mock clock to drive time.
func WithClock(clk clock.Clock) SessionOption {
	return func(c *SessionConfig) {
		c.clock = clk
	}
}

// The well-known TCP and UDP port of the console.
const consolePort = "2222"

// Deliver a new network connection to the address defined in the
// configuration, with the handshake sent.
func newConnection(ctx context.Context, c *SessionConfig) (conn net.Conn, err error) {
	defer func(begin time.Time) {
		c.trace.ConnectDone(c, err, time.Since(begin))
	}(time.Now())
	c.trace.ConnectStart(c)

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err = dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return nil, err
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		if err = tc.SetNoDelay(true); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	if _, err = conn.Write(handshake); err != nil {
		_ = conn.Close()
		return nil, ErrConnection
	}
	return conn, nil
}

// SessionConfig defines properties controlling session behaviour.
type SessionConfig struct {
	// Network address/hostname with port, for example: 192.168.1.99:2222
	address string
	// Timeout for establishing the TCP connection.
	dialTimeout time.Duration
	// Write-idle interval after which the keep-alive is re-sent.
	keepAliveInterval time.Duration
	// How long one read poll waits for transport data.
	pollInterval time.Duration
	// Discovery broadcast address.
	discoveryAddr string
	// Receive timeout of one discovery poll.
	discoveryTimeout time.Duration
	// Number of empty discovery polls before giving up.
	discoveryAttempts int
	// Trace hooks
	trace *SessionTrace
	// Clock used for keep-alive timing.
	clock clock.Clock
}

// Target delivers the address of the console the session is configured for.
func (c *SessionConfig) Target() string {
	return c.address
}

var defaultConfig = SessionConfig{
	dialTimeout:       time.Second * 5,
	keepAliveInterval: time.Second * 7,
	pollInterval:      time.Millisecond * 10,
	discoveryAddr:     "255.255.255.255:" + consolePort,
	discoveryTimeout:  time.Millisecond * 500,
	discoveryAttempts: 10,
	trace:             DefaultLoggingHooks,
	clock:             clock.New(),
}
