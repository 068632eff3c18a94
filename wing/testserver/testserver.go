// Package testserver provides an in-process fake console for exercising
// sessions against a real TCP connection.
package testserver

import (
	"bytes"
	"net"
	"sync"
	"time"

	assert "github.com/stretchr/testify/require"
)

// Console is a test console. It accepts a single TCP connection, records
// every byte the client writes, and sends whatever frames the test scripts
// with Send.
type Console struct {
	listener net.Listener

	mu       sync.Mutex
	conn     net.Conn
	received bytes.Buffer

	connReady chan struct{}
}

// NewConsole delivers a test console listening on an ephemeral localhost
// port.
func NewConsole(t assert.TestingT) *Console {
	listener, err := net.Listen("tcp", "localhost:0")
	assert.NoError(t, err, "Listen failed")

	c := &Console{
		listener:  listener,
		connReady: make(chan struct{}),
	}
	go c.acceptConnection()
	return c
}

// Address delivers the host:port the console is listening on.
func (c *Console) Address() string {
	return c.listener.Addr().String()
}

// Port delivers the tcp port number on which the console is listening.
func (c *Console) Port() int {
	return c.listener.Addr().(*net.TCPAddr).Port
}

// Send writes raw wire bytes to the connected client, blocking until a
// client has connected.
func (c *Console) Send(t assert.TestingT, b []byte) {
	select {
	case <-c.connReady:
	case <-time.After(5 * time.Second):
		assert.FailNow(t, "no client connected")
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	_, err := conn.Write(b)
	assert.NoError(t, err, "Send failed")
}

// Received delivers a snapshot of the bytes the client has written so far.
func (c *Console) Received() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, c.received.Len())
	copy(out, c.received.Bytes())
	return out
}

// WaitReceived polls until the client has written at least n bytes, then
// delivers them.
func (c *Console) WaitReceived(t assert.TestingT, n int) []byte {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if b := c.Received(); len(b) >= n {
			return b
		}
		time.Sleep(time.Millisecond)
	}
	assert.FailNow(t, "client did not write enough bytes")
	return nil
}

// Disconnect closes the client connection, leaving the listener up.
func (c *Console) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Close closes any resources used by the console.
func (c *Console) Close() {
	_ = c.listener.Close()
	c.Disconnect()
}

func (c *Console) acceptConnection() {
	conn, err := c.listener.Accept()
	if err != nil {
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	close(c.connReady)

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.received.Write(buf[:n])
			c.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}
