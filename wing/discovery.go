package wing

import (
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DiscoveryInfo describes one console that answered a discovery broadcast.
type DiscoveryInfo struct {
	IP       string
	Name     string
	Model    string
	Serial   string
	Firmware string
}

var discoveryProbe = []byte("WING?")

// Scan broadcasts a discovery probe on the local network and collects the
// consoles that answer. With stopOnFirst set, Scan returns as soon as one
// console replies. A scan that finds nothing is not an error; the result is
// simply empty.
func Scan(stopOnFirst bool, opts ...SessionOption) ([]DiscoveryInfo, error) {
	config := defaultConfig
	for _, opt := range opts {
		opt(&config)
	}
	_ = mergeTraceDefaults(config.trace)
	return scan(stopOnFirst, &config)
}

func scan(stopOnFirst bool, c *SessionConfig) ([]DiscoveryInfo, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, errors.Wrap(err, "bind discovery socket")
	}
	defer func() { _ = conn.Close() }()
	enableBroadcast(conn)

	dst, err := net.ResolveUDPAddr("udp4", c.discoveryAddr)
	if err != nil {
		return nil, errors.Wrap(err, "resolve discovery address")
	}
	if _, err = conn.WriteTo(discoveryProbe, dst); err != nil {
		return nil, errors.Wrap(err, "send discovery broadcast")
	}

	var results []DiscoveryInfo
	buf := make([]byte, 1024)
	for attempts := 0; attempts < c.discoveryAttempts; {
		if err = conn.SetReadDeadline(time.Now().Add(c.discoveryTimeout)); err != nil {
			return nil, errors.Wrap(err, "set discovery deadline")
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			attempts++
			continue
		}
		if info, ok := parseDiscoveryReply(buf[:n]); ok {
			results = append(results, info)
			if stopOnFirst {
				break
			}
		}
	}
	return results, nil
}

// parseDiscoveryReply splits a comma-separated reply of the form
// WING,ip,name,model,serial,firmware.
func parseDiscoveryReply(b []byte) (DiscoveryInfo, bool) {
	tokens := strings.Split(string(b), ",")
	if len(tokens) < 6 || tokens[0] != "WING" {
		return DiscoveryInfo{}, false
	}
	return DiscoveryInfo{
		IP:       tokens[1],
		Name:     tokens[2],
		Model:    tokens[3],
		Serial:   tokens[4],
		Firmware: tokens[5],
	}, true
}
