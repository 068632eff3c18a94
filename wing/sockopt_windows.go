//go:build windows

package wing

import (
	"net"
	"syscall"
)

// enableBroadcast sets SO_BROADCAST on the discovery socket. Best effort:
// if the option cannot be set the subsequent broadcast write reports the
// failure.
func enableBroadcast(conn net.PacketConn) {
	uc, ok := conn.(*net.UDPConn)
	if !ok {
		return
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	})
}
