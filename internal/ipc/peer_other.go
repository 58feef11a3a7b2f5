//go:build !linux

package ipc

import (
	"fmt"
	"net"
	"runtime"
)

// peerUID is unsupported off Linux; the server falls back to socket
// file permissions alone.
func peerUID(conn net.Conn) (int, error) {
	return 0, fmt.Errorf("peer credentials not supported on %s", runtime.GOOS)
}
