// Package netutil builds the chat listening socket.
package netutil

import (
	"fmt"
	"net"
)

// DefaultBacklog matches the backlog of the original server.
const DefaultBacklog = 128

func resolve(addr string) (*net.TCPAddr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	return tcpAddr, nil
}
