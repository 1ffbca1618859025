//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package netutil

import "net"

// Listen opens a TCP listener on addr. The backlog cannot be set on this
// platform and is left to the operating system.
func Listen(addr string, backlog int) (net.Listener, error) {
	tcpAddr, err := resolve(addr)
	if err != nil {
		return nil, err
	}
	return net.ListenTCP("tcp", tcpAddr)
}
