// Package tunnel exposes the chat server on a public ngrok TCP endpoint.
package tunnel

import (
	"context"
	"fmt"
	"net"

	"golang.ngrok.com/ngrok"
	"golang.ngrok.com/ngrok/config"
)

// Listen starts an ngrok TCP tunnel, authenticated from NGROK_AUTHTOKEN.
// Connections arriving on the public endpoint are handed out by Accept like
// any other listener.
func Listen(ctx context.Context) (net.Listener, error) {
	tun, err := ngrok.StartTunnel(ctx, config.TCPEndpoint(), ngrok.WithAuthtokenFromEnv())
	if err != nil {
		return nil, fmt.Errorf("start ngrok tunnel: %w", err)
	}
	return tun, nil
}

// PublicAddr resolves the tunnel hostname to an IPv4 address, falling back
// to the hostname when the lookup fails.
func PublicAddr(ln net.Listener) string {
	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		return ln.Addr().String()
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return net.JoinHostPort(host, port)
	}
	for _, ip := range ips {
		if ipv4 := ip.To4(); ipv4 != nil {
			return net.JoinHostPort(ipv4.String(), port)
		}
	}
	return net.JoinHostPort(host, port)
}
