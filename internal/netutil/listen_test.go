package netutil

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestListenAcceptsConnections(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", 4)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)
	if addr.Port == 0 {
		t.Fatal("expected an ephemeral port to be assigned")
	}

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = io.WriteString(c, "ok")
	}()

	conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	buf := make([]byte, 2)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "ok" {
		t.Fatalf("got %q, want %q", buf, "ok")
	}
}

func TestListenRejectsBadAddress(t *testing.T) {
	if _, err := Listen("not-an-address", 0); err == nil {
		t.Fatal("expected an error for an unparsable address")
	}
}

func TestListenAddressInUse(t *testing.T) {
	first, err := Listen("127.0.0.1:0", 0)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer first.Close()

	if second, err := Listen(first.Addr().String(), 0); err == nil {
		second.Close()
		t.Fatal("expected binding an address in active use to fail")
	}
}
