package chat

import (
	"io"
	"net"
	"strconv"
)

// ConnID identifies a connection for the lifetime of the process. IDs are
// handed out in accept order starting at 1 and never reused.
type ConnID uint64

func (id ConnID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Transport is the byte stream behind a connection. net.Conn satisfies it,
// and so does the WebSocket adapter.
type Transport interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
}

type ConnState int

const (
	StateConnecting ConnState = iota
	StateActive
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is one participant. ID, Name and State are only touched by the hub
// goroutine once the connection has been handed to it.
type Conn struct {
	ID    ConnID
	Name  string
	State ConnState

	Transport Transport
	Out       chan []byte // outbound frames drained by the writer goroutine
}

func NewConn(t Transport, queue int) *Conn {
	if queue <= 0 {
		queue = 32
	}
	return &Conn{
		Transport: t,
		Out:       make(chan []byte, queue),
	}
}

type EventType int

const (
	EventRegister EventType = iota
	EventLine
	EventHangup
)

func (t EventType) String() string {
	switch t {
	case EventRegister:
		return "register"
	case EventLine:
		return "line"
	case EventHangup:
		return "hangup"
	}
	return "unknown"
}

type Event struct {
	Type      EventType
	Conn      *Conn
	Line      string
	Err       error
	ReplyChan chan error // used by register to ack success/failure
}

var (
	ErrCapacityExceeded = errorString("capacity_exceeded")
	ErrNotFound         = errorString("not_found")
	ErrInvalidName      = errorString("invalid_name")
	ErrDuplicateID      = errorString("duplicate_id")
	ErrHubStopped       = errorString("hub_stopped")
)

type errorString string

func (e errorString) Error() string { return string(e) }
