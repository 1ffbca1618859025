package chat

import (
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// wsReadLimit caps a single inbound WebSocket message. Lines inside it are
// still cut at protocol.MaxLineSize by the session.
const wsReadLimit = 4096

// wsTransport lets a browser join through /ws. Every inbound text message is
// treated as one line and every outbound frame becomes one text message.
type wsTransport struct {
	ws   *websocket.Conn
	r    io.Reader
	last byte
}

func NewWebSocketTransport(ws *websocket.Conn) Transport {
	ws.SetReadLimit(wsReadLimit)
	return &wsTransport{ws: ws}
}

func (t *wsTransport) Read(p []byte) (int, error) {
	for {
		if t.r == nil {
			_, r, err := t.ws.NextReader()
			if err != nil {
				return 0, normalizeCloseError(err)
			}
			t.r = r
		}

		n, err := t.r.Read(p)
		if n > 0 {
			t.last = p[n-1]
		}
		if err == io.EOF {
			// Terminate messages that did not carry their own newline.
			if t.last != '\n' {
				t.r = strings.NewReader("\n")
			} else {
				t.r = nil
			}
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (t *wsTransport) Write(p []byte) (int, error) {
	if err := t.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *wsTransport) SetWriteDeadline(d time.Time) error {
	return t.ws.SetWriteDeadline(d)
}

func (t *wsTransport) Close() error { return t.ws.Close() }

func (t *wsTransport) RemoteAddr() net.Addr { return t.ws.RemoteAddr() }

// normalizeCloseError maps an orderly WebSocket close onto io.EOF so the
// session treats it like a TCP FIN.
func normalizeCloseError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return io.EOF
	}
	return err
}
