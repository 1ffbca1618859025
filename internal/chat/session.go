package chat

import (
	"errors"
	"io"

	"github.com/andy6609/chatlite/internal/protocol"
)

// HandleSession is the read side of one connection: it registers c with the
// hub, then turns every complete inbound line into an event until the peer
// goes away. It never writes to the transport itself.
func HandleSession(c *Conn, hub *Hub) {
	StartOutboundWriter(c, hub.writeTimeout, hub.logger)

	if err := hub.Register(c); err != nil {
		if errors.Is(err, ErrHubStopped) {
			// The hub never saw c, so nobody else will close Out.
			close(c.Out)
		}
		return
	}

	splitter := protocol.NewLineSplitter(protocol.MaxLineSize)
	buf := make([]byte, protocol.ReadBufferSize)
	for {
		n, err := c.Transport.Read(buf)
		for _, line := range splitter.Feed(buf[:n]) {
			if !hub.Send(Event{Type: EventLine, Conn: c, Line: line}) {
				return
			}
		}
		if err == nil {
			continue
		}

		if rest := splitter.Pending(); rest != "" && errors.Is(err, io.EOF) {
			if !hub.Send(Event{Type: EventLine, Conn: c, Line: rest}) {
				return
			}
		}
		hub.Send(Event{Type: EventHangup, Conn: c, Err: hangupCause(err)})
		return
	}
}

// hangupCause drops io.EOF, which is an orderly close rather than a failure.
func hangupCause(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
