package chat

import "github.com/andy6609/chatlite/internal/protocol"

// broadcast fans one chat line out to everyone but the sender. Delivery is
// best-effort per recipient.
func (h *Hub) broadcast(from ConnID, sender, body string) {
	frame := protocol.Encode(sender, body)
	for _, c := range h.reg.ListExcept(from) {
		h.deliver(c, frame)
	}
}

// notice broadcasts a server-originated line. except may be 0 to reach
// everyone.
func (h *Hub) notice(except ConnID, text string) {
	h.broadcast(except, protocol.ServerName, text)
}

// direct sends a server-originated line to c alone.
func (h *Hub) direct(c *Conn, text string) {
	h.deliver(c, protocol.Encode(protocol.ServerName, text))
}

func (h *Hub) deliver(c *Conn, frame []byte) {
	if c.State != StateActive {
		return
	}
	h.deliverRaw(c, frame)
}

func (h *Hub) deliverRaw(c *Conn, frame []byte) {
	// Non-blocking send keeps one slow reader from stalling the hub.
	select {
	case c.Out <- frame:
	default:
		DroppedFrames.Inc()
		h.logger.Warn("dropping frame for slow client", "conn_id", c.ID, "name", c.Name)
	}
}
