package chat

import (
	"log/slog"
	"time"
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// StartOutboundWriter drains c.Out onto the transport. The transport is
// closed when Out is closed or a write fails, which in turn ends the
// session's read loop. After a failed write Out is still drained, so the hub
// never sees a dead connection as a slow one.
func StartOutboundWriter(c *Conn, timeout time.Duration, logger *slog.Logger) {
	go func() {
		defer c.Transport.Close()
		wd, canDeadline := c.Transport.(writeDeadliner)
		for frame := range c.Out {
			if canDeadline && timeout > 0 {
				_ = wd.SetWriteDeadline(time.Now().Add(timeout))
			}
			if _, err := c.Transport.Write(frame); err != nil {
				logger.Debug("write failed", "conn_id", c.ID, "error", err)
				_ = c.Transport.Close()
				for range c.Out {
				}
				return
			}
		}
	}()
}
