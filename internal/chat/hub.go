package chat

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/andy6609/chatlite/internal/protocol"
)

const (
	welcomeFormat = "Welcome %s! Use /nick to set a nickname"
	serverFull    = "server is full"
	emptyNick     = "nickname cannot be empty"
)

// Member is a read-only view of a registered connection.
type Member struct {
	ID   ConnID `json:"id"`
	Name string `json:"name"`
}

// Hub is the event loop. Its goroutine owns the Registry and every Conn
// state transition; sessions only talk to it through events.
type Hub struct {
	events   chan Event
	queries  chan chan []Member
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	logger       *slog.Logger
	writeTimeout time.Duration

	reg    *Registry
	nextID ConnID
}

func NewHub(capacity, buffer int, writeTimeout time.Duration, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		events:       make(chan Event, buffer),
		queries:      make(chan chan []Member),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		logger:       logger,
		writeTimeout: writeTimeout,
		reg:          NewRegistry(capacity),
	}
}

// Send posts ev to the loop. It reports false once the hub is stopping.
func (h *Hub) Send(ev Event) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.stopCh:
		return false
	}
}

// Register hands c to the hub and waits for the verdict.
func (h *Hub) Register(c *Conn) error {
	reply := make(chan error, 1)
	if !h.Send(Event{Type: EventRegister, Conn: c, ReplyChan: reply}) {
		return ErrHubStopped
	}
	select {
	case err := <-reply:
		return err
	case <-h.doneCh:
		select {
		case err := <-reply:
			return err
		default:
			return ErrHubStopped
		}
	}
}

// Members lists the registered connections in id order.
func (h *Hub) Members() []Member {
	reply := make(chan []Member, 1)
	select {
	case h.queries <- reply:
	case <-h.doneCh:
		return nil
	}
	return <-reply
}

// Stop signals the Run loop to exit.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// Wait blocks until the Run loop has completely finished.
func (h *Hub) Wait() {
	<-h.doneCh
}

func (h *Hub) Run() {
	defer close(h.doneCh)
	defer h.closeAll()

	for {
		select {
		case ev := <-h.events:
			start := time.Now()
			h.handle(ev)
			EventsTotal.WithLabelValues(ev.Type.String()).Inc()
			EventProcessingDuration.WithLabelValues(ev.Type.String()).Observe(time.Since(start).Seconds())
		case reply := <-h.queries:
			reply <- h.members()
		case <-h.stopCh:
			return
		}
	}
}

func (h *Hub) handle(ev Event) {
	if ev.Conn == nil {
		return
	}
	switch ev.Type {
	case EventRegister:
		h.handleRegister(ev)
	case EventLine:
		c, ok := h.reg.Get(ev.Conn.ID)
		if !ok || c != ev.Conn {
			// Lines pipelined behind a /quit land here.
			return
		}
		h.dispatch(c, ev.Line)
	case EventHangup:
		h.teardown(ev.Conn, "hangup", ev.Err)
	}
}

func (h *Hub) handleRegister(ev Event) {
	c := ev.Conn
	err := h.register(c)
	if ev.ReplyChan != nil {
		ev.ReplyChan <- err
		close(ev.ReplyChan)
	}
}

func (h *Hub) register(c *Conn) error {
	id := h.nextID + 1
	if _, err := h.reg.Register(id, c); err != nil {
		RejectedConnections.Inc()
		h.logger.Warn("connection rejected", "addr", remoteAddr(c), "error", err, "capacity", h.reg.Cap())

		c.State = StateClosing
		h.deliverRaw(c, protocol.Encode(protocol.ServerName, serverFull))
		close(c.Out)
		c.State = StateClosed
		return err
	}
	h.nextID = id
	ConnectedClients.Set(float64(h.reg.Len()))

	h.logger.Info("user registered", "conn_id", c.ID, "name", c.Name, "addr", remoteAddr(c))

	h.direct(c, fmt.Sprintf(welcomeFormat, c.Name))
	h.notice(c.ID, c.Name+" joined")
	return nil
}

// dispatch runs one line through the command interpreter.
func (h *Hub) dispatch(c *Conn, line string) {
	cmd := ParseCommand(line)
	switch cmd.Kind {
	case CommandNone:
		return
	case CommandQuit:
		h.teardown(c, "quit", nil)
	case CommandNick:
		old := c.Name
		name, err := h.reg.Rename(c.ID, cmd.Arg)
		if err != nil {
			h.direct(c, emptyNick)
			return
		}
		h.logger.Info("user renamed", "conn_id", c.ID, "from", old, "to", name)
		h.direct(c, "you are now known as "+name)
	case CommandChat:
		h.logger.Debug("chat message", "conn_id", c.ID, "name", c.Name, "len", len(cmd.Arg))
		h.broadcast(c.ID, c.Name, cmd.Arg)
	}
}

// teardown moves c from Active to Closed. Every path out of the registry
// goes through here, so every departure produces exactly one leave notice.
func (h *Hub) teardown(c *Conn, reason string, cause error) {
	if _, err := h.reg.Unregister(c.ID); err != nil {
		h.logger.Debug("teardown of unknown connection", "conn_id", c.ID, "reason", reason)
		return
	}
	c.State = StateClosing
	ConnectedClients.Set(float64(h.reg.Len()))

	if cause != nil {
		h.logger.Info("user left", "conn_id", c.ID, "name", c.Name, "reason", reason, "error", cause)
	} else {
		h.logger.Info("user left", "conn_id", c.ID, "name", c.Name, "reason", reason)
	}

	h.notice(c.ID, c.Name+" left")

	// Closing Out stops the writer goroutine, which closes the transport.
	close(c.Out)
	c.State = StateClosed
}

func (h *Hub) closeAll() {
	for _, c := range h.reg.ListExcept(0) {
		_, _ = h.reg.Unregister(c.ID)
		c.State = StateClosed
		close(c.Out)
	}
	ConnectedClients.Set(0)
}

func (h *Hub) members() []Member {
	conns := h.reg.ListExcept(0)
	out := make([]Member, 0, len(conns))
	for _, c := range conns {
		out = append(out, Member{ID: c.ID, Name: c.Name})
	}
	return out
}

func remoteAddr(c *Conn) string {
	if c.Transport == nil || c.Transport.RemoteAddr() == nil {
		return ""
	}
	return c.Transport.RemoteAddr().String()
}
