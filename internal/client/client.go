// Package client is the terminal side of chatlite: it prints frames coming
// from the server and sends whatever the user types, one line at a time.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"github.com/andy6609/chatlite/internal/protocol"
)

// ErrConnectionLost is returned by Run when the server closes the stream.
var ErrConnectionLost = errors.New("connection lost")

type Client struct {
	conn   net.Conn
	logger *slog.Logger
	now    func() time.Time
}

// Dial connects to addr, retrying up to retries times with exponential
// backoff while the server is unreachable.
func Dial(ctx context.Context, addr string, retries int, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	retry := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	dialer := net.Dialer{Timeout: 5 * time.Second}

	for attempt := 0; ; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return &Client{conn: conn, logger: logger, now: time.Now}, nil
		}
		if attempt >= retries {
			return nil, fmt.Errorf("connecting to %s: %w", addr, err)
		}
		wait := retry.Duration()
		logger.Warn("connect failed, retrying", "addr", addr, "attempt", attempt+1, "retry_in", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Run relays lines from in to the server and renders server frames on out
// until the user sends /quit, in is exhausted, ctx is cancelled or the
// server goes away.
func (c *Client) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	defer c.conn.Close()

	recvErr := make(chan error, 1)
	go func() {
		recvErr <- c.receiveLoop(out)
	}()

	sendDone := make(chan error, 1)
	go func() {
		sendDone <- c.sendLoop(in)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-sendDone:
	case err = <-recvErr:
		return err
	}

	// Unblock the receiver and wait so nothing writes to out after Run.
	c.conn.Close()
	<-recvErr
	return err
}

// Close drops the connection without saying goodbye.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) receiveLoop(out io.Writer) error {
	fr := protocol.NewFrameReader(c.conn)
	for {
		frame, err := fr.ReadFrame()
		if errors.Is(err, protocol.ErrMalformedFrame) {
			c.logger.Debug("discarding malformed frame", "error", err)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return ErrConnectionLost
			}
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		if _, err := io.WriteString(out, FormatFrame(frame, c.now())); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
}

func (c *Client) sendLoop(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, protocol.ReadBufferSize), 4096)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		if isQuit(line) {
			return nil
		}
	}
	return scanner.Err()
}

func isQuit(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && fields[0] == "/quit"
}

// FormatFrame renders a frame the way the terminal shows it.
func FormatFrame(f protocol.Frame, t time.Time) string {
	return fmt.Sprintf("[%s %s]: %s\n", t.Format(time.TimeOnly), f.Name, f.Body)
}
