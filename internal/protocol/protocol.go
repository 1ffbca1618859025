// Package protocol implements the chatlite wire format.
//
// Server to client frames look like
//
//	<sender>\r\n<body>\n
//
// and clients send plain lines terminated by '\n', optionally starting with
// a /nick or /quit command.
package protocol

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	// NameBufferSize is the size of a display name including its terminator
	// in the original C layout; usable names are one byte shorter.
	NameBufferSize = 32
	MaxNameLen     = NameBufferSize - 1

	// MaxFrameSize bounds every frame written to a socket.
	MaxFrameSize = 256

	// ReadBufferSize is the size of a single read from a client socket.
	ReadBufferSize = 256

	// MaxLineSize bounds an inbound line. Longer input is cut into pieces.
	MaxLineSize = ReadBufferSize - 1

	// ServerName is the sender of notices generated by the server itself.
	ServerName = "Server"
)

const separator = "\r\n"

// ErrMalformedFrame is returned when a frame has no name separator within
// MaxNameLen bytes.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is a decoded server to client message.
type Frame struct {
	Name string
	Body string
}

// Encode renders a frame for name and body. The name is cut to MaxNameLen
// and the body is cut so the whole frame fits in MaxFrameSize.
func Encode(name, body string) []byte {
	name = TruncateName(name)
	body = strings.TrimRight(body, "\r\n")

	room := MaxFrameSize - len(name) - len(separator) - 1
	body = truncate(body, room)

	buf := make([]byte, 0, len(name)+len(separator)+len(body)+1)
	buf = append(buf, name...)
	buf = append(buf, separator...)
	buf = append(buf, body...)
	buf = append(buf, '\n')
	return buf
}

// Decode splits a frame into name and body. The body loses one trailing
// newline, if present.
func Decode(b []byte) (Frame, error) {
	limit := len(b)
	if limit > MaxNameLen+len(separator) {
		limit = MaxNameLen + len(separator)
	}
	i := bytes.Index(b[:limit], []byte(separator))
	if i < 0 {
		return Frame{}, ErrMalformedFrame
	}

	body := b[i+len(separator):]
	body = bytes.TrimSuffix(body, []byte("\n"))
	return Frame{Name: string(b[:i]), Body: string(body)}, nil
}

// TruncateName cuts s to at most MaxNameLen bytes without splitting a rune.
func TruncateName(s string) string {
	return truncate(s, MaxNameLen)
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
