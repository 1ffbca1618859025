package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// LineSplitter accumulates bytes read from a connection and hands back
// complete lines, so a line split over several reads or several lines
// coalesced in one read are both handled.
type LineSplitter struct {
	max        int
	buf        []byte
	discarding bool // dropping the tail of a cut line up to its '\n'
}

// NewLineSplitter returns a splitter that never buffers more than max bytes.
// A non-positive max means MaxLineSize.
func NewLineSplitter(max int) *LineSplitter {
	if max <= 0 {
		max = MaxLineSize
	}
	return &LineSplitter{max: max, buf: make([]byte, 0, max)}
}

// Feed appends p and returns every line completed by it, without the
// terminating "\n" or "\r\n". A line reaching the size limit is cut there and
// the rest of it, up to the next '\n', is dropped.
func (s *LineSplitter) Feed(p []byte) []string {
	var lines []string
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if s.discarding {
			if i < 0 {
				break
			}
			s.discarding = false
			p = p[i+1:]
			continue
		}

		chunk := p
		if i >= 0 {
			chunk = p[:i]
		}

		room := s.max - len(s.buf)
		if len(chunk) >= room {
			s.buf = append(s.buf, chunk[:room]...)
			lines = append(lines, s.take())
			p = p[room:]
			if len(p) > 0 && p[0] == '\n' {
				p = p[1:]
			} else {
				s.discarding = true
			}
			continue
		}

		s.buf = append(s.buf, chunk...)
		if i < 0 {
			break
		}
		lines = append(lines, s.take())
		p = p[i+1:]
	}
	return lines
}

// Pending returns whatever has been buffered without a terminator yet.
func (s *LineSplitter) Pending() string {
	return string(bytes.TrimSuffix(s.buf, []byte("\r")))
}

func (s *LineSplitter) take() string {
	line := string(bytes.TrimSuffix(s.buf, []byte("\r")))
	s.buf = s.buf[:0]
	return line
}

// FrameReader decodes server frames from a byte stream.
type FrameReader struct {
	r *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, MaxFrameSize)}
}

// ReadFrame reads the next frame. A name line longer than MaxNameLen or not
// ending in "\r\n" yields ErrMalformedFrame.
func (fr *FrameReader) ReadFrame() (Frame, error) {
	head, err := fr.readLine()
	if err != nil {
		return Frame{}, err
	}
	if len(head) > MaxNameLen+len(separator) || !bytes.HasSuffix(head, []byte(separator)) {
		return Frame{}, fmt.Errorf("%w: %q", ErrMalformedFrame, head)
	}

	body, err := fr.readLine()
	if err != nil && (err != io.EOF || len(body) == 0) {
		return Frame{}, err
	}

	frame := append(head, body...)
	return Decode(frame)
}

func (fr *FrameReader) readLine() ([]byte, error) {
	line, err := fr.r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// Oversized line: drop the rest so the stream can resync.
		out := append([]byte(nil), line...)
		for err == bufio.ErrBufferFull {
			_, err = fr.r.ReadSlice('\n')
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return append([]byte(nil), line...), err
}
