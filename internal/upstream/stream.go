package upstream

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// LineStream is a forward-only iterator over an SSE response body. Each call
// to Next advances to the next non-blank line, normalized to end with a
// single '\n'. One empty "\n" line is emitted after the body is exhausted so
// consumers always observe a terminated stream.
//
// Closing the stream releases the underlying connection; canceling the
// request context does the same.
type LineStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	cur    []byte
	err    error
	tailed bool
	closed bool
}

func newLineStream(body io.ReadCloser) *LineStream {
	return &LineStream{body: body, reader: bufio.NewReader(body)}
}

// Next advances to the next line. It returns false at end of stream or on
// error; check Err afterwards.
func (s *LineStream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	for {
		line, err := s.reader.ReadBytes('\n')
		trimmed := bytes.TrimRight(line, "\r\n")
		if len(trimmed) > 0 {
			s.cur = append(trimmed, '\n')
			return true
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if !s.tailed {
					s.tailed = true
					s.cur = []byte{'\n'}
					return true
				}
				return false
			}
			s.err = err
			return false
		}
	}
}

// Line returns the current line including its trailing newline. It is only
// valid after Next has returned true and until the following Next call.
func (s *LineStream) Line() []byte {
	return s.cur
}

// Err returns the first error hit while reading, if any. A normally
// exhausted stream reports nil.
func (s *LineStream) Err() error {
	return s.err
}

// Close releases the underlying connection. It is safe to call more than
// once and after the stream is exhausted.
func (s *LineStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
