// Package wire implements the framed packet codec and stream helpers
// of spec.md §4.A/§4.B: length-prefixed, padded record framing over any
// io.Reader/io.Writer, plus the CRLF-terminated line reader used by the
// version exchange.
package wire

import (
	"io"
	"unicode/utf8"

	gerr "github.com/bfix-edu/sshcore/errors"
)

// ReadWriter is the narrow capability spec.md §9 calls for in place of
// the source's trait-object transport: anything that can be read from
// and written to exactly like a blocking byte stream. No net.Conn
// behavior is assumed or required.
type ReadWriter interface {
	io.Reader
	io.Writer
}

// ReadExact reads exactly n bytes from r or fails with ErrShortRead.
func ReadExact(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, gerr.New(gerr.ErrShortRead, "read %d bytes: %v", n, err)
	}
	return buf, nil
}

// ReadLineCRLF consumes bytes one at a time from r, terminating on the
// first CRLF pair and returning the line with the terminator stripped.
// It fails with ErrInvalidUTF8 if the accumulated bytes are not valid
// UTF-8, or ErrShortRead on EOF before a CRLF is seen.
func ReadLineCRLF(r io.Reader) (string, error) {
	var buf []byte
	var prev byte
	havePrev := false
	one := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, one); err != nil {
			return "", gerr.New(gerr.ErrShortRead, "read line: %v", err)
		}
		b := one[0]
		if havePrev && prev == '\r' && b == '\n' {
			buf = buf[:len(buf)-1] // drop the trailing \r already appended
			break
		}
		buf = append(buf, b)
		prev = b
		havePrev = true
	}
	if !utf8.Valid(buf) {
		return "", gerr.New(gerr.ErrInvalidUTF8, "line is not valid utf-8")
	}
	return string(buf), nil
}

// WriteAll writes data to w and flushes if w supports flushing.
func WriteAll(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return gerr.New(gerr.ErrWriteFailed, "write %d bytes: %v", len(data), err)
	}
	if f, ok := w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return gerr.New(gerr.ErrWriteFailed, "flush: %v", err)
		}
	}
	return nil
}

type flusher interface {
	Flush() error
}
