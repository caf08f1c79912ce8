// Package sink provides the low-level byte writer every other layer of the
// generator sits on. It tracks the absolute write offset, which the
// cross-reference table depends on bit-exactly.
package sink

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Writer writes bytes and text to a destination and reports the current
// offset. A nil destination writes to an internal buffer.
type Writer struct {
	dst    io.Writer
	buf    *bytes.Buffer
	offset int64
	err    error
}

// NewBuffer returns a Writer backed by an in-memory buffer.
func NewBuffer() *Writer {
	buf := &bytes.Buffer{}
	return &Writer{dst: buf, buf: buf}
}

// New returns a Writer over w.
func New(w io.Writer) *Writer {
	return &Writer{dst: w}
}

// Offset reports the number of bytes written so far.
func (w *Writer) Offset() int64 { return w.offset }

// Err reports the first write error, if any.
func (w *Writer) Err() error { return w.err }

// Bytes returns the accumulated buffer. It panics when the Writer was not
// created with NewBuffer.
func (w *Writer) Bytes() []byte {
	if w.buf == nil {
		panic("sink: Bytes called on a non-buffer writer")
	}
	return w.buf.Bytes()
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.dst.Write(p)
	w.offset += int64(n)
	if err != nil {
		w.err = err
	}
	return n, err
}

// WriteString writes s verbatim.
func (w *Writer) WriteString(s string) {
	w.Write([]byte(s))
}

// WriteByte writes a single byte.
func (w *Writer) WriteByte(b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

// WriteLine writes s followed by a newline.
func (w *Writer) WriteLine(s string) {
	w.WriteString(s)
	w.WriteByte('\n')
}

// WriteInt writes the decimal representation of v.
func (w *Writer) WriteInt(v int64) {
	w.WriteString(strconv.FormatInt(v, 10))
}

// WriteFloat writes v with trailing zeros trimmed, so "72.000000" comes out
// as "72" and "0.500000" as "0.5".
func (w *Writer) WriteFloat(v float64) {
	w.WriteString(FormatFloat(v))
}

// FormatFloat renders v the way content streams and object values expect:
// fixed notation, up to six decimals, trailing zeros and a bare trailing
// point removed.
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	if i := bytes.IndexByte([]byte(s), '.'); i >= 0 {
		s = trimTrailing(s)
	}
	return s
}

func trimTrailing(s string) string {
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

// WriteFile writes data to path atomically: the bytes go to a temporary file
// in the same directory which is renamed over path only after a successful
// write, so an aborted save leaves no partial file at the destination.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pdfgen-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return nil
}
