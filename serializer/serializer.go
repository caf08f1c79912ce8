// Package serializer emits syntactically correct PDF structural tokens on top
// of a sink.Writer. Dict/array/object/stream brackets are tracked on an
// explicit scope stack; a mismatched end call or an illegal nesting puts the
// serializer into a latched error state instead of producing a malformed
// file.
package serializer

import (
	"fmt"

	"github.com/officekit/pdfgen/sink"
)

type scope int

const (
	scopeObject scope = iota
	scopeDict
	scopeArray
	scopeStream
)

func (s scope) String() string {
	switch s {
	case scopeObject:
		return "object"
	case scopeDict:
		return "dict"
	case scopeArray:
		return "array"
	case scopeStream:
		return "stream"
	}
	return "unknown"
}

// Serializer writes PDF tokens to an underlying sink.
type Serializer struct {
	w         *sink.Writer
	stack     []scope
	needSpace bool
	err       error
}

// New returns a Serializer writing to w.
func New(w *sink.Writer) *Serializer {
	return &Serializer{w: w}
}

// Err reports the first structural or write error.
func (s *Serializer) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.w.Err()
}

// Offset reports the byte offset of the underlying sink.
func (s *Serializer) Offset() int64 { return s.w.Offset() }

func (s *Serializer) fail(format string, args ...any) {
	if s.err == nil {
		s.err = fmt.Errorf("serializer: "+format, args...)
	}
}

func (s *Serializer) push(sc scope) { s.stack = append(s.stack, sc) }

func (s *Serializer) pop(want scope, op string) bool {
	if s.err != nil {
		return false
	}
	if len(s.stack) == 0 {
		s.fail("%s without matching begin", op)
		return false
	}
	top := s.stack[len(s.stack)-1]
	if top != want {
		s.fail("%s closes open %s scope", op, top)
		return false
	}
	s.stack = s.stack[:len(s.stack)-1]
	return true
}

func (s *Serializer) separator() {
	if s.needSpace {
		s.w.WriteByte(' ')
		s.needSpace = false
	}
}

// Name writes /name.
func (s *Serializer) Name(name string) {
	if s.err != nil {
		return
	}
	s.separator()
	s.w.WriteByte('/')
	s.w.WriteString(name)
	s.needSpace = true
}

// Int writes an integer value.
func (s *Serializer) Int(v int64) {
	if s.err != nil {
		return
	}
	s.separator()
	s.w.WriteInt(v)
	s.needSpace = true
}

// Real writes a real number with trailing zeros trimmed.
func (s *Serializer) Real(v float64) {
	if s.err != nil {
		return
	}
	s.separator()
	s.w.WriteFloat(v)
	s.needSpace = true
}

// String writes a literal string with the delimiter and escape characters
// quoted.
func (s *Serializer) String(str string) {
	if s.err != nil {
		return
	}
	s.separator()
	s.w.WriteByte('(')
	s.w.WriteString(EscapeString(str))
	s.w.WriteByte(')')
	s.needSpace = true
}

// HexString writes data as a hexadecimal string token.
func (s *Serializer) HexString(data []byte) {
	if s.err != nil {
		return
	}
	s.separator()
	s.w.WriteByte('<')
	const digits = "0123456789ABCDEF"
	for _, b := range data {
		s.w.WriteByte(digits[b>>4])
		s.w.WriteByte(digits[b&0x0F])
	}
	s.w.WriteByte('>')
	s.needSpace = true
}

// Ref writes an indirect reference "num gen R".
func (s *Serializer) Ref(num, gen int) {
	if s.err != nil {
		return
	}
	s.separator()
	s.w.WriteInt(int64(num))
	s.w.WriteByte(' ')
	s.w.WriteInt(int64(gen))
	s.w.WriteString(" R")
	s.needSpace = true
}

// Raw writes data verbatim. The caller owns its syntax.
func (s *Serializer) Raw(data string) {
	if s.err != nil {
		return
	}
	s.separator()
	s.w.WriteString(data)
	s.needSpace = true
}

// BeginObject writes "num gen obj". Objects cannot nest.
func (s *Serializer) BeginObject(num, gen int) {
	if s.err != nil {
		return
	}
	if len(s.stack) != 0 {
		s.fail("BeginObject inside open %s scope", s.stack[len(s.stack)-1])
		return
	}
	s.w.WriteInt(int64(num))
	s.w.WriteByte(' ')
	s.w.WriteInt(int64(gen))
	s.w.WriteLine(" obj")
	s.push(scopeObject)
	s.needSpace = false
}

// EndObject closes the current object.
func (s *Serializer) EndObject() {
	if !s.pop(scopeObject, "EndObject") {
		return
	}
	if s.needSpace {
		s.w.WriteByte('\n')
	}
	s.w.WriteLine("endobj")
	s.needSpace = false
}

// BeginDict writes the dictionary opener.
func (s *Serializer) BeginDict() {
	if s.err != nil {
		return
	}
	s.separator()
	s.w.WriteString("<<")
	s.push(scopeDict)
	s.needSpace = true
}

// EndDict closes the current dictionary.
func (s *Serializer) EndDict() {
	if !s.pop(scopeDict, "EndDict") {
		return
	}
	s.w.WriteString(" >>")
	s.needSpace = true
}

// BeginArray writes the array opener.
func (s *Serializer) BeginArray() {
	if s.err != nil {
		return
	}
	s.separator()
	s.w.WriteByte('[')
	s.push(scopeArray)
	s.needSpace = false
}

// EndArray closes the current array.
func (s *Serializer) EndArray() {
	if !s.pop(scopeArray, "EndArray") {
		return
	}
	s.w.WriteByte(']')
	s.needSpace = true
}

// BeginStream starts the stream body. Legal only directly inside an object
// whose dictionary has already been written.
func (s *Serializer) BeginStream() {
	if s.err != nil {
		return
	}
	if len(s.stack) == 0 || s.stack[len(s.stack)-1] != scopeObject {
		s.fail("BeginStream outside an object")
		return
	}
	if s.needSpace {
		s.w.WriteByte('\n')
	}
	s.w.WriteLine("stream")
	s.push(scopeStream)
	s.needSpace = false
}

// StreamData writes raw stream payload bytes.
func (s *Serializer) StreamData(data []byte) {
	if s.err != nil {
		return
	}
	if len(s.stack) == 0 || s.stack[len(s.stack)-1] != scopeStream {
		s.fail("StreamData outside a stream")
		return
	}
	s.w.Write(data)
}

// EndStream closes the stream body.
func (s *Serializer) EndStream() {
	if !s.pop(scopeStream, "EndStream") {
		return
	}
	s.w.WriteByte('\n')
	s.w.WriteLine("endstream")
	s.needSpace = false
}

// Close verifies that every scope has been closed.
func (s *Serializer) Close() error {
	if s.err == nil && len(s.stack) != 0 {
		s.fail("%d scope(s) left open, innermost %s", len(s.stack), s.stack[len(s.stack)-1])
	}
	return s.Err()
}

// Dict runs fn between BeginDict and EndDict. EndDict is written on every
// path, including panics unwinding through fn.
func (s *Serializer) Dict(fn func()) {
	s.BeginDict()
	defer s.EndDict()
	fn()
}

// Array runs fn between BeginArray and EndArray.
func (s *Serializer) Array(fn func()) {
	s.BeginArray()
	defer s.EndArray()
	fn()
}

// Object runs fn between BeginObject and EndObject.
func (s *Serializer) Object(num, gen int, fn func()) {
	s.BeginObject(num, gen)
	defer s.EndObject()
	fn()
}

// Entry writes a dictionary key followed by the value produced by fn.
func (s *Serializer) Entry(key string, fn func()) {
	s.Name(key)
	fn()
}

// EscapeString quotes the characters that terminate or escape a literal
// string token.
func EscapeString(str string) string {
	out := make([]byte, 0, len(str))
	for i := 0; i < len(str); i++ {
		switch c := str[i]; c {
		case '(', ')', '\\':
			out = append(out, '\\', c)
		case '\r':
			out = append(out, '\\', 'r')
		case '\n':
			out = append(out, '\\', 'n')
		case '\t':
			out = append(out, '\\', 't')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
