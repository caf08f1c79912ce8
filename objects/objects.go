// Package objects models the document's structural objects. The set of
// object kinds is closed: each kind is a tagged variant rendered by one
// explicit match in Encode, not by virtual dispatch.
package objects

import (
	"fmt"

	"github.com/officekit/pdfgen/serializer"
)

// ObjectID identifies a structural object by number and generation. Numbers
// are assigned sequentially by the document writer starting at 1; generation
// stays 0 unless an object is replaced.
type ObjectID struct {
	Number     int
	Generation int
}

func (id ObjectID) String() string {
	return fmt.Sprintf("%d %d", id.Number, id.Generation)
}

// Kind enumerates the closed set of object kinds.
type Kind int

const (
	KindDictionary Kind = iota
	KindCatalog
	KindPages
	KindPage
	KindFont
	KindFontDescriptor
	KindCIDFont
	KindInfo
	KindStream
	KindContent
	KindFontFile
	KindToUnicode
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindDictionary:
		return "Dictionary"
	case KindCatalog:
		return "Catalog"
	case KindPages:
		return "Pages"
	case KindPage:
		return "Page"
	case KindFont:
		return "Font"
	case KindFontDescriptor:
		return "FontDescriptor"
	case KindCIDFont:
		return "CIDFont"
	case KindInfo:
		return "Info"
	case KindStream:
		return "Stream"
	case KindContent:
		return "Content"
	case KindFontFile:
		return "FontFile"
	case KindToUnicode:
		return "ToUnicode"
	case KindImage:
		return "Image"
	}
	return "Unknown"
}

// Value is one entry value in a dictionary or array: a literal, a reference,
// or a nested array/dictionary.
type Value interface{ isValue() }

// Name is a /name token.
type Name string

// Integer is an integer literal.
type Integer int64

// Real is a real-number literal.
type Real float64

// String is a literal string, escaped on output.
type String string

// HexString is a hex-encoded string.
type HexString []byte

// Ref is an indirect reference to another object.
type Ref ObjectID

// Array is an ordered list of values.
type Array []Value

// Raw is a pre-formed token sequence written verbatim.
type Raw string

func (Name) isValue()      {}
func (Integer) isValue()   {}
func (Real) isValue()      {}
func (String) isValue()    {}
func (HexString) isValue() {}
func (Ref) isValue()       {}
func (Array) isValue()     {}
func (Raw) isValue()       {}
func (*Dict) isValue()     {}

// Dict is a key-ordered dictionary. Keys keep insertion order so output is
// deterministic.
type Dict struct {
	keys []string
	m    map[string]Value
}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{m: make(map[string]Value)}
}

// Set stores v under key, keeping the first-insertion position on overwrite.
func (d *Dict) Set(key string, v Value) {
	if _, ok := d.m[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.m[key] = v
}

// Get returns the value stored under key.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string { return d.keys }

// Len reports the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Object is one structural object: a kind, its dictionary entries, and, for
// stream kinds, a byte payload. Once compressed the filter name and the
// encoded length live in the dictionary.
type Object struct {
	ID     ObjectID
	Kind   Kind
	Dict   *Dict
	Stream []byte
}

// New returns an object of the given kind with an empty dictionary.
func New(id ObjectID, kind Kind) *Object {
	return &Object{ID: id, Kind: kind, Dict: NewDict()}
}

// HasStream reports whether the object's kind carries a byte payload.
func (o *Object) HasStream() bool {
	switch o.Kind {
	case KindStream, KindContent, KindFontFile, KindToUnicode, KindImage:
		return true
	}
	return false
}

// SetStream stores the payload and records its length in the dictionary.
// The caller compresses first if desired and sets /Filter itself.
func (o *Object) SetStream(data []byte) {
	o.Stream = data
	o.Dict.Set("Length", Integer(len(data)))
}

// Encode renders the object through the serializer. The match over kinds is
// the single place object syntax is decided.
func (o *Object) Encode(s *serializer.Serializer) {
	s.Object(o.ID.Number, o.ID.Generation, func() {
		switch o.Kind {
		case KindDictionary, KindCatalog, KindPages, KindPage,
			KindFont, KindFontDescriptor, KindCIDFont, KindInfo:
			encodeDict(s, o.Dict)
		case KindStream, KindContent, KindFontFile, KindToUnicode, KindImage:
			encodeDict(s, o.Dict)
			s.BeginStream()
			s.StreamData(o.Stream)
			s.EndStream()
		}
	})
}

func encodeDict(s *serializer.Serializer, d *Dict) {
	s.Dict(func() {
		for _, key := range d.keys {
			s.Name(key)
			EncodeValue(s, d.m[key])
		}
	})
}

// EncodeValue renders a single value through the serializer.
func EncodeValue(s *serializer.Serializer, v Value) {
	switch val := v.(type) {
	case Name:
		s.Name(string(val))
	case Integer:
		s.Int(int64(val))
	case Real:
		s.Real(float64(val))
	case String:
		s.String(string(val))
	case HexString:
		s.HexString([]byte(val))
	case Ref:
		s.Ref(val.Number, val.Generation)
	case Array:
		s.Array(func() {
			for _, item := range val {
				EncodeValue(s, item)
			}
		})
	case *Dict:
		encodeDict(s, val)
	case Raw:
		s.Raw(string(val))
	}
}
