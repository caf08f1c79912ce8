// Package filters implements stream compression for the generator.
// FlateDecode (zlib format) is the only filter content streams and font
// programs need; the adaptive entry point skips compression when it cannot
// pay for itself.
package filters

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// FilterFlate is the filter name recorded in a stream dictionary when the
// payload is zlib-compressed.
const FilterFlate = "FlateDecode"

// Policy controls when Compress passes data through uncompressed.
type Policy struct {
	// MinSize is the smallest input worth compressing. Inputs below it are
	// passed through.
	MinSize int
	// MaxRatio is the largest acceptable compressed/original ratio. A result
	// above it is discarded in favor of the original bytes.
	MaxRatio float64
	// Level is the flate compression level. Zero means zlib.DefaultCompression.
	Level int
}

// DefaultPolicy matches the generator's defaults: skip tiny payloads and
// keep a compressed form only when it saves at least 10%.
func DefaultPolicy() Policy {
	return Policy{MinSize: 64, MaxRatio: 0.9, Level: zlib.DefaultCompression}
}

// Result is the outcome of one compression decision. Filter is empty when
// the data passed through unchanged.
type Result struct {
	Data           []byte
	Filter         string
	OriginalSize   int
	CompressedSize int
	Ratio          float64
}

// Compress applies the policy to data. It never fails on ordinary input:
// when compression is skipped or not beneficial the original bytes come back
// with an empty filter name.
func Compress(data []byte, p Policy) (Result, error) {
	res := Result{
		Data:         data,
		OriginalSize: len(data),
		Ratio:        1.0,
	}
	res.CompressedSize = len(data)
	if len(data) < p.MinSize {
		return res, nil
	}

	compressed, err := Deflate(data, p.Level)
	if err != nil {
		return Result{}, fmt.Errorf("flate compress: %w", err)
	}
	ratio := float64(len(compressed)) / float64(len(data))
	maxRatio := p.MaxRatio
	if maxRatio <= 0 {
		maxRatio = 1.0
	}
	if ratio > maxRatio {
		return res, nil
	}

	res.Data = compressed
	res.Filter = FilterFlate
	res.CompressedSize = len(compressed)
	res.Ratio = ratio
	return res, nil
}

// Deflate compresses data unconditionally at the given level.
func Deflate(data []byte, level int) ([]byte, error) {
	if level == 0 {
		level = zlib.DefaultCompression
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Inflate is the exact inverse of Deflate: it reproduces the original bytes.
func Inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flate decompress: %w", err)
	}
	defer zr.Close()
	var out bytes.Buffer
	if _, err := io.Copy(&out, zr); err != nil {
		return nil, fmt.Errorf("flate decompress: %w", err)
	}
	return out.Bytes(), nil
}

// Decode reverses a Result: a named Flate filter is inflated, anything else
// passes through.
func Decode(data []byte, filter string) ([]byte, error) {
	switch filter {
	case "":
		return data, nil
	case FilterFlate:
		return Inflate(data)
	default:
		return nil, fmt.Errorf("unknown filter %q", filter)
	}
}
