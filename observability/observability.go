// Package observability defines the logging and metrics hooks the generator
// components accept. There is no process-global state: a Logger or Metrics
// instance is constructed per document-build session and passed to the
// components that need it.
package observability

// Logger is the structured logging interface threaded through the writer and
// the font pipeline.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field is one structured log attribute.
type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type int64Field struct {
	key string
	val int64
}

func (f int64Field) Key() string        { return f.key }
func (f int64Field) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field      { return stringField{key, value} }
func Int(key string, value int) Field     { return intField{key, value} }
func Int64(key string, value int64) Field { return int64Field{key, value} }
func Error(key string, err error) Field   { return errorField{key, err} }

// NopLogger discards everything. It is the default for every component.
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// Metrics receives counter and gauge updates from the generator.
type Metrics interface {
	Observe(name string, value float64)
	Count(name string, delta int64)
}

type nopMetrics struct{}

func (nopMetrics) Observe(string, float64) {}
func (nopMetrics) Count(string, int64)     {}

// NopMetrics returns a Metrics sink that discards everything.
func NopMetrics() Metrics { return nopMetrics{} }

// Standard metric names emitted by the generator.
const (
	MetricObjectCount    = "pdfgen.objects.count"
	MetricPageCount      = "pdfgen.pages.count"
	MetricOutputBytes    = "pdfgen.output.bytes"
	MetricCompressedIn   = "pdfgen.compress.input.bytes"
	MetricCompressedOut  = "pdfgen.compress.output.bytes"
	MetricSubsetOriginal = "pdfgen.subset.original.bytes"
	MetricSubsetFinal    = "pdfgen.subset.final.bytes"
	MetricGlyphCacheHits = "pdfgen.glyphcache.hits"
)
