// Package content encodes page drawing calls into the content-stream
// mini-language. Each page owns its token buffer, a text-object state
// machine, and a graphics-state depth counter that must return to zero
// before the page can be serialized.
package content

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"github.com/officekit/pdfgen/coords"
	"github.com/officekit/pdfgen/fonts"
	"github.com/officekit/pdfgen/sink"
)

// ErrUnbalancedGraphicsState reports a page whose q/Q depth is not zero at
// finalization. This is a defect in the calling code, surfaced at save time
// rather than silently written out.
var ErrUnbalancedGraphicsState = errors.New("unbalanced graphics state")

// ErrTextStateViolation reports a text operator used outside a text object
// or an unmatched BeginText/EndText pair.
var ErrTextStateViolation = errors.New("text operator outside text object")

// FontRef is everything the encoder needs to know about a selected font.
// Composite fonts address glyphs by 2-byte glyph id; simple fonts by
// single-byte code.
type FontRef struct {
	Resource  string
	Composite bool
	// GlyphForRune resolves a codepoint to the font's glyph id. Required for
	// composite fonts; the encoder records the id it writes.
	GlyphForRune func(rune) fonts.GlyphID
	// RecordUsage is called with every string shown in this font, before
	// encoding, so the subsetting pass sees the full codepoint set.
	RecordUsage func(string)
}

// Page is one page under construction: a size, an ordered token buffer, and
// the encoder state. A Page does not know its object number; the save pass
// assigns one when the page tree is materialized.
type Page struct {
	Width  float64
	Height float64

	buf      bytes.Buffer
	inText   bool
	gsDepth  int
	font     FontRef
	fontSet  bool
	classify fonts.Classifier
	err      error
}

// NewPage returns an empty page of the given size in points.
func NewPage(width, height float64) *Page {
	return &Page{Width: width, Height: height}
}

// SetClassifier overrides the codepoint class used to segment mixed-script
// text. The default treats CJK as the composite class.
func (p *Page) SetClassifier(c fonts.Classifier) { p.classify = c }

// Err returns the first recorded encoding error.
func (p *Page) Err() error { return p.err }

func (p *Page) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *Page) op(operands string, operator string) {
	if operands != "" {
		p.buf.WriteString(operands)
		p.buf.WriteByte(' ')
	}
	p.buf.WriteString(operator)
	p.buf.WriteByte('\n')
}

func f(v float64) string { return sink.FormatFloat(v) }

// SaveGraphicsState pushes the graphics state (q).
func (p *Page) SaveGraphicsState() {
	p.op("", "q")
	p.gsDepth++
}

// RestoreGraphicsState pops the graphics state (Q). Popping below depth
// zero is recorded as a fatal finalization error.
func (p *Page) RestoreGraphicsState() {
	if p.gsDepth == 0 {
		p.fail(fmt.Errorf("%w: restore below depth zero", ErrUnbalancedGraphicsState))
		return
	}
	p.op("", "Q")
	p.gsDepth--
}

// GraphicsStateDepth reports the current q/Q nesting depth.
func (p *Page) GraphicsStateDepth() int { return p.gsDepth }

// Transform concatenates m onto the current transformation matrix (cm).
func (p *Page) Transform(m coords.Matrix) {
	p.op(fmt.Sprintf("%s %s %s %s %s %s", f(m[0]), f(m[1]), f(m[2]), f(m[3]), f(m[4]), f(m[5])), "cm")
}

// Translate moves the origin by (dx, dy).
func (p *Page) Translate(dx, dy float64) { p.Transform(coords.Translate(dx, dy)) }

// Scale scales user space by (sx, sy).
func (p *Page) Scale(sx, sy float64) { p.Transform(coords.Scale(sx, sy)) }

// Rotate rotates user space by angle radians.
func (p *Page) Rotate(angle float64) { p.Transform(coords.Rotate(angle)) }

// BeginText opens a text object (BT). Text objects cannot nest.
func (p *Page) BeginText() {
	if p.inText {
		p.fail(fmt.Errorf("%w: nested BeginText", ErrTextStateViolation))
		return
	}
	p.op("", "BT")
	p.inText = true
}

// EndText closes the text object (ET).
func (p *Page) EndText() {
	if !p.inText {
		p.fail(fmt.Errorf("%w: EndText without BeginText", ErrTextStateViolation))
		return
	}
	p.op("", "ET")
	p.inText = false
}

// SetFont selects the font and size for subsequent text (Tf).
func (p *Page) SetFont(ref FontRef, size float64) {
	if !p.inText {
		p.fail(fmt.Errorf("%w: SetFont", ErrTextStateViolation))
		return
	}
	p.font = ref
	p.fontSet = true
	p.op(fmt.Sprintf("/%s %s", ref.Resource, f(size)), "Tf")
}

// SetTextPosition sets the text-line origin (Td).
func (p *Page) SetTextPosition(x, y float64) {
	if !p.inText {
		p.fail(fmt.Errorf("%w: SetTextPosition", ErrTextStateViolation))
		return
	}
	p.op(fmt.Sprintf("%s %s", f(x), f(y)), "Td")
}

// MoveTextPosition moves the text-line origin by (dx, dy) (Td).
func (p *Page) MoveTextPosition(dx, dy float64) {
	p.SetTextPosition(dx, dy)
}

// ShowText shows text in the current font. Mixed-script input is segmented
// into maximal runs of one codepoint class; each run uses the encoding its
// class requires, because byte codes and hex glyph ids cannot mix inside one
// show operation.
func (p *Page) ShowText(text string) {
	if !p.inText {
		p.fail(fmt.Errorf("%w: ShowText", ErrTextStateViolation))
		return
	}
	if !p.fontSet {
		p.fail(fmt.Errorf("%w: ShowText before SetFont", ErrTextStateViolation))
		return
	}
	if text == "" {
		return
	}
	if p.font.RecordUsage != nil {
		p.font.RecordUsage(text)
	}

	if !p.font.Composite {
		p.showSimple(text)
		return
	}
	for _, seg := range fonts.SplitSegments(text, p.classify) {
		if seg.CJK {
			p.showGlyphs(seg.Text)
		} else {
			p.showSimple(seg.Text)
		}
	}
}

// showSimple writes a literal string of single-byte codes (WinAnsi).
func (p *Page) showSimple(text string) {
	encoded, err := charmap.Windows1252.NewEncoder().String(text)
	if err != nil {
		// Unmappable runes degrade to the encoder's replacement; the font's
		// coverage query is the caller's tool for avoiding this.
		encoded = text
	}
	p.op("("+escapeString(encoded)+")", "Tj")
}

// showGlyphs writes a hex string of 2-byte glyph ids.
func (p *Page) showGlyphs(text string) {
	if p.font.GlyphForRune == nil {
		p.fail(fmt.Errorf("composite font %s has no glyph resolver", p.font.Resource))
		return
	}
	var hex bytes.Buffer
	for _, r := range text {
		g := p.font.GlyphForRune(r)
		fmt.Fprintf(&hex, "%04X", uint16(g))
	}
	p.op("<"+hex.String()+">", "Tj")
}

// SetTextColor sets the non-stroking color for text (rg).
func (p *Page) SetTextColor(r, g, b float64) { p.SetFillColor(r, g, b) }

// SetFillColor sets the non-stroking color (rg).
func (p *Page) SetFillColor(r, g, b float64) {
	p.op(fmt.Sprintf("%s %s %s", f(r), f(g), f(b)), "rg")
}

// SetStrokeColor sets the stroking color (RG).
func (p *Page) SetStrokeColor(r, g, b float64) {
	p.op(fmt.Sprintf("%s %s %s", f(r), f(g), f(b)), "RG")
}

// SetLineWidth sets the stroke width (w).
func (p *Page) SetLineWidth(width float64) {
	p.op(f(width), "w")
}

// MoveTo begins a new subpath (m).
func (p *Page) MoveTo(x, y float64) {
	p.op(fmt.Sprintf("%s %s", f(x), f(y)), "m")
}

// LineTo appends a line segment (l).
func (p *Page) LineTo(x, y float64) {
	p.op(fmt.Sprintf("%s %s", f(x), f(y)), "l")
}

// Rectangle appends a rectangle subpath (re).
func (p *Page) Rectangle(x, y, width, height float64) {
	p.op(fmt.Sprintf("%s %s %s %s", f(x), f(y), f(width), f(height)), "re")
}

// ClosePath closes the current subpath (h).
func (p *Page) ClosePath() { p.op("", "h") }

// Stroke strokes the path (S).
func (p *Page) Stroke() { p.op("", "S") }

// Fill fills the path (f).
func (p *Page) Fill() { p.op("", "f") }

// FillAndStroke fills then strokes the path (B).
func (p *Page) FillAndStroke() { p.op("", "B") }

// DrawImage paints the named image XObject into the unit square mapped to
// the given rectangle. The surrounding q/Q keeps the transform local.
func (p *Page) DrawImage(resource string, x, y, width, height float64) {
	p.SaveGraphicsState()
	p.Transform(coords.Matrix{width, 0, 0, height, x, y})
	p.op("/"+resource, "Do")
	p.RestoreGraphicsState()
}

// Finalize validates the page's terminal state and returns the finished
// token buffer. A non-zero graphics depth or an open text object is fatal.
func (p *Page) Finalize() ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.gsDepth != 0 {
		return nil, fmt.Errorf("%w: depth %d at finalization", ErrUnbalancedGraphicsState, p.gsDepth)
	}
	if p.inText {
		return nil, fmt.Errorf("%w: text object left open", ErrTextStateViolation)
	}
	return p.buf.Bytes(), nil
}

// ContentLen reports the current size of the token buffer.
func (p *Page) ContentLen() int { return p.buf.Len() }

func escapeString(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
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
