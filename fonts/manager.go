// Package fonts implements the font resource pipeline: loading font
// programs, measuring and shaping text, tracking which codepoints a document
// actually uses, and reducing embedded programs to the glyphs those
// codepoints need.
package fonts

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"

	gofont "github.com/go-text/typesetting/font"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/officekit/pdfgen/observability"
)

// ErrFontNotAvailable reports a font that could not be loaded or was never
// registered. Callers can recover by choosing a fallback font.
var ErrFontNotAvailable = errors.New("font not available")

// GlyphID identifies a glyph inside one font program. 0 is the missing-glyph
// placeholder, not an error.
type GlyphID uint16

// Metrics carries the design-space measurements of a loaded font, rescaled
// to a 1000-unit em.
type Metrics struct {
	UnitsPerEm  int
	Ascent      float64
	Descent     float64
	CapHeight   float64
	ItalicAngle float64
	BBox        [4]float64
}

type loadedFont struct {
	name string
	data []byte
	sf   *sfnt.Font
	face *gofont.Face
	upem sfnt.Units

	glyphs map[rune]GlyphID
	// advance widths in 1000-unit em space, keyed by glyph id
	advances map[GlyphID]float64
	metrics  Metrics
}

// Manager loads font programs and answers glyph, metric, and shaping
// queries. Lookups are memoized per (font, rune) and (font, glyph); the same
// cache feeds both content encoding and subsetting so the two cannot
// disagree.
type Manager struct {
	Logger  observability.Logger
	Metrics observability.Metrics

	fonts map[string]*loadedFont
}

// NewManager returns an empty Manager with nop logging and metrics.
func NewManager() *Manager {
	return &Manager{
		Logger:  observability.NopLogger{},
		Metrics: observability.NopMetrics(),
		fonts:   make(map[string]*loadedFont),
	}
}

// Load parses a font program and registers it under name. Loading the same
// name again replaces the previous program and drops its caches.
func (m *Manager) Load(name string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("load %s: empty font data: %w", name, ErrFontNotAvailable)
	}
	sf, err := sfnt.Parse(data)
	if err != nil {
		return fmt.Errorf("load %s: %v: %w", name, err, ErrFontNotAvailable)
	}
	face, err := gofont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("load %s: %v: %w", name, err, ErrFontNotAvailable)
	}
	upem := sf.UnitsPerEm()
	if upem == 0 {
		return fmt.Errorf("load %s: invalid unitsPerEm: %w", name, ErrFontNotAvailable)
	}

	lf := &loadedFont{
		name:     name,
		data:     data,
		sf:       sf,
		face:     face,
		upem:     upem,
		glyphs:   make(map[rune]GlyphID),
		advances: make(map[GlyphID]float64),
	}
	lf.metrics = readMetrics(sf, upem)
	m.fonts[name] = lf

	m.Logger.Debug("font loaded",
		observability.String("font", name),
		observability.Int("bytes", len(data)),
		observability.Int("unitsPerEm", int(upem)))
	return nil
}

// LoadFile reads a font program from path and registers it under name.
func (m *Manager) LoadFile(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load %s from %s: %v: %w", name, path, err, ErrFontNotAvailable)
	}
	return m.Load(name, data)
}

// Loaded reports whether name has been registered.
func (m *Manager) Loaded(name string) bool {
	_, ok := m.fonts[name]
	return ok
}

// Program returns the original program bytes for name.
func (m *Manager) Program(name string) ([]byte, error) {
	lf, ok := m.fonts[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrFontNotAvailable)
	}
	return lf.data, nil
}

// GlyphForRune maps a codepoint to the font's glyph id. 0 means the font
// does not cover r.
func (m *Manager) GlyphForRune(name string, r rune) (GlyphID, error) {
	lf, ok := m.fonts[name]
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, ErrFontNotAvailable)
	}
	if g, ok := lf.glyphs[r]; ok {
		m.Metrics.Count(observability.MetricGlyphCacheHits, 1)
		return g, nil
	}
	var buf sfnt.Buffer
	idx, err := lf.sf.GlyphIndex(&buf, r)
	if err != nil {
		idx = 0
	}
	g := GlyphID(idx)
	lf.glyphs[r] = g
	return g, nil
}

// AdvanceWidth returns the horizontal advance of a glyph at the given point
// size. Widths are cached per (font, glyph) in design space because the same
// glyph is requeried for every occurrence in content.
func (m *Manager) AdvanceWidth(name string, g GlyphID, size float64) (float64, error) {
	lf, ok := m.fonts[name]
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, ErrFontNotAvailable)
	}
	w, err := lf.advance1000(g)
	if err != nil {
		return 0, err
	}
	return w * size / 1000.0, nil
}

// GlyphWidth1000 returns the advance of a glyph in 1000-unit em space, the
// unit the document's width arrays use.
func (m *Manager) GlyphWidth1000(name string, g GlyphID) (float64, error) {
	lf, ok := m.fonts[name]
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, ErrFontNotAvailable)
	}
	return lf.advance1000(g)
}

// TextWidth measures text at the given point size as the sum of shaped glyph
// advances.
func (m *Manager) TextWidth(name, text string, size float64) (float64, error) {
	shaped, err := m.Shape(name, text)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, g := range shaped {
		total += g.XAdvance
	}
	return total * size / 1000.0, nil
}

// FontMetrics returns the loaded font's design metrics.
func (m *Manager) FontMetrics(name string) (Metrics, error) {
	lf, ok := m.fonts[name]
	if !ok {
		return Metrics{}, fmt.Errorf("%s: %w", name, ErrFontNotAvailable)
	}
	return lf.metrics, nil
}

// Covers reports the runes of text the font has no glyph for. An empty
// result means full coverage.
func (m *Manager) Covers(name, text string) ([]rune, error) {
	var missing []rune
	seen := make(map[rune]bool)
	for _, r := range text {
		if seen[r] {
			continue
		}
		seen[r] = true
		g, err := m.GlyphForRune(name, r)
		if err != nil {
			return nil, err
		}
		if g == 0 {
			missing = append(missing, r)
		}
	}
	return missing, nil
}

// ClearCaches drops the per-font memoizations. Cached values are pure
// functions of (font, input), so clearing has no ordering effects.
func (m *Manager) ClearCaches() {
	for _, lf := range m.fonts {
		lf.glyphs = make(map[rune]GlyphID)
		lf.advances = make(map[GlyphID]float64)
	}
}

func (lf *loadedFont) advance1000(g GlyphID) (float64, error) {
	if w, ok := lf.advances[g]; ok {
		return w, nil
	}
	var buf sfnt.Buffer
	ppem := fixed.Int26_6(int32(lf.upem) << 6)
	adv, err := lf.sf.GlyphAdvance(&buf, sfnt.GlyphIndex(g), ppem, xfont.HintingNone)
	if err != nil {
		return 0, fmt.Errorf("advance for glyph %d in %s: %w", g, lf.name, err)
	}
	w := scaleToEm1000(adv, lf.upem)
	lf.advances[g] = w
	return w, nil
}

func readMetrics(sf *sfnt.Font, upem sfnt.Units) Metrics {
	var buf sfnt.Buffer
	ppem := fixed.Int26_6(int32(upem) << 6)
	met := Metrics{UnitsPerEm: int(upem)}

	if fm, err := sf.Metrics(&buf, ppem, xfont.HintingNone); err == nil {
		met.Ascent = scaleToEm1000(fm.Ascent, upem)
		met.Descent = -scaleToEm1000(fm.Descent, upem)
		met.CapHeight = scaleToEm1000(fm.CapHeight, upem)
	}
	if bounds, err := sf.Bounds(&buf, ppem, xfont.HintingNone); err == nil {
		met.BBox = [4]float64{
			scaleToEm1000(bounds.Min.X, upem),
			scaleToEm1000(bounds.Min.Y, upem),
			scaleToEm1000(bounds.Max.X, upem),
			scaleToEm1000(bounds.Max.Y, upem),
		}
	}
	if post := sf.PostTable(); post != nil {
		met.ItalicAngle = post.ItalicAngle
	}
	return met
}

// scaleToEm1000 rescales a fixed-point value measured at upem pixels per em
// into a 1000-unit em.
func scaleToEm1000(v fixed.Int26_6, upem sfnt.Units) float64 {
	return math.Round(float64(v)*1000.0/(64.0*float64(upem))*100) / 100
}
