package fonts

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// ShapedGlyph is one positioned glyph produced by shaping. Advances and
// offsets are in 1000-unit em space; multiply by size/1000 for points.
type ShapedGlyph struct {
	ID       GlyphID
	Cluster  int
	XAdvance float64
	YAdvance float64
	XOffset  float64
	YOffset  float64
}

// Shape turns a Unicode string into an ordered glyph sequence using the
// shaping engine. Ligatures and reordering are handled for scripts that need
// them; for plain Latin the result is one glyph per codepoint in original
// order.
func (m *Manager) Shape(name, text string) ([]ShapedGlyph, error) {
	lf, ok := m.fonts[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrFontNotAvailable)
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	script := detectScript(runes)

	shaper := &shaping.HarfbuzzShaper{}
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      lf.face,
		// 1 em = 1000 units in 26.6 fixed point, so outputs land directly
		// in the document's width unit.
		Size:     fixed.Int26_6(1000 * 64),
		Script:   script,
		Language: language.DefaultLanguage(),
	}
	output := shaper.Shape(input)

	result := make([]ShapedGlyph, 0, len(output.Glyphs))
	for _, g := range output.Glyphs {
		result = append(result, ShapedGlyph{
			ID:       GlyphID(g.GlyphID),
			Cluster:  g.ClusterIndex,
			XAdvance: float64(g.XAdvance) / 64.0,
			YAdvance: float64(g.YAdvance) / 64.0,
			XOffset:  float64(g.XOffset) / 64.0,
			YOffset:  float64(g.YOffset) / 64.0,
		})
	}
	return result, nil
}

// Segment is a maximal run of text whose codepoints share one class. The
// content encoder shows CJK runs with 2-byte glyph codes and the rest with
// single-byte codes; the two encodings cannot mix inside one show-text
// operation.
type Segment struct {
	Text string
	CJK  bool
}

// Classifier decides the segmentation class of a rune.
type Classifier func(rune) bool

// SplitSegments splits text into maximal runs of one class. The zero
// classifier is IsCJK.
func SplitSegments(text string, classify Classifier) []Segment {
	if classify == nil {
		classify = IsCJK
	}
	var segs []Segment
	var cur strings.Builder
	var curCJK bool
	for i, r := range text {
		c := classify(r)
		if i == 0 {
			curCJK = c
		}
		if c != curCJK {
			segs = append(segs, Segment{Text: cur.String(), CJK: curCJK})
			cur.Reset()
			curCJK = c
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		segs = append(segs, Segment{Text: cur.String(), CJK: curCJK})
	}
	return segs
}

// IsCJK reports whether r belongs to the CJK blocks: unified ideographs and
// extensions, compatibility ideographs, kana, hangul syllables, and CJK
// symbols/punctuation.
func IsCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // unified ideographs
		return true
	case r >= 0x3400 && r <= 0x4DBF: // extension A
		return true
	case r >= 0x20000 && r <= 0x2A6DF: // extension B
		return true
	case r >= 0xF900 && r <= 0xFAFF: // compatibility ideographs
		return true
	case r >= 0x3040 && r <= 0x30FF: // hiragana, katakana
		return true
	case r >= 0xAC00 && r <= 0xD7AF: // hangul syllables
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK symbols and punctuation
		return true
	case r >= 0x31C0 && r <= 0x31EF: // CJK strokes
		return true
	}
	return false
}

// ContainsCJK reports whether any rune of text is CJK.
func ContainsCJK(text string) bool {
	for _, r := range text {
		if IsCJK(r) {
			return true
		}
	}
	return false
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	best := language.Latin
	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > maxCount {
			maxCount = counts[script]
			best = script
		}
	}
	return best
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Thai, r):
		return language.Thai
	case unicode.Is(unicode.Devanagari, r):
		return language.Devanagari
	}
	return language.Unknown
}
