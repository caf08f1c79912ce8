package content

import (
	"errors"
	"strings"
	"testing"

	"github.com/officekit/pdfgen/fonts"
)

func simpleFont() FontRef {
	return FontRef{Resource: "F1"}
}

func compositeFont(recorded *[]string) FontRef {
	return FontRef{
		Resource:  "F2",
		Composite: true,
		GlyphForRune: func(r rune) fonts.GlyphID {
			// Deterministic fake glyph ids for encoding checks.
			return fonts.GlyphID(r % 1000)
		},
		RecordUsage: func(text string) {
			if recorded != nil {
				*recorded = append(*recorded, text)
			}
		},
	}
}

func finalize(t *testing.T, p *Page) string {
	t.Helper()
	data, err := p.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return string(data)
}

func TestPage_SimpleTextOperators(t *testing.T) {
	p := NewPage(595, 842)
	p.BeginText()
	p.SetFont(simpleFont(), 12)
	p.SetTextPosition(72, 720)
	p.ShowText("Hello (world)")
	p.EndText()

	got := finalize(t, p)
	want := "BT\n/F1 12 Tf\n72 720 Td\n(Hello \\(world\\)) Tj\nET\n"
	if got != want {
		t.Fatalf("content = %q\nwant %q", got, want)
	}
}

func TestPage_CompositeTextSegmentsByClass(t *testing.T) {
	var recorded []string
	p := NewPage(595, 842)
	p.BeginText()
	p.SetFont(compositeFont(&recorded), 14)
	p.SetTextPosition(72, 700)
	p.ShowText("Hi 世界")
	p.EndText()

	got := finalize(t, p)
	if !strings.Contains(got, "(Hi ) Tj") {
		t.Fatalf("latin run not shown as literal string: %q", got)
	}
	// 世 = U+4E16 = 19990 → glyph 990; 界 = U+754C = 30028 → glyph 28.
	if !strings.Contains(got, "<03DE001C> Tj") {
		t.Fatalf("cjk run not shown as hex glyph ids: %q", got)
	}
	if len(recorded) != 1 || recorded[0] != "Hi 世界" {
		t.Fatalf("usage recording = %v, want full string once", recorded)
	}
}

func TestPage_UsageRecordedBeforeEncoding(t *testing.T) {
	var recorded []string
	p := NewPage(200, 200)
	p.BeginText()
	p.SetFont(compositeFont(&recorded), 10)
	p.ShowText("abc")
	p.ShowText("abc")
	p.EndText()

	if len(recorded) != 2 {
		t.Fatalf("usage recorded %d times, want every show call", len(recorded))
	}
}

func TestPage_TextOperatorOutsideTextObject(t *testing.T) {
	p := NewPage(200, 200)
	p.ShowText("orphan")
	if _, err := p.Finalize(); !errors.Is(err, ErrTextStateViolation) {
		t.Fatalf("err = %v, want text state violation", err)
	}
}

func TestPage_NestedBeginTextFails(t *testing.T) {
	p := NewPage(200, 200)
	p.BeginText()
	p.BeginText()
	p.EndText()
	if _, err := p.Finalize(); !errors.Is(err, ErrTextStateViolation) {
		t.Fatalf("err = %v, want text state violation", err)
	}
}

func TestPage_OpenTextObjectAtFinalize(t *testing.T) {
	p := NewPage(200, 200)
	p.BeginText()
	if _, err := p.Finalize(); !errors.Is(err, ErrTextStateViolation) {
		t.Fatalf("err = %v, want text state violation", err)
	}
}

func TestPage_ShowTextBeforeSetFont(t *testing.T) {
	p := NewPage(200, 200)
	p.BeginText()
	p.ShowText("no font")
	p.EndText()
	if _, err := p.Finalize(); !errors.Is(err, ErrTextStateViolation) {
		t.Fatalf("err = %v, want text state violation", err)
	}
}

func TestPage_GraphicsStateBalance(t *testing.T) {
	p := NewPage(200, 200)
	p.SaveGraphicsState()
	p.SaveGraphicsState()
	p.RestoreGraphicsState()
	if got := p.GraphicsStateDepth(); got != 1 {
		t.Fatalf("depth = %d, want 1", got)
	}
	if _, err := p.Finalize(); !errors.Is(err, ErrUnbalancedGraphicsState) {
		t.Fatalf("err = %v, want unbalanced state", err)
	}
}

func TestPage_RestoreBelowZeroLatches(t *testing.T) {
	p := NewPage(200, 200)
	p.RestoreGraphicsState()
	p.SaveGraphicsState()
	p.RestoreGraphicsState()
	if _, err := p.Finalize(); !errors.Is(err, ErrUnbalancedGraphicsState) {
		t.Fatalf("err = %v, want latched unbalance", err)
	}
}

func TestPage_PathAndColorOperators(t *testing.T) {
	p := NewPage(300, 300)
	p.SetFillColor(1, 0, 0.5)
	p.SetLineWidth(2)
	p.Rectangle(10, 20, 100, 50)
	p.Fill()
	p.MoveTo(0, 0)
	p.LineTo(50, 50)
	p.ClosePath()
	p.Stroke()

	got := finalize(t, p)
	want := "1 0 0.5 rg\n2 w\n10 20 100 50 re\nf\n0 0 m\n50 50 l\nh\nS\n"
	if got != want {
		t.Fatalf("content = %q\nwant %q", got, want)
	}
}

func TestPage_DrawImageWrapsInStateSave(t *testing.T) {
	p := NewPage(300, 300)
	p.DrawImage("Im1", 10, 20, 120, 80)
	got := finalize(t, p)
	want := "q\n120 0 0 80 10 20 cm\n/Im1 Do\nQ\n"
	if got != want {
		t.Fatalf("content = %q\nwant %q", got, want)
	}
	if p.GraphicsStateDepth() != 0 {
		t.Fatal("DrawImage leaked graphics state")
	}
}

func TestPage_EmptyShowTextIsNoop(t *testing.T) {
	p := NewPage(100, 100)
	p.BeginText()
	p.SetFont(simpleFont(), 9)
	before := p.ContentLen()
	p.ShowText("")
	if p.ContentLen() != before {
		t.Fatal("empty text produced output")
	}
	p.EndText()
	if _, err := p.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
}
