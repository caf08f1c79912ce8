package fonts

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildTestFont assembles a four-glyph TrueType program: three simple
// outlines and one composite (glyph 3) referencing glyph 2. Long loca
// format, two explicit hmtx metrics with a shared-advance tail.
func buildTestFont(t *testing.T) []byte {
	t.Helper()

	simple := func(fill byte) []byte {
		g := make([]byte, 12)
		binary.BigEndian.PutUint16(g[0:], 1) // one contour
		for i := 10; i < 12; i++ {
			g[i] = fill
		}
		return g
	}
	var composite bytes.Buffer
	binary.Write(&composite, binary.BigEndian, int16(-1))
	composite.Write(make([]byte, 8)) // bbox
	binary.Write(&composite, binary.BigEndian, uint16(0x0001))
	binary.Write(&composite, binary.BigEndian, uint16(2)) // component glyph
	composite.Write(make([]byte, 4))                      // word args

	var glyf bytes.Buffer
	offsets := []uint32{0}
	for _, g := range [][]byte{simple(1), simple(2), simple(3), composite.Bytes()} {
		glyf.Write(g)
		offsets = append(offsets, uint32(glyf.Len()))
	}
	var loca bytes.Buffer
	for _, off := range offsets {
		binary.Write(&loca, binary.BigEndian, off)
	}

	head := make([]byte, 54)
	binary.BigEndian.PutUint16(head[50:], 1) // long loca

	maxp := make([]byte, 6)
	binary.BigEndian.PutUint16(maxp[4:], 4)

	hhea := make([]byte, 36)
	binary.BigEndian.PutUint16(hhea[34:], 2)

	hmtx := make([]byte, 2*4+2*2)
	binary.BigEndian.PutUint16(hmtx[0:], 500)
	binary.BigEndian.PutUint16(hmtx[4:], 600)

	b := &sfntBuilder{}
	b.add("glyf", glyf.Bytes())
	b.add("loca", loca.Bytes())
	b.add("head", head)
	b.add("maxp", maxp)
	b.add("hhea", hhea)
	b.add("hmtx", hmtx)
	return b.assemble()
}

func parseSubset(t *testing.T, data []byte) (*sfntFile, []byte, []byte) {
	t.Helper()
	p := &sfntFile{data: data}
	if err := p.parseDirectory(); err != nil {
		t.Fatalf("parse subset: %v", err)
	}
	loca, err := p.table("loca")
	if err != nil {
		t.Fatalf("loca: %v", err)
	}
	glyf, err := p.table("glyf")
	if err != nil {
		t.Fatalf("glyf: %v", err)
	}
	return p, loca, glyf
}

func locaSpan(loca []byte, gid int) (uint32, uint32) {
	return binary.BigEndian.Uint32(loca[gid*4:]), binary.BigEndian.Uint32(loca[gid*4+4:])
}

func TestSubsetTrueType_DropsUnusedKeepsIds(t *testing.T) {
	font := buildTestFont(t)
	out, err := SubsetTrueType(font, map[GlyphID]bool{1: true})
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	p, loca, _ := parseSubset(t, out)

	if len(loca) != 5*4 {
		t.Fatalf("loca length = %d, want 20 (all glyphs retained)", len(loca))
	}
	if s, e := locaSpan(loca, 0); e-s != 12 {
		t.Fatalf("glyph 0 span = %d, want 12", e-s)
	}
	if s, e := locaSpan(loca, 1); e-s != 12 {
		t.Fatalf("glyph 1 span = %d, want 12", e-s)
	}
	for gid := 2; gid < 4; gid++ {
		if s, e := locaSpan(loca, gid); s != e {
			t.Fatalf("unused glyph %d kept an outline (%d..%d)", gid, s, e)
		}
	}

	head, err := p.table("head")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if got := binary.BigEndian.Uint16(head[50:]); got != 1 {
		t.Fatalf("indexToLocFormat = %d, want 1", got)
	}
}

func TestSubsetTrueType_CompositeClosure(t *testing.T) {
	font := buildTestFont(t)
	out, err := SubsetTrueType(font, map[GlyphID]bool{3: true})
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	_, loca, _ := parseSubset(t, out)

	// The composite pulls in its component even though only glyph 3 was used.
	if s, e := locaSpan(loca, 2); s == e {
		t.Fatal("component glyph 2 was dropped")
	}
	if s, e := locaSpan(loca, 3); e-s != 18 {
		t.Fatalf("composite glyph span = %d, want 18", e-s)
	}
	if s, e := locaSpan(loca, 1); s != e {
		t.Fatal("unused glyph 1 kept an outline")
	}
}

func TestSubsetTrueType_ExplicitMetricsForEveryGlyph(t *testing.T) {
	font := buildTestFont(t)
	out, err := SubsetTrueType(font, map[GlyphID]bool{1: true})
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	p := &sfntFile{data: out}
	if err := p.parseDirectory(); err != nil {
		t.Fatalf("parse: %v", err)
	}
	hmtx, err := p.table("hmtx")
	if err != nil {
		t.Fatalf("hmtx: %v", err)
	}
	if len(hmtx) != 4*4 {
		t.Fatalf("hmtx length = %d, want 16", len(hmtx))
	}
	wantAdv := []uint16{500, 600, 600, 600} // tail glyphs share the last advance
	for gid, want := range wantAdv {
		if got := binary.BigEndian.Uint16(hmtx[gid*4:]); got != want {
			t.Errorf("glyph %d advance = %d, want %d", gid, got, want)
		}
	}
	hhea, err := p.table("hhea")
	if err != nil {
		t.Fatalf("hhea: %v", err)
	}
	if got := binary.BigEndian.Uint16(hhea[34:]); got != 4 {
		t.Fatalf("numberOfHMetrics = %d, want 4", got)
	}
}

func TestSubsetTrueType_ChecksumAdjustment(t *testing.T) {
	font := buildTestFont(t)
	out, err := SubsetTrueType(font, map[GlyphID]bool{1: true})
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	if got := tableChecksum(out); got != 0xB1B0AFBA {
		t.Fatalf("whole-file checksum = %#x, want 0xB1B0AFBA", got)
	}
}

func TestSubsetTrueType_NoGlyfPassesThrough(t *testing.T) {
	// CFF-flavored programs have no glyf/loca and must come back unchanged.
	b := &sfntBuilder{}
	b.add("CFF ", []byte{1, 0, 4, 4})
	b.add("head", make([]byte, 54))
	font := b.assemble()

	out, err := SubsetTrueType(font, map[GlyphID]bool{1: true})
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	if !bytes.Equal(out, font) {
		t.Fatal("CFF program was modified")
	}
}

func TestSfntBuilder_DirectoryOrderAndPadding(t *testing.T) {
	b := &sfntBuilder{}
	b.add("zzzz", []byte{1, 2, 3}) // needs 1 byte of padding
	b.add("aaaa", []byte{9})
	out := b.assemble()

	if got := binary.BigEndian.Uint16(out[4:]); got != 2 {
		t.Fatalf("numTables = %d, want 2", got)
	}
	if tag := string(out[12:16]); tag != "aaaa" {
		t.Fatalf("first directory tag = %q, want sorted order", tag)
	}
	firstOff := binary.BigEndian.Uint32(out[20:24])
	if firstOff%4 != 0 {
		t.Fatalf("table offset %d not aligned", firstOff)
	}
	if len(out)%4 != 0 {
		t.Fatalf("file length %d not padded", len(out))
	}
}
