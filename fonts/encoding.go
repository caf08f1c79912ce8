package fonts

import (
	"bytes"
	"fmt"
	"sort"
)

// The encoding tables below are generated from a finalized font's used
// codepoint set. Both use the composite code space — 2-byte glyph ids —
// which is the same space the content encoder writes, so width lookup and
// text extraction agree with rendering.

// WidthEntry pairs a glyph id with its advance in 1000-unit em space.
type WidthEntry struct {
	Glyph GlyphID
	Width float64
}

// WidthEntries returns one entry per used glyph (glyph 0 included), sorted
// by glyph id. Codepoints the font does not cover are dropped; they render
// as the missing glyph regardless.
func WidthEntries(m *Manager, name string, used []rune) ([]WidthEntry, error) {
	glyphs := map[GlyphID]bool{0: true}
	for _, r := range used {
		g, err := m.GlyphForRune(name, r)
		if err != nil {
			return nil, err
		}
		if g != 0 {
			glyphs[g] = true
		}
	}

	entries := make([]WidthEntry, 0, len(glyphs))
	for g := range glyphs {
		w, err := m.GlyphWidth1000(name, g)
		if err != nil {
			return nil, err
		}
		entries = append(entries, WidthEntry{Glyph: g, Width: w})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Glyph < entries[j].Glyph })
	return entries, nil
}

// ToUnicodeCMap renders the CMap stream mapping 2-byte glyph codes back to
// the Unicode codepoints they came from, so copy/paste and search recover
// the original text.
func ToUnicodeCMap(m *Manager, name string, used []rune) ([]byte, error) {
	type mapping struct {
		glyph GlyphID
		r     rune
	}
	var mappings []mapping
	for _, r := range used {
		g, err := m.GlyphForRune(name, r)
		if err != nil {
			return nil, err
		}
		if g != 0 {
			mappings = append(mappings, mapping{glyph: g, r: r})
		}
	}
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].glyph < mappings[j].glyph })

	var buf bytes.Buffer
	buf.WriteString(`/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo
<< /Registry (Adobe)
/Ordering (UCS)
/Supplement 0
>> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
`)

	// bfchar sections hold at most 100 entries each.
	for start := 0; start < len(mappings); start += 100 {
		end := start + 100
		if end > len(mappings) {
			end = len(mappings)
		}
		fmt.Fprintf(&buf, "%d beginbfchar\n", end-start)
		for _, mp := range mappings[start:end] {
			if mp.r <= 0xFFFF {
				fmt.Fprintf(&buf, "<%04X> <%04X>\n", uint16(mp.glyph), uint16(mp.r))
				continue
			}
			// Supplementary planes need a UTF-16 surrogate pair.
			v := mp.r - 0x10000
			hi := 0xD800 + (v >> 10)
			lo := 0xDC00 + (v & 0x3FF)
			fmt.Fprintf(&buf, "<%04X> <%04X%04X>\n", uint16(mp.glyph), uint16(hi), uint16(lo))
		}
		buf.WriteString("endbfchar\n")
	}

	buf.WriteString(`endcmap
CMapName currentdict /CMap defineresource pop
end
end
`)
	return buf.Bytes(), nil
}
