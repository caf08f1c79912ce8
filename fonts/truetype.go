package fonts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// SubsetTrueType reduces a TrueType program to the given glyph set. Glyph
// ids are retained: unused glyph outlines are dropped from glyf/loca but no
// glyph is renumbered, so glyph-id references encoded before subsetting stay
// valid. Fonts without the classic TrueType tables (CFF outlines) come back
// unchanged.
func SubsetTrueType(data []byte, used map[GlyphID]bool) ([]byte, error) {
	p := &sfntFile{data: data}
	if err := p.parseDirectory(); err != nil {
		return nil, err
	}
	for _, tag := range []string{"glyf", "loca", "head", "maxp", "hmtx", "hhea"} {
		if !p.hasTable(tag) {
			return data, nil
		}
	}

	head, err := p.table("head")
	if err != nil {
		return nil, err
	}
	if len(head) < 52 {
		return nil, fmt.Errorf("truetype: head table truncated")
	}
	locaFormat := int16(binary.BigEndian.Uint16(head[50:52]))

	maxp, err := p.table("maxp")
	if err != nil {
		return nil, err
	}
	if len(maxp) < 6 {
		return nil, fmt.Errorf("truetype: maxp table truncated")
	}
	numGlyphs := int(binary.BigEndian.Uint16(maxp[4:6]))

	// Glyph 0 (.notdef) always survives; composite glyphs pull in their
	// components.
	keep := map[int]bool{0: true}
	for g := range used {
		keep[int(g)] = true
	}
	if err := p.closeOverComposites(keep, numGlyphs, locaFormat); err != nil {
		return nil, fmt.Errorf("truetype: composite closure: %w", err)
	}

	newGlyf, newLoca, err := p.rebuildGlyfLoca(keep, numGlyphs, locaFormat)
	if err != nil {
		return nil, err
	}
	newHmtx, err := p.rebuildHmtx(numGlyphs)
	if err != nil {
		return nil, err
	}

	// The rebuilt loca always uses the long format; flip head accordingly.
	newHead := make([]byte, len(head))
	copy(newHead, head)
	binary.BigEndian.PutUint16(newHead[50:], 1)

	w := &sfntBuilder{}
	w.add("glyf", newGlyf)
	w.add("loca", newLoca)
	w.add("hmtx", newHmtx)
	w.add("head", newHead)

	// hmtx was rebuilt with explicit metrics for every glyph.
	if hhea, err := p.table("hhea"); err == nil && len(hhea) >= 36 {
		newHhea := make([]byte, len(hhea))
		copy(newHhea, hhea)
		binary.BigEndian.PutUint16(newHhea[34:], uint16(numGlyphs))
		w.add("hhea", newHhea)
	}

	carried := []string{"maxp", "cmap", "name", "OS/2", "post", "cvt ", "fpgm", "prep", "GSUB", "GPOS", "GDEF", "gasp"}
	for _, tag := range carried {
		if !p.hasTable(tag) {
			continue
		}
		tbl, err := p.table(tag)
		if err != nil {
			return nil, err
		}
		w.add(tag, tbl)
	}

	return w.assemble(), nil
}

// sfntFile reads the table directory of a TrueType program.
type sfntFile struct {
	data   []byte
	tables map[string]tableSpan
}

type tableSpan struct {
	offset uint32
	length uint32
}

func (p *sfntFile) parseDirectory() error {
	if len(p.data) < 12 {
		return fmt.Errorf("truetype: short font header")
	}
	numTables := int(binary.BigEndian.Uint16(p.data[4:6]))
	p.tables = make(map[string]tableSpan, numTables)

	offset := 12
	for i := 0; i < numTables; i++ {
		if offset+16 > len(p.data) {
			return fmt.Errorf("truetype: table directory truncated")
		}
		tag := string(p.data[offset : offset+4])
		p.tables[tag] = tableSpan{
			offset: binary.BigEndian.Uint32(p.data[offset+8 : offset+12]),
			length: binary.BigEndian.Uint32(p.data[offset+12 : offset+16]),
		}
		offset += 16
	}
	return nil
}

func (p *sfntFile) hasTable(tag string) bool {
	_, ok := p.tables[tag]
	return ok
}

func (p *sfntFile) table(tag string) ([]byte, error) {
	span, ok := p.tables[tag]
	if !ok {
		return nil, fmt.Errorf("truetype: table %s not found", tag)
	}
	if int64(span.offset)+int64(span.length) > int64(len(p.data)) {
		return nil, fmt.Errorf("truetype: table %s out of bounds", tag)
	}
	return p.data[span.offset : span.offset+span.length], nil
}

func (p *sfntFile) glyphSpan(loca []byte, locaFormat int16, gid int) (uint32, uint32) {
	if locaFormat == 0 {
		return uint32(binary.BigEndian.Uint16(loca[gid*2:])) * 2,
			uint32(binary.BigEndian.Uint16(loca[gid*2+2:])) * 2
	}
	return binary.BigEndian.Uint32(loca[gid*4:]), binary.BigEndian.Uint32(loca[gid*4+4:])
}

// closeOverComposites walks composite glyph components breadth-first, adding
// every referenced sub-glyph to keep.
func (p *sfntFile) closeOverComposites(keep map[int]bool, numGlyphs int, locaFormat int16) error {
	loca, err := p.table("loca")
	if err != nil {
		return err
	}
	glyf, err := p.table("glyf")
	if err != nil {
		return err
	}

	queue := make([]int, 0, len(keep))
	for gid := range keep {
		queue = append(queue, gid)
	}
	for len(queue) > 0 {
		gid := queue[0]
		queue = queue[1:]
		if gid >= numGlyphs {
			continue
		}
		start, end := p.glyphSpan(loca, locaFormat, gid)
		if start >= end || start+10 > uint32(len(glyf)) {
			continue
		}
		contours := int16(binary.BigEndian.Uint16(glyf[start : start+2]))
		if contours >= 0 {
			continue
		}

		offset := start + 10
		for {
			if offset+4 > uint32(len(glyf)) {
				break
			}
			flags := binary.BigEndian.Uint16(glyf[offset : offset+2])
			component := int(binary.BigEndian.Uint16(glyf[offset+2 : offset+4]))
			if !keep[component] {
				keep[component] = true
				queue = append(queue, component)
			}
			offset += 4
			if flags&0x0001 != 0 { // ARG_1_AND_2_ARE_WORDS
				offset += 4
			} else {
				offset += 2
			}
			switch {
			case flags&0x0008 != 0: // WE_HAVE_A_SCALE
				offset += 2
			case flags&0x0040 != 0: // WE_HAVE_AN_X_AND_Y_SCALE
				offset += 4
			case flags&0x0080 != 0: // WE_HAVE_A_TWO_BY_TWO
				offset += 8
			}
			if flags&0x0020 == 0 { // MORE_COMPONENTS
				break
			}
		}
	}
	return nil
}

// rebuildGlyfLoca writes a glyf table holding only the kept outlines and a
// long-format loca covering all numGlyphs entries, so unused glyphs become
// empty without renumbering anything.
func (p *sfntFile) rebuildGlyfLoca(keep map[int]bool, numGlyphs int, locaFormat int16) ([]byte, []byte, error) {
	loca, err := p.table("loca")
	if err != nil {
		return nil, nil, err
	}
	glyf, err := p.table("glyf")
	if err != nil {
		return nil, nil, err
	}

	var newGlyf bytes.Buffer
	offsets := make([]uint32, numGlyphs+1)
	current := uint32(0)
	for gid := 0; gid < numGlyphs; gid++ {
		offsets[gid] = current
		if !keep[gid] {
			continue
		}
		start, end := p.glyphSpan(loca, locaFormat, gid)
		if start < end && end <= uint32(len(glyf)) {
			newGlyf.Write(glyf[start:end])
			current += end - start
		}
	}
	offsets[numGlyphs] = current

	var newLoca bytes.Buffer
	for _, off := range offsets {
		binary.Write(&newLoca, binary.BigEndian, off)
	}
	return newGlyf.Bytes(), newLoca.Bytes(), nil
}

// rebuildHmtx gives every glyph an explicit advance/lsb pair, sidestepping
// the shared-advance tail of the original table.
func (p *sfntFile) rebuildHmtx(numGlyphs int) ([]byte, error) {
	hhea, err := p.table("hhea")
	if err != nil {
		return nil, err
	}
	if len(hhea) < 36 {
		return nil, fmt.Errorf("truetype: hhea table truncated")
	}
	numMetrics := int(binary.BigEndian.Uint16(hhea[34:36]))

	hmtx, err := p.table("hmtx")
	if err != nil {
		return nil, err
	}

	metric := func(gid int) (uint16, int16) {
		if gid < numMetrics && (gid+1)*4 <= len(hmtx) {
			adv := binary.BigEndian.Uint16(hmtx[gid*4:])
			lsb := int16(binary.BigEndian.Uint16(hmtx[gid*4+2:]))
			return adv, lsb
		}
		var lastAdv uint16
		if numMetrics > 0 && numMetrics*4 <= len(hmtx) {
			lastAdv = binary.BigEndian.Uint16(hmtx[(numMetrics-1)*4:])
		}
		lsbOffset := numMetrics*4 + (gid-numMetrics)*2
		var lsb int16
		if lsbOffset+2 <= len(hmtx) {
			lsb = int16(binary.BigEndian.Uint16(hmtx[lsbOffset:]))
		}
		return lastAdv, lsb
	}

	var out bytes.Buffer
	for gid := 0; gid < numGlyphs; gid++ {
		adv, lsb := metric(gid)
		binary.Write(&out, binary.BigEndian, adv)
		binary.Write(&out, binary.BigEndian, lsb)
	}
	return out.Bytes(), nil
}

// sfntBuilder assembles a font file from tables, computing the directory,
// per-table checksums, and the whole-file checksum adjustment.
type sfntBuilder struct {
	tables []namedTable
}

type namedTable struct {
	tag  string
	data []byte
}

func (w *sfntBuilder) add(tag string, data []byte) {
	w.tables = append(w.tables, namedTable{tag, data})
}

func (w *sfntBuilder) assemble() []byte {
	sort.Slice(w.tables, func(i, j int) bool { return w.tables[i].tag < w.tables[j].tag })

	numTables := len(w.tables)
	entrySelector := 0
	for (1 << (entrySelector + 1)) <= numTables {
		entrySelector++
	}
	searchRange := (1 << entrySelector) * 16
	rangeShift := numTables*16 - searchRange

	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x01, 0x00, 0x00}) // sfnt version 1.0
	binary.Write(&buf, binary.BigEndian, uint16(numTables))
	binary.Write(&buf, binary.BigEndian, uint16(searchRange))
	binary.Write(&buf, binary.BigEndian, uint16(entrySelector))
	binary.Write(&buf, binary.BigEndian, uint16(rangeShift))

	offset := 12 + 16*numTables
	for _, t := range w.tables {
		buf.WriteString(t.tag)
		binary.Write(&buf, binary.BigEndian, tableChecksum(t.data))
		binary.Write(&buf, binary.BigEndian, uint32(offset))
		binary.Write(&buf, binary.BigEndian, uint32(len(t.data)))
		offset += (len(t.data) + 3) &^ 3
	}

	tableOffsets := make(map[string]int, numTables)
	for _, t := range w.tables {
		tableOffsets[t.tag] = buf.Len()
		buf.Write(t.data)
		for pad := (4 - len(t.data)%4) % 4; pad > 0; pad-- {
			buf.WriteByte(0)
		}
	}

	out := buf.Bytes()
	if headOff, ok := tableOffsets["head"]; ok && headOff+12 <= len(out) {
		// Zero checkSumAdjustment, re-checksum head, then store the
		// whole-file adjustment.
		out[headOff+8], out[headOff+9], out[headOff+10], out[headOff+11] = 0, 0, 0, 0
		for i, t := range w.tables {
			if t.tag != "head" {
				continue
			}
			dirOff := 12 + 16*i
			length := binary.BigEndian.Uint32(out[dirOff+12 : dirOff+16])
			padded := (length + 3) &^ 3
			binary.BigEndian.PutUint32(out[dirOff+4:], tableChecksum(out[headOff:uint32(headOff)+padded]))
			break
		}
		adjustment := 0xB1B0AFBA - tableChecksum(out)
		binary.BigEndian.PutUint32(out[headOff+8:], adjustment)
	}
	return out
}

func tableChecksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i < len(data); i += 4 {
		if i+4 <= len(data) {
			sum += binary.BigEndian.Uint32(data[i:])
			continue
		}
		var tail [4]byte
		copy(tail[:], data[i:])
		sum += binary.BigEndian.Uint32(tail[:])
	}
	return sum
}
