package writer

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/officekit/pdfgen/content"
	"github.com/officekit/pdfgen/filters"
	"github.com/officekit/pdfgen/fonts"
	"github.com/officekit/pdfgen/objects"
	"github.com/officekit/pdfgen/observability"
	"github.com/officekit/pdfgen/serializer"
	"github.com/officekit/pdfgen/sink"
	"github.com/officekit/pdfgen/xref"
)

// SaveToBuffer finalizes the document and returns the complete file bytes.
// The sequence is fixed: pages finalize first, then the subsetting pass runs
// over the accumulated usage sets, then the object graph is materialized and
// serialized. Any page or resource error aborts before a single output byte
// is produced.
func (w *Writer) SaveToBuffer() ([]byte, error) {
	if w.saved {
		return nil, ErrAlreadySaved
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	contents := make([][]byte, len(w.pages))
	for i, p := range w.pages {
		data, err := p.Finalize()
		if err != nil {
			return nil, fmt.Errorf("finalize page %d: %w", i+1, err)
		}
		contents[i] = data
	}

	w.planner.Logger = w.Logger
	w.planner.Metrics = w.Metrics
	if _, err := w.planner.PerformSubsetting(w.fonts); err != nil {
		return nil, fmt.Errorf("subset fonts: %w", err)
	}

	if err := w.materialize(contents); err != nil {
		return nil, err
	}
	w.saved = true

	out := sink.NewBuffer()
	if err := w.serialize(out); err != nil {
		return nil, err
	}
	data := out.Bytes()

	w.Metrics.Count(observability.MetricObjectCount, int64(len(w.objects)))
	w.Metrics.Count(observability.MetricPageCount, int64(len(w.pages)))
	w.Metrics.Observe(observability.MetricOutputBytes, float64(len(data)))
	w.Logger.Info("document saved",
		observability.Int("pages", len(w.pages)),
		observability.Int("objects", len(w.objects)),
		observability.Int("bytes", len(data)))
	return data, nil
}

// SaveToFile writes the finalized document atomically to path.
func (w *Writer) SaveToFile(path string) error {
	data, err := w.SaveToBuffer()
	if err != nil {
		return err
	}
	return sink.WriteFile(path, data)
}

// materialize turns pages, fonts, and images into numbered objects in the
// object table. Numbers come from the shared allocator so documents that
// pre-allocated their own objects interleave cleanly.
func (w *Writer) materialize(contents [][]byte) error {
	catalog := objects.New(w.AllocateObjectID(), objects.KindCatalog)
	w.catalogNum = catalog.ID.Number
	pageTree := objects.New(w.AllocateObjectID(), objects.KindPages)
	w.pageTreeNum = pageTree.ID.Number

	catalog.Dict.Set("Type", objects.Name("Catalog"))
	catalog.Dict.Set("Pages", objects.Ref(pageTree.ID))
	w.AddObject(catalog)

	for _, name := range w.fontOrder {
		if err := w.materializeFont(w.fontRes[name]); err != nil {
			return err
		}
	}
	for _, res := range w.imageOrder {
		if err := w.materializeImage(w.images[res]); err != nil {
			return err
		}
	}

	resources := w.resourceDict()
	kids := make(objects.Array, 0, len(w.pages))
	for i, p := range w.pages {
		pageObj, err := w.materializePage(p, contents[i], pageTree.ID, resources)
		if err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
		kids = append(kids, objects.Ref(pageObj.ID))
	}

	pageTree.Dict.Set("Type", objects.Name("Pages"))
	pageTree.Dict.Set("Kids", kids)
	pageTree.Dict.Set("Count", objects.Integer(len(w.pages)))
	w.AddObject(pageTree)

	w.materializeInfo()
	return nil
}

// resourceDict builds the shared /Resources dictionary referencing every
// registered font and image. Sharing one dictionary across pages keeps the
// file smaller than per-page copies and is semantically identical.
func (w *Writer) resourceDict() *objects.Dict {
	res := objects.NewDict()
	if len(w.fontOrder) > 0 {
		fontDict := objects.NewDict()
		for _, name := range w.fontOrder {
			fr := w.fontRes[name]
			fontDict.Set(fr.resource, objects.Ref(objects.ObjectID{Number: fr.objectNum}))
		}
		res.Set("Font", fontDict)
	}
	if len(w.imageOrder) > 0 {
		xobj := objects.NewDict()
		for _, name := range w.imageOrder {
			img := w.images[name]
			xobj.Set(img.resource, objects.Ref(objects.ObjectID{Number: img.objectNum}))
		}
		res.Set("XObject", xobj)
	}
	res.Set("ProcSet", objects.Array{
		objects.Name("PDF"), objects.Name("Text"),
		objects.Name("ImageB"), objects.Name("ImageC"),
	})
	return res
}

func (w *Writer) materializePage(p *content.Page, data []byte, parent objects.ObjectID, resources *objects.Dict) (*objects.Object, error) {
	stream := objects.New(w.AllocateObjectID(), objects.KindContent)
	if err := w.setStream(stream, data); err != nil {
		return nil, fmt.Errorf("content stream: %w", err)
	}
	w.AddObject(stream)

	page := objects.New(w.AllocateObjectID(), objects.KindPage)
	page.Dict.Set("Type", objects.Name("Page"))
	page.Dict.Set("Parent", objects.Ref(parent))
	page.Dict.Set("MediaBox", objects.Array{
		objects.Integer(0), objects.Integer(0),
		objects.Real(p.Width), objects.Real(p.Height),
	})
	page.Dict.Set("Contents", objects.Ref(stream.ID))
	page.Dict.Set("Resources", resources)
	w.AddObject(page)
	return page, nil
}

func (w *Writer) materializeFont(fr *fontResource) error {
	if !fr.composite {
		return w.materializeSimpleFont(fr)
	}
	return w.materializeCompositeFont(fr)
}

// materializeSimpleFont emits a standard-14 font dictionary. Nothing is
// embedded; readers supply the program and the metrics.
func (w *Writer) materializeSimpleFont(fr *fontResource) error {
	font := objects.New(w.AllocateObjectID(), objects.KindFont)
	fr.objectNum = font.ID.Number
	font.Dict.Set("Type", objects.Name("Font"))
	font.Dict.Set("Subtype", objects.Name("Type1"))
	font.Dict.Set("BaseFont", objects.Name(postScriptName(fr.name)))
	font.Dict.Set("Encoding", objects.Name("WinAnsiEncoding"))
	w.AddObject(font)
	return nil
}

// materializeCompositeFont emits the full composite graph: the Type0 root
// addressing glyphs through Identity-H, the CIDFontType2 descendant carrying
// the width array, the descriptor, the embedded program, and the ToUnicode
// map. All five objects share the (possibly subset-tagged) base name.
func (w *Writer) materializeCompositeFont(fr *fontResource) error {
	usage, _ := w.planner.Usage(fr.name)
	var used []rune
	if usage != nil {
		used = usage.UsedRunes()
	}

	baseName := postScriptName(fr.name)
	var program []byte
	if fr.embed {
		result, ok := w.planner.Result(fr.name)
		if ok {
			program = result.Data
			if result.Subsetted {
				baseName = subsetTag(fr.name) + "+" + baseName
			}
		} else {
			program = fr.program
		}
	}

	metrics, err := w.fonts.FontMetrics(fr.name)
	if err != nil {
		return fmt.Errorf("font %s: metrics: %w", fr.name, err)
	}

	font := objects.New(w.AllocateObjectID(), objects.KindFont)
	fr.objectNum = font.ID.Number
	cid := objects.New(w.AllocateObjectID(), objects.KindCIDFont)
	desc := objects.New(w.AllocateObjectID(), objects.KindFontDescriptor)

	font.Dict.Set("Type", objects.Name("Font"))
	font.Dict.Set("Subtype", objects.Name("Type0"))
	font.Dict.Set("BaseFont", objects.Name(baseName))
	font.Dict.Set("Encoding", objects.Name("Identity-H"))
	font.Dict.Set("DescendantFonts", objects.Array{objects.Ref(cid.ID)})

	tounicode := objects.New(w.AllocateObjectID(), objects.KindToUnicode)
	cmap, err := fonts.ToUnicodeCMap(w.fonts, fr.name, used)
	if err != nil {
		return fmt.Errorf("font %s: tounicode: %w", fr.name, err)
	}
	if err := w.setStream(tounicode, cmap); err != nil {
		return fmt.Errorf("font %s: tounicode stream: %w", fr.name, err)
	}
	font.Dict.Set("ToUnicode", objects.Ref(tounicode.ID))
	w.AddObject(font)

	widths, err := fonts.WidthEntries(w.fonts, fr.name, used)
	if err != nil {
		return fmt.Errorf("font %s: widths: %w", fr.name, err)
	}

	cid.Dict.Set("Type", objects.Name("Font"))
	cid.Dict.Set("Subtype", objects.Name("CIDFontType2"))
	cid.Dict.Set("BaseFont", objects.Name(baseName))
	sysInfo := objects.NewDict()
	sysInfo.Set("Registry", objects.String("Adobe"))
	sysInfo.Set("Ordering", objects.String("Identity"))
	sysInfo.Set("Supplement", objects.Integer(0))
	cid.Dict.Set("CIDSystemInfo", sysInfo)
	cid.Dict.Set("FontDescriptor", objects.Ref(desc.ID))
	cid.Dict.Set("DW", objects.Integer(1000))
	cid.Dict.Set("W", widthArray(widths))
	cid.Dict.Set("CIDToGIDMap", objects.Name("Identity"))
	w.AddObject(cid)

	desc.Dict.Set("Type", objects.Name("FontDescriptor"))
	desc.Dict.Set("FontName", objects.Name(baseName))
	desc.Dict.Set("Flags", objects.Integer(4))
	desc.Dict.Set("FontBBox", objects.Array{
		objects.Real(metrics.BBox[0]), objects.Real(metrics.BBox[1]),
		objects.Real(metrics.BBox[2]), objects.Real(metrics.BBox[3]),
	})
	desc.Dict.Set("ItalicAngle", objects.Real(metrics.ItalicAngle))
	desc.Dict.Set("Ascent", objects.Real(metrics.Ascent))
	desc.Dict.Set("Descent", objects.Real(metrics.Descent))
	desc.Dict.Set("CapHeight", objects.Real(metrics.CapHeight))
	desc.Dict.Set("StemV", objects.Integer(80))

	if fr.embed && len(program) > 0 {
		file := objects.New(w.AllocateObjectID(), objects.KindFontFile)
		// Length1 is the decoded program size; readers need it to slice the
		// font out of the stream.
		file.Dict.Set("Length1", objects.Integer(len(program)))
		if err := w.setStream(file, program); err != nil {
			return fmt.Errorf("font %s: program stream: %w", fr.name, err)
		}
		desc.Dict.Set("FontFile2", objects.Ref(file.ID))
		w.AddObject(file)
	}
	w.AddObject(desc)
	w.AddObject(tounicode)
	return nil
}

// widthArray renders width entries in the compact run form: consecutive
// glyph ids collapse into one "start [w w ...]" group.
func widthArray(entries []fonts.WidthEntry) objects.Array {
	var out objects.Array
	for i := 0; i < len(entries); {
		j := i + 1
		for j < len(entries) && entries[j].Glyph == entries[j-1].Glyph+1 {
			j++
		}
		group := make(objects.Array, 0, j-i)
		for _, e := range entries[i:j] {
			group = append(group, objects.Real(e.Width))
		}
		out = append(out, objects.Integer(entries[i].Glyph), group)
		i = j
	}
	return out
}

func (w *Writer) materializeImage(img *imageResource) error {
	obj := objects.New(w.AllocateObjectID(), objects.KindImage)
	img.objectNum = obj.ID.Number
	obj.Dict.Set("Type", objects.Name("XObject"))
	obj.Dict.Set("Subtype", objects.Name("Image"))
	obj.Dict.Set("Width", objects.Integer(img.width))
	obj.Dict.Set("Height", objects.Integer(img.height))
	obj.Dict.Set("ColorSpace", objects.Name(img.colorSpace))
	obj.Dict.Set("BitsPerComponent", objects.Integer(8))
	if err := w.setStream(obj, img.data); err != nil {
		return fmt.Errorf("image %s: %w", img.resource, err)
	}
	w.AddObject(obj)
	return nil
}

func (w *Writer) materializeInfo() {
	obj := objects.New(w.AllocateObjectID(), objects.KindInfo)
	w.infoNum = obj.ID.Number
	set := func(key, val string) {
		if val != "" {
			obj.Dict.Set(key, objects.String(val))
		}
	}
	set("Title", w.info.Title)
	set("Author", w.info.Author)
	set("Subject", w.info.Subject)
	set("Creator", w.info.Creator)
	set("Producer", w.info.Producer)
	if obj.Dict.Len() == 0 {
		obj.Dict.Set("Producer", objects.String("pdfgen"))
	}
	w.AddObject(obj)
}

// setStream stores data on obj, compressing it first when the policy says
// compression pays off.
func (w *Writer) setStream(obj *objects.Object, data []byte) error {
	if !w.cfg.CompressContent {
		obj.SetStream(data)
		return nil
	}
	policy := filters.DefaultPolicy()
	if w.cfg.Compression != 0 {
		policy.Level = w.cfg.Compression
	}
	res, err := filters.Compress(data, policy)
	if err != nil {
		return err
	}
	if res.Filter != "" {
		obj.Dict.Set("Filter", objects.Name(res.Filter))
		w.Metrics.Observe(observability.MetricCompressedIn, float64(res.OriginalSize))
		w.Metrics.Observe(observability.MetricCompressedOut, float64(res.CompressedSize))
	}
	obj.SetStream(res.Data)
	return nil
}

// serialize writes the final byte layout: header, objects in ascending
// number order with their offsets recorded, the cross-reference table, and
// the trailer with its startxref pointer.
func (w *Writer) serialize(out *sink.Writer) error {
	out.WriteLine("%PDF-" + w.cfg.Version)
	// Four bytes above 127 mark the file as binary for transfer tools.
	out.WriteLine("%\xE2\xE3\xCF\xD3")

	table := xref.NewTable()
	s := serializer.New(out)
	for _, num := range sortedObjectNumbers(w.objects) {
		table.Record(num, out.Offset())
		w.objects[num].Encode(s)
	}
	if err := s.Close(); err != nil {
		return err
	}

	start := table.Emit(out)
	out.WriteLine("trailer")
	ts := serializer.New(out)
	ts.Dict(func() {
		ts.Name("Size")
		ts.Int(int64(table.MaxObjectNumber() + 1))
		ts.Name("Root")
		ts.Ref(w.catalogNum, 0)
		ts.Name("Info")
		ts.Ref(w.infoNum, 0)
	})
	if err := ts.Close(); err != nil {
		return err
	}
	out.WriteByte('\n')
	out.WriteLine("startxref")
	out.WriteLine(fmt.Sprintf("%d", start))
	out.WriteLine("%%EOF")
	return out.Err()
}

func sortedObjectNumbers(m map[int]*objects.Object) []int {
	out := make([]int, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// postScriptName strips the characters a name token cannot carry.
func postScriptName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
			return -1
		}
		return r
	}, name)
}

// subsetTag derives the six-letter prefix marking an embedded program as a
// subset. The tag is a stable function of the font name so repeated runs of
// the same document produce identical bytes.
func subsetTag(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	sum := h.Sum32()
	tag := make([]byte, 6)
	for i := range tag {
		tag[i] = byte('A' + sum%26)
		sum /= 26
		sum = sum*31 + uint32(i)
	}
	return string(tag)
}
