// Package writer is the document/structure manager: the single authority
// for object identity and the final byte layout. It owns the object table,
// the page list, and the font and image resources, and drives the
// subsetting pass and serialization when the document is saved.
package writer

import (
	"errors"
	"fmt"

	"github.com/officekit/pdfgen/content"
	"github.com/officekit/pdfgen/fonts"
	"github.com/officekit/pdfgen/objects"
	"github.com/officekit/pdfgen/observability"
)

// ErrAlreadySaved reports a second save on a Writer whose fonts have been
// transitioned to their subset form. Subsetting is not idempotent against
// further content mutation, so a Writer saves once.
var ErrAlreadySaved = errors.New("document already saved")

// ErrNoPages reports a save on a document without pages.
var ErrNoPages = errors.New("document has no pages")

// Config controls output production.
type Config struct {
	// Version is the file format version written in the header.
	Version string
	// Compression is the flate level for stream payloads. Zero means the
	// library default.
	Compression int
	// SubsetFonts enables the subsetting pass for embedded fonts.
	SubsetFonts bool
	// CompressContent enables adaptive compression of content streams and
	// embedded font programs.
	CompressContent bool
}

// DefaultConfig returns the production defaults: version 1.7, subsetting
// and compression on.
func DefaultConfig() Config {
	return Config{
		Version:         "1.7",
		SubsetFonts:     true,
		CompressContent: true,
	}
}

// Info is the document metadata. Every field is optional.
type Info struct {
	Title    string
	Author   string
	Subject  string
	Creator  string
	Producer string
}

type fontResource struct {
	name      string
	resource  string
	composite bool
	embed     bool
	program   []byte

	// assigned during the save pass
	objectNum int
}

type imageResource struct {
	resource   string
	data       []byte
	width      int
	height     int
	colorSpace string

	objectNum int
}

// Writer builds one document. It assumes single-writer access: the object
// table, font usage sets, and page buffers have no internal locking. Build
// independent pages concurrently if needed, then register them here from
// one goroutine.
type Writer struct {
	Logger  observability.Logger
	Metrics observability.Metrics

	cfg     Config
	fonts   *fonts.Manager
	planner *fonts.Planner

	nextObjectNum  int
	objects        map[int]*objects.Object
	order          []int
	pages          []*content.Page
	info           Info
	catalogNum     int
	pageTreeNum    int
	infoNum        int
	nextResourceID int
	fontRes        map[string]*fontResource
	fontOrder      []string
	images         map[string]*imageResource
	imageOrder     []string
	fallbacks      map[string]string
	saved          bool
}

// New returns a Writer with the given configuration and nop observability.
func New(cfg Config) *Writer {
	if cfg.Version == "" {
		cfg.Version = "1.7"
	}
	w := &Writer{
		Logger:         observability.NopLogger{},
		Metrics:        observability.NopMetrics(),
		cfg:            cfg,
		fonts:          fonts.NewManager(),
		planner:        fonts.NewPlanner(),
		nextObjectNum:  1,
		objects:        make(map[int]*objects.Object),
		nextResourceID: 1,
		fontRes:        make(map[string]*fontResource),
		images:         make(map[string]*imageResource),
		fallbacks:      make(map[string]string),
	}
	return w
}

// Fonts exposes the metrics/shaping manager for measurement queries.
func (w *Writer) Fonts() *fonts.Manager { return w.fonts }

// AllocateObjectID hands out the next object number. The counter only moves
// forward; numbers are never reused.
func (w *Writer) AllocateObjectID() objects.ObjectID {
	id := objects.ObjectID{Number: w.nextObjectNum}
	w.nextObjectNum++
	return id
}

// AddObject stores obj in the object table. The table is append-only during
// construction; an id collision is a programming error and panics.
func (w *Writer) AddObject(obj *objects.Object) {
	if _, exists := w.objects[obj.ID.Number]; exists {
		panic(fmt.Sprintf("writer: object %d added twice", obj.ID.Number))
	}
	w.objects[obj.ID.Number] = obj
	w.order = append(w.order, obj.ID.Number)
}

// ObjectCount reports the number of stored objects.
func (w *Writer) ObjectCount() int { return len(w.objects) }

// CreatePage appends a new page of the given size in points and returns it.
// The handle stays valid for the Writer's lifetime.
func (w *Writer) CreatePage(width, height float64) *content.Page {
	p := content.NewPage(width, height)
	w.pages = append(w.pages, p)
	return p
}

// PageCount reports the number of pages.
func (w *Writer) PageCount() int { return len(w.pages) }

// SetDocumentInfo records the document metadata.
func (w *Writer) SetDocumentInfo(info Info) {
	if info.Producer == "" {
		info.Producer = "pdfgen"
	}
	w.info = info
}

// standard14 lists the font names every reader provides without embedding.
var standard14 = map[string]bool{
	"Helvetica": true, "Helvetica-Bold": true, "Helvetica-Oblique": true, "Helvetica-BoldOblique": true,
	"Times-Roman": true, "Times-Bold": true, "Times-Italic": true, "Times-BoldItalic": true,
	"Courier": true, "Courier-Bold": true, "Courier-Oblique": true, "Courier-BoldOblique": true,
	"Symbol": true, "ZapfDingbats": true,
}

// RegisterFont makes a font available to pages and returns its resource id.
// Registration is idempotent per name: a second call returns the existing
// id without re-ingesting bytes. Supplying program bytes with embed makes
// the font composite (2-byte glyph codes) and eligible for subsetting;
// standard names without bytes become simple WinAnsi fonts.
func (w *Writer) RegisterFont(name string, program []byte, embed bool) (string, error) {
	if fr, ok := w.fontRes[name]; ok {
		return fr.resource, nil
	}

	fr := &fontResource{
		name:     name,
		resource: fmt.Sprintf("F%d", w.nextResourceID),
		embed:    embed,
	}
	w.nextResourceID++

	if len(program) > 0 {
		if err := w.fonts.Load(name, program); err != nil {
			return "", fmt.Errorf("register font %s: %w", name, err)
		}
		fr.composite = true
		fr.program = program
		if embed {
			w.planner.Register(name, program, w.cfg.SubsetFonts, true)
		}
	} else if !standard14[name] {
		// A non-standard name without a program cannot be rendered by
		// arbitrary readers; treat it as composite only if loaded earlier.
		if !w.fonts.Loaded(name) {
			return "", fmt.Errorf("register font %s: no program bytes: %w", name, fonts.ErrFontNotAvailable)
		}
		fr.composite = true
		prog, _ := w.fonts.Program(name)
		fr.program = prog
		if embed {
			w.planner.Register(name, prog, w.cfg.SubsetFonts, true)
		}
	}

	w.fontRes[name] = fr
	w.fontOrder = append(w.fontOrder, name)
	w.Logger.Debug("font registered",
		observability.String("font", name),
		observability.String("resource", fr.resource))
	return fr.resource, nil
}

// FontRef builds the content-encoder view of a registered font. Composite
// fonts resolve glyphs through the manager's memoized cache — the same cache
// the subsetting pass reads — and record usage with the planner.
func (w *Writer) FontRef(name string) (content.FontRef, error) {
	fr, ok := w.fontRes[name]
	if !ok {
		return content.FontRef{}, fmt.Errorf("font %s not registered: %w", name, fonts.ErrFontNotAvailable)
	}
	ref := content.FontRef{
		Resource:  fr.resource,
		Composite: fr.composite,
	}
	if fr.composite {
		fontName := name
		ref.GlyphForRune = func(r rune) fonts.GlyphID {
			g, err := w.fonts.GlyphForRune(fontName, r)
			if err != nil {
				return 0
			}
			return g
		}
		ref.RecordUsage = func(text string) {
			w.planner.RecordText(fontName, text)
		}
	}
	return ref, nil
}

// RegisterFontFallback maps a primary font to the one SelectFont should use
// when the primary cannot cover the text.
func (w *Writer) RegisterFontFallback(primary, fallback string) {
	w.fallbacks[primary] = fallback
}

// FallbackFont returns the registered fallback for name.
func (w *Writer) FallbackFont(name string) string { return w.fallbacks[name] }

// SelectFont picks the font to show text with: the preferred font when it
// can cover the text, otherwise its registered fallback when that one is
// composite and covers CJK content.
func (w *Writer) SelectFont(text, preferred string) string {
	if text == "" || !fonts.ContainsCJK(text) {
		return preferred
	}
	if fr, ok := w.fontRes[preferred]; ok && fr.composite {
		return preferred
	}
	if fb := w.fallbacks[preferred]; fb != "" {
		if fr, ok := w.fontRes[fb]; ok && fr.composite {
			return fb
		}
	}
	return preferred
}

// RegisterImage stores raw image samples and returns the resource id to
// draw them with. Supported color spaces are DeviceRGB (3 bytes/pixel) and
// DeviceGray (1 byte/pixel).
func (w *Writer) RegisterImage(data []byte, width, height int, colorSpace string) (string, error) {
	if len(data) == 0 || width <= 0 || height <= 0 {
		return "", fmt.Errorf("register image: invalid parameters (%dx%d, %d bytes)", width, height, len(data))
	}
	switch colorSpace {
	case "DeviceRGB", "DeviceGray":
	default:
		return "", fmt.Errorf("register image: unsupported color space %q", colorSpace)
	}
	res := fmt.Sprintf("Im%d", w.nextResourceID)
	w.nextResourceID++
	img := &imageResource{
		resource:   res,
		data:       data,
		width:      width,
		height:     height,
		colorSpace: colorSpace,
	}
	w.images[res] = img
	w.imageOrder = append(w.imageOrder, res)
	return res, nil
}

// Validate reports structural problems that would make Save fail.
func (w *Writer) Validate() error {
	if len(w.pages) == 0 {
		return ErrNoPages
	}
	for i, p := range w.pages {
		if err := p.Err(); err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
		if p.GraphicsStateDepth() != 0 {
			return fmt.Errorf("page %d: %w", i+1, content.ErrUnbalancedGraphicsState)
		}
	}
	return nil
}

// Stats summarizes the document under construction.
type Stats struct {
	Objects int
	Pages   int
	Fonts   int
	Images  int
	Version string
}

// Statistics returns the current counts.
func (w *Writer) Statistics() Stats {
	return Stats{
		Objects: len(w.objects),
		Pages:   len(w.pages),
		Fonts:   len(w.fontRes),
		Images:  len(w.images),
		Version: w.cfg.Version,
	}
}
