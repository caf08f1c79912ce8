package fonts

import (
	"fmt"
	"sort"

	"github.com/officekit/pdfgen/observability"
)

// Usage accumulates everything the document does with one registered font:
// the original program bytes, whether subsetting/embedding was requested,
// and the set of codepoints seen in content. The codepoint set only grows.
type Usage struct {
	Name       string
	Program    []byte
	Subsetting bool
	Embed      bool

	used map[rune]bool
}

// UsedRunes returns the accumulated codepoints in ascending order.
func (u *Usage) UsedRunes() []rune {
	out := make([]rune, 0, len(u.used))
	for r := range u.used {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UsedCount reports how many distinct codepoints have been recorded.
func (u *Usage) UsedCount() int { return len(u.used) }

// SubsetResult is the outcome of subsetting one font. It is produced exactly
// once, at save time, and never mutated afterwards.
type SubsetResult struct {
	Name           string
	OriginalSize   int
	SubsetSize     int
	CodepointCount int
	Subsetted      bool
	Data           []byte
}

// Planner tracks per-font usage across the whole document and performs the
// subsetting pass. Usage accumulation and subsetting happen in exactly that
// order: PerformSubsetting must not run until every page referencing a font
// has been encoded.
type Planner struct {
	Logger  observability.Logger
	Metrics observability.Metrics

	usages  map[string]*Usage
	results map[string]*SubsetResult
}

// NewPlanner returns an empty Planner with nop logging and metrics.
func NewPlanner() *Planner {
	return &Planner{
		Logger:  observability.NopLogger{},
		Metrics: observability.NopMetrics(),
		usages:  make(map[string]*Usage),
		results: make(map[string]*SubsetResult),
	}
}

// Register records a font eligible for usage tracking. Registering the same
// name again is a no-op, keeping the first program and its accumulated set.
func (p *Planner) Register(name string, program []byte, subsetting, embed bool) {
	if _, ok := p.usages[name]; ok {
		return
	}
	p.usages[name] = &Usage{
		Name:       name,
		Program:    program,
		Subsetting: subsetting,
		Embed:      embed,
		used:       make(map[rune]bool),
	}
	p.Logger.Debug("font registered for subsetting",
		observability.String("font", name),
		observability.Int("bytes", len(program)))
}

// Registered reports whether name is tracked.
func (p *Planner) Registered(name string) bool {
	_, ok := p.usages[name]
	return ok
}

// RecordText adds every codepoint of text to the font's used set. Insertion
// is idempotent: the set never holds duplicates and never shrinks.
func (p *Planner) RecordText(name, text string) {
	u, ok := p.usages[name]
	if !ok {
		p.Logger.Warn("text usage for unregistered font", observability.String("font", name))
		return
	}
	for _, r := range text {
		u.used[r] = true
	}
}

// RecordRune adds a single codepoint to the font's used set.
func (p *Planner) RecordRune(name string, r rune) {
	if u, ok := p.usages[name]; ok {
		u.used[r] = true
	}
}

// Usage returns the tracked usage for name.
func (p *Planner) Usage(name string) (*Usage, bool) {
	u, ok := p.usages[name]
	return u, ok
}

// PerformSubsetting runs the subsetting pass over every tracked font. Fonts
// with subsetting disabled or an empty used set pass their original bytes
// through. A subset is kept only when it is actually smaller; failures fall
// back to the original program, never to a document-level error.
func (p *Planner) PerformSubsetting(m *Manager) ([]*SubsetResult, error) {
	names := make([]string, 0, len(p.usages))
	for name := range p.usages {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]*SubsetResult, 0, len(names))
	for _, name := range names {
		res := p.subsetOne(m, p.usages[name])
		p.results[name] = res
		results = append(results, res)
		p.Metrics.Observe(observability.MetricSubsetOriginal, float64(res.OriginalSize))
		p.Metrics.Observe(observability.MetricSubsetFinal, float64(res.SubsetSize))
	}
	return results, nil
}

func (p *Planner) subsetOne(m *Manager, u *Usage) *SubsetResult {
	res := &SubsetResult{
		Name:           u.Name,
		OriginalSize:   len(u.Program),
		CodepointCount: len(u.used),
		Data:           u.Program,
		SubsetSize:     len(u.Program),
	}
	if !u.Subsetting || len(u.used) == 0 {
		return res
	}
	if !m.Loaded(u.Name) {
		if err := m.Load(u.Name, u.Program); err != nil {
			p.Logger.Warn("subset skipped, font unparsable",
				observability.String("font", u.Name),
				observability.Error("err", err))
			return res
		}
	}

	// The glyph set comes from the same (font, rune) cache the content
	// encoder used, so the subset and the encoded references agree by
	// construction. Uncovered codepoints map to glyph 0 and drop out.
	used := map[GlyphID]bool{0: true}
	for _, r := range u.UsedRunes() {
		g, err := m.GlyphForRune(u.Name, r)
		if err != nil {
			return res
		}
		if g != 0 {
			used[g] = true
		}
	}

	subset, err := SubsetTrueType(u.Program, used)
	if err != nil {
		p.Logger.Warn("subsetting failed, keeping original program",
			observability.String("font", u.Name),
			observability.Error("err", err))
		return res
	}
	if len(subset) >= len(u.Program) {
		p.Logger.Debug("subset not smaller, keeping original program",
			observability.String("font", u.Name),
			observability.Int("subsetBytes", len(subset)))
		return res
	}

	res.Data = subset
	res.SubsetSize = len(subset)
	res.Subsetted = true
	p.Logger.Debug("font subset",
		observability.String("font", u.Name),
		observability.Int("originalBytes", res.OriginalSize),
		observability.Int("subsetBytes", res.SubsetSize),
		observability.Int("codepoints", res.CodepointCount))
	return res
}

// Result returns the subsetting outcome for name. It exists only after
// PerformSubsetting has run.
func (p *Planner) Result(name string) (*SubsetResult, bool) {
	r, ok := p.results[name]
	return r, ok
}

// FinalProgram returns the bytes the document should embed for name: the
// subset when one was produced, the original program otherwise.
func (p *Planner) FinalProgram(name string) ([]byte, error) {
	if res, ok := p.results[name]; ok {
		return res.Data, nil
	}
	if u, ok := p.usages[name]; ok {
		return u.Program, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrFontNotAvailable)
}
