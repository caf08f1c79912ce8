package writer

import (
	"fmt"

	"github.com/officekit/pdfgen/content"
)

// Table defines a matrix of cells to draw.
type Table struct {
	Columns    []float64
	Rows       []TableRow
	HeaderRows int
}

// TableRow wraps a slice of cells.
type TableRow struct {
	Cells []TableCell
}

// TableCell configures one cell's text.
type TableCell struct {
	Text string
	Font string
	Size float64
}

// TableOptions configures table rendering.
type TableOptions struct {
	X           float64
	Y           float64
	RowHeight   float64
	CellPadding float64
	LineWidth   float64
	HeaderFill  [3]float64
}

// DrawTable renders a ruled table onto page, top edge at (X, Y), drawing
// grid lines, optional header shading, and cell text. Fonts named in cells
// must already be registered; SelectFont routes each cell through the
// fallback when the preferred font cannot show its text.
func (w *Writer) DrawTable(page *content.Page, table Table, opts TableOptions) error {
	if len(table.Columns) == 0 || len(table.Rows) == 0 {
		return fmt.Errorf("draw table: empty table")
	}
	rowHeight := opts.RowHeight
	if rowHeight <= 0 {
		rowHeight = 18
	}
	pad := opts.CellPadding
	if pad <= 0 {
		pad = 4
	}
	lineWidth := opts.LineWidth
	if lineWidth <= 0 {
		lineWidth = 0.5
	}

	var width float64
	for _, c := range table.Columns {
		width += c
	}
	height := rowHeight * float64(len(table.Rows))
	headerCount := table.HeaderRows
	if headerCount > len(table.Rows) {
		headerCount = len(table.Rows)
	}

	page.SaveGraphicsState()
	defer page.RestoreGraphicsState()

	if headerCount > 0 {
		fill := opts.HeaderFill
		if fill == [3]float64{} {
			fill = [3]float64{0.9, 0.9, 0.9}
		}
		page.SetFillColor(fill[0], fill[1], fill[2])
		page.Rectangle(opts.X, opts.Y-rowHeight*float64(headerCount), width, rowHeight*float64(headerCount))
		page.Fill()
	}

	page.SetLineWidth(lineWidth)
	page.SetStrokeColor(0, 0, 0)
	for r := 0; r <= len(table.Rows); r++ {
		y := opts.Y - rowHeight*float64(r)
		page.MoveTo(opts.X, y)
		page.LineTo(opts.X+width, y)
		page.Stroke()
	}
	x := opts.X
	for c := 0; c <= len(table.Columns); c++ {
		page.MoveTo(x, opts.Y)
		page.LineTo(x, opts.Y-height)
		page.Stroke()
		if c < len(table.Columns) {
			x += table.Columns[c]
		}
	}

	page.SetFillColor(0, 0, 0)
	for r, row := range table.Rows {
		x := opts.X
		for c := 0; c < len(table.Columns) && c < len(row.Cells); c++ {
			cell := row.Cells[c]
			if cell.Text != "" {
				size := cell.Size
				if size <= 0 {
					size = 10
				}
				name := w.SelectFont(cell.Text, cell.Font)
				ref, err := w.FontRef(name)
				if err != nil {
					return fmt.Errorf("draw table: cell (%d,%d): %w", r, c, err)
				}
				baseline := opts.Y - rowHeight*float64(r+1) + pad
				page.BeginText()
				page.SetFont(ref, size)
				page.SetTextPosition(x+pad, baseline)
				page.ShowText(cell.Text)
				page.EndText()
			}
			x += table.Columns[c]
		}
	}
	return nil
}

// TableWidth reports the total width a column layout occupies; a layout
// helper for callers placing a table against a margin.
func TableWidth(columns []float64) float64 {
	var w float64
	for _, c := range columns {
		w += c
	}
	return w
}

// FitColumns distributes total evenly over n columns.
func FitColumns(n int, total float64) []float64 {
	if n <= 0 {
		return nil
	}
	cols := make([]float64, n)
	each := total / float64(n)
	for i := range cols {
		cols[i] = each
	}
	return cols
}
