package render

import (
	"github.com/emrgen/docgen/internal/template"
	"github.com/emrgen/docgen/internal/vars"
)

const cellPad = 1.5

type tableLayout struct {
	columns []template.Column
	widths  []float64
	xs      []float64
}

// layoutColumns spreads the content width by column weight. Right-to-left
// languages get the columns in reverse order.
func (c *canvas) layoutColumns(cols []template.Column) tableLayout {
	ordered := make([]template.Column, len(cols))
	copy(ordered, cols)
	if c.lang.RTL() {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}

	total := 0.0
	for _, col := range ordered {
		total += weight(col)
	}

	l := tableLayout{columns: ordered}
	x := c.left
	for _, col := range ordered {
		w := c.contentWidth() * weight(col) / total
		l.widths = append(l.widths, w)
		l.xs = append(l.xs, x)
		x += w
	}

	return l
}

func weight(col template.Column) float64 {
	if col.Width <= 0 {
		return 1
	}
	return col.Width
}

// cellLines wraps the text of each cell, keyed by column position.
func (c *canvas) cellLines(l tableLayout, texts []localizedText) [][]string {
	out := make([][]string, len(texts))
	for i, t := range texts {
		if t.text == "" {
			out[i] = nil
			continue
		}
		out[i] = c.wrap(t.text, l.widths[i]-2*cellPad)
	}

	return out
}

func rowHeight(lines [][]string, lh float64) float64 {
	n := 1
	for _, l := range lines {
		if len(l) > n {
			n = len(l)
		}
	}

	return float64(n)*lh + 2*cellPad
}

func (c *canvas) table(t template.Table) {
	size := c.styles.FontSize
	if !t.Title.Empty() {
		c.ensure(lineHeight(size*1.2) + 2*lineHeight(size))
		c.text(t.Title, template.AlignStart, "B", size*1.2, c.styles.Palette.Primary)
		c.y += 1
	}

	key := vars.PlaceholderKey(t.DataSource)
	rows, ok := c.vars.Rows(key)
	if !ok {
		if _, bound := c.vars.Lookup(key); bound {
			c.warn("table data source %q is not an array of objects", key)
		} else {
			c.warn("table data source %q is not bound", key)
		}
	}

	l := c.layoutColumns(t.Columns)
	lh := lineHeight(size)

	c.setFont("B", size)
	header := c.headerCells(l)
	headerH := header.height(lh)

	// keep the header with at least its first row, or the first lines of a
	// row that has to be split anyway
	first := headerH
	if len(rows) > 0 {
		c.setFont("", size)
		h := rowHeight(c.cellLines(l, c.rowTexts(l, rows[0])), lh)
		if h > c.bottom-c.top-headerH {
			h = 2*cellPad + 3*lh
		}
		first += h
	}
	c.ensure(first)
	c.drawHeader(l, header, headerH)

	for i, row := range rows {
		c.setFont("", size)
		texts := c.rowTexts(l, row)
		lines := c.cellLines(l, texts)
		h := rowHeight(lines, lh)
		striped := t.Striped && i%2 == 1

		if h > c.bottom-c.top-headerH {
			c.splitRow(t, l, header, headerH, i, texts, lines, striped)
			continue
		}

		// rows never straddle a page; the header repeats on the new page
		if c.ensure(h) {
			c.drawHeader(l, header, headerH)
		}

		top := c.y
		c.drawRow(t, l, texts, lines, 0, maxLines(lines), top, h, striped)
		c.y = top + h
		p := c.page()
		p.Rows = append(p.Rows, RowSpan{Index: i, Top: top, Bottom: c.y})
	}

	c.y += lineHeight(size) / 2
}

func maxLines(lines [][]string) int {
	n := 0
	for _, l := range lines {
		if len(l) > n {
			n = len(l)
		}
	}
	return n
}

// drawRow draws lines [from, to) of every cell in a box of height h at top.
func (c *canvas) drawRow(t template.Table, l tableLayout, texts []localizedText, lines [][]string, from, to int, top, h float64, striped bool) {
	size := c.styles.FontSize
	lh := lineHeight(size)

	if striped {
		c.fillColor(c.styles.Palette.Stripe)
		c.pdf.Rect(c.left, top, c.contentWidth(), h, "F")
	}
	c.setFont("", size)
	c.textColor(c.styles.Palette.Text)
	for j, col := range l.columns {
		y := top + cellPad
		for k := from; k < to && k < len(lines[j]); k++ {
			c.cell(l.xs[j]+cellPad, y, l.widths[j]-2*cellPad, lh, lines[j][k], texts[j].lang, col.Align)
			y += lh
		}
	}
	if t.Bordered {
		c.drawColor(c.styles.Palette.Border)
		c.pdf.SetLineWidth(0.2)
		for j := range l.columns {
			c.pdf.Rect(l.xs[j], top, l.widths[j], h, "D")
		}
	}
}

// splitRow places a row taller than a page in fragments, each closed at the
// page bottom and continued under a repeated header on the next page.
func (c *canvas) splitRow(t template.Table, l tableLayout, header headerCells, headerH float64, index int, texts []localizedText, lines [][]string, striped bool) {
	lh := lineHeight(c.styles.FontSize)
	total := maxLines(lines)

	// start on a fresh page unless a few lines fit below the cursor
	if c.bottom-c.y < 2*cellPad+3*lh {
		c.newPage()
		c.drawHeader(l, header, headerH)
	}

	pages := 0
	for from := 0; from < total; {
		n := int((c.bottom - c.y - 2*cellPad) / lh)
		if n < 1 {
			n = 1
		}
		to := min(from+n, total)
		h := float64(to-from)*lh + 2*cellPad

		top := c.y
		c.drawRow(t, l, texts, lines, from, to, top, h, striped)
		c.y = top + h
		p := c.page()
		p.Rows = append(p.Rows, RowSpan{Index: index, Top: top, Bottom: c.y, Part: pages})
		pages++

		from = to
		if from < total {
			c.newPage()
			c.drawHeader(l, header, headerH)
		}
	}

	c.warn("table row %d is taller than a page and was split across %d pages", index+1, pages)
}

type headerCells struct {
	lines [][]localizedText
}

func (h headerCells) height(lh float64) float64 {
	n := 1
	for _, l := range h.lines {
		if len(l) > n {
			n = len(l)
		}
	}

	return float64(n)*lh + 2*cellPad
}

// headerCells lays out the captions; bilingual captions stack both languages in one cell.
func (c *canvas) headerCells(l tableLayout) headerCells {
	h := headerCells{lines: make([][]localizedText, len(l.columns))}
	for i, col := range l.columns {
		for _, v := range c.localized(col.Caption) {
			for _, line := range c.wrap(v.text, l.widths[i]-2*cellPad) {
				h.lines[i] = append(h.lines[i], localizedText{lang: v.lang, text: line, secondary: v.secondary})
			}
		}
	}

	return h
}

func (c *canvas) drawHeader(l tableLayout, h headerCells, height float64) {
	size := c.styles.FontSize
	lh := lineHeight(size)
	top := c.y

	c.fillColor(c.styles.Palette.Primary)
	c.pdf.Rect(c.left, top, c.contentWidth(), height, "F")
	c.setFont("B", size)
	c.textColor("#ffffff")
	for j, col := range l.columns {
		y := top + cellPad
		for _, line := range h.lines[j] {
			c.cell(l.xs[j]+cellPad, y, l.widths[j]-2*cellPad, lh, line.text, line.lang, col.Align)
			y += lh
		}
	}

	c.y = top + height
	c.page().TableHeaders++
}

// rowTexts formats the row values in column order. Values are data, not
// localized text, so they are drawn in the requested language's direction.
func (c *canvas) rowTexts(l tableLayout, row map[string]any) []localizedText {
	out := make([]localizedText, len(l.columns))
	for i, col := range l.columns {
		out[i] = localizedText{lang: c.lang, text: vars.Format(row[col.Key])}
	}

	return out
}
