package render

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/emrgen/docgen/internal/template"
	"github.com/emrgen/docgen/internal/vars"
	"github.com/phpdave11/gofpdf"
)

func (c *canvas) draw(content template.Content) {
	switch s := content.(type) {
	case template.Header:
		c.header(s)
	case template.Body:
		c.body(s)
	case template.Table:
		c.table(s)
	case template.Terms:
		c.terms(s)
	case template.Signature:
		c.signature(s)
	case template.Footer:
		// stamped once the page count is known
	case template.Image:
		c.image(s)
	case template.Divider:
		c.divider(s)
	case template.Spacer:
		c.spacer(s)
	default:
		c.warn("skipping unsupported section %T", content)
	}
}

func (c *canvas) header(h template.Header) {
	size := c.styles.FontSize
	bannerH := c.styles.HeaderHeight
	c.ensure(bannerH + lineHeight(size*1.6))

	rtl := c.lang.RTL()
	top := c.y
	companyColor := c.styles.Palette.Text
	if h.Banner {
		c.fillColor(c.styles.Palette.Primary)
		c.pdf.Rect(0, top, c.pageW, bannerH, "F")
		companyColor = "#ffffff"
	}

	// the logo sits on the start side, the company block on the end side
	if src := c.vars.Substitute(h.Logo); src != "" {
		logoH := bannerH - 6
		x := c.left
		if rtl {
			x = c.pageW - c.right - logoH
		}
		c.placeImage(src, vars.HasPlaceholder(h.Logo), x, top+3, 0, logoH)
	}

	end := template.AlignRight
	if rtl {
		end = template.AlignLeft
	}
	c.setFont("", size*0.9)
	c.textColor(companyColor)
	lh := lineHeight(size * 0.9)
	y := top + 3
	for _, lt := range c.localized(h.Company) {
		for _, line := range c.wrap(lt.text, c.contentWidth()/2) {
			if y+lh > top+bannerH {
				break
			}
			// end alignment is fixed to the page, not to the line's language
			c.pdf.SetXY(c.left, y)
			c.pdf.CellFormat(c.contentWidth(), lh, c.encode(Visual(line, lt.lang.RTL())), "", 0, alignCode(end, false), false, 0, "")
			y += lh
		}
	}

	c.y = top + bannerH + 2
	c.text(h.Title, template.AlignCenter, "B", size*1.6, c.styles.Palette.Primary)
	c.y += 2
}

func (c *canvas) body(b template.Body) {
	size := c.styles.FontSize
	if !b.Title.Empty() {
		c.ensure(lineHeight(size*1.2) + lineHeight(size))
		c.text(b.Title, b.Align, "B", size*1.2, c.styles.Palette.Primary)
		c.y += 1
	}
	c.text(b.Text, b.Align, "", size, c.styles.Palette.Text)
	c.y += lineHeight(size) / 2
}

func (c *canvas) terms(t template.Terms) {
	size := c.styles.FontSize
	if !t.Title.Empty() {
		c.ensure(lineHeight(size*1.2) + lineHeight(size))
		c.text(t.Title, template.AlignStart, "B", size*1.2, c.styles.Palette.Primary)
		c.y += 1
	}

	for i, item := range t.Items {
		numbered := template.Text{}
		for lang, s := range item {
			numbered[lang] = strconv.Itoa(i+1) + ". " + s
		}
		c.text(numbered, template.AlignStart, "", size, c.styles.Palette.Text)
	}
	c.y += lineHeight(size) / 2
}

func (c *canvas) signature(s template.Signature) {
	size := c.styles.FontSize
	n := len(s.Signatories)
	if n == 0 {
		return
	}

	lh := lineHeight(size)
	langs := len(c.languages())
	blockH := 14 + float64(3*langs)*lh
	c.ensure(blockH)

	gap := 8.0
	blockW := (c.contentWidth() - gap*float64(n-1)) / float64(n)
	top := c.y
	for i, signatory := range s.Signatories {
		slot := i
		if c.lang.RTL() {
			slot = n - 1 - i
		}
		x := c.left + float64(slot)*(blockW+gap)

		lineY := top + 12
		c.drawColor(c.styles.Palette.Text)
		c.pdf.SetLineWidth(0.3)
		c.pdf.Line(x, lineY, x+blockW, lineY)

		y := lineY + 1
		for _, part := range []struct {
			text  template.Text
			style string
		}{
			{signatory.Label, "B"},
			{signatory.Name, ""},
			{signatory.Title, ""},
		} {
			for _, lt := range c.localized(part.text) {
				sz := size
				col := c.styles.Palette.Text
				if lt.secondary {
					sz, col = size*0.9, c.styles.Palette.Muted
				}
				c.setFont(part.style, sz)
				c.textColor(col)
				c.cell(x, y, blockW, lh, lt.text, lt.lang, template.AlignCenter)
				y += lh
			}
		}
	}

	c.y = top + blockH
}

func (c *canvas) image(img template.Image) {
	src := c.vars.Substitute(img.Source)
	w, h := img.Width, img.Height
	if w == 0 && h == 0 {
		w = 40
	}

	name, info, ok := c.register(src, vars.HasPlaceholder(img.Source))
	if !ok {
		return
	}
	if h == 0 {
		h = w * info.Height() / info.Width()
	}
	if w == 0 {
		w = h * info.Width() / info.Height()
	}

	c.ensure(h)
	x := c.left
	switch alignCode(img.Align, c.lang.RTL()) {
	case "C":
		x = c.left + (c.contentWidth()-w)/2
	case "R":
		x = c.pageW - c.right - w
	}

	c.pdf.ImageOptions(name, x, c.y, w, h, false, gofpdf.ImageOptions{}, 0, "")
	c.y += h + 2
}

// placeImage draws src at a fixed position. Missing images are skipped.
func (c *canvas) placeImage(src string, fromVariables bool, x, y, w, h float64) {
	name, _, ok := c.register(src, fromVariables)
	if !ok {
		return
	}

	c.pdf.ImageOptions(name, x, y, w, h, false, gofpdf.ImageOptions{}, 0, "")
}

// register loads and registers an image once per render.
func (c *canvas) register(src string, fromVariables bool) (string, *gofpdf.ImageInfoType, bool) {
	if name, ok := c.images[src]; ok {
		info := c.pdf.GetImageInfo(name)
		return name, info, info != nil
	}

	data, err := c.assets.Load(c.ctx, src, fromVariables)
	if err != nil {
		c.warn("image %q skipped: %v", src, err)
		return "", nil, false
	}

	typ, ok := imageType(data)
	if !ok {
		c.warn("image %q skipped: unsupported format", src)
		return "", nil, false
	}

	name := fmt.Sprintf("img%d", len(c.images)+1)
	info := c.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: typ, ReadDpi: true}, bytes.NewReader(data))
	if c.pdf.Err() || info == nil || info.Width() == 0 || info.Height() == 0 {
		c.warn("image %q skipped: %v", src, c.pdf.Error())
		c.pdf.ClearError()
		return "", nil, false
	}
	c.images[src] = name

	return name, info, true
}

func (c *canvas) divider(d template.Divider) {
	thickness := d.Thickness
	if thickness == 0 {
		thickness = 0.3
	}
	col := d.Color
	if col == "" {
		col = c.styles.Palette.Border
	}

	c.ensure(thickness + 4)
	c.y += 2
	c.drawColor(col)
	c.pdf.SetLineWidth(thickness)
	c.pdf.Line(c.left, c.y, c.pageW-c.right, c.y)
	c.y += thickness + 2
}

func (c *canvas) spacer(s template.Spacer) {
	if c.ensure(s.Height) {
		return
	}
	c.y += s.Height
}
