package render

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/emrgen/docgen/internal/template"
	"github.com/emrgen/docgen/internal/vars"
	"github.com/phpdave11/gofpdf"
	"github.com/sirupsen/logrus"
)

const (
	coreFamily = "Helvetica"
	utf8Family = "DocText"
	ptToMM     = 0.3528
)

func lineHeight(size float64) float64 {
	return size * ptToMM * 1.4
}

// canvas is the layout state of one render. y is the cursor on the current page.
type canvas struct {
	ctx    context.Context
	pdf    *gofpdf.Fpdf
	styles template.Styles
	mode   template.LanguageMode
	lang   template.Language
	vars   vars.List
	assets *AssetLoader
	images map[string]string

	family string
	utf8   bool
	tr     func(string) string

	pageW, pageH float64
	left, right  float64
	top, bottom  float64
	y            float64

	footer *template.Footer
	report *Report
}

func (c *canvas) contentWidth() float64 {
	return c.pageW - c.left - c.right
}

func (c *canvas) page() *PageReport {
	return &c.report.Pages[len(c.report.Pages)-1]
}

func (c *canvas) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logrus.WithField("language", c.lang).Warn(msg)
	c.report.Warnings = append(c.report.Warnings, msg)
}

func (c *canvas) newPage() {
	c.pdf.AddPage()
	c.y = c.top
	c.report.Pages = append(c.report.Pages, PageReport{Number: c.pdf.PageNo()})
}

// ensure starts a new page when h does not fit below the cursor.
func (c *canvas) ensure(h float64) bool {
	if c.y+h <= c.bottom {
		return false
	}

	c.newPage()
	return true
}

// languages lists the languages a text is printed in, requested one first.
func (c *canvas) languages() []template.Language {
	if c.mode == "" {
		return []template.Language{c.lang}
	}

	return c.mode.Languages(c.lang)
}

// localized resolves t for every printed language, dropping repeats of the
// same string. Placeholders are substituted.
func (c *canvas) localized(t template.Text) []localizedText {
	out := make([]localizedText, 0, 2)
	for i, lang := range c.languages() {
		if i > 0 && !t.Has(lang) {
			continue
		}
		s := c.vars.Substitute(t.In(lang))
		if s == "" || (len(out) > 0 && s == out[0].text) {
			continue
		}
		out = append(out, localizedText{lang: lang, text: s, secondary: i > 0})
	}

	return out
}

type localizedText struct {
	lang      template.Language
	text      string
	secondary bool
}

func (c *canvas) encode(s string) string {
	if c.utf8 {
		return s
	}

	return c.tr(s)
}

func (c *canvas) setFont(style string, size float64) {
	if c.utf8 {
		// the UTF-8 face is registered for regular and bold only
		style = strings.ReplaceAll(style, "I", "")
	}
	c.pdf.SetFont(c.family, style, size)
}

// resetFont forces the font to be written into the current page stream.
// gofpdf skips SetFont calls that match its state, which is wrong after SetPage.
func (c *canvas) resetFont(style string, size float64) {
	c.setFont(style, size+1)
	c.setFont(style, size)
}

func rgb(col template.Color) (int, int, int) {
	r, g, b, err := col.RGB()
	if err != nil {
		return 0, 0, 0
	}

	return r, g, b
}

func (c *canvas) textColor(col template.Color) {
	c.pdf.SetTextColor(rgb(col))
}

func (c *canvas) fillColor(col template.Color) {
	c.pdf.SetFillColor(rgb(col))
}

func (c *canvas) drawColor(col template.Color) {
	c.pdf.SetDrawColor(rgb(col))
}

// alignCode maps an alignment to gofpdf, mirrored for right-to-left text.
func alignCode(a template.Align, rtl bool) string {
	switch a {
	case template.AlignCenter:
		return "C"
	case template.AlignLeft:
		if rtl {
			return "R"
		}
		return "L"
	case template.AlignRight:
		if rtl {
			return "L"
		}
		return "R"
	}

	if rtl {
		return "R"
	}
	return "L"
}

// cell draws one line of logical text at (x, y).
func (c *canvas) cell(x, y, w, h float64, s string, lang template.Language, align template.Align) {
	c.pdf.SetXY(x, y)
	c.pdf.CellFormat(w, h, c.encode(Visual(s, lang.RTL())), "", 0, alignCode(align, lang.RTL()), false, 0, "")
}

func (c *canvas) width(s string) float64 {
	return c.pdf.GetStringWidth(c.encode(s))
}

// wrap breaks logical text into lines no wider than w under the current font.
func (c *canvas) wrap(s string, w float64) []string {
	lines := make([]string, 0, 4)
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		line := ""
		for _, word := range words {
			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if c.width(candidate) <= w {
				line = candidate
				continue
			}
			if line != "" {
				lines = append(lines, line)
			}
			// words wider than the box are split by rune
			for c.width(word) > w {
				cut := c.fit(word, w)
				lines = append(lines, word[:cut])
				word = word[cut:]
			}
			line = word
		}
		lines = append(lines, line)
	}

	return lines
}

// fit returns the byte length of the longest prefix of s that fits w, at least one rune.
func (c *canvas) fit(s string, w float64) int {
	cut := 0
	for i, r := range s {
		next := i + len(string(r))
		if cut > 0 && c.width(s[:next]) > w {
			break
		}
		cut = next
	}

	return cut
}

// paragraph draws wrapped text across the content width, breaking pages between lines.
func (c *canvas) paragraph(lt localizedText, align template.Align, style string, size float64, col template.Color) {
	if strings.TrimFunc(lt.text, unicode.IsSpace) == "" {
		return
	}

	c.setFont(style, size)
	c.textColor(col)
	lh := lineHeight(size)
	for _, line := range c.wrap(lt.text, c.contentWidth()) {
		c.ensure(lh)
		c.cell(c.left, c.y, c.contentWidth(), lh, line, lt.lang, align)
		c.y += lh
	}
}

// text draws every localized variant of t, secondary languages smaller and muted.
func (c *canvas) text(t template.Text, align template.Align, style string, size float64, col template.Color) {
	for _, lt := range c.localized(t) {
		if lt.secondary {
			c.paragraph(lt, align, style, size*0.9, c.styles.Palette.Muted)
			continue
		}
		c.paragraph(lt, align, style, size, col)
	}
}
