// Package render lays out a template with its variables into a PDF.
//
// Rendering runs in two phases. The first lays out every section with footers
// deferred; the second revisits each finished page to stamp the footer with
// the final page count.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/emrgen/docgen/internal/template"
	"github.com/emrgen/docgen/internal/vars"
	"github.com/phpdave11/gofpdf"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyOutput         = errors.New("renderer produced no output")
	ErrNoSections          = errors.New("template has no sections")
	ErrUnsupportedLanguage = errors.New("template does not support the requested language")
)

// epoch is the creation date of documents that do not carry generatedAt.
var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

type Options struct {
	// FontDir holds TrueType fonts and is the root for relative font names.
	FontDir string
	// UTF8Font is a TrueType file in FontDir used instead of the core font.
	// It is required to print scripts outside Windows-1252, e.g. Arabic.
	UTF8Font string
	// AssetDir is the root for relative image paths.
	AssetDir     string
	AssetTimeout time.Duration
	// AssetHosts may serve remote images. URLs that come from variables are
	// refused unless their host is listed.
	AssetHosts []string
}

// RowSpan is the vertical extent of a table row on its page. Part counts the
// fragments of a row split across pages.
type RowSpan struct {
	Index  int
	Part   int
	Top    float64
	Bottom float64
}

type PageReport struct {
	Number       int
	Rows         []RowSpan
	TableHeaders int
	Footer       bool
	FooterText   string
	PageLabel    string
}

// Report describes the layout of a rendered document.
type Report struct {
	Pages         []PageReport
	ContentBottom float64
	Warnings      []string
}

type Engine struct {
	opts   Options
	assets *AssetLoader
}

func NewEngine(opts Options) *Engine {
	return &Engine{
		opts:   opts,
		assets: NewAssetLoader(opts.AssetDir, opts.AssetTimeout, opts.AssetHosts),
	}
}

// Render returns the PDF bytes of def for variables in lang.
func (e *Engine) Render(ctx context.Context, def template.Definition, variables vars.List, lang template.Language) ([]byte, error) {
	data, _, err := e.Compose(ctx, def, variables, lang)
	return data, err
}

// Compose renders like Render and also reports how pages were laid out.
func (e *Engine) Compose(ctx context.Context, def template.Definition, variables vars.List, lang template.Language) ([]byte, *Report, error) {
	if len(def.Sections) == 0 {
		return nil, nil, ErrNoSections
	}
	if def.Mode != "" && !def.Mode.Supports(lang) {
		return nil, nil, fmt.Errorf("%w: %s in %s mode", ErrUnsupportedLanguage, lang, def.Mode)
	}

	styles := def.Styles.WithDefaults()
	pdf := gofpdf.New("P", "mm", "A4", e.opts.FontDir)
	pdf.SetMargins(styles.Margins.Left, styles.Margins.Top, styles.Margins.Right)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(creationDate(variables))
	pdf.SetTitle(variables.Substitute(def.Name), true)
	pdf.SetCreator("docgen", false)

	pageW, pageH := pdf.GetPageSize()
	c := &canvas{
		ctx:    ctx,
		pdf:    pdf,
		styles: styles,
		mode:   def.Mode,
		lang:   lang,
		vars:   variables,
		assets: e.assets,
		images: make(map[string]string),
		pageW:  pageW,
		pageH:  pageH,
		left:   styles.Margins.Left,
		right:  styles.Margins.Right,
		top:    styles.Margins.Top,
		bottom: pageH - styles.Margins.Bottom,
		report: &Report{},
	}
	if footer, ok := def.Sections.Footer(); ok {
		c.footer = &footer
		c.bottom -= styles.FooterHeight
	}
	c.report.ContentBottom = c.bottom

	e.loadFont(c)
	c.newPage()
	for _, section := range def.Sections.Sorted() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		c.draw(section.Content)
	}
	c.stampFooters()

	if pdf.Err() {
		return nil, nil, fmt.Errorf("render: %w", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, nil, fmt.Errorf("render: %w", err)
	}
	if buf.Len() == 0 {
		return nil, nil, ErrEmptyOutput
	}

	return buf.Bytes(), c.report, nil
}

// loadFont selects the UTF-8 face when it is configured and present, and the
// core font otherwise.
func (e *Engine) loadFont(c *canvas) {
	c.family = coreFamily
	c.tr = c.pdf.UnicodeTranslatorFromDescriptor("")
	defer func() {
		if c.utf8 {
			return
		}
		for _, lang := range c.languages() {
			if lang.RTL() {
				c.warn("no UTF-8 font loaded, %s text is printed with %s and will not be legible", lang, coreFamily)
				return
			}
		}
	}()

	if e.opts.UTF8Font == "" {
		return
	}
	if _, err := os.Stat(filepath.Join(e.opts.FontDir, e.opts.UTF8Font)); err != nil {
		c.warn("font %s unavailable, falling back to %s: %v", e.opts.UTF8Font, coreFamily, err)
		return
	}

	c.pdf.AddUTF8Font(utf8Family, "", e.opts.UTF8Font)
	c.pdf.AddUTF8Font(utf8Family, "B", e.opts.UTF8Font)
	if c.pdf.Err() {
		c.warn("font %s failed to load, falling back to %s: %v", e.opts.UTF8Font, coreFamily, c.pdf.Error())
		c.pdf.ClearError()
		return
	}

	c.family = utf8Family
	c.utf8 = true
}

// stampFooters is the second phase: every finished page gets the footer.
func (c *canvas) stampFooters() {
	if c.footer == nil {
		return
	}

	last := c.pdf.PageNo()
	total := c.pdf.PageCount()
	size := c.styles.FontSize * 0.85
	lh := lineHeight(size)

	text := ""
	for _, lt := range c.localized(c.footer.Text) {
		if !lt.secondary {
			text = lt.text
		}
	}

	for n := 1; n <= total; n++ {
		c.pdf.SetPage(n)
		c.resetFont("", size)
		c.drawColor(c.styles.Palette.Border)
		c.pdf.SetLineWidth(0.2)

		top := c.bottom + 2
		c.pdf.Line(c.left, top, c.pageW-c.right, top)

		p := &c.report.Pages[n-1]
		p.Footer = true
		c.textColor(c.styles.Palette.Muted)
		if text != "" {
			c.cell(c.left, top+1, c.contentWidth(), lh, text, c.lang, template.AlignStart)
			p.FooterText = text
		}
		if c.footer.PageNumbers {
			label := PageLabel(c.lang, n, total)
			// right aligned text is mirrored to the left edge in RTL
			c.cell(c.left, top+1+lh, c.contentWidth(), lh, label, c.lang, template.AlignRight)
			p.PageLabel = label
		}
	}

	c.pdf.SetPage(last)
}

// creationDate reads generatedAt so identical inputs give identical bytes.
func creationDate(variables vars.List) time.Time {
	v, ok := variables.Lookup("generatedAt")
	if !ok {
		return epoch
	}

	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UTC()
		}
	}

	logrus.Debugf("ignoring unparsable generatedAt %v", v)
	return epoch
}
