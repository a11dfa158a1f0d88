package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emrgen/docgen/internal/template"
	"github.com/emrgen/docgen/internal/vars"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisual(t *testing.T) {
	tests := []struct {
		name string
		in   string
		rtl  bool
		want string
	}{
		{"latin untouched", "Order 42 (draft)", false, "Order 42 (draft)"},
		{"arabic with number", "رقم 123", true, "123 مقر"},
		{"arabic run inside latin", "Order طلب done", false, "Order بلط done"},
		{"arabic word", "طلب", true, "بلط"},
		{"brackets mirrored", "(طلب)", true, "(بلط)"},
		{"empty", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Visual(tt.in, tt.rtl))
		})
	}
}

func TestPageLabel(t *testing.T) {
	assert.Equal(t, "Page 2 of 5", PageLabel(template.English, 2, 5))
	assert.Equal(t, "صفحة 2 من 5", PageLabel(template.Arabic, 2, 5))
}

func items(n int) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{
			"sku":   fmt.Sprintf("SKU-%03d", i),
			"name":  fmt.Sprintf("Item number %d", i),
			"qty":   i + 1,
			"price": float64(i) * 1.25,
		}
	}

	return rows
}

func orderDefinition(mode template.LanguageMode) template.Definition {
	return template.Definition{
		Name:     "Order {{orderNumber}}",
		Category: template.CategoryOrder,
		Mode:     mode,
		Sections: template.Sections{
			{Order: 3, Content: template.Table{
				DataSource: "{{items}}",
				Striped:    true,
				Bordered:   true,
				Columns: []template.Column{
					{Key: "sku", Caption: template.Text{"en": "SKU", "ar": "الرمز"}, Width: 1},
					{Key: "name", Caption: template.Text{"en": "Name", "ar": "الاسم"}, Width: 3},
					{Key: "qty", Caption: template.Text{"en": "Qty", "ar": "الكمية"}, Align: template.AlignRight},
					{Key: "price", Caption: template.Text{"en": "Price", "ar": "السعر"}, Align: template.AlignRight},
				},
			}},
			{Order: 9, Content: template.Footer{Text: template.Text{"en": "Thank you", "ar": "شكرا"}, PageNumbers: true}},
			{Order: 1, Content: template.Header{
				Title:   template.Text{"en": "Order {{orderNumber}}", "ar": "طلب {{orderNumber}}"},
				Company: template.Plain("ACME Trading"),
				Banner:  true,
			}},
			{Order: 2, Content: template.Body{Text: template.Text{"en": "Dear {{clientName}},", "ar": "عزيزي {{clientName}}،"}}},
			{Order: 4, Content: template.Terms{Items: []template.Text{template.Plain("Payment within 30 days")}}},
			{Order: 5, Content: template.Signature{Signatories: []template.Signatory{
				{Label: template.Plain("Seller"), Name: template.Plain("{{sellerName}}")},
				{Label: template.Plain("Buyer"), Name: template.Plain("{{clientName}}")},
			}}},
		},
	}
}

func orderVars(rows int) vars.List {
	return vars.List{
		{Key: "orderNumber", Value: "ORD-1"},
		{Key: "clientName", Value: "Jane"},
		{Key: "sellerName", Value: "John"},
		{Key: "generatedAt", Value: "2026-01-02T03:04:05Z"},
		{Key: "items", Value: items(rows)},
	}
}

func TestCompose_Pagination(t *testing.T) {
	const rows = 150
	engine := NewEngine(Options{})

	data, report, err := engine.Compose(context.Background(), orderDefinition(template.ModeSource), orderVars(rows), template.English)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	require.Greater(t, len(report.Pages), 2)

	total := len(report.Pages)
	placed := make(map[int]int)
	for i, p := range report.Pages {
		assert.Equal(t, i+1, p.Number)
		assert.True(t, p.Footer, "page %d has no footer", p.Number)
		assert.Equal(t, "Thank you", p.FooterText)
		assert.Equal(t, fmt.Sprintf("Page %d of %d", i+1, total), p.PageLabel)

		for _, r := range p.Rows {
			assert.LessOrEqual(t, r.Bottom, report.ContentBottom+1e-9, "row %d overflows page %d", r.Index, p.Number)
			assert.Less(t, r.Top, r.Bottom)
			placed[r.Index]++
		}
		if len(p.Rows) > 0 {
			assert.Equal(t, 1, p.TableHeaders, "page %d repeats the header once", p.Number)
		}
	}

	require.Len(t, placed, rows)
	for i := 0; i < rows; i++ {
		assert.Equal(t, 1, placed[i], "row %d placed once", i)
	}
	assert.Empty(t, report.Warnings)
}

func TestCompose_RowOrder(t *testing.T) {
	_, report, err := NewEngine(Options{}).Compose(context.Background(), orderDefinition(template.ModeSource), orderVars(80), template.English)
	require.NoError(t, err)

	next := 0
	for _, p := range report.Pages {
		for _, r := range p.Rows {
			assert.Equal(t, next, r.Index)
			next++
		}
	}
	assert.Equal(t, 80, next)
}

func TestCompose_RowTallerThanPage(t *testing.T) {
	rows := items(3)
	rows[1]["name"] = strings.Repeat("lorem ipsum ", 1250)
	variables := orderVars(0)
	variables[len(variables)-1].Value = rows

	_, report, err := NewEngine(Options{}).Compose(context.Background(), orderDefinition(template.ModeSource), variables, template.English)
	require.NoError(t, err)

	parts := 0
	next := 0
	for _, p := range report.Pages {
		for _, r := range p.Rows {
			assert.LessOrEqual(t, r.Bottom, report.ContentBottom+1e-9, "row %d part %d overflows page %d", r.Index, r.Part, p.Number)
			assert.Less(t, r.Top, r.Bottom)
			if r.Index == 1 {
				assert.Equal(t, parts, r.Part)
				parts++
				continue
			}
			assert.Equal(t, next, r.Index)
			next += 2
		}
		if len(p.Rows) > 0 {
			assert.Equal(t, 1, p.TableHeaders, "page %d repeats the header once", p.Number)
		}
	}

	assert.Greater(t, parts, 1)
	assert.Equal(t, 4, next)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "row 2")
}

func TestCompose_Arabic(t *testing.T) {
	_, report, err := NewEngine(Options{}).Compose(context.Background(), orderDefinition(template.ModeBilingual), orderVars(60), template.Arabic)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "no UTF-8 font")

	total := len(report.Pages)
	for i, p := range report.Pages {
		assert.Equal(t, fmt.Sprintf("صفحة %d من %d", i+1, total), p.PageLabel)
		assert.Equal(t, "شكرا", p.FooterText)
	}
}

func TestCompose_ArabicWithoutFont(t *testing.T) {
	tests := []struct {
		name  string
		mode  template.LanguageMode
		lang  template.Language
		warns bool
	}{
		{"english only", template.ModeSource, template.English, false},
		{"bilingual english", template.ModeBilingual, template.English, true},
		{"bilingual arabic", template.ModeBilingual, template.Arabic, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, report, err := NewEngine(Options{}).Compose(context.Background(), orderDefinition(tt.mode), orderVars(2), tt.lang)
			require.NoError(t, err)

			warned := false
			for _, w := range report.Warnings {
				warned = warned || strings.Contains(w, "no UTF-8 font")
			}
			assert.Equal(t, tt.warns, warned)
		})
	}
}

func TestCompose_Deterministic(t *testing.T) {
	engine := NewEngine(Options{})
	def := orderDefinition(template.ModeBilingual)

	a, err := engine.Render(context.Background(), def, orderVars(40), template.English)
	require.NoError(t, err)
	b, err := engine.Render(context.Background(), def, orderVars(40), template.English)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestCompose_MissingVariables(t *testing.T) {
	data, report, err := NewEngine(Options{}).Compose(context.Background(), orderDefinition(template.ModeSource), nil, template.English)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "items")
}

func TestCompose_Images(t *testing.T) {
	dir := t.TempDir()

	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.png"), buf.Bytes(), 0o644))

	def := template.Definition{
		Name:     "Images",
		Category: template.CategoryOther,
		Mode:     template.ModeSource,
		Sections: template.Sections{
			{Order: 1, Content: template.Header{Title: template.Plain("Logo"), Logo: "logo.png"}},
			{Order: 2, Content: template.Image{Source: "{{photo}}", Width: 20}},
			{Order: 3, Content: template.Image{Source: "missing.png", Width: 20}},
			{Order: 4, Content: template.Image{Source: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), Height: 10}},
			{Order: 5, Content: template.Divider{}},
			{Order: 6, Content: template.Spacer{Height: 5}},
		},
	}
	variables := vars.List{{Key: "photo", Value: "logo.png"}}

	data, report, err := NewEngine(Options{AssetDir: dir}).Compose(context.Background(), def, variables, template.English)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "missing.png")
}

func imageServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)

	return srv, &hits
}

func TestAssetLoader_RemoteHosts(t *testing.T) {
	srv, hits := imageServer(t)
	src := srv.URL + "/logo.png"

	tests := []struct {
		name          string
		hosts         []string
		fromVariables bool
		denied        bool
	}{
		{"template url without list", nil, false, false},
		{"variable url without list", nil, true, true},
		{"variable url on listed host", []string{"127.0.0.1"}, true, false},
		{"template url on unlisted host", []string{"cdn.example.com"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := hits.Load()
			data, err := NewAssetLoader("", time.Second, tt.hosts).Load(context.Background(), src, tt.fromVariables)
			if tt.denied {
				assert.ErrorIs(t, err, ErrAssetHostDenied)
				assert.Equal(t, before, hits.Load())
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, data)
			assert.Equal(t, before+1, hits.Load())
		})
	}
}

func TestCompose_VariableImageURLIsNotFetched(t *testing.T) {
	srv, hits := imageServer(t)

	def := template.Definition{
		Name:     "Remote",
		Category: template.CategoryOther,
		Mode:     template.ModeSource,
		Sections: template.Sections{
			{Order: 1, Content: template.Image{Source: "{{photo}}", Width: 20}},
		},
	}
	variables := vars.List{{Key: "photo", Value: srv.URL + "/internal"}}

	_, report, err := NewEngine(Options{}).Compose(context.Background(), def, variables, template.English)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "not allowed")
	assert.Zero(t, hits.Load())
}

func TestCompose_MissingFont(t *testing.T) {
	engine := NewEngine(Options{FontDir: t.TempDir(), UTF8Font: "NotoNaskhArabic.ttf"})

	data, report, err := engine.Compose(context.Background(), orderDefinition(template.ModeSource), orderVars(3), template.English)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "NotoNaskhArabic.ttf")
}

func TestCompose_Errors(t *testing.T) {
	engine := NewEngine(Options{})

	_, err := engine.Render(context.Background(), orderDefinition(template.ModeSource), orderVars(1), template.Arabic)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	_, err = engine.Render(context.Background(), template.Definition{Name: "empty", Mode: template.ModeSource}, nil, template.English)
	assert.ErrorIs(t, err, ErrNoSections)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Render(ctx, orderDefinition(template.ModeSource), orderVars(1), template.English)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreationDate(t *testing.T) {
	assert.Equal(t, epoch, creationDate(nil))
	assert.Equal(t, epoch, creationDate(vars.List{{Key: "generatedAt", Value: "yesterday"}}))
	assert.Equal(t, 2026, creationDate(vars.List{{Key: "generatedAt", Value: "2026-01-02T03:04:05+02:00"}}).Year())
}
