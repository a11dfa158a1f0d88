package render

import (
	"strconv"

	"github.com/emrgen/docgen/internal/template"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	msgPageOf = "Page %[1]s of %[2]s"
	msgPage   = "Page %[1]s"
)

// engineCatalog holds the strings the engine prints by itself. Numbers are
// formatted before substitution so they stay in Latin digits, which every
// configured font can draw.
var engineCatalog = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	_ = b.SetString(language.English, msgPageOf, "Page %[1]s of %[2]s")
	_ = b.SetString(language.English, msgPage, "Page %[1]s")
	_ = b.SetString(language.Arabic, msgPageOf, "صفحة %[1]s من %[2]s")
	_ = b.SetString(language.Arabic, msgPage, "صفحة %[1]s")

	return b
}()

func printer(lang template.Language) *message.Printer {
	return message.NewPrinter(lang.Tag(), message.Catalog(engineCatalog))
}

// PageLabel returns the localized "Page X of N".
func PageLabel(lang template.Language, page, total int) string {
	return printer(lang).Sprintf(msgPageOf, strconv.Itoa(page), strconv.Itoa(total))
}
