// Package template defines the declarative document templates: categories,
// language modes, the closed set of section kinds and the style sheet.
package template

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

type Category string

const (
	CategoryPriceOffer Category = "price-offer"
	CategoryOrder      Category = "order"
	CategoryInvoice    Category = "invoice"
	CategoryContract   Category = "contract"
	CategoryReport     Category = "report"
	CategoryOther      Category = "other"
)

var categories = mapset.NewSet(
	CategoryPriceOffer,
	CategoryOrder,
	CategoryInvoice,
	CategoryContract,
	CategoryReport,
	CategoryOther,
)

func (c Category) Valid() bool {
	return categories.Contains(c)
}

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown template category %q", s)
	}

	return c, nil
}

// Definition is the content of a template, independent of its storage row.
type Definition struct {
	Name      string       `json:"name" validate:"required,max=200"`
	Category  Category     `json:"category" validate:"required,oneof=price-offer order invoice contract report other"`
	Mode      LanguageMode `json:"languageMode" validate:"required,oneof=source target bilingual"`
	Sections  Sections     `json:"sections"`
	Variables []string     `json:"variables"`
	Styles    Styles       `json:"styles"`
	IsActive  bool         `json:"isActive"`
	IsDefault bool         `json:"isDefault"`
}

// Validate checks the definition and every section it carries.
func (d *Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return err
	}

	return d.Sections.Validate()
}

// Normalize drops duplicate and empty variable keys, keeping first-seen order.
func (d *Definition) Normalize() {
	d.Variables = UniqueKeys(d.Variables)
}

// UniqueKeys returns keys without blanks or repeats.
func UniqueKeys(keys []string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen.Contains(k) {
			continue
		}
		seen.Add(k)
		out = append(out, k)
	}

	return out
}

// Footer returns the footer section, if the template declares one.
func (s Sections) Footer() (Footer, bool) {
	for _, section := range s {
		if f, ok := section.Content.(Footer); ok {
			return f, true
		}
	}

	return Footer{}, false
}
