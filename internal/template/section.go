package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

var ErrUnknownKind = errors.New("unknown section kind")

var validate = validator.New()

type Kind string

const (
	KindHeader    Kind = "header"
	KindBody      Kind = "body"
	KindTable     Kind = "table"
	KindTerms     Kind = "terms"
	KindSignature Kind = "signature"
	KindFooter    Kind = "footer"
	KindImage     Kind = "image"
	KindDivider   Kind = "divider"
	KindSpacer    Kind = "spacer"
)

// Content is implemented by exactly one struct per section kind.
type Content interface {
	Kind() Kind
	Validate() error
}

type Align string

const (
	AlignStart  Align = ""
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Header draws a banner, an optional logo, the company block and a centered title.
type Header struct {
	Title   Text   `json:"title" validate:"required"`
	Company Text   `json:"company,omitempty"`
	Logo    string `json:"logo,omitempty"`
	Banner  bool   `json:"banner,omitempty"`
}

type Body struct {
	Title Text  `json:"title,omitempty"`
	Text  Text  `json:"text" validate:"required"`
	Align Align `json:"align,omitempty" validate:"omitempty,oneof=left center right"`
}

type Column struct {
	Key     string  `json:"key" validate:"required"`
	Caption Text    `json:"caption" validate:"required"`
	Width   float64 `json:"width,omitempty" validate:"gte=0"`
	Align   Align   `json:"align,omitempty" validate:"omitempty,oneof=left center right"`
}

// Table draws one row per element of the array variable named by DataSource.
type Table struct {
	Title      Text     `json:"title,omitempty"`
	DataSource string   `json:"dataSource" validate:"required"`
	Columns    []Column `json:"columns" validate:"required,min=1,dive"`
	Striped    bool     `json:"striped,omitempty"`
	Bordered   bool     `json:"bordered,omitempty"`
}

type Terms struct {
	Title Text   `json:"title,omitempty"`
	Items []Text `json:"items" validate:"required,min=1"`
}

type Signatory struct {
	Label Text `json:"label" validate:"required"`
	Name  Text `json:"name,omitempty"`
	Title Text `json:"title,omitempty"`
}

type Signature struct {
	Signatories []Signatory `json:"signatories" validate:"required,min=1,dive"`
}

// Footer is stamped on every page once the page count is known.
type Footer struct {
	Text        Text `json:"text,omitempty"`
	PageNumbers bool `json:"pageNumbers,omitempty"`
}

type Image struct {
	Source string  `json:"source" validate:"required"`
	Width  float64 `json:"width,omitempty" validate:"gte=0"`
	Height float64 `json:"height,omitempty" validate:"gte=0"`
	Align  Align   `json:"align,omitempty" validate:"omitempty,oneof=left center right"`
}

type Divider struct {
	Thickness float64 `json:"thickness,omitempty" validate:"gte=0"`
	Color     Color   `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

type Spacer struct {
	Height float64 `json:"height" validate:"gt=0"`
}

func (Header) Kind() Kind    { return KindHeader }
func (Body) Kind() Kind      { return KindBody }
func (Table) Kind() Kind     { return KindTable }
func (Terms) Kind() Kind     { return KindTerms }
func (Signature) Kind() Kind { return KindSignature }
func (Footer) Kind() Kind    { return KindFooter }
func (Image) Kind() Kind     { return KindImage }
func (Divider) Kind() Kind   { return KindDivider }
func (Spacer) Kind() Kind    { return KindSpacer }

func (c Header) Validate() error    { return validate.Struct(c) }
func (c Body) Validate() error      { return validate.Struct(c) }
func (c Table) Validate() error     { return validate.Struct(c) }
func (c Signature) Validate() error { return validate.Struct(c) }
func (c Footer) Validate() error    { return validate.Struct(c) }
func (c Image) Validate() error     { return validate.Struct(c) }
func (c Divider) Validate() error   { return validate.Struct(c) }
func (c Spacer) Validate() error    { return validate.Struct(c) }

func (c Terms) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for i, item := range c.Items {
		if item.Empty() {
			return fmt.Errorf("term %d is empty", i+1)
		}
	}

	return nil
}

// Section is one ordered content block of a template.
type Section struct {
	Order   int
	Content Content
}

type envelope struct {
	Kind    Kind            `json:"kind"`
	Order   int             `json:"order"`
	Content json.RawMessage `json:"content"`
}

func newContent(kind Kind) (Content, error) {
	switch kind {
	case KindHeader:
		return &Header{}, nil
	case KindBody:
		return &Body{}, nil
	case KindTable:
		return &Table{}, nil
	case KindTerms:
		return &Terms{}, nil
	case KindSignature:
		return &Signature{}, nil
	case KindFooter:
		return &Footer{}, nil
	case KindImage:
		return &Image{}, nil
	case KindDivider:
		return &Divider{}, nil
	case KindSpacer:
		return &Spacer{}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func (s Section) Kind() Kind {
	if s.Content == nil {
		return ""
	}
	return s.Content.Kind()
}

func (s Section) MarshalJSON() ([]byte, error) {
	if s.Content == nil {
		return nil, errors.New("section has no content")
	}

	content, err := json.Marshal(s.Content)
	if err != nil {
		return nil, err
	}

	return json.Marshal(envelope{Kind: s.Content.Kind(), Order: s.Order, Content: content})
}

func (s *Section) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	content, err := newContent(env.Kind)
	if err != nil {
		return err
	}
	if len(env.Content) > 0 && string(env.Content) != "null" {
		if err := json.Unmarshal(env.Content, content); err != nil {
			return fmt.Errorf("section %s: %w", env.Kind, err)
		}
	}

	s.Order = env.Order
	s.Content = deref(content)

	return nil
}

// deref stores contents by value so type switches see a single shape.
func deref(c Content) Content {
	switch v := c.(type) {
	case *Header:
		return *v
	case *Body:
		return *v
	case *Table:
		return *v
	case *Terms:
		return *v
	case *Signature:
		return *v
	case *Footer:
		return *v
	case *Image:
		return *v
	case *Divider:
		return *v
	case *Spacer:
		return *v
	}

	return c
}

type Sections []Section

// Sorted returns a copy ordered by Order, keeping the declared order on ties.
func (s Sections) Sorted() Sections {
	out := make(Sections, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})

	return out
}

func (s Sections) Validate() error {
	if len(s) == 0 {
		return errors.New("template has no sections")
	}

	for i, section := range s {
		if section.Content == nil {
			return fmt.Errorf("section %d: missing content", i)
		}
		if err := section.Content.Validate(); err != nil {
			return fmt.Errorf("section %d (%s): %w", i, section.Kind(), err)
		}
	}

	return nil
}
