package template

import (
	"fmt"
	"strconv"
	"strings"

	"dario.cat/mergo"
)

// Color is a "#rrggbb" hex color.
type Color string

// RGB decodes c. Short "#rgb" forms are expanded.
func (c Color) RGB() (r, g, b int, err error) {
	s := strings.TrimPrefix(string(c), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid color %q", c)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid color %q: %w", c, err)
	}

	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), nil
}

type Palette struct {
	Primary   Color `json:"primary,omitempty" validate:"omitempty,hexcolor"`
	Secondary Color `json:"secondary,omitempty" validate:"omitempty,hexcolor"`
	Text      Color `json:"text,omitempty" validate:"omitempty,hexcolor"`
	Muted     Color `json:"muted,omitempty" validate:"omitempty,hexcolor"`
	Stripe    Color `json:"stripe,omitempty" validate:"omitempty,hexcolor"`
	Border    Color `json:"border,omitempty" validate:"omitempty,hexcolor"`
}

// Margins are in millimetres.
type Margins struct {
	Top    float64 `json:"top,omitempty" validate:"gte=0"`
	Right  float64 `json:"right,omitempty" validate:"gte=0"`
	Bottom float64 `json:"bottom,omitempty" validate:"gte=0"`
	Left   float64 `json:"left,omitempty" validate:"gte=0"`
}

// Styles is the style sheet of a template. Zero fields take the defaults.
type Styles struct {
	Palette      Palette `json:"palette"`
	FontSize     float64 `json:"fontSize,omitempty" validate:"gte=0,lte=72"`
	Margins      Margins `json:"margins"`
	HeaderHeight float64 `json:"headerHeight,omitempty" validate:"gte=0"`
	FooterHeight float64 `json:"footerHeight,omitempty" validate:"gte=0"`
}

func DefaultStyles() Styles {
	return Styles{
		Palette: Palette{
			Primary:   "#1f3a5f",
			Secondary: "#4f6d8f",
			Text:      "#222222",
			Muted:     "#777777",
			Stripe:    "#f2f5f9",
			Border:    "#c8d0da",
		},
		FontSize:     10,
		Margins:      Margins{Top: 15, Right: 15, Bottom: 15, Left: 15},
		HeaderHeight: 28,
		FooterHeight: 14,
	}
}

// WithDefaults fills every zero field of s from DefaultStyles.
func (s Styles) WithDefaults() Styles {
	out := s
	if err := mergo.Merge(&out, DefaultStyles()); err != nil {
		// mergo only fails on mismatched types
		return DefaultStyles()
	}

	return out
}
