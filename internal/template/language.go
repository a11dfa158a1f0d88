package template

import (
	"fmt"

	"golang.org/x/text/language"
)

// Language is a BCP 47 base language used to pick localized text.
type Language string

const (
	English Language = "en"
	Arabic  Language = "ar"
)

var rtlScripts = map[string]bool{
	"Arab": true,
	"Hebr": true,
	"Syrc": true,
	"Thaa": true,
	"Nkoo": true,
	"Adlm": true,
}

// ParseLanguage normalizes s to its base language.
func ParseLanguage(s string) (Language, error) {
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", s, err)
	}
	base, _ := tag.Base()

	return Language(base.String()), nil
}

// Tag returns the x/text tag for l.
func (l Language) Tag() language.Tag {
	return language.Make(string(l))
}

// RTL reports whether l is written right to left, derived from its likely script.
func (l Language) RTL() bool {
	script, _ := l.Tag().Script()
	return rtlScripts[script.String()]
}

// LanguageMode selects which languages a template prints.
type LanguageMode string

const (
	// ModeSource prints English only.
	ModeSource LanguageMode = "source"
	// ModeTarget prints Arabic only.
	ModeTarget LanguageMode = "target"
	// ModeBilingual prints the requested language with the other beneath it.
	ModeBilingual LanguageMode = "bilingual"
)

// Supports reports whether a template in mode m can be rendered in lang.
func (m LanguageMode) Supports(lang Language) bool {
	switch m {
	case ModeSource:
		return lang == English
	case ModeTarget:
		return lang == Arabic
	case ModeBilingual:
		return lang == English || lang == Arabic
	}

	return false
}

// Languages returns the languages to print for lang, primary first.
func (m LanguageMode) Languages(lang Language) []Language {
	if m != ModeBilingual {
		return []Language{lang}
	}
	if lang == Arabic {
		return []Language{Arabic, English}
	}

	return []Language{English, Arabic}
}
