package template

import (
	"encoding/json"
	"sort"
)

// anyLanguage holds text written as a plain string, shared by every language.
const anyLanguage Language = "*"

// Text is a localized string. It decodes from either {"en": "...", "ar": "..."}
// or a plain string that applies to all languages.
type Text map[Language]string

// Plain returns a Text that reads the same in every language.
func Plain(s string) Text {
	return Text{anyLanguage: s}
}

// In returns the text for lang, falling back to the shared value and then English.
func (t Text) In(lang Language) string {
	if s, ok := t[lang]; ok {
		return s
	}
	if s, ok := t[anyLanguage]; ok {
		return s
	}

	return t[English]
}

// Has reports whether t carries a value written specifically for lang.
func (t Text) Has(lang Language) bool {
	_, ok := t[lang]
	return ok
}

func (t Text) Empty() bool {
	for _, s := range t {
		if s != "" {
			return false
		}
	}

	return true
}

func (t Text) MarshalJSON() ([]byte, error) {
	if s, ok := t[anyLanguage]; ok && len(t) == 1 {
		return json.Marshal(s)
	}

	// stable key order keeps stored snapshots byte-identical
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	m := make(map[string]string, len(t))
	for _, k := range keys {
		m[k] = t[Language(k)]
	}

	return json.Marshal(m)
}

func (t *Text) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Plain(s)
		return nil
	}

	var m map[Language]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*t = m

	return nil
}
