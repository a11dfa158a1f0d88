// Package vars holds runtime template variables, placeholder substitution and
// the content hash shared by deduplication and the preview cache.
package vars

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Variable is a single named runtime value.
type Variable struct {
	Key   string `json:"key" validate:"required"`
	Value any    `json:"value"`
}

// List is an ordered variable set. Later entries win on lookup.
type List []Variable

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Lookup returns the value bound to key.
func (l List) Lookup(key string) (any, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].Key == key {
			return l[i].Value, true
		}
	}

	return nil, false
}

// String returns the value of key formatted as text, or "" when missing.
func (l List) String(key string) string {
	v, ok := l.Lookup(key)
	if !ok {
		return ""
	}

	return Format(v)
}

// Substitute replaces every {{key}} in s. Missing keys become the empty string.
func (l List) Substitute(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}

	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		return l.String(key)
	})
}

// HasPlaceholder reports whether s refers to any variable.
func HasPlaceholder(s string) bool {
	return placeholder.MatchString(s)
}

// PlaceholderKey extracts the key of a value written as a lone placeholder,
// e.g. "{{items}}". Plain keys are returned unchanged.
func PlaceholderKey(s string) string {
	s = strings.TrimSpace(s)
	if m := placeholder.FindStringSubmatch(s); m != nil && m[0] == s {
		return m[1]
	}

	return s
}

// Rows resolves key to an array of objects, the shape table sections consume.
func (l List) Rows(key string) ([]map[string]any, bool) {
	v, ok := l.Lookup(key)
	if !ok {
		return nil, false
	}

	switch rows := v.(type) {
	case []map[string]any:
		return rows, true
	case []any:
		out := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			m, ok := row.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	case string:
		var out []map[string]any
		if err := json.Unmarshal([]byte(rows), &out); err != nil {
			return nil, false
		}
		return out, true
	case json.RawMessage:
		var out []map[string]any
		if err := json.Unmarshal(rows, &out); err != nil {
			return nil, false
		}
		return out, true
	}

	return nil, false
}

// Keys lists the distinct keys in first-seen order.
func (l List) Keys() []string {
	seen := make(map[string]struct{}, len(l))
	keys := make([]string, 0, len(l))
	for _, v := range l {
		if _, ok := seen[v.Key]; ok {
			continue
		}
		seen[v.Key] = struct{}{}
		keys = append(keys, v.Key)
	}

	return keys
}

// Format renders a variable value as display text.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}

	return string(b)
}
