package render

import "golang.org/x/text/unicode/bidi"

// direction classes after the weak type rules used here
type dirClass uint8

const (
	dirN dirClass = iota
	dirL
	dirR
	dirEN
	dirAN
)

var mirrored = map[rune]rune{
	'(': ')', ')': '(',
	'[': ']', ']': '[',
	'{': '}', '}': '{',
	'<': '>', '>': '<',
	'«': '»', '»': '«',
}

func classify(r rune) dirClass {
	p, _ := bidi.LookupRune(r)
	switch p.Class() {
	case bidi.L:
		return dirL
	case bidi.R, bidi.AL:
		return dirR
	case bidi.EN:
		return dirEN
	case bidi.AN:
		return dirAN
	case bidi.NSM:
		return 255
	}

	return dirN
}

// Visual reorders one line of logical text for left-to-right drawing. rtl sets
// the paragraph direction. It covers the subset of the bidi algorithm a single
// embedding level needs: weak numbers, neutral resolution, level reordering
// and bracket mirroring.
func Visual(s string, rtl bool) string {
	runes := []rune(s)
	n := len(runes)
	if n == 0 {
		return s
	}

	base := dirL
	if rtl {
		base = dirR
	}

	types := make([]dirClass, n)
	hasR := false
	for i, r := range runes {
		t := classify(r)
		if t == 255 {
			// non-spacing marks take the type of what they follow
			t = base
			if i > 0 {
				t = types[i-1]
			}
		}
		if t == dirR {
			hasR = true
		}
		types[i] = t
	}
	if !hasR && !rtl {
		return s
	}

	// European numbers after a left-to-right strong type behave as L.
	last := base
	for i, t := range types {
		switch t {
		case dirL, dirR:
			last = t
		case dirEN:
			if last == dirL {
				types[i] = dirL
			}
		}
	}

	// Neutrals between two strong types of the same direction take it,
	// numbers counting as right-to-left; others take the paragraph direction.
	strong := func(t dirClass) dirClass {
		if t == dirEN || t == dirAN {
			return dirR
		}
		return t
	}
	for i := 0; i < n; {
		if types[i] != dirN {
			i++
			continue
		}
		j := i
		for j < n && types[j] == dirN {
			j++
		}
		before, after := base, base
		if i > 0 {
			before = strong(types[i-1])
		}
		if j < n {
			after = strong(types[j])
		}
		resolved := base
		if before == after {
			resolved = before
		}
		for k := i; k < j; k++ {
			types[k] = resolved
		}
		i = j
	}

	levels := make([]int, n)
	maxLevel := 0
	for i, t := range types {
		switch {
		case !rtl && t == dirR:
			levels[i] = 1
		case !rtl && (t == dirEN || t == dirAN):
			levels[i] = 2
		case rtl && t == dirR:
			levels[i] = 1
		case rtl:
			levels[i] = 2
		}
		if levels[i] > maxLevel {
			maxLevel = levels[i]
		}
	}

	out := make([]rune, n)
	copy(out, runes)
	for lvl := maxLevel; lvl >= 1; lvl-- {
		for i := 0; i < n; {
			if levels[i] < lvl {
				i++
				continue
			}
			j := i
			for j < n && levels[j] >= lvl {
				j++
			}
			reverse(out[i:j], levels[i:j])
			i = j
		}
	}

	for i, r := range out {
		if levels[i]%2 == 1 {
			if m, ok := mirrored[r]; ok {
				out[i] = m
			}
		}
	}

	return string(out)
}

func reverse(r []rune, levels []int) {
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
		levels[i], levels[j] = levels[j], levels[i]
	}
}
