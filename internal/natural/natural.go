// Package natural implements human ("natural") string ordering.
//
// Digit runs are compared by numeric value, everything else is compared
// rune by rune ignoring case, so "page 2" sorts before "page 10" and
// "A2" equals "a2". When two digit runs have the same value the shorter run
// sorts after the longer one ("01" < "1").
package natural

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Compare returns -1, 0 or 1 depending on the natural order of a and b.
func Compare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			if c := compareDigits(a[si:i], b[sj:j]); c != 0 {
				return c
			}
			continue
		}

		ra, wa := utf8.DecodeRuneInString(a[i:])
		rb, wb := utf8.DecodeRuneInString(b[j:])
		la, lb := unicode.ToLower(ra), unicode.ToLower(rb)
		if la != lb {
			if la < lb {
				return -1
			}
			return 1
		}
		i += wa
		j += wb
	}

	switch ra, rb := len(a)-i, len(b)-j; {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return 0
}

// Less reports whether a sorts before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// compareDigits compares two digit runs without converting them to integers,
// so arbitrarily long runs never overflow.
func compareDigits(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	// Same value: fewer characters sorts last.
	switch {
	case len(a) < len(b):
		return 1
	case len(a) > len(b):
		return -1
	}
	return 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
