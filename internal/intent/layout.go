package intent

import (
	"strings"
	"unicode"
)

const (
	latinRow    = "qwertyuiop[]asdfghjkl;'zxcvbnm,."
	cyrillicRow = "йцукенгшщзхъфывапролджэячсмитьбю"
)

var layoutTable = buildLayoutTable()

func buildLayoutTable() map[rune]rune {
	lower := []rune(cyrillicRow)
	table := make(map[rune]rune, 2*len(lower))
	for i, l := range latinRow {
		table[l] = lower[i]
		table[unicode.ToUpper(l)] = unicode.ToUpper(lower[i])
	}
	return table
}

// ToRussianLayout maps text typed on a QWERTY layout to its ЙЦУКЕН
// equivalent. Characters outside the map pass through unchanged.
func ToRussianLayout(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if mapped, ok := layoutTable[r]; ok {
			b.WriteRune(mapped)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NeedsLayoutCorrection reports whether text looks like Russian typed with
// the keyboard left in the Latin layout.
func NeedsLayoutCorrection(text string) bool {
	var latin, cyrillic int
	for _, r := range text {
		switch {
		case r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z':
			latin++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		}
	}

	if cyrillic == 0 && latin > 0 {
		return true
	}
	if latin > 2*cyrillic {
		return true
	}

	words := strings.Fields(text)
	if len(words) == 0 || len(words) > 2 {
		return false
	}
	for _, w := range words {
		for _, r := range w {
			if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
				return false
			}
		}
	}
	return true
}
