package cipher

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Shift is the rotation applied by Encode. Decode applies -Shift.
const Shift = 5

type position struct {
	alphabet *Alphabet
	index    int
}

// table maps every member of every alphabet to its class and offset. It is
// filled once during package initialization and only read afterwards.
var table = buildTable(Alphabets()...)

func buildTable(alphabets ...*Alphabet) map[rune]position {
	t := make(map[rune]position)
	for _, a := range alphabets {
		for i, r := range a.symbols {
			if prev, ok := t[r]; ok {
				panic(fmt.Sprintf("cipher: symbol %q in both %s and %s", r, prev.alphabet.name, a.name))
			}
			t[r] = position{alphabet: a, index: i}
		}
	}
	return t
}

// ShiftRune moves r by amount positions within its alphabet. Runes outside
// every alphabet are returned unchanged.
func ShiftRune(r rune, amount int) rune {
	p, ok := table[r]
	if !ok {
		return r
	}
	// Reduce first so index+amount cannot overflow for extreme amounts.
	return p.alphabet.At(p.index + amount%p.alphabet.Len())
}

// Transform shifts every symbol of text by amount. The output has the same
// number of symbols as the input; bytes that are not valid UTF-8 are copied
// through unchanged.
func Transform(text string, amount int) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteByte(text[i])
			i++
			continue
		}
		b.WriteRune(ShiftRune(r, amount))
		i += size
	}
	return b.String()
}

func Encode(text string) string {
	return Transform(text, Shift)
}

func Decode(text string) string {
	return Transform(text, -Shift)
}
