package cipher

import "fmt"

// Alphabet is an ordered set of distinct runes. Shifting a member moves it
// along the sequence and wraps around at either end.
type Alphabet struct {
	name    string
	symbols []rune
}

// The three symbol classes. Ñ and ñ sit between N and O, following the
// Spanish collation order. Changing any of these changes every shift result.
var (
	Upper  = mustAlphabet("upper", "ABCDEFGHIJKLMNÑOPQRSTUVWXYZ")
	Lower  = mustAlphabet("lower", "abcdefghijklmnñopqrstuvwxyz")
	Digits = mustAlphabet("digits", "0123456789")
)

// NewAlphabet builds an alphabet from the runes of symbols in order.
func NewAlphabet(name, symbols string) (*Alphabet, error) {
	runes := []rune(symbols)
	if len(runes) == 0 {
		return nil, fmt.Errorf("alphabet %s: no symbols", name)
	}
	seen := make(map[rune]struct{}, len(runes))
	for _, r := range runes {
		if _, ok := seen[r]; ok {
			return nil, fmt.Errorf("alphabet %s: duplicate symbol %q", name, r)
		}
		seen[r] = struct{}{}
	}
	return &Alphabet{name: name, symbols: runes}, nil
}

func mustAlphabet(name, symbols string) *Alphabet {
	a, err := NewAlphabet(name, symbols)
	if err != nil {
		panic(err)
	}
	return a
}

// Alphabets returns the symbol classes the engine shifts, in lookup order.
func Alphabets() []*Alphabet {
	return []*Alphabet{Upper, Lower, Digits}
}

func (a *Alphabet) Name() string { return a.name }

func (a *Alphabet) Len() int { return len(a.symbols) }

// At returns the symbol at position i, wrapping i into [0, Len()).
func (a *Alphabet) At(i int) rune {
	return a.symbols[mod(i, len(a.symbols))]
}

// Index returns the position of r, or -1 when r is not a member.
func (a *Alphabet) Index(r rune) int {
	for i, s := range a.symbols {
		if s == r {
			return i
		}
	}
	return -1
}

func (a *Alphabet) Contains(r rune) bool {
	return a.Index(r) >= 0
}

func (a *Alphabet) String() string {
	return string(a.symbols)
}

// mod is the mathematical modulus: the result is always in [0, n).
func mod(i, n int) int {
	m := i % n
	if m < 0 {
		m += n
	}
	return m
}
