package cipher

import (
	"errors"
	"testing"
)

func TestEncodeDecodeScenarios(t *testing.T) {
	cases := []struct {
		plain   string
		encoded string
	}{
		{"ABC", "FGH"},
		{"XYZ", "CDE"},
		{"Ñ", "S"},
		{"J", "Ñ"},
		{"N", "R"},
		{"ñ", "s"},
		{"789", "234"},
		{"Hi 5!", "Mn 0!"},
		{"ñandú", "sfriú"},
		{"Hola Ñandú 2024", "Mtpf Sfriú 7579"},
		{"Zz9", "Ee4"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Encode(tc.plain); got != tc.encoded {
			t.Fatalf("Encode(%q) = %q, want %q", tc.plain, got, tc.encoded)
		}
		if got := Decode(tc.encoded); got != tc.plain {
			t.Fatalf("Decode(%q) = %q, want %q", tc.encoded, got, tc.plain)
		}
	}
}

func TestShiftRuneNegativeWraps(t *testing.T) {
	cases := []struct {
		in     rune
		amount int
		want   rune
	}{
		{'A', -1, 'Z'},
		{'a', -5, 'v'},
		{'0', -1, '9'},
		{'0', -21, '9'},
		{'O', -1, 'Ñ'},
		{'C', -27, 'C'},
		{'5', 100, '5'},
	}
	for _, tc := range cases {
		if got := ShiftRune(tc.in, tc.amount); got != tc.want {
			t.Fatalf("ShiftRune(%q, %d) = %q, want %q", tc.in, tc.amount, got, tc.want)
		}
	}
}

func TestTransformPassesThroughOtherSymbols(t *testing.T) {
	in := "¡¿ .,;:-_/\t\n@#€ éáíóú ÁÉ 😀"
	for _, k := range []int{-13, -5, 0, 5, 42} {
		if got := Transform(in, k); got != in {
			t.Fatalf("Transform(%q, %d) = %q", in, k, got)
		}
	}
}

func TestTransformKeepsInvalidBytes(t *testing.T) {
	in := "a\xffb\xc3"
	got := Encode(in)
	if got != "f\xffg\xc3" {
		t.Fatalf("Encode(%q) = %q", in, got)
	}
	if back := Decode(got); back != in {
		t.Fatalf("round trip lost bytes: %q", back)
	}
}

func TestNoCaseFolding(t *testing.T) {
	if got := Encode("aA"); got != "fF" {
		t.Fatalf("Encode(aA) = %q", got)
	}
}

func TestAlphabets(t *testing.T) {
	if Upper.Len() != 27 || Lower.Len() != 27 || Digits.Len() != 10 {
		t.Fatalf("unexpected sizes: %d %d %d", Upper.Len(), Lower.Len(), Digits.Len())
	}
	if Upper.Index('Ñ') != 14 || Lower.Index('ñ') != 14 {
		t.Fatalf("ñ must sit at index 14, got %d and %d", Upper.Index('Ñ'), Lower.Index('ñ'))
	}
	if Upper.Index('O') != 15 {
		t.Fatalf("O index = %d", Upper.Index('O'))
	}
	if Digits.Contains('a') || Upper.Contains('a') || Lower.Contains('A') {
		t.Fatal("alphabets overlap")
	}
	if Upper.At(-1) != 'Z' || Upper.At(27) != 'A' {
		t.Fatalf("At does not wrap: %q %q", Upper.At(-1), Upper.At(27))
	}
}

func TestNewAlphabetRejectsBadInput(t *testing.T) {
	if _, err := NewAlphabet("empty", ""); err == nil {
		t.Fatal("expected error for empty alphabet")
	}
	if _, err := NewAlphabet("dup", "abca"); err == nil {
		t.Fatal("expected error for duplicate symbol")
	}
}

func TestBuildTablePanicsOnOverlap(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for overlapping alphabets")
		}
	}()
	a := mustAlphabet("a", "abc")
	b := mustAlphabet("b", "cde")
	buildTable(a, b)
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
	}{
		{"encode", ModeEncode},
		{"decode", ModeDecode},
		{" Decode ", ModeDecode},
		{"ENCODE", ModeEncode},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseMode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"", "cifrar", "rot13"} {
		if _, err := ParseMode(bad); !errors.Is(err, ErrUnknownMode) {
			t.Fatalf("ParseMode(%q) error = %v, want ErrUnknownMode", bad, err)
		}
	}
}

func TestModeApply(t *testing.T) {
	if got := ModeEncode.Apply("ABC"); got != "FGH" {
		t.Fatalf("encode apply = %q", got)
	}
	if got := ModeDecode.Apply("FGH"); got != "ABC" {
		t.Fatalf("decode apply = %q", got)
	}
	if ModeEncode.String() != "encode" || ModeDecode.String() != "decode" {
		t.Fatalf("unexpected names %s %s", ModeEncode, ModeDecode)
	}
	if Mode(7).String() != "Mode(7)" {
		t.Fatalf("unexpected name %s", Mode(7))
	}
}
