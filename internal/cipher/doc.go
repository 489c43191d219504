// Package cipher implements the reversible substitution behind cifrado.
//
// Three disjoint alphabets are rotated independently: uppercase letters with
// Ñ, lowercase letters with ñ, and the decimal digits. Every other rune is
// left as it is, so Encode and Decode never fail and always return text with
// the same number of symbols as their input.
//
//	cipher.Encode("Hola Ñandú 2024") // "Mtpf Sfriú 7579"
//	cipher.Decode("Mtpf Sfriú 7579") // "Hola Ñandú 2024"
//
// The functions hold no state and are safe for concurrent use.
package cipher
