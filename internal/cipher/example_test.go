package cipher_test

import (
	"fmt"

	"github.com/dyne/cifrado/internal/cipher"
)

func ExampleEncode() {
	fmt.Println(cipher.Encode("Año 2025, ¡hola!"))
	// Output: Fst 7570, ¡mtpf!
}

func ExampleDecode() {
	fmt.Println(cipher.Decode("Xjhwjyt"))
	// Output: Secreto
}

func ExampleParseMode() {
	mode, err := cipher.ParseMode("decode")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(mode, mode.Apply("FGH"))
	// Output: decode ABC
}

func ExampleTransform() {
	fmt.Println(cipher.Transform("Zz9", 1))
	// Output: Aa0
}
