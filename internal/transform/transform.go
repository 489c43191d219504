package transform

import (
	"github.com/dyne/cifrado/internal/cipher"
)

// RowContext identifies the row a value comes from.
type RowContext struct {
	Table string
	PK    []any
}

type Transformer interface {
	Name() string
	Transform(value any, row RowContext) (any, error)
}

// Shift rotates text values through the cipher alphabets. Values that are not
// text (integers, floats, NULL) are returned unchanged.
type Shift struct {
	name   string
	amount int
}

func NewEncode() *Shift { return &Shift{name: "Encode", amount: cipher.Shift} }

func NewDecode() *Shift { return &Shift{name: "Decode", amount: -cipher.Shift} }

func NewShift(amount int) *Shift { return &Shift{name: "Shift", amount: amount} }

func (t *Shift) Name() string { return t.name }

func (t *Shift) Amount() int { return t.amount }

func (t *Shift) Transform(value any, row RowContext) (any, error) {
	switch v := value.(type) {
	case string:
		return cipher.Transform(v, t.amount), nil
	case []byte:
		return []byte(cipher.Transform(string(v), t.amount)), nil
	default:
		return value, nil
	}
}

type SetNull struct{}

func (t *SetNull) Name() string { return "SetNull" }

func (t *SetNull) Transform(value any, row RowContext) (any, error) {
	return nil, nil
}

type SetValue struct{ value any }

func NewSetValue(v any) *SetValue { return &SetValue{value: v} }

func (t *SetValue) Name() string { return "SetValue" }

func (t *SetValue) Transform(value any, row RowContext) (any, error) {
	return t.value, nil
}
