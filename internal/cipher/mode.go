package cipher

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned by ParseMode for anything but "encode" or "decode".
var ErrUnknownMode = errors.New("unknown mode")

// Mode selects the direction of the transform.
type Mode int

const (
	ModeEncode Mode = iota
	ModeDecode
)

// ParseMode accepts "encode" and "decode", ignoring case and surrounding space.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "encode":
		return ModeEncode, nil
	case "decode":
		return ModeDecode, nil
	default:
		return ModeEncode, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeEncode:
		return "encode"
	case ModeDecode:
		return "decode"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Amount is the signed shift the mode applies.
func (m Mode) Amount() int {
	if m == ModeDecode {
		return -Shift
	}
	return Shift
}

// Apply runs the transform in this mode's direction.
func (m Mode) Apply(text string) string {
	return Transform(text, m.Amount())
}
