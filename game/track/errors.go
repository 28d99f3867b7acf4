package track

import (
	"errors"
	"fmt"
)

var (
	ErrDerailed     = errors.New("cart left the track")
	ErrEmptyLayout  = errors.New("layout has no rows")
	ErrInvalidState = errors.New("invalid cart state")
)

// ParseError reports a glyph that is not part of the track alphabet.
// Only strict parsing returns it; lenient parsing treats the glyph as empty.
type ParseError struct {
	X, Y  int
	Glyph byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid glyph %q at (%d,%d)", e.Glyph, e.X, e.Y)
}
