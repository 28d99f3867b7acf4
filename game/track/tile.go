package track

// Tile represents a single grid cell and the cart currently on it
type Tile struct {
	X           int
	Y           int
	Kind        TileKind
	Orientation Orientation
	occupant    *Cart
}

// ParseTile maps an input glyph to a tile and, for cart glyphs, the cart
// starting on it. Unknown glyphs, including space, produce an Empty tile.
func ParseTile(glyph byte, x, y int) (Tile, *Cart) {
	tile := Tile{X: x, Y: y}

	switch glyph {
	case '>', '<', '-':
		tile.Kind = Straight
		tile.Orientation = Horizontal
	case 'v', '^', '|':
		tile.Kind = Straight
		tile.Orientation = Vertical
	case '/':
		tile.Kind = Curve
		tile.Orientation = Slash
	case '\\':
		tile.Kind = Curve
		tile.Orientation = Backslash
	case '+':
		tile.Kind = Intersection
	default:
		return tile, nil
	}

	dir, ok := DirectionFromGlyph(glyph)
	if !ok {
		return tile, nil
	}
	cart := newCart(dir, Position{X: x, Y: y})
	tile.occupant = cart
	return tile, cart
}

// IsTrackGlyph reports whether glyph belongs to the track alphabet.
// Space is accepted as the explicit "no track" glyph.
func IsTrackGlyph(glyph byte) bool {
	switch glyph {
	case '>', 'v', '<', '^', '-', '|', '/', '\\', '+', ' ':
		return true
	}
	return false
}

// Place puts cart on the tile. If the tile is already occupied both carts are
// destroyed, the tile is left empty and Place returns the cart that was hit.
// Otherwise the tile's entry rule is applied to the cart and Place returns nil.
func (t *Tile) Place(cart *Cart) (hit *Cart) {
	if t.occupant != nil {
		hit = t.occupant
		hit.Destroyed = true
		cart.Destroyed = true
		t.occupant = nil
		return hit
	}

	t.occupant = cart

	switch t.Kind {
	case Curve:
		cart.Mirror(t.Orientation)
	case Intersection:
		cart.Turn()
	}
	return nil
}

// Clear removes the occupant. It is called right before a cart leaves the tile.
func (t *Tile) Clear() {
	t.occupant = nil
}

// Occupant returns the cart on the tile, or nil
func (t *Tile) Occupant() *Cart {
	return t.occupant
}

// Occupied reports whether a cart is on the tile
func (t *Tile) Occupied() bool {
	return t.occupant != nil
}

// IsTrack reports whether a cart may stand on the tile
func (t *Tile) IsTrack() bool {
	return t.Kind != Empty
}

// Glyph returns the track character of the tile, ignoring any occupant
func (t *Tile) Glyph() byte {
	switch t.Kind {
	case Straight:
		if t.Orientation == Vertical {
			return '|'
		}
		return '-'
	case Curve:
		if t.Orientation == Backslash {
			return '\\'
		}
		return '/'
	case Intersection:
		return '+'
	}
	return ' '
}

// DisplayGlyph returns the occupant's direction glyph when occupied,
// otherwise the track glyph.
func (t *Tile) DisplayGlyph() byte {
	if t.occupant != nil {
		return t.occupant.Direction.Glyph()
	}
	return t.Glyph()
}
