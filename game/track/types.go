package track

import "fmt"

// Direction is the heading of a cart. The numeric values are load-bearing:
// turning adds to the value modulo 4.
type Direction int

const (
	East Direction = iota
	South
	West
	North
)

// cartGlyphs is indexed by Direction
const cartGlyphs = ">v<^"

// Glyph returns the cart character for the direction
func (d Direction) Glyph() byte {
	return cartGlyphs[d]
}

// String returns the lowercase direction name
func (d Direction) String() string {
	switch d {
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	case North:
		return "north"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Delta returns the unit vector for the direction
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	default:
		return 0, -1
	}
}

// Valid reports whether d is one of the four cardinal directions
func (d Direction) Valid() bool {
	return d >= East && d <= North
}

// DirectionFromGlyph maps a cart character to its direction
func DirectionFromGlyph(glyph byte) (Direction, bool) {
	switch glyph {
	case '>':
		return East, true
	case 'v':
		return South, true
	case '<':
		return West, true
	case '^':
		return North, true
	}
	return 0, false
}

// Position represents x,y coordinates on the board
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Add returns the position moved by dx,dy
func (p Position) Add(dx, dy int) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

func (p Position) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// TileKind identifies the track geometry of a tile
type TileKind int

const (
	Empty TileKind = iota
	Straight
	Curve
	Intersection
)

func (k TileKind) String() string {
	switch k {
	case Straight:
		return "straight"
	case Curve:
		return "curve"
	case Intersection:
		return "intersection"
	}
	return "empty"
}

// Orientation refines Straight and Curve tiles
type Orientation int

const (
	// Horizontal and Vertical apply to Straight tiles
	Horizontal Orientation = iota
	Vertical
)

const (
	// Slash and Backslash apply to Curve tiles
	Slash Orientation = iota
	Backslash
)

// Collision records a crash detected during a tick
type Collision struct {
	Tick     int      `json:"tick"`
	Position Position `json:"position"`
	CartIDs  [2]int   `json:"cart_ids"`
}

// CartState is the exported, serialisable view of a cart
type CartState struct {
	ID        int       `json:"id"`
	Position  Position  `json:"position"`
	Direction Direction `json:"direction"`
	TurnIndex int       `json:"turn_index"`
	Destroyed bool      `json:"destroyed,omitempty"`
	LastTick  int       `json:"last_tick"`
}
