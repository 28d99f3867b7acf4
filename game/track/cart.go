package track

// turnCycle holds the direction offsets applied at intersections:
// left (+3 mod 4), straight, right (+1 mod 4).
var turnCycle = [3]Direction{3, 0, 1}

// Mirror tables for curves, indexed by the incoming direction
var (
	slashMirror     = [4]Direction{East: North, North: East, West: South, South: West}
	backslashMirror = [4]Direction{East: South, South: East, West: North, North: West}
)

// TileLocator resolves board coordinates to tiles. It returns nil outside the grid.
type TileLocator interface {
	TileAt(x, y int) *Tile
}

// Cart is a single moving vehicle
type Cart struct {
	ID        int
	Direction Direction
	Position  Position
	Destroyed bool

	turnIndex int
	lastTick  int
}

func newCart(dir Direction, pos Position) *Cart {
	return &Cart{Direction: dir, Position: pos}
}

// Advance moves the cart one tile in its current direction and places it on
// the tile found there. It is a no-op when the cart already advanced during
// tick. When the move causes a collision the cart that was hit is returned.
func (c *Cart) Advance(tick int, tiles TileLocator) (hit *Cart, err error) {
	if c.lastTick >= tick {
		return nil, nil
	}
	c.lastTick = tick

	c.Position = c.Position.Add(c.Direction.Delta())
	tile := tiles.TileAt(c.Position.X, c.Position.Y)
	if tile == nil || !tile.IsTrack() {
		c.Destroyed = true
		return nil, ErrDerailed
	}

	return tile.Place(c), nil
}

// Turn applies the current intersection choice and advances the cycle
func (c *Cart) Turn() {
	c.Direction = (c.Direction + turnCycle[c.turnIndex]) % 4
	c.turnIndex = (c.turnIndex + 1) % len(turnCycle)
}

// Mirror redirects the cart through a curve of the given orientation
func (c *Cart) Mirror(curve Orientation) {
	if curve == Backslash {
		c.Direction = backslashMirror[c.Direction]
		return
	}
	c.Direction = slashMirror[c.Direction]
}

// TurnIndex returns the position in the left/straight/right cycle
func (c *Cart) TurnIndex() int {
	return c.turnIndex
}

// LastTick returns the last tick in which the cart advanced
func (c *Cart) LastTick() int {
	return c.lastTick
}

// State exports the cart for serialisation
func (c *Cart) State() CartState {
	return CartState{
		ID:        c.ID,
		Position:  c.Position,
		Direction: c.Direction,
		TurnIndex: c.turnIndex,
		Destroyed: c.Destroyed,
		LastTick:  c.lastTick,
	}
}

func cartFromState(s CartState) (*Cart, error) {
	if !s.Direction.Valid() || s.TurnIndex < 0 || s.TurnIndex >= len(turnCycle) {
		return nil, ErrInvalidState
	}
	return &Cart{
		ID:        s.ID,
		Direction: s.Direction,
		Position:  s.Position,
		Destroyed: s.Destroyed,
		turnIndex: s.TurnIndex,
		lastTick:  s.LastTick,
	}, nil
}
