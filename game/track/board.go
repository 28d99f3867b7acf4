package track

import (
	"fmt"
	"strings"
)

// Board owns the tile grid and the list of live carts
type Board struct {
	rows  [][]Tile
	carts []*Cart
	width int
}

// SplitLines splits raw input text into grid rows. Carriage returns are
// dropped and a single trailing line break does not produce an extra row.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// ParseBoard builds a board from grid rows. Unknown glyphs become empty tiles.
func ParseBoard(lines []string) *Board {
	b := &Board{rows: make([][]Tile, 0, len(lines))}

	for y, line := range lines {
		row := make([]Tile, 0, len(line))
		for x := 0; x < len(line); x++ {
			glyph := line[x]
			if glyph == '\n' || glyph == '\r' {
				break
			}
			tile, cart := ParseTile(glyph, x, y)
			row = append(row, tile)
			if cart != nil {
				cart.ID = len(b.carts)
				b.carts = append(b.carts, cart)
			}
		}
		b.rows = append(b.rows, row)
		if len(row) > b.width {
			b.width = len(row)
		}
	}

	return b
}

// ParseBoardStrict is ParseBoard but rejects glyphs outside the track alphabet
func ParseBoardStrict(lines []string) (*Board, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyLayout
	}
	for y, line := range lines {
		for x := 0; x < len(line); x++ {
			if line[x] == '\n' || line[x] == '\r' {
				break
			}
			if !IsTrackGlyph(line[x]) {
				return nil, &ParseError{X: x, Y: y, Glyph: line[x]}
			}
		}
	}
	return ParseBoard(lines), nil
}

// RestoreBoard rebuilds a board from its original layout and saved cart state.
// Carts found in the layout are discarded in favour of carts.
func RestoreBoard(layout []string, carts []CartState) (*Board, error) {
	b := ParseBoard(layout)
	for y := range b.rows {
		for x := range b.rows[y] {
			b.rows[y][x].Clear()
		}
	}
	b.carts = b.carts[:0]

	for _, s := range carts {
		if s.Destroyed {
			continue
		}
		cart, err := cartFromState(s)
		if err != nil {
			return nil, fmt.Errorf("cart %d: %w", s.ID, err)
		}
		tile := b.TileAt(s.Position.X, s.Position.Y)
		if tile == nil || !tile.IsTrack() {
			return nil, fmt.Errorf("cart %d at (%s) is off the track: %w", s.ID, s.Position, ErrInvalidState)
		}
		if tile.Occupied() {
			return nil, fmt.Errorf("cart %d at (%s) shares a tile: %w", s.ID, s.Position, ErrInvalidState)
		}
		tile.occupant = cart
		b.carts = append(b.carts, cart)
	}

	return b, nil
}

// TileAt returns the tile at x,y or nil when outside the grid
func (b *Board) TileAt(x, y int) *Tile {
	if y < 0 || y >= len(b.rows) {
		return nil
	}
	if x < 0 || x >= len(b.rows[y]) {
		return nil
	}
	return &b.rows[y][x]
}

// Width returns the length of the longest row
func (b *Board) Width() int {
	return b.width
}

// Height returns the number of rows
func (b *Board) Height() int {
	return len(b.rows)
}

// Tick advances every live cart once, scanning tiles in row-major order.
// Destroyed carts are dropped from the live list after the scan. The
// collisions detected during the tick are returned in detection order.
func (b *Board) Tick(tick int) ([]Collision, error) {
	var collisions []Collision
	var tickErr error

scan:
	for y := range b.rows {
		row := b.rows[y]
		for x := range row {
			tile := &row[x]
			cart := tile.occupant
			if cart == nil || cart.lastTick >= tick {
				continue
			}

			tile.Clear()
			hit, err := cart.Advance(tick, b)
			if err != nil {
				tickErr = fmt.Errorf("tick %d: cart %d at (%s): %w", tick, cart.ID, cart.Position, err)
				break scan
			}
			if hit != nil {
				collisions = append(collisions, Collision{
					Tick:     tick,
					Position: cart.Position,
					CartIDs:  [2]int{hit.ID, cart.ID},
				})
			}
		}
	}

	b.removeDestroyed()
	return collisions, tickErr
}

func (b *Board) removeDestroyed() {
	live := b.carts[:0]
	for _, c := range b.carts {
		if !c.Destroyed {
			live = append(live, c)
		}
	}
	for i := len(live); i < len(b.carts); i++ {
		b.carts[i] = nil
	}
	b.carts = live
}

// LiveCartCount returns the number of carts still on the track
func (b *Board) LiveCartCount() int {
	return len(b.carts)
}

// Carts returns the live carts in their original parse order
func (b *Board) Carts() []*Cart {
	out := make([]*Cart, len(b.carts))
	copy(out, b.carts)
	return out
}

// CartStates exports every live cart
func (b *Board) CartStates() []CartState {
	states := make([]CartState, 0, len(b.carts))
	for _, c := range b.carts {
		states = append(states, c.State())
	}
	return states
}

// CountKind counts tiles of the given kind
func (b *Board) CountKind(kind TileKind) int {
	count := 0
	for _, row := range b.rows {
		for _, tile := range row {
			if tile.Kind == kind {
				count++
			}
		}
	}
	return count
}

// Lines renders the board one string per row
func (b *Board) Lines() []string {
	lines := make([]string, len(b.rows))
	buf := make([]byte, 0, b.width)
	for y, row := range b.rows {
		buf = buf[:0]
		for x := range row {
			buf = append(buf, row[x].DisplayGlyph())
		}
		lines[y] = string(buf)
	}
	return lines
}

// Render returns the board as text: carts first, then track, then blanks
func (b *Board) Render() string {
	return strings.Join(b.Lines(), "\n")
}
