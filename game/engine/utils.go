package engine

import (
	"fmt"

	"github.com/wricardo/mcp-training/minecarts/game/track"
)

// LayoutStats summarises the track pieces of a layout
type LayoutStats struct {
	Width         int `json:"width"`
	Height        int `json:"height"`
	Carts         int `json:"carts"`
	Straights     int `json:"straights"`
	Curves        int `json:"curves"`
	Intersections int `json:"intersections"`
}

// AnalyzeLayout counts carts and tile kinds in a layout
func AnalyzeLayout(layout []string) LayoutStats {
	board := track.ParseBoard(layout)
	return LayoutStats{
		Width:         board.Width(),
		Height:        board.Height(),
		Carts:         board.LiveCartCount(),
		Straights:     board.CountKind(track.Straight),
		Curves:        board.CountKind(track.Curve),
		Intersections: board.CountKind(track.Intersection),
	}
}

// CountCartsByDirection counts the live carts of a state per heading
func CountCartsByDirection(state *SimState) map[track.Direction]int {
	counts := make(map[track.Direction]int)
	for _, c := range state.Carts {
		if !c.Destroyed {
			counts[c.Direction]++
		}
	}
	return counts
}

// NearestCartPair returns the two live carts with the smallest Manhattan
// distance between them. ok is false when fewer than two carts are live.
func NearestCartPair(state *SimState) (a, b track.CartState, distance int, ok bool) {
	live := make([]track.CartState, 0, len(state.Carts))
	for _, c := range state.Carts {
		if !c.Destroyed {
			live = append(live, c)
		}
	}

	distance = -1
	for i := 0; i < len(live); i++ {
		for j := i + 1; j < len(live); j++ {
			d := ManhattanDistance(live[i].Position, live[j].Position)
			if distance == -1 || d < distance {
				a, b, distance, ok = live[i], live[j], d, true
			}
		}
	}
	return a, b, distance, ok
}

// Answer formats the result position the way each mode reports it: "x,y"
// for a collision and "x y" for the last cart. Empty when there is no position.
func (r *RunResult) Answer() string {
	if r == nil || r.Position == nil {
		return ""
	}
	if r.Mode == ModeCollision {
		return fmt.Sprintf("%d,%d", r.Position.X, r.Position.Y)
	}
	return fmt.Sprintf("%d %d", r.Position.X, r.Position.Y)
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to track.Position) int {
	return abs(from.X-to.X) + abs(from.Y-to.Y)
}

// abs returns the absolute value of x
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
