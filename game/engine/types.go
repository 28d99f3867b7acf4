package engine

import (
	"errors"
	"slices"

	"github.com/wricardo/mcp-training/minecarts/game/track"
)

// Mode selects the termination rule of a simulation
type Mode string

const (
	ModeCollision Mode = "collision"
	ModeLastCart  Mode = "last_cart"
)

// StopReason explains why a simulation finished
type StopReason string

const (
	StopCollisionDetected StopReason = "collision_detected"
	StopLastCart          StopReason = "last_cart"
	StopNoSurvivors       StopReason = "no_survivors"
	StopTickLimit         StopReason = "tick_limit"
	StopDerailed          StopReason = "derailed"
)

const (
	// Validation constants
	MaxGridSize     = 250
	DefaultMaxTicks = 100000
	MaxTicksLimit   = 10000000
	MaxTickHistory  = 500
	MaxBulkTicks    = 10000
)

var (
	ErrFinished    = errors.New("simulation already finished")
	ErrNoSurvivors = errors.New("no carts survived")
	ErrTickLimit   = errors.New("tick limit reached")
	ErrNoConfig    = errors.New("engine has no layout config")
)

// LayoutMessages are the templates used for state messages
type LayoutMessages struct {
	Welcome     string `json:"welcome" yaml:"welcome"`
	Collision   string `json:"collision,omitempty" yaml:"collision,omitempty"`       // %d,%d position then %d tick
	Survivor    string `json:"survivor,omitempty" yaml:"survivor,omitempty"`         // %d,%d position then %d tick
	NoSurvivors string `json:"no_survivors,omitempty" yaml:"no_survivors,omitempty"` // %d tick
	TickLimit   string `json:"tick_limit,omitempty" yaml:"tick_limit,omitempty"`     // %d tick
}

// LayoutConfig represents a track layout and how to run it
type LayoutConfig struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Mode        Mode           `json:"mode" yaml:"mode"`
	MaxTicks    int            `json:"max_ticks,omitempty" yaml:"max_ticks,omitempty"`
	Layout      []string       `json:"layout" yaml:"layout"`
	Messages    LayoutMessages `json:"messages" yaml:"messages"`
}

// TickReport describes what happened during one tick
type TickReport struct {
	Tick       int               `json:"tick"`
	Collisions []track.Collision `json:"collisions,omitempty"`
	LiveCarts  int               `json:"live_carts"`
	Timestamp  int64             `json:"timestamp"`
}

// SimState represents the complete simulation state
type SimState struct {
	ConfigName string            `json:"config_name"`
	Mode       Mode              `json:"mode"`
	Tick       int               `json:"tick"`
	Grid       []string          `json:"grid"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Carts      []track.CartState `json:"carts"`
	LiveCarts  int               `json:"live_carts"`
	Collisions []track.Collision `json:"collisions"`
	Finished   bool              `json:"finished"`
	StopReason StopReason        `json:"stop_reason,omitempty"`
	Result     *track.Position   `json:"result,omitempty"`
	Message    string            `json:"message"`
	History    []TickReport      `json:"history"`
	Closest    *CartPair         `json:"closest,omitempty"`

	// TotalTicks counts ticks across resets; Tick restarts at zero on reset
	TotalTicks int `json:"total_ticks"`
}

// CartPair names the two live carts nearest each other
type CartPair struct {
	CartIDs  [2]int `json:"cart_ids"`
	Distance int    `json:"distance"`
}

// Clone returns a deep copy of the state that shares nothing with s
func (s *SimState) Clone() *SimState {
	if s == nil {
		return nil
	}

	c := *s
	c.Grid = slices.Clone(s.Grid)
	c.Carts = slices.Clone(s.Carts)
	c.Collisions = slices.Clone(s.Collisions)
	if s.Result != nil {
		result := *s.Result
		c.Result = &result
	}
	if s.Closest != nil {
		pair := *s.Closest
		c.Closest = &pair
	}
	if s.History != nil {
		c.History = make([]TickReport, len(s.History))
		for i, report := range s.History {
			report.Collisions = slices.Clone(report.Collisions)
			c.History[i] = report
		}
	}
	return &c
}

// RunResult summarises a finished simulation
type RunResult struct {
	Mode       Mode              `json:"mode"`
	StopReason StopReason        `json:"stop_reason"`
	Position   *track.Position   `json:"position,omitempty"`
	Ticks      int               `json:"ticks"`
	LiveCarts  int               `json:"live_carts"`
	Collisions []track.Collision `json:"collisions"`
}

// Observer is called with the upcoming tick number and the rendered board
// before every tick. It must not mutate the simulation.
type Observer func(tick int, board string)
