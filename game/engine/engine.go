package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/wricardo/mcp-training/minecarts/game/track"
)

// Engine provides the main interface for simulation operations
type Engine interface {
	// Simulation state management
	GetState() *SimState
	SetState(state *SimState) error
	Reset() *SimState
	IsFinished() bool
	GetTick() int
	LiveCartCount() int

	// Stepping
	Step() (*TickReport, error)
	StepN(n int) ([]TickReport, error)
	Run(ctx context.Context) (*RunResult, error)
	Result() *RunResult

	// Configuration
	GetConfig() *LayoutConfig
	SetConfig(config *LayoutConfig) error

	// History
	GetTickHistory() []TickReport
	GetLastTick() *TickReport

	// Diagnostics
	Render() string
	SetObserver(observer Observer)
}

// SimEngine implements the Engine interface
type SimEngine struct {
	config   *LayoutConfig
	board    *track.Board
	state    *SimState
	observer Observer
}

// NewEngine creates a new simulation engine with the provided configuration
func NewEngine(config *LayoutConfig) (*SimEngine, error) {
	if err := ValidateLayoutConfig(config); err != nil {
		return nil, err
	}

	e := &SimEngine{config: config}
	e.init()
	return e, nil
}

// NewEngineWithDefaults creates a new simulation engine with the built-in layout
func NewEngineWithDefaults() *SimEngine {
	e := &SimEngine{config: DefaultLayoutConfig()}
	e.init()
	return e
}

func (e *SimEngine) init() {
	e.board = track.ParseBoard(e.config.Layout)
	e.state = &SimState{
		ConfigName: e.config.Name,
		Mode:       e.config.Mode,
		Width:      e.board.Width(),
		Height:     e.board.Height(),
		Collisions: []track.Collision{},
		History:    []TickReport{},
		Message:    withDefaultMessages(e.config.Messages).Welcome,
	}
	e.checkLastCart()
	e.syncState()
}

// GetState returns the current simulation state
func (e *SimEngine) GetState() *SimState {
	return e.state
}

// SetState replaces the simulation state (used for persistence loading).
// The board is rebuilt from the layout and the saved carts.
func (e *SimEngine) SetState(state *SimState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if e.config == nil {
		return ErrNoConfig
	}

	board, err := track.RestoreBoard(e.config.Layout, state.Carts)
	if err != nil {
		return fmt.Errorf("failed to restore board: %w", err)
	}

	e.board = board
	e.state = state
	if e.state.Collisions == nil {
		e.state.Collisions = []track.Collision{}
	}
	if e.state.History == nil {
		e.state.History = []TickReport{}
	}
	e.syncState()
	return nil
}

// Reset restarts the simulation from the layout
func (e *SimEngine) Reset() *SimState {
	prevTotal := e.state.TotalTicks

	e.init()
	e.state.TotalTicks = prevTotal

	return e.state
}

// IsFinished returns whether a termination condition has been reached
func (e *SimEngine) IsFinished() bool {
	return e.state.Finished
}

// GetTick returns the number of ticks completed since the last reset
func (e *SimEngine) GetTick() int {
	return e.state.Tick
}

// LiveCartCount returns the number of carts still on the track
func (e *SimEngine) LiveCartCount() int {
	return e.board.LiveCartCount()
}

// Step advances the simulation by one tick
func (e *SimEngine) Step() (*TickReport, error) {
	if e.state.Finished {
		return nil, ErrFinished
	}

	tick := e.state.Tick + 1
	if e.observer != nil {
		e.observer(tick, e.board.Render())
	}

	collisions, tickErr := e.board.Tick(tick)

	report := TickReport{
		Tick:       tick,
		Collisions: collisions,
		LiveCarts:  e.board.LiveCartCount(),
		Timestamp:  time.Now().Unix(),
	}
	e.state.Tick = tick
	e.state.TotalTicks++
	e.state.Collisions = append(e.state.Collisions, collisions...)
	e.addToHistory(report)

	err := e.checkTermination(collisions, tickErr)
	e.syncState()
	return &report, err
}

// StepN advances up to n ticks, stopping early when the simulation finishes
func (e *SimEngine) StepN(n int) ([]TickReport, error) {
	if n < 0 {
		n = 0
	}
	reports := make([]TickReport, 0, n)

	for i := 0; i < n; i++ {
		if e.state.Finished {
			break
		}
		report, err := e.Step()
		if report != nil {
			reports = append(reports, *report)
		}
		if err != nil {
			return reports, err
		}
	}

	return reports, nil
}

// Run steps until a termination condition holds or ctx is cancelled
func (e *SimEngine) Run(ctx context.Context) (*RunResult, error) {
	for !e.state.Finished {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := e.Step(); err != nil {
			return e.Result(), err
		}
	}
	return e.Result(), e.terminalError()
}

// Result summarises the simulation, or returns nil while it is still running
func (e *SimEngine) Result() *RunResult {
	if !e.state.Finished {
		return nil
	}
	result := &RunResult{
		Mode:       e.state.Mode,
		StopReason: e.state.StopReason,
		Ticks:      e.state.Tick,
		LiveCarts:  e.state.LiveCarts,
		Collisions: slices.Clone(e.state.Collisions),
	}
	if e.state.Result != nil {
		pos := *e.state.Result
		result.Position = &pos
	}
	return result
}

// GetConfig returns the current layout configuration
func (e *SimEngine) GetConfig() *LayoutConfig {
	return e.config
}

// SetConfig sets a new layout configuration and restarts the simulation
func (e *SimEngine) SetConfig(config *LayoutConfig) error {
	if err := ValidateLayoutConfig(config); err != nil {
		return err
	}

	e.config = config
	e.init()
	return nil
}

// GetTickHistory returns the retained tick reports, oldest first
func (e *SimEngine) GetTickHistory() []TickReport {
	return e.state.History
}

// GetLastTick returns the most recent tick report, or nil before the first tick
func (e *SimEngine) GetLastTick() *TickReport {
	if len(e.state.History) == 0 {
		return nil
	}
	return &e.state.History[len(e.state.History)-1]
}

// Render returns the current board as text
func (e *SimEngine) Render() string {
	return e.board.Render()
}

// SetObserver installs a hook called before every tick (verbose mode)
func (e *SimEngine) SetObserver(observer Observer) {
	e.observer = observer
}

// checkTermination applies the mode's stop rule after a tick
func (e *SimEngine) checkTermination(collisions []track.Collision, tickErr error) error {
	messages := withDefaultMessages(e.config.Messages)
	tick := e.state.Tick

	if tickErr != nil {
		e.finish(StopDerailed, nil, tickErr.Error())
		return tickErr
	}

	switch e.config.Mode {
	case ModeCollision:
		if len(collisions) > 0 {
			pos := collisions[0].Position
			e.finish(StopCollisionDetected, &pos, fmt.Sprintf(messages.Collision, pos.X, pos.Y, tick))
			return nil
		}
	case ModeLastCart:
		if e.checkLastCart() {
			return e.terminalError()
		}
	}

	if tick >= maxTicks(e.config) {
		e.finish(StopTickLimit, nil, fmt.Sprintf(messages.TickLimit, tick))
		return ErrTickLimit
	}

	return nil
}

// checkLastCart finishes a last-cart simulation once at most one cart is left
func (e *SimEngine) checkLastCart() bool {
	if e.config.Mode != ModeLastCart || e.board.LiveCartCount() > 1 {
		return false
	}

	messages := withDefaultMessages(e.config.Messages)
	tick := e.state.Tick

	carts := e.board.Carts()
	if len(carts) == 0 {
		e.finish(StopNoSurvivors, nil, fmt.Sprintf(messages.NoSurvivors, tick))
		return true
	}

	pos := carts[0].Position
	e.finish(StopLastCart, &pos, fmt.Sprintf(messages.Survivor, pos.X, pos.Y, tick))
	return true
}

func (e *SimEngine) finish(reason StopReason, result *track.Position, message string) {
	e.state.Finished = true
	e.state.StopReason = reason
	e.state.Result = result
	e.state.Message = message
}

// terminalError maps a finished state to the error Run reports
func (e *SimEngine) terminalError() error {
	switch e.state.StopReason {
	case StopNoSurvivors:
		return ErrNoSurvivors
	case StopTickLimit:
		return ErrTickLimit
	case StopDerailed:
		return track.ErrDerailed
	}
	return nil
}

// addToHistory appends a report, dropping the oldest beyond MaxTickHistory
func (e *SimEngine) addToHistory(report TickReport) {
	e.state.History = append(e.state.History, report)
	if over := len(e.state.History) - MaxTickHistory; over > 0 {
		e.state.History = append([]TickReport(nil), e.state.History[over:]...)
	}
}

// syncState copies board-derived fields into the exported state
func (e *SimEngine) syncState() {
	e.state.Grid = e.board.Lines()
	e.state.Carts = e.board.CartStates()
	e.state.LiveCarts = e.board.LiveCartCount()
	e.state.Width = e.board.Width()
	e.state.Height = e.board.Height()

	e.state.Closest = nil
	if a, b, distance, ok := NearestCartPair(e.state); ok {
		e.state.Closest = &CartPair{CartIDs: [2]int{a.ID, b.ID}, Distance: distance}
	}
}
