package service

import (
	"time"

	"github.com/wricardo/mcp-training/minecarts/game/engine"
	"github.com/wricardo/mcp-training/minecarts/game/track"
)

// SessionInfo provides information about a simulation session
type SessionInfo struct {
	ID             string               `json:"id"`
	ConfigName     string               `json:"config_name"`
	CreatedAt      time.Time            `json:"created_at"`
	LastAccessedAt time.Time            `json:"last_accessed_at"`
	SimState       *engine.SimState     `json:"sim_state"`
	LayoutConfig   *engine.LayoutConfig `json:"layout_config"`
}

// TickResult contains the result of advancing a session by one or more ticks
type TickResult struct {
	TicksExecuted  int                 `json:"ticks_executed"`
	RequestedTicks int                 `json:"requested_ticks"`
	Truncated      bool                `json:"truncated,omitempty"`
	Limit          int                 `json:"limit,omitempty"`
	Reports        []engine.TickReport `json:"reports"`
	Events         []SimEvent          `json:"events"`
	SimState       *engine.SimState    `json:"sim_state"`

	// Final status
	Finished   bool              `json:"finished"`
	StopReason engine.StopReason `json:"stop_reason,omitempty"`
	Result     *track.Position   `json:"result,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// RunResult contains the outcome of running a session to completion
type RunResult struct {
	Outcome       *engine.RunResult `json:"outcome"`
	TicksExecuted int               `json:"ticks_executed"`
	Events        []SimEvent        `json:"events"`
	SimState      *engine.SimState  `json:"sim_state"`
	Answer        string            `json:"answer,omitempty"` // "x,y" for collisions, "x y" for survivors
	Message       string            `json:"message"`
}

// SimEvent represents something notable that happened during a simulation
type SimEvent struct {
	Type      string          `json:"type"` // "reset", "collision", "finished"
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
	Tick      int             `json:"tick,omitempty"`
	Position  *track.Position `json:"position,omitempty"`
}

// HistoryOptions configures tick history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated tick history
type HistoryResponse struct {
	Ticks       []engine.TickReport `json:"ticks"`
	TotalTicks  int                 `json:"total_ticks"`
	Page        int                 `json:"page"`
	PageSize    int                 `json:"page_size"`
	TotalPages  int                 `json:"total_pages"`
	HasNext     bool                `json:"has_next"`
	HasPrevious bool                `json:"has_previous"`
}

// ConfigInfo provides information about a layout configuration
type ConfigInfo struct {
	Filename      string      `json:"filename"`
	ConfigID      string      `json:"config_id"` // The identifier to use for session creation
	Name          string      `json:"name"`      // Display name
	Description   string      `json:"description"`
	Mode          engine.Mode `json:"mode"`
	Width         int         `json:"width"`
	Height        int         `json:"height"`
	Carts         int         `json:"carts"`
	Intersections int         `json:"intersections"`
}
