package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/minecarts/game/engine"
)

// SimService defines all simulation operations
type SimService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Simulation Operations
	Tick(ctx context.Context, sessionID string, n int, reset bool) (*TickResult, error)
	Run(ctx context.Context, sessionID string, reset bool) (*RunResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.SimState, error)

	// Simulation State
	GetSimState(ctx context.Context, sessionID string) (*engine.SimState, error)
	GetTickHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)
	Render(ctx context.Context, sessionID string) (string, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.LayoutConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.LayoutConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.LayoutConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, config *engine.LayoutConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles layout configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.LayoutConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.LayoutConfig
	SaveConfig(name string, config *engine.LayoutConfig) error
}

// TickJournal records tick reports outside the session store
type TickJournal interface {
	Append(sessionID string, report engine.TickReport) error
}

// Session represents an active simulation session
type Session struct {
	ID             string
	Engine         *engine.SimEngine
	Config         *engine.LayoutConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
