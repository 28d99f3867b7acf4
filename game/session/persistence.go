package session

import (
	"fmt"
	"time"

	"github.com/wricardo/mcp-training/minecarts/game/engine"
	"github.com/wricardo/mcp-training/minecarts/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the stored form of a session. The layout is
// stored alongside the state so a session survives edits to its config file.
type PersistedSessionData struct {
	ID             string               `json:"id"`
	ConfigName     string               `json:"config_name"`
	CreatedAt      time.Time            `json:"created_at"`
	LastAccessedAt time.Time            `json:"last_accessed_at"`
	LayoutConfig   *engine.LayoutConfig `json:"layout_config,omitempty"`
	SimState       *engine.SimState     `json:"sim_state"`
}

// persistedFromSession captures a session for storage
func persistedFromSession(session *service.Session, configs service.ConfigManager) (*PersistedSessionData, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}

	configID, err := configIDFromName(configs, session.Config.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get config ID: %w", err)
	}

	return &PersistedSessionData{
		ID:             session.ID,
		ConfigName:     configID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		LayoutConfig:   session.Config,
		SimState:       session.Engine.GetState(),
	}, nil
}

// restoreSession rebuilds a live session from stored data
func restoreSession(data *PersistedSessionData, configs service.ConfigManager) (*service.Session, error) {
	layout := data.LayoutConfig
	if layout == nil {
		var err error
		layout, err = configs.LoadConfig(data.ConfigName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigName, err)
		}
	}

	simEngine, err := engine.NewEngine(layout)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	if data.SimState != nil {
		if err := simEngine.SetState(data.SimState); err != nil {
			return nil, fmt.Errorf("failed to set sim state: %w", err)
		}
	}

	return &service.Session{
		ID:             data.ID,
		Engine:         simEngine,
		Config:         layout,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}

// configIDFromName returns the config ID (filename without extension) for a display name
func configIDFromName(configs service.ConfigManager, displayName string) (string, error) {
	if configs == nil {
		return displayName, nil
	}

	list, err := configs.ListConfigs()
	if err != nil {
		return "", fmt.Errorf("failed to list configs: %w", err)
	}

	for _, config := range list {
		if config.Name == displayName {
			return config.ConfigID, nil
		}
	}

	// If not found, assume the displayName is already the config ID
	return displayName, nil
}
