package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/minecarts/game/engine"
	"github.com/wricardo/mcp-training/minecarts/game/service"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// extensions lists the supported layout formats in lookup order
var extensions = []string{".json", ".yaml", ".yml", ".txt"}

// Manager handles layout configuration loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.LayoutConfig
	configs       map[string]*engine.LayoutConfig
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.LayoutConfig),
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return m, nil
}

// LoadConfig loads a configuration by name. The name may carry one of the
// supported extensions; without one the formats are tried in order. Explicit
// and bare names are cached separately.
func (m *Manager) LoadConfig(name string) (*engine.LayoutConfig, error) {
	key, ext := splitName(name)
	cacheKey := key + ext

	m.mu.RLock()
	if config, exists := m.configs[cacheKey]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[cacheKey]; exists {
		return config, nil
	}

	path, found, err := m.findConfigFile(key, ext)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := decodeConfig(key, found, data)
	if err != nil {
		return nil, err
	}

	if err := engine.ValidateLayoutConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	m.configs[cacheKey] = config
	return config, nil
}

// ListConfigs returns information about all available configurations
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ext := splitName(entry.Name())
		if ext == "" || seen[name] {
			continue
		}
		seen[name] = true

		config, err := m.LoadConfig(name)
		if err != nil {
			// Skip invalid configs
			continue
		}

		stats := engine.AnalyzeLayout(config.Layout)
		configs = append(configs, &service.ConfigInfo{
			Filename:      entry.Name(),
			ConfigID:      name, // This is the identifier to use for session creation
			Name:          config.Name,
			Description:   config.Description,
			Mode:          config.Mode,
			Width:         stats.Width,
			Height:        stats.Height,
			Carts:         stats.Carts,
			Intersections: stats.Intersections,
		})
	}

	return configs, nil
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.LayoutConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default configuration by name
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = config
	return nil
}

// RefreshCache drops cached configurations so they are reread from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.LayoutConfig)
	m.mu.Unlock()

	return m.loadDefaultConfig()
}

// loadDefaultConfig picks classic, then the first valid layout, then the built-in one
func (m *Manager) loadDefaultConfig() error {
	config, err := m.LoadConfig("classic")
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr != nil || len(configs) == 0 {
			config = createMinimalConfig()
		} else if config, err = m.LoadConfig(configs[0].ConfigID); err != nil {
			config = createMinimalConfig()
		}
	}

	m.mu.Lock()
	m.defaultConfig = config
	m.mu.Unlock()
	return nil
}

// SaveConfig saves a configuration to disk. Names ending in .yaml or .yml are
// written as YAML, everything else as JSON.
func (m *Manager) SaveConfig(name string, config *engine.LayoutConfig) error {
	if err := engine.ValidateLayoutConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	key, ext := splitName(name)
	var (
		data []byte
		err  error
	)
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".txt":
		return fmt.Errorf("%w: cannot save layout metadata as .txt", ErrInvalidConfig)
	default:
		ext = ".json"
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(m.configDir, key+ext)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// a bare name may now resolve to a different file
	m.mu.Lock()
	delete(m.configs, key)
	m.configs[key+ext] = config
	m.mu.Unlock()

	return nil
}

// findConfigFile locates the file for name, trying every format unless ext is set
func (m *Manager) findConfigFile(name, ext string) (string, string, error) {
	candidates := extensions
	if ext != "" {
		candidates = []string{ext}
	}
	for _, candidate := range candidates {
		path := filepath.Join(m.configDir, name+candidate)
		if _, err := os.Stat(path); err == nil {
			return path, candidate, nil
		}
	}
	return "", "", ErrConfigNotFound
}

// decodeConfig parses file contents according to their format
func decodeConfig(name, ext string, data []byte) (*engine.LayoutConfig, error) {
	var config engine.LayoutConfig

	switch ext {
	case ".json":
		if err := validateLayoutJSON(data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case ".txt":
		return engine.LayoutFromText(name, string(data), engine.ModeLastCart)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidConfig, ext)
	}

	if config.Mode == "" {
		config.Mode = engine.ModeLastCart
	}
	return &config, nil
}

// LoadFile decodes a single layout file outside any config directory.
// The format follows the file extension.
func LoadFile(path string) (*engine.LayoutConfig, error) {
	name, ext := splitName(filepath.Base(path))
	if ext == "" {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidConfig, filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decodeConfig(name, ext, data)
}

// splitName separates a supported extension from a config name
func splitName(name string) (string, string) {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range extensions {
		if ext == known {
			return strings.TrimSuffix(name, filepath.Ext(name)), known
		}
	}
	return name, ""
}

// createMinimalConfig returns the built-in layout
func createMinimalConfig() *engine.LayoutConfig {
	return engine.DefaultLayoutConfig()
}
