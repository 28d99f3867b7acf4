package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wricardo/mcp-training/minecarts/game/track"
)

// ValidateLayoutConfig validates a layout configuration for correctness and runnability
func ValidateLayoutConfig(config *LayoutConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}

	// Validate required fields
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	switch config.Mode {
	case ModeCollision, ModeLastCart:
	default:
		return fmt.Errorf("config validation: mode must be %q or %q, got %q", ModeCollision, ModeLastCart, config.Mode)
	}

	if config.MaxTicks < 0 || config.MaxTicks > MaxTicksLimit {
		return fmt.Errorf("config validation: max_ticks must be between 0 and %d, got %d", MaxTicksLimit, config.MaxTicks)
	}

	// Validate layout
	if len(config.Layout) == 0 {
		return fmt.Errorf("config validation: layout must have at least one row")
	}
	if len(config.Layout) > MaxGridSize {
		return fmt.Errorf("config validation: layout must have at most %d rows, got %d", MaxGridSize, len(config.Layout))
	}
	for i, row := range config.Layout {
		if len(row) > MaxGridSize {
			return fmt.Errorf("config validation: row %d must have at most %d characters, got %d", i+1, MaxGridSize, len(row))
		}
	}

	board, err := track.ParseBoardStrict(config.Layout)
	if err != nil {
		var perr *track.ParseError
		if errors.As(err, &perr) {
			return fmt.Errorf("config validation: invalid character '%c' at row %d, col %d", perr.Glyph, perr.Y+1, perr.X+1)
		}
		return fmt.Errorf("config validation: %v", err)
	}

	carts := board.LiveCartCount()
	if carts == 0 {
		return fmt.Errorf("config validation: layout must contain at least one cart (> v < ^)")
	}
	if config.Mode == ModeCollision && carts < 2 {
		return fmt.Errorf("config validation: collision mode needs at least two carts, got %d", carts)
	}

	// Validate format strings
	if config.Messages.Collision != "" && strings.Count(config.Messages.Collision, "%d") != 3 {
		return fmt.Errorf("config validation: messages.collision must contain %%d for x, y and tick")
	}
	if config.Messages.Survivor != "" && strings.Count(config.Messages.Survivor, "%d") != 3 {
		return fmt.Errorf("config validation: messages.survivor must contain %%d for x, y and tick")
	}
	if config.Messages.NoSurvivors != "" && strings.Count(config.Messages.NoSurvivors, "%d") != 1 {
		return fmt.Errorf("config validation: messages.no_survivors must contain %%d for tick")
	}
	if config.Messages.TickLimit != "" && strings.Count(config.Messages.TickLimit, "%d") != 1 {
		return fmt.Errorf("config validation: messages.tick_limit must contain %%d for tick")
	}

	return nil
}

// LayoutFromText builds a layout config from raw grid text
func LayoutFromText(name, text string, mode Mode) (*LayoutConfig, error) {
	lines := track.SplitLines(text)
	if len(lines) == 0 {
		return nil, fmt.Errorf("layout %q: %w", name, track.ErrEmptyLayout)
	}
	config := &LayoutConfig{
		Name:        name,
		Description: fmt.Sprintf("Track layout %s", name),
		Mode:        mode,
		Layout:      lines,
	}
	if config.Mode == "" {
		config.Mode = ModeLastCart
	}
	return config, nil
}

// DefaultLayoutConfig returns the built-in layout used when nothing else is configured
func DefaultLayoutConfig() *LayoutConfig {
	return &LayoutConfig{
		Name:        "default",
		Description: "Nine carts on two interlocked loops; one survives",
		Mode:        ModeLastCart,
		Layout: []string{
			`/>-<\  `,
			`|   |  `,
			`| /<+-\`,
			`| | | v`,
			`\>+</ |`,
			`  |   ^`,
			`  \<->/`,
		},
	}
}

// withDefaultMessages fills in empty message templates
func withDefaultMessages(m LayoutMessages) LayoutMessages {
	if m.Welcome == "" {
		m.Welcome = "Carts are on the track."
	}
	if m.Collision == "" {
		m.Collision = "Crash at %d,%d on tick %d"
	}
	if m.Survivor == "" {
		m.Survivor = "Last cart standing at %d,%d after tick %d"
	}
	if m.NoSurvivors == "" {
		m.NoSurvivors = "No carts left after tick %d"
	}
	if m.TickLimit == "" {
		m.TickLimit = "Stopped after %d ticks without a result"
	}
	return m
}

// maxTicks returns the effective tick limit of a config
func maxTicks(config *LayoutConfig) int {
	if config.MaxTicks == 0 {
		return DefaultMaxTicks
	}
	return config.MaxTicks
}
