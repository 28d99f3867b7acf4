package engine

import (
	"strings"
	"testing"
)

func TestValidateLayoutConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *LayoutConfig)
		wantErr string
	}{
		{"valid", func(c *LayoutConfig) {}, ""},
		{"missing name", func(c *LayoutConfig) { c.Name = "" }, "name is required"},
		{"missing description", func(c *LayoutConfig) { c.Description = "" }, "description is required"},
		{"unknown mode", func(c *LayoutConfig) { c.Mode = "race" }, "mode must be"},
		{"empty mode", func(c *LayoutConfig) { c.Mode = "" }, "mode must be"},
		{"negative max ticks", func(c *LayoutConfig) { c.MaxTicks = -1 }, "max_ticks"},
		{"max ticks too large", func(c *LayoutConfig) { c.MaxTicks = MaxTicksLimit + 1 }, "max_ticks"},
		{"empty layout", func(c *LayoutConfig) { c.Layout = nil }, "at least one row"},
		{"invalid glyph", func(c *LayoutConfig) { c.Layout[1] = "|   |  /--#-\\" }, "invalid character '#' at row 2, col 11"},
		{"no carts", func(c *LayoutConfig) { c.Layout = []string{"/-\\", "\\-/"} }, "at least one cart"},
		{"one cart in collision mode", func(c *LayoutConfig) { c.Layout = []string{"/>\\", "\\-/"} }, "at least two carts"},
		{"collision message placeholders", func(c *LayoutConfig) { c.Messages.Collision = "boom" }, "messages.collision"},
		{"survivor message placeholders", func(c *LayoutConfig) { c.Messages.Survivor = "%d" }, "messages.survivor"},
		{"no survivors placeholders", func(c *LayoutConfig) { c.Messages.NoSurvivors = "none" }, "messages.no_survivors"},
		{"tick limit placeholders", func(c *LayoutConfig) { c.Messages.TickLimit = "stop" }, "messages.tick_limit"},
		{"row too long", func(c *LayoutConfig) { c.Layout[0] = strings.Repeat("-", MaxGridSize+1) }, "at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := createCollisionConfig()
			tt.mutate(config)

			err := ValidateLayoutConfig(config)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidateLayoutConfig_Nil(t *testing.T) {
	if err := ValidateLayoutConfig(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestLayoutFromText(t *testing.T) {
	config, err := LayoutFromText("loop", "/>-<\\\r\n\\---/\n", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if config.Mode != ModeLastCart {
		t.Errorf("Expected default mode %s, got %s", ModeLastCart, config.Mode)
	}
	if len(config.Layout) != 2 || config.Layout[1] != `\---/` {
		t.Errorf("Unexpected layout %q", config.Layout)
	}
	if err := ValidateLayoutConfig(config); err != nil {
		t.Errorf("Expected generated config to be valid, got %v", err)
	}

	if _, err := LayoutFromText("empty", "\n", ModeCollision); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestDefaultLayoutConfig(t *testing.T) {
	if err := ValidateLayoutConfig(DefaultLayoutConfig()); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}
