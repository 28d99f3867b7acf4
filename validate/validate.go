// Command validate provides a small CLI that validates the layout files in
// the ../configs directory. It checks:
//   - the file decodes in its format (JSON is also checked against the schema)
//   - the layout passes strict validation: known glyphs, a valid mode, enough carts
//   - track pieces connect to their neighbours, so carts cannot run off a loose end
//   - last_cart layouts with an even number of carts, which may end with no survivor
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/minecarts/game/config"
	"github.com/wricardo/mcp-training/minecarts/game/engine"
	"github.com/wricardo/mcp-training/minecarts/game/track"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages and warnings;
// otherwise it accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateConfig loads and validates a single layout file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	if _, err := os.Stat(filePath); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	layout, err := config.LoadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid file: %v", err))
		return result
	}

	if err := engine.ValidateLayoutConfig(layout); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, strings.TrimPrefix(err.Error(), "config validation: "))
		return result
	}

	stats := engine.AnalyzeLayout(layout.Layout)

	for _, loose := range looseEnds(layout.Layout) {
		result.Errors = append(result.Errors, fmt.Sprintf("⚠ Loose track end at (%d,%d)", loose.X, loose.Y))
	}
	if layout.Mode == engine.ModeLastCart && stats.Carts%2 == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("⚠ %d carts in last_cart mode, the run may end with no survivor", stats.Carts))
	}

	result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", layout.Name))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Mode: %s", layout.Mode))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Grid: %dx%d", stats.Width, stats.Height))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Carts: %d", stats.Carts))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Intersections: %d", stats.Intersections))

	return result
}

// looseEnds lists straight and intersection tiles with a connection that no
// neighbouring tile accepts. Curves accept any neighbour since their pairing
// depends on the surrounding track.
func looseEnds(layout []string) []track.Position {
	board := track.ParseBoard(layout)
	var loose []track.Position

	for y := 0; y < board.Height(); y++ {
		for x := 0; x < board.Width(); x++ {
			tile := board.TileAt(x, y)
			if tile == nil || tile.Kind == track.Curve {
				continue
			}
			for _, dir := range connections(tile) {
				dx, dy := dir.Delta()
				if !accepts(board.TileAt(x+dx, y+dy), opposite(dir)) {
					loose = append(loose, track.Position{X: x, Y: y})
					break
				}
			}
		}
	}
	return loose
}

// connections returns the headings a tile leads to
func connections(tile *track.Tile) []track.Direction {
	switch tile.Kind {
	case track.Intersection:
		return []track.Direction{track.East, track.South, track.West, track.North}
	case track.Straight:
		if tile.Orientation == track.Horizontal {
			return []track.Direction{track.East, track.West}
		}
		return []track.Direction{track.North, track.South}
	}
	return nil
}

// accepts reports whether tile can be entered from the side facing from
func accepts(tile *track.Tile, from track.Direction) bool {
	if tile == nil {
		return false
	}
	if tile.Kind == track.Curve {
		return true
	}
	for _, dir := range connections(tile) {
		if dir == from {
			return true
		}
	}
	return false
}

// opposite relies on directions being ordered clockwise
func opposite(d track.Direction) track.Direction {
	return (d + 2) % 4
}

// main scans ../configs for layout files and validates each one, printing a
// concise report and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	var files []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml", "*.txt"} {
		matches, err := filepath.Glob(filepath.Join(configDir, pattern))
		if err != nil {
			fmt.Printf("Error finding config files: %v\n", err)
			os.Exit(1)
		}
		files = append(files, matches...)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All layouts are valid!")
	} else {
		fmt.Println("❌ Some layouts have errors")
		os.Exit(1)
	}
}
