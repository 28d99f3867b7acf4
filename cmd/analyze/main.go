// Command analyze prints quick, human-readable facts about the layouts in a
// configs directory. For every layout it summarizes dimensions and tile
// counts, then runs the layout in both modes to show where the first crash
// happens and which cart, if any, survives.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wricardo/mcp-training/minecarts/game/config"
	"github.com/wricardo/mcp-training/minecarts/game/engine"
)

// runTimeout bounds each analysis run
const runTimeout = 10 * time.Second

// Analysis holds the facts printed for one layout.
type Analysis struct {
	ConfigID   string
	Name       string
	Mode       engine.Mode
	Stats      engine.LayoutStats
	FirstCrash string
	Survivor   string
	Warnings   []string
}

func main() {
	dir := "configs"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	manager, err := config.NewManager(dir)
	if err != nil {
		fmt.Printf("Error opening %s: %v\n", dir, err)
		os.Exit(1)
	}

	infos, err := manager.ListConfigs()
	if err != nil {
		fmt.Printf("Error listing layouts: %v\n", err)
		os.Exit(1)
	}

	for _, info := range infos {
		fmt.Printf("\n=== Analyzing %s ===\n", info.Filename)
		layout, err := manager.LoadConfig(info.ConfigID)
		if err != nil {
			fmt.Printf("Error loading layout: %v\n", err)
			continue
		}
		printAnalysis(os.Stdout, analyzeLayout(context.Background(), info.ConfigID, layout))
	}
}

func analyzeLayout(ctx context.Context, id string, layout *engine.LayoutConfig) Analysis {
	a := Analysis{
		ConfigID: id,
		Name:     layout.Name,
		Mode:     layout.Mode,
		Stats:    engine.AnalyzeLayout(layout.Layout),
	}

	if a.Stats.Carts < 2 {
		a.Warnings = append(a.Warnings, fmt.Sprintf("only %d cart(s), nothing can collide", a.Stats.Carts))
	}
	if a.Stats.Intersections == 0 {
		a.Warnings = append(a.Warnings, "no intersections, carts never change loops")
	}

	a.FirstCrash = outcome(ctx, layout, engine.ModeCollision)
	a.Survivor = outcome(ctx, layout, engine.ModeLastCart)
	return a
}

// outcome runs a copy of layout in mode and describes the result
func outcome(ctx context.Context, layout *engine.LayoutConfig, mode engine.Mode) string {
	copied := *layout
	copied.Mode = mode

	eng, err := engine.NewEngine(&copied)
	if err != nil {
		return fmt.Sprintf("not runnable (%v)", err)
	}

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	result, err := eng.Run(ctx)
	switch {
	case errors.Is(err, engine.ErrNoSurvivors):
		return fmt.Sprintf("none, every cart crashed by tick %d", result.Ticks)
	case errors.Is(err, engine.ErrTickLimit):
		return fmt.Sprintf("undecided after %d ticks", result.Ticks)
	case err != nil:
		return fmt.Sprintf("error (%v)", err)
	}
	return fmt.Sprintf("%s on tick %d", result.Answer(), result.Ticks)
}

func printAnalysis(w io.Writer, a Analysis) {
	fmt.Fprintf(w, "Name: %s (%s)\n", a.Name, a.ConfigID)
	fmt.Fprintf(w, "Mode: %s\n", a.Mode)
	fmt.Fprintf(w, "Grid Size: %d x %d\n", a.Stats.Width, a.Stats.Height)
	fmt.Fprintf(w, "Carts: %d\n", a.Stats.Carts)
	fmt.Fprintf(w, "Track: %d straights, %d curves, %d intersections\n", a.Stats.Straights, a.Stats.Curves, a.Stats.Intersections)
	fmt.Fprintf(w, "First crash: %s\n", a.FirstCrash)
	fmt.Fprintf(w, "Last cart: %s\n", a.Survivor)

	if len(a.Warnings) == 0 {
		fmt.Fprintf(w, "✅ Layout looks healthy\n")
		return
	}
	for _, warning := range a.Warnings {
		fmt.Fprintf(w, "⚠️  WARNING: %s\n", warning)
	}
}
