// Command carts runs a track layout to completion from the terminal.
//
// The layout is read from a file (.json, .yaml, .yml or .txt) or from stdin
// when no file or "-" is given. In collision mode the first crash is printed
// as "x,y"; in last_cart mode the surviving cart is printed as "x y".
//
//	carts run --mode collision track.txt
//	carts run --verbose < track.txt
//	carts render configs/crossing.yaml
//	carts check configs/*.json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/minecarts/game/config"
	"github.com/wricardo/mcp-training/minecarts/game/engine"
)

func main() {
	app := newApp(os.Stdin, os.Stdout)
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "carts: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "carts",
		Usage: "simulate carts on a track layout",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run a layout until its stop condition and print the position",
				ArgsUsage: "[FILE]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "collision or last_cart (defaults to the layout's mode)",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "print the board before every tick",
					},
					&cli.IntFlag{
						Name:  "max-ticks",
						Usage: "stop after this many ticks (0 keeps the layout's limit)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print the full run result as JSON",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					layout, err := readLayout(cmd.Args().First(), stdin)
					if err != nil {
						return err
					}
					if mode := cmd.String("mode"); mode != "" {
						layout.Mode = engine.Mode(mode)
					}
					if maxTicks := cmd.Int("max-ticks"); maxTicks > 0 {
						layout.MaxTicks = maxTicks
					}
					return runLayout(ctx, stdout, layout, cmd.Bool("verbose"), cmd.Bool("json"))
				},
			},
			{
				Name:      "render",
				Usage:     "print the initial board of a layout",
				ArgsUsage: "[FILE]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					layout, err := readLayout(cmd.Args().First(), stdin)
					if err != nil {
						return err
					}
					eng, err := engine.NewEngine(layout)
					if err != nil {
						return err
					}
					fmt.Fprintln(stdout, eng.Render())
					return nil
				},
			},
			{
				Name:      "check",
				Usage:     "validate layout files strictly",
				ArgsUsage: "FILE...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() == 0 {
						return fmt.Errorf("check needs at least one file")
					}
					return checkFiles(stdout, cmd.Args().Slice())
				},
			},
		},
	}
}

// readLayout loads path, or parses stdin as raw grid text when path is empty or "-"
func readLayout(path string, stdin io.Reader) (*engine.LayoutConfig, error) {
	if path != "" && path != "-" {
		return config.LoadFile(path)
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return engine.LayoutFromText("stdin", string(data), "")
}

func runLayout(ctx context.Context, out io.Writer, layout *engine.LayoutConfig, verbose, asJSON bool) error {
	eng, err := engine.NewEngine(layout)
	if err != nil {
		return err
	}
	if verbose {
		eng.SetObserver(func(tick int, board string) {
			fmt.Fprintf(out, "Tick %d\n%s\n", tick, board)
		})
	}

	result, runErr := eng.Run(ctx)
	if asJSON && result != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		return runErr
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintln(out, result.Answer())
	return nil
}

func checkFiles(out io.Writer, paths []string) error {
	invalid := 0
	for _, path := range paths {
		layout, err := config.LoadFile(path)
		if err == nil {
			err = engine.ValidateLayoutConfig(layout)
		}
		if err != nil {
			invalid++
			fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
			continue
		}
		stats := engine.AnalyzeLayout(layout.Layout)
		fmt.Fprintf(out, "ok   %s (%s, %dx%d, %d carts)\n", path, layout.Mode, stats.Width, stats.Height, stats.Carts)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d layouts invalid", invalid, len(paths))
	}
	fmt.Fprintf(out, "%d layouts valid\n", len(paths))
	return nil
}
