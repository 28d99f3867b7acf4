// Package track implements the minecart simulation core.
//
// The package models:
//   - Track tiles: straight pieces, curves, intersections and empty cells
//   - Carts with a direction and a per-cart intersection turn cycle
//   - The board that owns every tile and the live cart list
//
// Core Types:
//
// Tile is a tagged variant over TileKind; its entry rule (turning on curves and
// intersections, collisions when occupied) is applied by Place. Cart stores only
// its coordinates and looks tiles up through a TileLocator, so there are no
// back-references between carts, tiles and the board. Board parses a text grid
// and advances the whole system one tick at a time.
//
// Usage:
//
//	board := track.ParseBoard(lines)
//	for tick := 1; board.LiveCartCount() > 1; tick++ {
//		collisions, err := board.Tick(tick)
//		if err != nil {
//			log.Fatal(err)
//		}
//		for _, c := range collisions {
//			fmt.Printf("crash at %d,%d\n", c.Position.X, c.Position.Y)
//		}
//	}
//
// Tick Ordering:
//
// Every tick scans tiles in row-major order (top row first, left to right).
// Each occupied tile is cleared before its cart moves, and a cart advances at
// most once per tick. The scan order decides which cart of a head-on pair moves
// first and therefore where the crash is reported.
package track
