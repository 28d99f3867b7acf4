// Package engine drives the minecart simulation for a single track layout.
//
// The engine package implements:
//   - Layout configuration and validation
//   - Tick stepping with a bounded tick history
//   - Termination rules for collision mode and last-cart mode
//   - Simulation state export and restore for persistence
//
// Core Types:
//
// The Engine interface defines the contract for driving a simulation,
// implemented by SimEngine. LayoutConfig describes a track layout and the
// termination mode; SimState is the serialisable snapshot of a running
// simulation.
//
// Usage:
//
//	config, err := engine.LayoutFromText("day13", input, engine.ModeLastCart)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sim, err := engine.NewEngine(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := sim.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.Position.X, result.Position.Y)
//
// Modes:
//
// In collision mode the simulation stops after the first tick that produced
// a crash and reports where it happened. In last-cart mode it runs until at
// most one cart is left and reports the survivor's position.
package engine
