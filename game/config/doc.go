// Package config loads track layouts for the minecart simulator.
//
// Layouts live in a single directory and may be written in three formats:
//   - <name>.json, checked against an embedded JSON Schema before decoding
//   - <name>.yaml or <name>.yml
//   - <name>.txt, a raw grid; it runs in last-cart mode
//
// Every layout is then validated with engine.ValidateLayoutConfig. Loaded
// layouts are cached until RefreshCache is called.
//
// The default layout is classic when present, otherwise the first valid file
// in the directory, otherwise the built-in engine.DefaultLayoutConfig.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	layout, err := manager.LoadConfig("crossing")
//	configs, err := manager.ListConfigs()
package config
