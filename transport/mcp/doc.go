// Package mcp exposes the simulator to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool call becomes a request against the
// REST API, and the JSON reply is formatted into text an agent can read.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - sim_state, render, describe_tile
//   - tick, run, reset_sim, tick_history
//   - list_configs, simulation_rules
//
// API failures are returned as tool error results rather than Go errors, so
// the agent sees the server's message.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
