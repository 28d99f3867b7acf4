// Package websocket pushes live simulation updates to browser clients.
//
// A single Hub owns every connection. Clients join a session by passing its
// ID as a query parameter (?sessionId=abc1) and then only receive messages
// for that session. The connection is one-way: anything a client sends is
// read and discarded to keep the pong deadline moving.
//
// Outgoing messages are JSON:
//
//	{"session_id": "abc1", "event": "state_update", "sim_state": {...}}
//	{"session_id": "abc1", "event": "collision", "data": {...}}
//
// Broadcasts are queued on a bounded channel and delivered by Run, so
// callers on the request path never block on a slow browser. Clients whose
// send buffer is full are dropped.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	hub.ServeWS(w, r, sessionID)
//	hub.BroadcastToSession(sessionID, state)
package websocket
