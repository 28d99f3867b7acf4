// Package api provides the HTTP REST API of the minecart simulator.
//
// Endpoints:
//
// Sessions:
//   - POST   /api/sessions              create a session ({"config_id": "crossing"})
//   - GET    /api/sessions              list sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET    /api/sessions/unified      several sessions side by side (?sessionIds=a,b or ?configName=x)
//   - GET    /api/sessions/{id}         session details
//   - DELETE /api/sessions/{id}         delete a session
//
// Simulation:
//   - GET  /api/sessions/{id}/state    current SimState
//   - POST /api/sessions/{id}/tick     advance {"ticks": 5, "reset": false}; empty body ticks once
//   - POST /api/sessions/{id}/run      run to completion {"reset": false}
//   - POST /api/sessions/{id}/reset    restore the initial layout
//   - GET  /api/sessions/{id}/history  tick reports (?page=1&limit=20&order=desc)
//   - GET  /api/sessions/{id}/render   board as plain text
//
// Configuration:
//   - GET  /api/configs                list layouts
//   - GET  /api/configs/{name}         layout details
//   - POST /api/configs                save a layout (validated before saving)
//
// Other:
//   - GET /ws?session={id}             websocket updates for a session
//   - GET /health                      liveness probe
//
// Errors are returned as JSON with an HTTP status:
//
//	{"error": "session not found: ..."}
//
// Unknown sessions map to 404, invalid tick counts to 400 and cancelled
// requests to 503.
package api
