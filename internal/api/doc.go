// Package api implements the horn node's read-only diagnostics HTTP server.
//
// Endpoints under /api/v1:
//   - GET /health  liveness and version
//   - GET /status  node health snapshot (link, bus, actuator state, counters)
//   - GET /audit   recent actuation log entries (?limit=N&offset=N&verdict=V)
//   - GET /ws      WebSocket stream of actuation events
//
// Nothing here can command the actuator. The server is disabled by default
// and binds to loopback unless configured otherwise.
package api
