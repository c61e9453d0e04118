// Package api implements a small HTTP API for the bridge.
//
// This package provides:
//   - GET /api/v1/health: bridge, device and dependency health
//   - GET /api/v1/status: the current on/off/unknown status
//   - PUT /api/v1/status: request a status change, as the automation
//     framework would
//   - GET /api/v1/history: recent status transitions from SQLite
//   - GET /api/v1/ws: WebSocket stream of status changes and probes
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Graceful Degradation
//
// The server operates without a history repository; the history endpoint
// then answers 503 and everything else keeps working.
package api
