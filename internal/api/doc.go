// Package api implements the HTTP JSON API and WebSocket live feed for the
// BSSID registry.
//
// This package provides:
//   - Registry endpoints under /api (insert, list, delete, reset)
//   - Health and metrics endpoints
//   - A WebSocket hub that relays committed registry events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Responses
//
// Registry mutations answer with {"status": "success"|"error", "message": ...}.
// Lists answer with bare JSON arrays or objects. Registry error kinds map to
// 400 (validation), 409 (conflict), 404 (not found) and 500 (storage).
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// The server runs without MQTT or a database handle; those only feed the
// health and metrics endpoints.
package api
