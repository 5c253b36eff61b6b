// Package gateway wires the service together and fronts it with HTTP.
//
// New builds the whole object graph from config: SQLite store, assistant
// client, conversation service, optional Messenger webhook, the admin
// dashboard, and the embedded chat UI. Run serves until the context is
// canceled, then shuts down gracefully.
//
// Visitor-facing routes:
//
//	POST /api/chat        one chat exchange
//	POST /api/lead        quick quote form submission
//	GET  /track/{partner} affiliate redirect with click tracking
//	GET  /health          liveness probe
package gateway
