// Package engine composes the temporal index and the time sync scheduler
// into the single facade the transports (HTTP API, MQTT ingest) talk to.
//
// The engine owns:
//   - The sync scheduler and its source adapters, built from config
//   - The stream registry (temporal.Index), pre-registered from config
//   - The optional MQTT ingest subscription and fused time publication
//   - The optional one-way archive mirror
//
// Transports never touch the index or scheduler directly; every operation
// goes through the engine, which applies the observed-point normalisation
// (origin, confidence) and fans out side effects (archive writes, change
// callbacks for WebSocket broadcasting).
package engine
