// Package subscription simulates recurring hardware and state-change event
// streams for previewer mocks.
//
// This package provides:
//   - One ticker-driven emitter per (namespace, event) key
//   - Idempotent start: re-subscribing cancels the previous ticker first
//   - Defensive stop: stopping an unknown key is a no-op, also from a listener
//   - Producer failures contained per key, logged and never propagated
//   - Injectable clocks (jonboulle/clockwork) for deterministic tests
package subscription
