// Package registry owns the pool of supervised market-data streams.
//
// Subscribe is idempotent per (exchange, symbol, stream type) triple: a
// live stream is reused and a failed or stopped one is replaced by a fresh
// supervisor. Every stream gets its own delivery buffer, and an optional
// broadcast sink fans normalized messages out to external systems. Dials
// to the same exchange share a rate limiter so reconnect storms do not
// hammer one venue.
package registry
