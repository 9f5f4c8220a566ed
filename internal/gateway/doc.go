// Package gateway serves the admin HTTP surface: subscribing and stopping
// streams, listing the pool, per-stream health checks, an aggregate healthz
// endpoint, and counter snapshots for debugging.
package gateway
