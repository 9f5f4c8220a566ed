// Package health classifies stream liveness.
//
// A stream is healthy when its connection is established and a frame has
// arrived within the staleness threshold, stale when the connection is up
// but quiet past the threshold, and down in every other lifecycle state.
// The Monitor scans all registered streams on an interval and logs status
// transitions.
package health
