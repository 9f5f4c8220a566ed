// Package connection manages the WebSocket lifecycle of market data streams.
//
// Client wraps a single gorilla/websocket connection with keepalive pings,
// staleness detection, and a channel of timestamped frames. Supervisor
// drives one subscription end to end: it dials through the exchange
// adapter, sends the subscribe handshake, normalizes every frame into a
// sink, and reconnects with exponential backoff until it is stopped or the
// retry ceiling is reached.
package connection
