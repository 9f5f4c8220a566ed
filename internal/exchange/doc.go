// Package exchange maps exchange-specific WebSocket wire formats onto the
// canonical message schema in internal/model.
//
// Each supported exchange is one Adapter variant owning everything specific
// to that venue: stream endpoint URLs, subscribe handshake frames, symbol
// conventions (Kraken's XBT, Coinbase's dashed products), heartbeat
// detection, and the orderbook/ticker frame parsers. Adding an exchange
// means adding one variant, not editing shared branching.
//
// Parsers are pure and stateless: no network access, no lifecycle, no
// retained book state. A frame either maps to one NormalizedMessage, is
// recognized as a control frame (heartbeat, subscribe ack) that refreshes
// liveness without producing data, or is rejected with a *ProtocolError.
package exchange
