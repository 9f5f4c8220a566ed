// Package model defines the canonical data types shared across the stream
// gateway.
//
// Conventions:
//   - Prices and sizes: decimal.Decimal, parsed from the exchange's string
//     representation without float round-tripping
//   - Timestamps: time.Time in UTC
//   - Stream identifiers: deterministic lowercase strings derived from
//     (exchange, symbol, stream type), e.g. "binance_btcusdt_orderbook"
//
// Everything here is a pure value type. Nothing in this package holds a
// reference to a connection, a supervisor, or any other lifecycle-bearing
// object.
package model
