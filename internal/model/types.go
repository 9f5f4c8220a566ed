package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Stream Identity
// -----------------------------------------------------------------------------

// StreamType identifies the kind of market-data feed.
type StreamType string

const (
	StreamTypeOrderbook StreamType = "orderbook"
	StreamTypeTicker    StreamType = "ticker"
)

// Valid reports whether t is a known stream type.
func (t StreamType) Valid() bool {
	return t == StreamTypeOrderbook || t == StreamTypeTicker
}

// ParseStreamType converts external input ("orderbook", "ticker") into a
// StreamType, case-insensitively.
func ParseStreamType(s string) (StreamType, error) {
	switch StreamType(strings.ToLower(strings.TrimSpace(s))) {
	case StreamTypeOrderbook:
		return StreamTypeOrderbook, nil
	case StreamTypeTicker:
		return StreamTypeTicker, nil
	default:
		return "", fmt.Errorf("unknown stream type %q", s)
	}
}

// StreamID uniquely identifies one subscription. It is deterministic: the
// same (exchange, symbol, streamType) triple always yields the same id, so
// duplicate subscribes collapse onto one stream.
type StreamID string

// NewStreamID derives the identifier for a subscription, e.g.
// ("binance", "BTC/USDT", orderbook) -> "binance_btcusdt_orderbook".
func NewStreamID(exchange, symbol string, streamType StreamType) StreamID {
	return StreamID(strings.ToLower(exchange) + "_" + NormalizeSymbol(symbol) + "_" + string(streamType))
}

// NormalizeSymbol lowercases a trading pair and strips pair separators, so
// "BTC/USDT", "btc-usdt" and "BTCUSDT" all map to "btcusdt".
func NormalizeSymbol(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

// -----------------------------------------------------------------------------
// Connection State
// -----------------------------------------------------------------------------

// ConnectionState is the lifecycle state of one stream subscription.
// Transitions are owned exclusively by the subscription's supervisor.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"   // dialing + subscribe handshake
	StateConnected    ConnectionState = "connected"    // receive loop active
	StateReconnecting ConnectionState = "reconnecting" // waiting out backoff before redial
	StateFailed       ConnectionState = "failed"       // retries exhausted, terminal
	StateStopped      ConnectionState = "stopped"      // explicitly stopped, terminal
)

// Terminal reports whether the state permits no further automatic activity.
func (s ConnectionState) Terminal() bool {
	return s == StateFailed || s == StateStopped
}

// -----------------------------------------------------------------------------
// Canonical Messages
// -----------------------------------------------------------------------------

// PriceLevel is one (price, size) entry in an order book.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderbookPayload is the canonical order-book shape. Bids are ordered by
// price descending, asks ascending. After a reconnect the first payload is a
// fresh snapshot, never a delta continuation.
type OrderbookPayload struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// TickerPayload is the canonical rolling 24h summary. Fields the exchange did
// not supply are nil, never zero, so "no data" stays distinguishable from
// "value is zero".
type TickerPayload struct {
	LastPrice        *decimal.Decimal `json:"last_price,omitempty"`
	Volume24h        *decimal.Decimal `json:"volume_24h,omitempty"`
	High24h          *decimal.Decimal `json:"high_24h,omitempty"`
	Low24h           *decimal.Decimal `json:"low_24h,omitempty"`
	ChangePercent24h *decimal.Decimal `json:"change_percent_24h,omitempty"`
}

// NormalizedMessage is the single canonical output unit. Exactly one of
// Orderbook/Ticker is set, matching StreamType. Immutable once constructed;
// it carries no reference back to the subscription that produced it.
type NormalizedMessage struct {
	StreamType StreamType        `json:"stream_type"`
	Exchange   string            `json:"exchange"`
	Symbol     string            `json:"symbol"`
	Timestamp  time.Time         `json:"timestamp"`
	Orderbook  *OrderbookPayload `json:"orderbook,omitempty"`
	Ticker     *TickerPayload    `json:"ticker,omitempty"`
}

// -----------------------------------------------------------------------------
// Subscription Views
// -----------------------------------------------------------------------------

// StreamInfo is a point-in-time summary of one subscription, as returned by
// the registry's list operation.
type StreamInfo struct {
	StreamID     StreamID        `json:"stream_id"`
	Symbol       string          `json:"symbol"`
	Exchange     string          `json:"exchange"`
	StreamType   StreamType      `json:"stream_type"`
	State        ConnectionState `json:"state"`
	AttemptCount int             `json:"attempt_count"`
	Uptime       time.Duration   `json:"uptime"`
	CreatedAt    time.Time       `json:"created_at"`
}

// HealthStatus is the tri-state liveness signal derived from a stream's
// state and last-activity age.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "healthy" // connected and recently active
	HealthStale   HealthStatus = "stale"   // connected but silent past the threshold
	HealthDown    HealthStatus = "down"    // reconnecting or failed
)

// HealthReport is the snapshot returned by the health-check operation.
type HealthReport struct {
	StreamID        StreamID        `json:"stream_id"`
	State           ConnectionState `json:"state"`
	Status          HealthStatus    `json:"status"`
	LastActivityAge time.Duration   `json:"last_activity_age"`
	AttemptCount    int             `json:"attempt_count"`
}
