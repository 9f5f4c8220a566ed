package exchange

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/rickgao/marketstream/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnsupportedExchange is returned by New for exchanges with no adapter.
var ErrUnsupportedExchange = errors.New("unsupported exchange")

// Adapter is one exchange's streaming surface. Implementations are
// stateless values; a single Adapter is safely shared across subscriptions.
type Adapter interface {
	// Name returns the lowercase exchange identifier, e.g. "binance".
	Name() string

	// StreamURL returns the WebSocket endpoint to dial for one
	// subscription. Some exchanges select the stream in the URL itself,
	// others use one shared endpoint plus subscribe frames.
	StreamURL(symbol string, streamType model.StreamType) string

	// SubscribeFrames returns the frames to send after the socket opens.
	// A nil slice means the endpoint already selects the stream.
	SubscribeFrames(symbol string, streamType model.StreamType) ([][]byte, error)

	// Normalize maps one inbound frame to the canonical schema.
	//
	// Returns (msg, nil) for a data frame, (nil, nil) for a control frame
	// (heartbeat, subscribe ack, status event) that refreshes liveness but
	// produces no message, and (nil, *ProtocolError) for a frame that does
	// not match the exchange's expected shape.
	Normalize(symbol string, streamType model.StreamType, frame []byte, receivedAt time.Time) (*model.NormalizedMessage, error)
}

// New returns the adapter for the named exchange, case-insensitively.
func New(name string) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "binance":
		return binanceAdapter{}, nil
	case "kraken":
		return krakenAdapter{}, nil
	case "coinbase":
		return coinbaseAdapter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExchange, name)
	}
}

// Supported returns the exchange names with adapters, sorted.
func Supported() []string {
	return []string{"binance", "coinbase", "kraken"}
}

// ProtocolError reports a frame that failed validation against the expected
// wire shape. The frame is dropped; repeated rejects on one connection mean
// the feed is returning garbage and the connection should be recycled.
type ProtocolError struct {
	Exchange string
	Reason   string
}

func (e *ProtocolError) Error() string {
	return e.Exchange + " protocol error: " + e.Reason
}

func protocolErrf(exchange, format string, args ...any) *ProtocolError {
	return &ProtocolError{Exchange: exchange, Reason: fmt.Sprintf(format, args...)}
}

// -----------------------------------------------------------------------------
// Shared parsing helpers
// -----------------------------------------------------------------------------

// parseLevel validates and converts one (price, size) string pair.
// Prices must be strictly positive; a zero size is legal (level removal).
func parseLevel(exchangeName, price, size string) (model.PriceLevel, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return model.PriceLevel{}, protocolErrf(exchangeName, "bad price %q", price)
	}
	s, err := decimal.NewFromString(size)
	if err != nil {
		return model.PriceLevel{}, protocolErrf(exchangeName, "bad size %q", size)
	}
	if p.Sign() <= 0 {
		return model.PriceLevel{}, protocolErrf(exchangeName, "non-positive price %s", p)
	}
	if s.Sign() < 0 {
		return model.PriceLevel{}, protocolErrf(exchangeName, "negative size %s", s)
	}
	return model.PriceLevel{Price: p, Size: s}, nil
}

// parseLevels converts a [["price","size",...], ...] array, tolerating
// trailing per-level fields (Kraken appends timestamps).
func parseLevels(exchangeName string, raw [][]string) ([]model.PriceLevel, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	levels := make([]model.PriceLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			return nil, protocolErrf(exchangeName, "price level has %d fields, want at least 2", len(entry))
		}
		lvl, err := parseLevel(exchangeName, entry[0], entry[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

// sortBook orders bids descending and asks ascending. Exchanges normally
// deliver sorted books, so each side is sorted only when out of order.
func sortBook(book *model.OrderbookPayload) {
	bidBefore := func(i, j int) bool { return book.Bids[i].Price.GreaterThan(book.Bids[j].Price) }
	askBefore := func(i, j int) bool { return book.Asks[i].Price.LessThan(book.Asks[j].Price) }

	if !sort.SliceIsSorted(book.Bids, bidBefore) {
		sort.Slice(book.Bids, bidBefore)
	}
	if !sort.SliceIsSorted(book.Asks, askBefore) {
		sort.Slice(book.Asks, askBefore)
	}
}

// parseInterfaceLevels converts levels that arrive inside positional JSON
// arrays (decoded as []interface{}), as Kraken sends them. Per-level entries
// past (price, size) are ignored.
func parseInterfaceLevels(exchangeName string, val interface{}) ([]model.PriceLevel, error) {
	arr, ok := val.([]interface{})
	if !ok {
		return nil, protocolErrf(exchangeName, "levels are not an array")
	}
	levels := make([]model.PriceLevel, 0, len(arr))
	for _, item := range arr {
		entry, ok := item.([]interface{})
		if !ok || len(entry) < 2 {
			return nil, protocolErrf(exchangeName, "malformed price level")
		}
		price, pok := entry[0].(string)
		size, sok := entry[1].(string)
		if !pok || !sok {
			return nil, protocolErrf(exchangeName, "price level fields are not strings")
		}
		lvl, err := parseLevel(exchangeName, price, size)
		if err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

// parseOptionalDecimal converts a numeric string field that the exchange may
// omit. Empty input stays absent (nil) rather than becoming zero.
func parseOptionalDecimal(exchangeName, field, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, protocolErrf(exchangeName, "bad %s %q", field, value)
	}
	return &d, nil
}

// splitPair splits a trading pair on the usual separators:
// "BTC/USDT" -> ("BTC", "USDT"). ok is false when no separator is present
// and the split point cannot be known.
func splitPair(symbol string) (base, quote string, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"/", "-", "_"} {
		if i := strings.Index(s, sep); i > 0 && i < len(s)-1 {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
