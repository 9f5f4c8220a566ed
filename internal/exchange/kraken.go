package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/marketstream/internal/model"
)

// Kraken uses one shared endpoint; streams are selected with subscribe
// frames. Data arrives as positional arrays, lifecycle events as objects.
const (
	krakenWSURL     = "wss://ws.kraken.com"
	krakenBookDepth = 10
)

type krakenAdapter struct{}

func (krakenAdapter) Name() string { return "kraken" }

func (krakenAdapter) StreamURL(string, model.StreamType) string { return krakenWSURL }

func (krakenAdapter) SubscribeFrames(symbol string, streamType model.StreamType) ([][]byte, error) {
	subscription := map[string]any{"name": "book", "depth": krakenBookDepth}
	if streamType == model.StreamTypeTicker {
		subscription = map[string]any{"name": "ticker"}
	}

	frame, err := json.Marshal(map[string]any{
		"event":        "subscribe",
		"pair":         []string{krakenPair(symbol)},
		"subscription": subscription,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal kraken subscribe: %w", err)
	}
	return [][]byte{frame}, nil
}

// krakenPair maps a trading pair to Kraken's slash-separated uppercase
// convention with XBT for BTC: "BTC/USDT" -> "XBT/USDT".
func krakenPair(symbol string) string {
	base, quote, ok := splitPair(symbol)
	if !ok {
		return base
	}
	if base == "BTC" {
		base = "XBT"
	}
	if quote == "BTC" {
		quote = "XBT"
	}
	return base + "/" + quote
}

func (a krakenAdapter) Normalize(symbol string, streamType model.StreamType, frame []byte, receivedAt time.Time) (*model.NormalizedMessage, error) {
	var raw interface{}
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, protocolErrf("kraken", "undecodable frame: %v", err)
	}

	switch v := raw.(type) {
	case map[string]interface{}:
		return nil, a.handleEvent(v)
	case []interface{}:
		return a.normalizeData(symbol, streamType, v, receivedAt)
	default:
		return nil, protocolErrf("kraken", "unexpected frame shape")
	}
}

// handleEvent classifies object frames: lifecycle events are control frames,
// rejected subscriptions surface as protocol errors.
func (krakenAdapter) handleEvent(evt map[string]interface{}) error {
	event, _ := evt["event"].(string)
	switch event {
	case "heartbeat", "systemStatus", "pong":
		return nil
	case "subscriptionStatus":
		if status, _ := evt["status"].(string); status == "error" {
			msg, _ := evt["errorMessage"].(string)
			return protocolErrf("kraken", "subscription rejected: %s", msg)
		}
		return nil
	default:
		return protocolErrf("kraken", "unknown event %q", event)
	}
}

// normalizeData handles array frames: [channelID, payload..., channelName,
// pair]. Book updates touching both sides carry two payload objects.
func (a krakenAdapter) normalizeData(symbol string, streamType model.StreamType, elems []interface{}, receivedAt time.Time) (*model.NormalizedMessage, error) {
	if len(elems) < 4 {
		return nil, protocolErrf("kraken", "data frame has %d elements, want at least 4", len(elems))
	}

	channel, _ := elems[len(elems)-2].(string)
	payloads := elems[1 : len(elems)-2]

	if streamType == model.StreamTypeTicker {
		if !strings.HasPrefix(channel, "ticker") {
			return nil, protocolErrf("kraken", "channel %q on ticker stream", channel)
		}
		payload, ok := payloads[0].(map[string]interface{})
		if !ok {
			return nil, protocolErrf("kraken", "ticker payload is not an object")
		}
		return a.normalizeTicker(symbol, payload, receivedAt)
	}

	if !strings.HasPrefix(channel, "book") {
		return nil, protocolErrf("kraken", "channel %q on orderbook stream", channel)
	}
	return a.normalizeBook(symbol, payloads, receivedAt)
}

func (krakenAdapter) normalizeBook(symbol string, payloads []interface{}, receivedAt time.Time) (*model.NormalizedMessage, error) {
	book := &model.OrderbookPayload{}

	for _, elem := range payloads {
		obj, ok := elem.(map[string]interface{})
		if !ok {
			return nil, protocolErrf("kraken", "book payload is not an object")
		}
		for key, val := range obj {
			var side *[]model.PriceLevel
			switch key {
			case "bs", "b": // snapshot / update bids
				side = &book.Bids
			case "as", "a": // snapshot / update asks
				side = &book.Asks
			default: // checksums and future fields
				continue
			}
			levels, err := parseInterfaceLevels("kraken", val)
			if err != nil {
				return nil, err
			}
			*side = append(*side, levels...)
		}
	}

	if len(book.Bids) == 0 && len(book.Asks) == 0 {
		return nil, protocolErrf("kraken", "book frame carries no levels")
	}
	sortBook(book)

	return &model.NormalizedMessage{
		StreamType: model.StreamTypeOrderbook,
		Exchange:   "kraken",
		Symbol:     symbol,
		Timestamp:  receivedAt.UTC(),
		Orderbook:  book,
	}, nil
}

// normalizeTicker maps Kraken's array-valued stats: c = [last price, lot
// volume], v/h/l = [today, last 24h]. Kraken publishes no 24h change
// percentage, so that field stays absent.
func (krakenAdapter) normalizeTicker(symbol string, payload map[string]interface{}, receivedAt time.Time) (*model.NormalizedMessage, error) {
	last, err := krakenStat(payload, "c", 0)
	if err != nil {
		return nil, err
	}
	volume, err := krakenStat(payload, "v", 1)
	if err != nil {
		return nil, err
	}
	high, err := krakenStat(payload, "h", 1)
	if err != nil {
		return nil, err
	}
	low, err := krakenStat(payload, "l", 1)
	if err != nil {
		return nil, err
	}

	if last == nil && volume == nil && high == nil && low == nil {
		return nil, protocolErrf("kraken", "ticker frame carries no fields")
	}

	return &model.NormalizedMessage{
		StreamType: model.StreamTypeTicker,
		Exchange:   "kraken",
		Symbol:     symbol,
		Timestamp:  receivedAt.UTC(),
		Ticker: &model.TickerPayload{
			LastPrice: last,
			Volume24h: volume,
			High24h:   high,
			Low24h:    low,
		},
	}, nil
}

// krakenStat extracts entry idx of an array-valued ticker field. A missing
// key is absent data, not an error.
func krakenStat(payload map[string]interface{}, key string, idx int) (*decimal.Decimal, error) {
	val, ok := payload[key]
	if !ok {
		return nil, nil
	}
	arr, ok := val.([]interface{})
	if !ok || len(arr) <= idx {
		return nil, protocolErrf("kraken", "malformed %q field", key)
	}
	s, ok := arr[idx].(string)
	if !ok {
		return nil, protocolErrf("kraken", "%q entry is not a string", key)
	}
	return parseOptionalDecimal("kraken", key, s)
}
