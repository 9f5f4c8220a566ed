package exchange

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/marketstream/internal/model"
)

// Coinbase uses one shared feed endpoint; streams are selected with a typed
// subscribe message and every frame carries a "type" discriminator.
const coinbaseWSURL = "wss://ws-feed.exchange.coinbase.com"

type coinbaseAdapter struct{}

func (coinbaseAdapter) Name() string { return "coinbase" }

func (coinbaseAdapter) StreamURL(string, model.StreamType) string { return coinbaseWSURL }

func (coinbaseAdapter) SubscribeFrames(symbol string, streamType model.StreamType) ([][]byte, error) {
	channel := "level2"
	if streamType == model.StreamTypeTicker {
		channel = "ticker"
	}

	frame, err := json.Marshal(map[string]any{
		"type":        "subscribe",
		"product_ids": []string{coinbaseProduct(symbol)},
		"channels":    []string{channel},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal coinbase subscribe: %w", err)
	}
	return [][]byte{frame}, nil
}

// coinbaseProduct maps a trading pair to Coinbase's dashed uppercase
// products: "BTC/USDT" -> "BTC-USDT".
func coinbaseProduct(symbol string) string {
	base, quote, ok := splitPair(symbol)
	if !ok {
		return base
	}
	return base + "-" + quote
}

// coinbaseFrame is the union of the feed's frame types; Type discriminates.
type coinbaseFrame struct {
	Type      string     `json:"type"`
	ProductID string     `json:"product_id"`
	Time      string     `json:"time"`
	Bids      [][]string `json:"bids"`
	Asks      [][]string `json:"asks"`
	Changes   [][]string `json:"changes"`
	Price     string     `json:"price"`
	Open24h   string     `json:"open_24h"`
	Volume24h string     `json:"volume_24h"`
	High24h   string     `json:"high_24h"`
	Low24h    string     `json:"low_24h"`
	Message   string     `json:"message"`
	Reason    string     `json:"reason"`
}

func (a coinbaseAdapter) Normalize(symbol string, streamType model.StreamType, frame []byte, receivedAt time.Time) (*model.NormalizedMessage, error) {
	var f coinbaseFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, protocolErrf("coinbase", "undecodable frame: %v", err)
	}

	switch f.Type {
	case "subscriptions", "heartbeat", "status":
		return nil, nil
	case "error":
		return nil, protocolErrf("coinbase", "server error: %s (%s)", f.Message, f.Reason)
	case "snapshot":
		if streamType != model.StreamTypeOrderbook {
			return nil, protocolErrf("coinbase", "snapshot frame on %s stream", streamType)
		}
		return a.normalizeSnapshot(symbol, &f, receivedAt)
	case "l2update":
		if streamType != model.StreamTypeOrderbook {
			return nil, protocolErrf("coinbase", "l2update frame on %s stream", streamType)
		}
		return a.normalizeL2Update(symbol, &f, receivedAt)
	case "ticker":
		if streamType != model.StreamTypeTicker {
			return nil, protocolErrf("coinbase", "ticker frame on %s stream", streamType)
		}
		return a.normalizeTicker(symbol, &f, receivedAt)
	default:
		return nil, protocolErrf("coinbase", "unknown frame type %q", f.Type)
	}
}

func (coinbaseAdapter) normalizeSnapshot(symbol string, f *coinbaseFrame, receivedAt time.Time) (*model.NormalizedMessage, error) {
	bids, err := parseLevels("coinbase", f.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := parseLevels("coinbase", f.Asks)
	if err != nil {
		return nil, err
	}

	book := &model.OrderbookPayload{Bids: bids, Asks: asks}
	sortBook(book)

	return &model.NormalizedMessage{
		StreamType: model.StreamTypeOrderbook,
		Exchange:   "coinbase",
		Symbol:     symbol,
		Timestamp:  coinbaseTime(f.Time, receivedAt),
		Orderbook:  book,
	}, nil
}

// normalizeL2Update maps incremental changes [["buy","price","size"], ...]
// onto the canonical bid/ask sides.
func (coinbaseAdapter) normalizeL2Update(symbol string, f *coinbaseFrame, receivedAt time.Time) (*model.NormalizedMessage, error) {
	book := &model.OrderbookPayload{}

	for _, change := range f.Changes {
		if len(change) < 3 {
			return nil, protocolErrf("coinbase", "l2update change has %d fields, want 3", len(change))
		}
		lvl, err := parseLevel("coinbase", change[1], change[2])
		if err != nil {
			return nil, err
		}
		switch change[0] {
		case "buy":
			book.Bids = append(book.Bids, lvl)
		case "sell":
			book.Asks = append(book.Asks, lvl)
		default:
			return nil, protocolErrf("coinbase", "unknown side %q", change[0])
		}
	}
	sortBook(book)

	return &model.NormalizedMessage{
		StreamType: model.StreamTypeOrderbook,
		Exchange:   "coinbase",
		Symbol:     symbol,
		Timestamp:  coinbaseTime(f.Time, receivedAt),
		Orderbook:  book,
	}, nil
}

func (coinbaseAdapter) normalizeTicker(symbol string, f *coinbaseFrame, receivedAt time.Time) (*model.NormalizedMessage, error) {
	last, err := parseOptionalDecimal("coinbase", "last_price", f.Price)
	if err != nil {
		return nil, err
	}
	volume, err := parseOptionalDecimal("coinbase", "volume_24h", f.Volume24h)
	if err != nil {
		return nil, err
	}
	high, err := parseOptionalDecimal("coinbase", "high_24h", f.High24h)
	if err != nil {
		return nil, err
	}
	low, err := parseOptionalDecimal("coinbase", "low_24h", f.Low24h)
	if err != nil {
		return nil, err
	}
	open, err := parseOptionalDecimal("coinbase", "open_24h", f.Open24h)
	if err != nil {
		return nil, err
	}

	// Coinbase publishes the 24h open instead of a change percentage;
	// derive the percentage when both ends are known.
	var changePct *decimal.Decimal
	if last != nil && open != nil && !open.IsZero() {
		chg := last.Sub(*open).Div(*open).Mul(decimal.NewFromInt(100))
		changePct = &chg
	}

	return &model.NormalizedMessage{
		StreamType: model.StreamTypeTicker,
		Exchange:   "coinbase",
		Symbol:     symbol,
		Timestamp:  coinbaseTime(f.Time, receivedAt),
		Ticker: &model.TickerPayload{
			LastPrice:        last,
			Volume24h:        volume,
			High24h:          high,
			Low24h:           low,
			ChangePercent24h: changePct,
		},
	}, nil
}

// coinbaseTime parses the feed's RFC3339 timestamps, falling back to the
// local receive time when the field is missing or malformed.
func coinbaseTime(value string, receivedAt time.Time) time.Time {
	if value == "" {
		return receivedAt.UTC()
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return receivedAt.UTC()
	}
	return ts.UTC()
}
