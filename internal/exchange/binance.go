package exchange

import (
	"fmt"
	"time"

	"github.com/rickgao/marketstream/internal/model"
)

// Binance raw streams select the channel in the URL path, so no subscribe
// handshake is needed after dialing.
const (
	binanceWSBase    = "wss://stream.binance.com:9443/ws"
	binanceBookDepth = 20
)

type binanceAdapter struct{}

func (binanceAdapter) Name() string { return "binance" }

func (binanceAdapter) StreamURL(symbol string, streamType model.StreamType) string {
	sym := model.NormalizeSymbol(symbol)
	if streamType == model.StreamTypeTicker {
		return fmt.Sprintf("%s/%s@ticker", binanceWSBase, sym)
	}
	return fmt.Sprintf("%s/%s@depth%d", binanceWSBase, sym, binanceBookDepth)
}

func (binanceAdapter) SubscribeFrames(string, model.StreamType) ([][]byte, error) {
	return nil, nil
}

func (a binanceAdapter) Normalize(symbol string, streamType model.StreamType, frame []byte, receivedAt time.Time) (*model.NormalizedMessage, error) {
	if streamType == model.StreamTypeTicker {
		return a.normalizeTicker(symbol, frame, receivedAt)
	}
	return a.normalizeBook(symbol, frame, receivedAt)
}

// binanceBookFrame covers both shapes Binance uses for depth channels:
// partial-book snapshots {lastUpdateId, bids, asks} and diff-depth events
// {"e": "depthUpdate", "b": [...], "a": [...]}.
type binanceBookFrame struct {
	EventType    string     `json:"e"`
	EventTime    int64      `json:"E"`
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
	BidDeltas    [][]string `json:"b"`
	AskDeltas    [][]string `json:"a"`
	AckID        *int64     `json:"id"`
}

func (binanceAdapter) normalizeBook(symbol string, frame []byte, receivedAt time.Time) (*model.NormalizedMessage, error) {
	var f binanceBookFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, protocolErrf("binance", "undecodable orderbook frame: %v", err)
	}

	// Ack for a SUBSCRIBE sent over a combined-stream endpoint.
	if f.AckID != nil {
		return nil, nil
	}

	var rawBids, rawAsks [][]string
	switch {
	case f.Bids != nil || f.Asks != nil || f.LastUpdateID > 0:
		rawBids, rawAsks = f.Bids, f.Asks
	case f.EventType == "depthUpdate":
		rawBids, rawAsks = f.BidDeltas, f.AskDeltas
	default:
		return nil, protocolErrf("binance", "unrecognized orderbook frame")
	}

	bids, err := parseLevels("binance", rawBids)
	if err != nil {
		return nil, err
	}
	asks, err := parseLevels("binance", rawAsks)
	if err != nil {
		return nil, err
	}

	book := &model.OrderbookPayload{Bids: bids, Asks: asks}
	sortBook(book)

	ts := receivedAt.UTC()
	if f.EventTime > 0 {
		ts = time.UnixMilli(f.EventTime).UTC()
	}

	return &model.NormalizedMessage{
		StreamType: model.StreamTypeOrderbook,
		Exchange:   "binance",
		Symbol:     symbol,
		Timestamp:  ts,
		Orderbook:  book,
	}, nil
}

// binanceTickerFrame is the 24hrTicker event. All numerics arrive as strings.
type binanceTickerFrame struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	LastPrice string `json:"c"`
	Volume    string `json:"v"`
	ChangePct string `json:"P"`
	High      string `json:"h"`
	Low       string `json:"l"`
	AckID     *int64 `json:"id"`
}

func (binanceAdapter) normalizeTicker(symbol string, frame []byte, receivedAt time.Time) (*model.NormalizedMessage, error) {
	var f binanceTickerFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, protocolErrf("binance", "undecodable ticker frame: %v", err)
	}

	if f.AckID != nil {
		return nil, nil
	}
	if f.EventType != "24hrTicker" {
		return nil, protocolErrf("binance", "unexpected ticker event %q", f.EventType)
	}

	last, err := parseOptionalDecimal("binance", "last_price", f.LastPrice)
	if err != nil {
		return nil, err
	}
	volume, err := parseOptionalDecimal("binance", "volume_24h", f.Volume)
	if err != nil {
		return nil, err
	}
	high, err := parseOptionalDecimal("binance", "high_24h", f.High)
	if err != nil {
		return nil, err
	}
	low, err := parseOptionalDecimal("binance", "low_24h", f.Low)
	if err != nil {
		return nil, err
	}
	changePct, err := parseOptionalDecimal("binance", "change_percent_24h", f.ChangePct)
	if err != nil {
		return nil, err
	}

	ts := receivedAt.UTC()
	if f.EventTime > 0 {
		ts = time.UnixMilli(f.EventTime).UTC()
	}

	return &model.NormalizedMessage{
		StreamType: model.StreamTypeTicker,
		Exchange:   "binance",
		Symbol:     symbol,
		Timestamp:  ts,
		Ticker: &model.TickerPayload{
			LastPrice:        last,
			Volume24h:        volume,
			High24h:          high,
			Low24h:           low,
			ChangePercent24h: changePct,
		},
	}, nil
}
