package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewStreamID(t *testing.T) {
	tests := []struct {
		name       string
		exchange   string
		symbol     string
		streamType StreamType
		want       StreamID
	}{
		{"slash pair", "binance", "BTC/USDT", StreamTypeOrderbook, "binance_btcusdt_orderbook"},
		{"dash pair", "coinbase", "BTC-USD", StreamTypeTicker, "coinbase_btcusd_ticker"},
		{"bare pair", "binance", "btcusdt", StreamTypeOrderbook, "binance_btcusdt_orderbook"},
		{"mixed case exchange", "Kraken", "XBT/USD", StreamTypeTicker, "kraken_xbtusd_ticker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewStreamID(tt.exchange, tt.symbol, tt.streamType)
			if got != tt.want {
				t.Errorf("NewStreamID(%q, %q, %q) = %q, want %q",
					tt.exchange, tt.symbol, tt.streamType, got, tt.want)
			}
		})
	}
}

func TestNewStreamIDDeterministic(t *testing.T) {
	// Equivalent spellings of the same subscription must collapse to one id.
	a := NewStreamID("binance", "BTC/USDT", StreamTypeOrderbook)
	b := NewStreamID("BINANCE", "btc-usdt", StreamTypeOrderbook)
	if a != b {
		t.Errorf("ids differ for equivalent subscriptions: %q vs %q", a, b)
	}
}

func TestParseStreamType(t *testing.T) {
	if st, err := ParseStreamType("  Orderbook "); err != nil || st != StreamTypeOrderbook {
		t.Errorf("ParseStreamType(\"  Orderbook \") = (%q, %v), want (orderbook, nil)", st, err)
	}
	if st, err := ParseStreamType("TICKER"); err != nil || st != StreamTypeTicker {
		t.Errorf("ParseStreamType(\"TICKER\") = (%q, %v), want (ticker, nil)", st, err)
	}
	if _, err := ParseStreamType("trades"); err == nil {
		t.Error("ParseStreamType(\"trades\") should fail")
	}
}

func TestConnectionStateTerminal(t *testing.T) {
	terminal := map[ConnectionState]bool{
		StateConnecting:   false,
		StateConnected:    false,
		StateReconnecting: false,
		StateFailed:       true,
		StateStopped:      true,
	}
	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", state, got, want)
		}
	}
}

func TestTickerPayloadAbsentFields(t *testing.T) {
	// A ticker with only a last price must keep the other fields absent,
	// not zero-valued.
	last := decimal.RequireFromString("42000.5")
	p := TickerPayload{LastPrice: &last}

	if p.LastPrice == nil || !p.LastPrice.Equal(last) {
		t.Errorf("LastPrice = %v, want %s", p.LastPrice, last)
	}
	if p.Volume24h != nil || p.High24h != nil || p.Low24h != nil || p.ChangePercent24h != nil {
		t.Error("missing ticker fields must stay nil")
	}
}

func TestNormalizedMessageShape(t *testing.T) {
	msg := NormalizedMessage{
		StreamType: StreamTypeOrderbook,
		Exchange:   "binance",
		Symbol:     "btcusdt",
		Timestamp:  time.Now().UTC(),
		Orderbook: &OrderbookPayload{
			Bids: []PriceLevel{{Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(1)}},
			Asks: []PriceLevel{{Price: decimal.NewFromInt(101), Size: decimal.NewFromInt(2)}},
		},
	}

	if msg.Ticker != nil {
		t.Error("orderbook message must not carry a ticker payload")
	}
	if len(msg.Orderbook.Bids) != 1 || len(msg.Orderbook.Asks) != 1 {
		t.Errorf("unexpected payload shape: %+v", msg.Orderbook)
	}
}
