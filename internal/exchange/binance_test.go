package exchange

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/marketstream/internal/model"
)

func TestBinanceStreamURL(t *testing.T) {
	a := binanceAdapter{}

	assert.Equal(t, "wss://stream.binance.com:9443/ws/btcusdt@depth20",
		a.StreamURL("BTC/USDT", model.StreamTypeOrderbook))
	assert.Equal(t, "wss://stream.binance.com:9443/ws/ethusdt@ticker",
		a.StreamURL("ETH/USDT", model.StreamTypeTicker))
}

func TestBinanceSubscribeFrames(t *testing.T) {
	frames, err := binanceAdapter{}.SubscribeFrames("BTC/USDT", model.StreamTypeOrderbook)
	require.NoError(t, err)
	assert.Nil(t, frames, "binance selects the stream in the URL")
}

func TestBinanceNormalizeBookSnapshot(t *testing.T) {
	frame := []byte(`{"lastUpdateId":160,"bids":[["0.0024","10"],["0.0022","5"]],"asks":[["0.0026","100"],["0.0028","3"]]}`)

	msg, err := binanceAdapter{}.Normalize("BTC/USDT", model.StreamTypeOrderbook, frame, time.Now())
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, model.StreamTypeOrderbook, msg.StreamType)
	assert.Equal(t, "binance", msg.Exchange)
	assert.Equal(t, "BTC/USDT", msg.Symbol)
	assert.Nil(t, msg.Ticker)

	require.NotNil(t, msg.Orderbook)
	require.Len(t, msg.Orderbook.Bids, 2)
	require.Len(t, msg.Orderbook.Asks, 2)
	assert.True(t, msg.Orderbook.Bids[0].Price.Equal(decimal.RequireFromString("0.0024")))
	assert.True(t, msg.Orderbook.Bids[0].Size.Equal(decimal.RequireFromString("10")))
	assert.True(t, msg.Orderbook.Asks[0].Price.Equal(decimal.RequireFromString("0.0026")))
}

func TestBinanceNormalizeBookDepthUpdate(t *testing.T) {
	frame := []byte(`{"e":"depthUpdate","E":1672515782136,"s":"BTCUSDT","U":157,"u":160,"b":[["0.0024","10"]],"a":[["0.0026","100"]]}`)

	msg, err := binanceAdapter{}.Normalize("BTC/USDT", model.StreamTypeOrderbook, frame, time.Now())
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, time.UnixMilli(1672515782136).UTC(), msg.Timestamp)
	require.Len(t, msg.Orderbook.Bids, 1)
	require.Len(t, msg.Orderbook.Asks, 1)
}

func TestBinanceNormalizeSortsUnsortedBook(t *testing.T) {
	// Bids out of order low-to-high, asks high-to-low.
	frame := []byte(`{"lastUpdateId":1,"bids":[["99","1"],["101","1"],["100","1"]],"asks":[["105","1"],["103","1"],["104","1"]]}`)

	msg, err := binanceAdapter{}.Normalize("BTC/USDT", model.StreamTypeOrderbook, frame, time.Now())
	require.NoError(t, err)

	bids := msg.Orderbook.Bids
	for i := 1; i < len(bids); i++ {
		assert.False(t, bids[i].Price.GreaterThan(bids[i-1].Price), "bids must be non-increasing")
	}
	asks := msg.Orderbook.Asks
	for i := 1; i < len(asks); i++ {
		assert.False(t, asks[i].Price.LessThan(asks[i-1].Price), "asks must be non-decreasing")
	}
}

func TestBinanceNormalizeBookRejects(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `{{{`},
		{"unknown shape", `{"foo":"bar"}`},
		{"zero price", `{"lastUpdateId":1,"bids":[["0","10"]],"asks":[]}`},
		{"negative size", `{"lastUpdateId":1,"bids":[],"asks":[["100","-2"]]}`},
		{"short level", `{"lastUpdateId":1,"bids":[["100"]],"asks":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := binanceAdapter{}.Normalize("BTC/USDT", model.StreamTypeOrderbook, []byte(tt.frame), time.Now())
			assert.Nil(t, msg)
			var perr *ProtocolError
			require.True(t, errors.As(err, &perr), "want ProtocolError, got %v", err)
			assert.Equal(t, "binance", perr.Exchange)
		})
	}
}

func TestBinanceNormalizeSubscribeAck(t *testing.T) {
	// Acks refresh liveness but produce no message and no error.
	msg, err := binanceAdapter{}.Normalize("BTC/USDT", model.StreamTypeOrderbook,
		[]byte(`{"result":null,"id":1}`), time.Now())
	assert.Nil(t, msg)
	assert.NoError(t, err)
}

func TestBinanceNormalizeTicker(t *testing.T) {
	frame := []byte(`{"e":"24hrTicker","E":1672515782136,"s":"BTCUSDT","c":"16700.50","v":"123456.7","P":"-2.15","h":"17100.0","l":"16500.0"}`)

	msg, err := binanceAdapter{}.Normalize("BTC/USDT", model.StreamTypeTicker, frame, time.Now())
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, model.StreamTypeTicker, msg.StreamType)
	assert.Nil(t, msg.Orderbook)
	require.NotNil(t, msg.Ticker)

	tick := msg.Ticker
	require.NotNil(t, tick.LastPrice)
	assert.True(t, tick.LastPrice.Equal(decimal.RequireFromString("16700.50")))
	require.NotNil(t, tick.Volume24h)
	assert.True(t, tick.Volume24h.Equal(decimal.RequireFromString("123456.7")))
	require.NotNil(t, tick.ChangePercent24h)
	assert.True(t, tick.ChangePercent24h.Equal(decimal.RequireFromString("-2.15")))
	require.NotNil(t, tick.High24h)
	require.NotNil(t, tick.Low24h)
	assert.Equal(t, time.UnixMilli(1672515782136).UTC(), msg.Timestamp)
}

func TestBinanceNormalizeTickerRejectsWrongEvent(t *testing.T) {
	msg, err := binanceAdapter{}.Normalize("BTC/USDT", model.StreamTypeTicker,
		[]byte(`{"e":"trade","s":"BTCUSDT"}`), time.Now())
	assert.Nil(t, msg)
	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
}
