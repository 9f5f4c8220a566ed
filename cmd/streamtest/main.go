// streamtest dials one exchange stream and prints normalized messages to the
// console. No configuration file is needed; public market-data endpoints
// require no credentials.
//
// Usage: go run ./cmd/streamtest --exchange binance --symbol BTC/USDT --type orderbook
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/rickgao/marketstream/internal/connection"
	"github.com/rickgao/marketstream/internal/exchange"
	"github.com/rickgao/marketstream/internal/model"
	"github.com/rickgao/marketstream/internal/sink"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	exchangeName := flag.String("exchange", "binance", "exchange to dial (binance, kraken, coinbase)")
	symbol := flag.String("symbol", "BTC/USDT", "trading pair")
	typeArg := flag.String("type", "orderbook", "stream type (orderbook or ticker)")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	streamType, err := model.ParseStreamType(*typeArg)
	if err != nil {
		logger.Error("invalid --type", "error", err)
		os.Exit(1)
	}

	adapter, err := exchange.New(*exchangeName)
	if err != nil {
		logger.Error("invalid --exchange", "error", err, "supported", exchange.Supported())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Create the supervisor with a local buffer as its sink
	buf := sink.NewBufferSink(0, 0)

	supCfg := connection.DefaultSupervisorConfig()
	supCfg.Symbol = *symbol
	supCfg.StreamType = streamType

	sup, err := connection.NewSupervisor(supCfg, adapter, buf, logger)
	if err != nil {
		logger.Error("failed to create supervisor", "error", err)
		os.Exit(1)
	}

	logger.Info("dialing stream",
		"stream_id", sup.StreamID(),
		"url", adapter.StreamURL(*symbol, streamType),
	)
	if err := sup.Start(ctx); err != nil {
		logger.Error("failed to start supervisor", "error", err)
		os.Exit(1)
	}

	// Console printer
	go printMessages(ctx, buf, *verbose)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := sup.Stats()
				bufStats := buf.Stats()
				logger.Info("stats",
					"state", stats.State,
					"attempts", stats.AttemptCount,
					"reconnects", stats.Reconnects,
					"delivered", stats.MessagesDelivered,
					"rejected", stats.FramesRejected,
					"buffered", bufStats.Queued,
					"dropped", bufStats.Dropped,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	sup.Stop(shutdownCtx)
	buf.Close()

	logger.Info("shutdown complete")
}

func printMessages(ctx context.Context, buf *sink.BufferSink, verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, ok := buf.TryReceive()
			if !ok {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			if verbose {
				data, _ := json.MarshalIndent(msg, "", "  ")
				fmt.Printf("[%s] %s\n", strings.ToUpper(string(msg.StreamType)), data)
				continue
			}

			switch {
			case msg.Orderbook != nil:
				fmt.Printf("[ORDERBOOK] %s %s bid=%s ask=%s depth=%d/%d\n",
					msg.Exchange, msg.Symbol,
					bestPrice(msg.Orderbook.Bids), bestPrice(msg.Orderbook.Asks),
					len(msg.Orderbook.Bids), len(msg.Orderbook.Asks))
			case msg.Ticker != nil:
				fmt.Printf("[TICKER] %s %s last=%s vol=%s high=%s low=%s chg=%s%%\n",
					msg.Exchange, msg.Symbol,
					decString(msg.Ticker.LastPrice), decString(msg.Ticker.Volume24h),
					decString(msg.Ticker.High24h), decString(msg.Ticker.Low24h),
					decString(msg.Ticker.ChangePercent24h))
			}
		}
	}
}

// bestPrice is the top-of-book price, or "-" for an empty side.
func bestPrice(levels []model.PriceLevel) string {
	if len(levels) == 0 {
		return "-"
	}
	return levels[0].Price.String()
}

// decString renders an optional decimal, keeping absent fields visibly absent.
func decString(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
