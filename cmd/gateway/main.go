package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/marketstream/internal/backoff"
	"github.com/rickgao/marketstream/internal/config"
	"github.com/rickgao/marketstream/internal/connection"
	"github.com/rickgao/marketstream/internal/gateway"
	"github.com/rickgao/marketstream/internal/health"
	"github.com/rickgao/marketstream/internal/model"
	"github.com/rickgao/marketstream/internal/registry"
	"github.com/rickgao/marketstream/internal/sink"
	"github.com/rickgao/marketstream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/gateway.local.yaml", "path to config file")
	flag.Parse()

	// Bootstrap logger; replaced once the config names a level and format.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting gateway",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = buildLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"max_streams", cfg.Registry.MaxStreams,
		"configured_streams", len(cfg.Streams),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Outbound sinks: every normalized message from every stream is
	// broadcast to each enabled publisher.
	var outbound []sink.Sink
	var closers []func()

	if cfg.Sinks.NATS.Enabled {
		natsSink, err := sink.NewNATSSink(sink.NATSConfig{
			URL:            cfg.Sinks.NATS.URL,
			ClientName:     cfg.Sinks.NATS.ClientName,
			SubjectPrefix:  cfg.Sinks.NATS.SubjectPrefix,
			ConnectTimeout: cfg.Sinks.NATS.ConnectTimeout,
			ReconnectWait:  cfg.Sinks.NATS.ReconnectWait,
			MaxReconnects:  cfg.Sinks.NATS.MaxReconnects,
		}, logger)
		if err != nil {
			logger.Error("failed to connect nats sink", "error", err)
			os.Exit(1)
		}
		outbound = append(outbound, natsSink)
		closers = append(closers, natsSink.Close)
	}

	if cfg.Sinks.Kafka.Enabled {
		kafkaSink, err := sink.NewKafkaSink(sink.KafkaConfig{
			Brokers:      cfg.Sinks.Kafka.Brokers,
			Topic:        cfg.Sinks.Kafka.Topic,
			BatchTimeout: cfg.Sinks.Kafka.BatchTimeout,
			WriteTimeout: cfg.Sinks.Kafka.WriteTimeout,
			Async:        cfg.Sinks.Kafka.Async,
		}, logger)
		if err != nil {
			logger.Error("failed to build kafka sink", "error", err)
			os.Exit(1)
		}
		outbound = append(outbound, kafkaSink)
		closers = append(closers, kafkaSink.Close)
	}

	var broadcast sink.Sink
	switch len(outbound) {
	case 0:
	case 1:
		broadcast = outbound[0]
	default:
		broadcast = sink.MultiSink(outbound...)
	}

	// Create stream registry
	reg := registry.NewRegistry(registryConfig(cfg), broadcast, logger)
	if err := reg.Start(ctx); err != nil {
		logger.Error("failed to start stream registry", "error", err)
		os.Exit(1)
	}

	// Create health monitor over the registry's streams
	monitor := health.NewMonitor(health.MonitorConfig{
		Interval:       cfg.Health.ScanInterval,
		StaleThreshold: cfg.Health.StaleThreshold,
	}, reg.Probes, logger)
	if err := monitor.Start(ctx); err != nil {
		logger.Error("failed to start health monitor", "error", err)
		os.Exit(1)
	}

	// Start admin server
	adminServer := gateway.NewServer(gateway.Config{
		Addr:            cfg.Admin.Addr,
		ReadTimeout:     cfg.Admin.ReadTimeout,
		WriteTimeout:    cfg.Admin.WriteTimeout,
		ShutdownTimeout: cfg.Admin.ShutdownTimeout,
	}, reg, monitor, logger)
	if err := adminServer.Start(); err != nil {
		logger.Error("failed to start admin server", "error", err)
		os.Exit(1)
	}

	// Establish the configured subscriptions. Failures are logged, not
	// fatal: the admin API can retry them while the rest of the pool runs.
	for _, s := range cfg.Streams {
		streamType, err := model.ParseStreamType(s.Type)
		if err != nil {
			logger.Error("skipping configured stream", "symbol", s.Symbol, "error", err)
			continue
		}
		id, err := reg.Subscribe(s.Symbol, s.Exchange, streamType)
		if err != nil {
			logger.Error("startup subscription failed",
				"exchange", s.Exchange,
				"symbol", s.Symbol,
				"type", s.Type,
				"error", err,
			)
			continue
		}
		logger.Info("stream subscribed", "stream_id", id)
	}

	logger.Info("gateway running",
		"instance_id", cfg.Instance.ID,
		"admin_addr", adminServer.Addr(),
		"health_url", "http://"+adminServer.Addr()+"/healthz",
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := adminServer.Stop(shutdownCtx); err != nil {
		logger.Warn("admin server shutdown failed", "error", err)
	}
	if err := monitor.Stop(shutdownCtx); err != nil {
		logger.Warn("health monitor shutdown failed", "error", err)
	}
	if err := reg.Stop(shutdownCtx); err != nil {
		logger.Warn("stream registry shutdown failed", "error", err)
	}
	for _, closeSink := range closers {
		closeSink()
	}

	logger.Info("gateway stopped")
}

// buildLogger constructs the slog handler the config asks for.
func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// registryConfig maps the file configuration onto the registry's settings.
func registryConfig(cfg *config.GatewayConfig) registry.Config {
	reg := registry.DefaultConfig()
	reg.MaxStreams = cfg.Registry.MaxStreams
	reg.StaleThreshold = cfg.Health.StaleThreshold
	reg.BufferCapacity = cfg.Registry.BufferCapacity
	reg.BufferMaxCapacity = cfg.Registry.BufferMaxCapacity
	reg.DialsPerSecond = cfg.Registry.DialsPerSecond
	reg.DialBurst = cfg.Registry.DialBurst
	reg.Supervisor = connection.SupervisorConfig{
		Backoff: backoff.New(cfg.Backoff.Base, cfg.Backoff.MaxAttempts, cfg.Backoff.Jitter),
		Client: connection.ClientConfig{
			HandshakeTimeout: cfg.Connection.HandshakeTimeout,
			PingInterval:     cfg.Connection.PingInterval,
			StaleTimeout:     cfg.Connection.StaleTimeout,
			WriteTimeout:     cfg.Connection.WriteTimeout,
			BufferSize:       cfg.Connection.MessageBuffer,
		},
		DialTimeout:           cfg.Connection.DialTimeout,
		MaxConsecutiveRejects: cfg.Connection.MaxConsecutiveRejects,
		StopTimeout:           cfg.Connection.StopTimeout,
	}
	return reg
}
