package sink

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rickgao/marketstream/internal/model"
)

// NATS sink defaults.
const (
	DefaultNATSSubjectPrefix  = "marketdata"
	DefaultNATSClientName     = "marketstream"
	DefaultNATSConnectTimeout = 5 * time.Second
	DefaultNATSReconnectWait  = 2 * time.Second
	DefaultNATSMaxReconnects  = 60
)

// NATSConfig holds connection settings for a NATSSink.
type NATSConfig struct {
	URL            string        `yaml:"url"`             // server URL, e.g. nats://localhost:4222
	ClientName     string        `yaml:"client_name"`     // connection name shown in server monitoring
	SubjectPrefix  string        `yaml:"subject_prefix"`  // first subject token
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // initial dial timeout
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`  // pause between reconnect attempts
	MaxReconnects  int           `yaml:"max_reconnects"`  // -1 retries forever
}

// DefaultNATSConfig returns a config for a local NATS server.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL,
		ClientName:     DefaultNATSClientName,
		SubjectPrefix:  DefaultNATSSubjectPrefix,
		ConnectTimeout: DefaultNATSConnectTimeout,
		ReconnectWait:  DefaultNATSReconnectWait,
		MaxReconnects:  DefaultNATSMaxReconnects,
	}
}

// NATSSink publishes every normalized message to a NATS subject of the form
//
//	<prefix>.<stream_type>.<exchange>.<symbol>
//
// for example marketdata.orderbook.binance.btcusdt.
type NATSSink struct {
	cfg    NATSConfig
	logger *slog.Logger
	nc     *nats.Conn
}

// NewNATSSink connects to the configured server. The client keeps
// reconnecting in the background after a server restart; Deliver returns an
// error while the connection is down.
func NewNATSSink(cfg NATSConfig, logger *slog.Logger) (*NATSSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultNATSConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.ClientName == "" {
		cfg.ClientName = def.ClientName
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = def.SubjectPrefix
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = def.ReconnectWait
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = def.MaxReconnects
	}

	opts := []nats.Option{
		nats.Name(cfg.ClientName),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", cfg.URL, err)
	}

	logger.Info("nats sink ready", "url", cfg.URL, "subject_prefix", cfg.SubjectPrefix)
	return &NATSSink{cfg: cfg, logger: logger, nc: nc}, nil
}

// Deliver publishes msg to its subject.
func (s *NATSSink) Deliver(msg *model.NormalizedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.nc.Publish(natsSubject(s.cfg.SubjectPrefix, msg), data); err != nil {
		return fmt.Errorf("publish to nats: %w", err)
	}
	return nil
}

// Close drains pending publishes and drops the connection.
func (s *NATSSink) Close() {
	if s.nc == nil {
		return
	}
	if err := s.nc.Drain(); err != nil {
		s.logger.Warn("nats drain failed", "error", err)
		s.nc.Close()
	}
}

// natsSubject builds the subject for one message. Symbols are normalized so
// the token never contains separator characters.
func natsSubject(prefix string, msg *model.NormalizedMessage) string {
	return fmt.Sprintf("%s.%s.%s.%s",
		prefix, msg.StreamType, strings.ToLower(msg.Exchange), model.NormalizeSymbol(msg.Symbol))
}
