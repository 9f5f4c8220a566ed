package config

import "time"

// GatewayConfig is the root configuration for a gateway instance.
type GatewayConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Logging    LoggingConfig    `yaml:"logging"`
	Streams    []StreamConfig   `yaml:"streams"`
	Registry   RegistryConfig   `yaml:"registry"`
	Connection ConnectionConfig `yaml:"connection"`
	Backoff    BackoffConfig    `yaml:"backoff"`
	Health     HealthConfig     `yaml:"health"`
	Admin      AdminConfig      `yaml:"admin"`
	Sinks      SinksConfig      `yaml:"sinks"`
}

// InstanceConfig identifies this gateway.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// StreamConfig names one subscription to establish at startup.
type StreamConfig struct {
	Exchange string `yaml:"exchange"`
	Symbol   string `yaml:"symbol"`
	Type     string `yaml:"type"` // orderbook or ticker
}

// RegistryConfig holds stream pool settings.
type RegistryConfig struct {
	MaxStreams        int     `yaml:"max_streams"`
	BufferCapacity    int     `yaml:"buffer_capacity"`
	BufferMaxCapacity int     `yaml:"buffer_max_capacity"`
	DialsPerSecond    float64 `yaml:"dials_per_second"`
	DialBurst         int     `yaml:"dial_burst"`
}

// ConnectionConfig holds per-connection WebSocket settings.
type ConnectionConfig struct {
	HandshakeTimeout      time.Duration `yaml:"handshake_timeout"`
	DialTimeout           time.Duration `yaml:"dial_timeout"`
	PingInterval          time.Duration `yaml:"ping_interval"`
	StaleTimeout          time.Duration `yaml:"stale_timeout"`
	WriteTimeout          time.Duration `yaml:"write_timeout"`
	MessageBuffer         int           `yaml:"message_buffer"`
	MaxConsecutiveRejects int           `yaml:"max_consecutive_rejects"`
	StopTimeout           time.Duration `yaml:"stop_timeout"`
}

// BackoffConfig holds the reconnect schedule.
type BackoffConfig struct {
	Base        time.Duration `yaml:"base"`
	MaxAttempts int           `yaml:"max_attempts"`
	Jitter      float64       `yaml:"jitter"`
}

// HealthConfig holds health monitor settings.
type HealthConfig struct {
	ScanInterval   time.Duration `yaml:"scan_interval"`
	StaleThreshold time.Duration `yaml:"stale_threshold"`
}

// AdminConfig holds the admin HTTP server settings.
type AdminConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SinksConfig toggles outbound publishers.
type SinksConfig struct {
	NATS  NATSSinkConfig  `yaml:"nats"`
	Kafka KafkaSinkConfig `yaml:"kafka"`
}

// NATSSinkConfig holds NATS publisher settings.
type NATSSinkConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	ClientName     string        `yaml:"client_name"`
	SubjectPrefix  string        `yaml:"subject_prefix"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`
	MaxReconnects  int           `yaml:"max_reconnects"` // -1 retries forever
}

// KafkaSinkConfig holds Kafka publisher settings.
type KafkaSinkConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Async        bool          `yaml:"async"`
}
