package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultMaxStreams        = 50
	DefaultBufferCapacity    = 256
	DefaultBufferMaxCapacity = 8192
	DefaultDialsPerSecond    = 2.0
	DefaultDialBurst         = 4

	DefaultHandshakeTimeout      = 10 * time.Second
	DefaultDialTimeout           = 10 * time.Second
	DefaultPingInterval          = 30 * time.Second
	DefaultStaleTimeout          = 90 * time.Second
	DefaultWriteTimeout          = 5 * time.Second
	DefaultMessageBuffer         = 1024
	DefaultMaxConsecutiveRejects = 5
	DefaultStopTimeout           = 2 * time.Second

	DefaultBackoffBase        = 1 * time.Second
	DefaultBackoffMaxAttempts = 5
	DefaultBackoffJitter      = 0.2

	DefaultScanInterval   = 15 * time.Second
	DefaultStaleThreshold = 60 * time.Second

	DefaultAdminAddr            = ":8080"
	DefaultAdminReadTimeout     = 5 * time.Second
	DefaultAdminWriteTimeout    = 10 * time.Second
	DefaultAdminShutdownTimeout = 10 * time.Second

	DefaultNATSURL           = "nats://127.0.0.1:4222"
	DefaultNATSClientName    = "marketstream"
	DefaultNATSSubjectPrefix = "marketdata"
	DefaultNATSTimeout       = 5 * time.Second
	DefaultNATSReconnectWait = 2 * time.Second
	DefaultNATSMaxReconnects = 60

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaTopic        = "marketdata.normalized"
	DefaultKafkaBatchTimeout = 100 * time.Millisecond
	DefaultKafkaWriteTimeout = 5 * time.Second
)

func (c *GatewayConfig) applyDefaults() {
	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	// Registry defaults
	if c.Registry.MaxStreams == 0 {
		c.Registry.MaxStreams = DefaultMaxStreams
	}
	if c.Registry.BufferCapacity == 0 {
		c.Registry.BufferCapacity = DefaultBufferCapacity
	}
	if c.Registry.BufferMaxCapacity == 0 {
		c.Registry.BufferMaxCapacity = DefaultBufferMaxCapacity
	}
	if c.Registry.DialsPerSecond == 0 {
		c.Registry.DialsPerSecond = DefaultDialsPerSecond
	}
	if c.Registry.DialBurst == 0 {
		c.Registry.DialBurst = DefaultDialBurst
	}

	// Connection defaults
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.DialTimeout == 0 {
		c.Connection.DialTimeout = DefaultDialTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.StaleTimeout == 0 {
		c.Connection.StaleTimeout = DefaultStaleTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.MessageBuffer == 0 {
		c.Connection.MessageBuffer = DefaultMessageBuffer
	}
	if c.Connection.MaxConsecutiveRejects == 0 {
		c.Connection.MaxConsecutiveRejects = DefaultMaxConsecutiveRejects
	}
	if c.Connection.StopTimeout == 0 {
		c.Connection.StopTimeout = DefaultStopTimeout
	}

	// Backoff defaults
	if c.Backoff.Base == 0 {
		c.Backoff.Base = DefaultBackoffBase
	}
	if c.Backoff.MaxAttempts == 0 {
		c.Backoff.MaxAttempts = DefaultBackoffMaxAttempts
	}
	if c.Backoff.Jitter == 0 {
		c.Backoff.Jitter = DefaultBackoffJitter
	}

	// Health defaults
	if c.Health.ScanInterval == 0 {
		c.Health.ScanInterval = DefaultScanInterval
	}
	if c.Health.StaleThreshold == 0 {
		c.Health.StaleThreshold = DefaultStaleThreshold
	}

	// Admin defaults
	if c.Admin.Addr == "" {
		c.Admin.Addr = DefaultAdminAddr
	}
	if c.Admin.ReadTimeout == 0 {
		c.Admin.ReadTimeout = DefaultAdminReadTimeout
	}
	if c.Admin.WriteTimeout == 0 {
		c.Admin.WriteTimeout = DefaultAdminWriteTimeout
	}
	if c.Admin.ShutdownTimeout == 0 {
		c.Admin.ShutdownTimeout = DefaultAdminShutdownTimeout
	}

	// Sink defaults
	if c.Sinks.NATS.URL == "" {
		c.Sinks.NATS.URL = DefaultNATSURL
	}
	if c.Sinks.NATS.ClientName == "" {
		c.Sinks.NATS.ClientName = DefaultNATSClientName
	}
	if c.Sinks.NATS.SubjectPrefix == "" {
		c.Sinks.NATS.SubjectPrefix = DefaultNATSSubjectPrefix
	}
	if c.Sinks.NATS.ConnectTimeout == 0 {
		c.Sinks.NATS.ConnectTimeout = DefaultNATSTimeout
	}
	if c.Sinks.NATS.ReconnectWait == 0 {
		c.Sinks.NATS.ReconnectWait = DefaultNATSReconnectWait
	}
	if c.Sinks.NATS.MaxReconnects == 0 {
		c.Sinks.NATS.MaxReconnects = DefaultNATSMaxReconnects
	}
	if len(c.Sinks.Kafka.Brokers) == 0 {
		c.Sinks.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if c.Sinks.Kafka.Topic == "" {
		c.Sinks.Kafka.Topic = DefaultKafkaTopic
	}
	if c.Sinks.Kafka.BatchTimeout == 0 {
		c.Sinks.Kafka.BatchTimeout = DefaultKafkaBatchTimeout
	}
	if c.Sinks.Kafka.WriteTimeout == 0 {
		c.Sinks.Kafka.WriteTimeout = DefaultKafkaWriteTimeout
	}
}
