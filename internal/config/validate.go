package config

import (
	"errors"
	"fmt"

	"github.com/rickgao/marketstream/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *GatewayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	for i, s := range c.Streams {
		if s.Exchange == "" {
			return fmt.Errorf("streams[%d].exchange is required", i)
		}
		if s.Symbol == "" {
			return fmt.Errorf("streams[%d].symbol is required", i)
		}
		if _, err := model.ParseStreamType(s.Type); err != nil {
			return fmt.Errorf("streams[%d].type: %w", i, err)
		}
	}

	if c.Registry.MaxStreams < 1 {
		return errors.New("registry.max_streams must be >= 1")
	}
	if c.Registry.BufferCapacity < 1 {
		return errors.New("registry.buffer_capacity must be >= 1")
	}
	if c.Registry.BufferMaxCapacity < c.Registry.BufferCapacity {
		return fmt.Errorf("registry.buffer_max_capacity (%d) cannot be below buffer_capacity (%d)",
			c.Registry.BufferMaxCapacity, c.Registry.BufferCapacity)
	}
	if c.Registry.DialsPerSecond <= 0 {
		return errors.New("registry.dials_per_second must be > 0")
	}

	if c.Connection.MessageBuffer < 1 {
		return errors.New("connection.message_buffer must be >= 1")
	}
	if c.Connection.MaxConsecutiveRejects < 1 {
		return errors.New("connection.max_consecutive_rejects must be >= 1")
	}

	if c.Backoff.MaxAttempts < 1 {
		return errors.New("backoff.max_attempts must be >= 1")
	}
	if c.Backoff.Jitter < 0 || c.Backoff.Jitter >= 1 {
		return fmt.Errorf("backoff.jitter must be in [0, 1), got %v", c.Backoff.Jitter)
	}

	if c.Admin.Addr == "" {
		return errors.New("admin.addr is required")
	}

	if c.Sinks.NATS.Enabled && c.Sinks.NATS.URL == "" {
		return errors.New("sinks.nats.url is required when sinks.nats.enabled")
	}
	if c.Sinks.Kafka.Enabled && len(c.Sinks.Kafka.Brokers) == 0 {
		return errors.New("sinks.kafka.brokers is required when sinks.kafka.enabled")
	}

	return nil
}
