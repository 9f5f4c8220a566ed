package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-gateway
  az: us-east-1a
streams:
  - exchange: binance
    symbol: BTCUSDT
    type: orderbook
  - exchange: kraken
    symbol: BTC/USD
    type: ticker
registry:
  max_streams: 10
connection:
  stale_timeout: 90s
sinks:
  nats:
    enabled: true
    url: nats://broker:4222
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-gateway" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-gateway")
	}
	if len(cfg.Streams) != 2 {
		t.Fatalf("len(Streams) = %d, want 2", len(cfg.Streams))
	}
	if cfg.Streams[0].Exchange != "binance" || cfg.Streams[0].Type != "orderbook" {
		t.Errorf("Streams[0] = %+v, want binance orderbook", cfg.Streams[0])
	}
	if cfg.Streams[1].Symbol != "BTC/USD" {
		t.Errorf("Streams[1].Symbol = %q, want BTC/USD", cfg.Streams[1].Symbol)
	}
	if cfg.Registry.MaxStreams != 10 {
		t.Errorf("Registry.MaxStreams = %d, want 10", cfg.Registry.MaxStreams)
	}
	if cfg.Connection.StaleTimeout != 90*time.Second {
		t.Errorf("Connection.StaleTimeout = %v, want 90s", cfg.Connection.StaleTimeout)
	}
	if !cfg.Sinks.NATS.Enabled || cfg.Sinks.NATS.URL != "nats://broker:4222" {
		t.Errorf("Sinks.NATS = %+v, want enabled with broker url", cfg.Sinks.NATS)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_NATS_URL", "nats://secret-broker:4222")

	yaml := `
instance:
  id: test-gateway
sinks:
  nats:
    enabled: true
    url: ${TEST_NATS_URL}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sinks.NATS.URL != "nats://secret-broker:4222" {
		t.Errorf("Sinks.NATS.URL = %q, want %q", cfg.Sinks.NATS.URL, "nats://secret-broker:4222")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-gateway
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Logging.Level = %q, want default %q", cfg.Logging.Level, DefaultLogLevel)
	}
	if cfg.Registry.MaxStreams != DefaultMaxStreams {
		t.Errorf("Registry.MaxStreams = %d, want default %d", cfg.Registry.MaxStreams, DefaultMaxStreams)
	}
	if cfg.Backoff.Base != DefaultBackoffBase {
		t.Errorf("Backoff.Base = %v, want default %v", cfg.Backoff.Base, DefaultBackoffBase)
	}
	if cfg.Backoff.Jitter != DefaultBackoffJitter {
		t.Errorf("Backoff.Jitter = %v, want default %v", cfg.Backoff.Jitter, DefaultBackoffJitter)
	}
	if cfg.Health.StaleThreshold != DefaultStaleThreshold {
		t.Errorf("Health.StaleThreshold = %v, want default %v", cfg.Health.StaleThreshold, DefaultStaleThreshold)
	}
	if cfg.Admin.Addr != DefaultAdminAddr {
		t.Errorf("Admin.Addr = %q, want default %q", cfg.Admin.Addr, DefaultAdminAddr)
	}
	if cfg.Sinks.NATS.URL != DefaultNATSURL {
		t.Errorf("Sinks.NATS.URL = %q, want default %q", cfg.Sinks.NATS.URL, DefaultNATSURL)
	}
	if len(cfg.Sinks.Kafka.Brokers) != 1 || cfg.Sinks.Kafka.Brokers[0] != DefaultKafkaBroker {
		t.Errorf("Sinks.Kafka.Brokers = %v, want [%s]", cfg.Sinks.Kafka.Brokers, DefaultKafkaBroker)
	}
}

func TestLoadAndValidate(t *testing.T) {
	yaml := `
instance:
  id: test-gateway
streams:
  - exchange: binance
    symbol: BTCUSDT
    type: candles
`
	path := writeTempFile(t, yaml)

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected error for unknown stream type")
	}
	if !strings.Contains(err.Error(), "streams[0].type") {
		t.Errorf("err = %v, want streams[0].type mention", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func validConfig() GatewayConfig {
	cfg := GatewayConfig{
		Instance: InstanceConfig{ID: "test-gateway"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GatewayConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*GatewayConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *GatewayConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *GatewayConfig) { c.Logging.Level = "verbose" },
			wantErr: `logging.level must be debug, info, warn, or error, got "verbose"`,
		},
		{
			name: "stream missing symbol",
			mutate: func(c *GatewayConfig) {
				c.Streams = []StreamConfig{{Exchange: "binance", Type: "ticker"}}
			},
			wantErr: "streams[0].symbol is required",
		},
		{
			name: "stream bad type",
			mutate: func(c *GatewayConfig) {
				c.Streams = []StreamConfig{{Exchange: "binance", Symbol: "BTCUSDT", Type: "trades"}}
			},
			wantErr: `streams[0].type: unknown stream type "trades"`,
		},
		{
			name:    "max streams below one",
			mutate:  func(c *GatewayConfig) { c.Registry.MaxStreams = -1 },
			wantErr: "registry.max_streams must be >= 1",
		},
		{
			name: "buffer ceiling below capacity",
			mutate: func(c *GatewayConfig) {
				c.Registry.BufferCapacity = 512
				c.Registry.BufferMaxCapacity = 256
			},
			wantErr: "registry.buffer_max_capacity (256) cannot be below buffer_capacity (512)",
		},
		{
			name:    "jitter out of range",
			mutate:  func(c *GatewayConfig) { c.Backoff.Jitter = 1.5 },
			wantErr: "backoff.jitter must be in [0, 1), got 1.5",
		},
		{
			name: "kafka enabled without brokers",
			mutate: func(c *GatewayConfig) {
				c.Sinks.Kafka.Enabled = true
				c.Sinks.Kafka.Brokers = nil
			},
			wantErr: "sinks.kafka.brokers is required when sinks.kafka.enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := GatewayConfig{
		Instance: InstanceConfig{ID: "test-gateway"},
		Registry: RegistryConfig{MaxStreams: 5},
		Backoff:  BackoffConfig{Base: 250 * time.Millisecond},
	}
	cfg.applyDefaults()

	if cfg.Registry.MaxStreams != 5 {
		t.Errorf("MaxStreams = %d, want 5", cfg.Registry.MaxStreams)
	}
	if cfg.Backoff.Base != 250*time.Millisecond {
		t.Errorf("Backoff.Base = %v, want 250ms", cfg.Backoff.Base)
	}
	if cfg.Backoff.MaxAttempts != DefaultBackoffMaxAttempts {
		t.Errorf("Backoff.MaxAttempts = %d, want default %d", cfg.Backoff.MaxAttempts, DefaultBackoffMaxAttempts)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
