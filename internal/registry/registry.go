package registry

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/marketstream/internal/connection"
	"github.com/rickgao/marketstream/internal/health"
	"github.com/rickgao/marketstream/internal/model"
	"github.com/rickgao/marketstream/internal/sink"
)

// Errors returned by registry operations.
var (
	ErrSubscriptionLimit = errors.New("subscription limit exceeded")
	ErrStreamNotFound    = errors.New("stream not found")
	ErrNotStarted        = errors.New("registry not started")
	ErrClosed            = errors.New("registry closed")
)

// Registry manages the pool of supervised streams.
type Registry interface {
	// Start prepares the registry. Supervisors launched by Subscribe are
	// parented on ctx, so it must be called first.
	Start(ctx context.Context) error

	// Stop tears down every stream, waiting up to ctx's deadline.
	Stop(ctx context.Context) error

	// Subscribe ensures a supervised stream exists for the triple and
	// returns its deterministic id. Subscribing to a live stream is a
	// no-op; a failed or stopped stream is replaced by a fresh one.
	Subscribe(symbol, exchangeName string, streamType model.StreamType) (model.StreamID, error)

	// StopStream tears down one stream and reports whether it was found.
	// Stopping an unknown or already-removed id returns false.
	StopStream(ctx context.Context, id model.StreamID) bool

	// ListActiveStreams snapshots every tracked stream in creation order.
	ListActiveStreams() []model.StreamInfo

	// CheckStreamHealth reports liveness for one stream.
	CheckStreamHealth(id model.StreamID) (model.HealthReport, error)

	// Buffer exposes a stream's delivery buffer for consumers.
	Buffer(id model.StreamID) (*sink.BufferSink, bool)

	// Probes exposes every tracked stream to the health monitor.
	Probes() []health.Probe

	// Stats aggregates counters across all streams.
	Stats() Stats
}

// Config holds Stream Registry configuration.
type Config struct {
	MaxStreams        int           // ceiling on live (non-terminal) streams
	StaleThreshold    time.Duration // quiet time before a connected stream reports stale
	BufferCapacity    int           // initial per-stream buffer capacity
	BufferMaxCapacity int           // per-stream buffer ceiling; oldest frames dropped beyond it
	DialsPerSecond    float64       // shared per-exchange dial rate
	DialBurst         int           // shared per-exchange dial burst

	// Supervisor is the template applied to every stream. Symbol,
	// StreamType, and DialLimiter are filled in per subscription.
	Supervisor connection.SupervisorConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxStreams:        50,
		StaleThreshold:    health.DefaultStaleThreshold,
		BufferCapacity:    sink.DefaultBufferCapacity,
		BufferMaxCapacity: sink.DefaultBufferMaxCapacity,
		DialsPerSecond:    2,
		DialBurst:         4,
		Supervisor:        connection.DefaultSupervisorConfig(),
	}
}

// Stats aggregates counters across every tracked stream.
type Stats struct {
	Streams    int    `json:"streams"`    // tracked streams, any state
	Live       int    `json:"live"`       // streams not failed or stopped
	Delivered  uint64 `json:"delivered"`  // normalized messages handed to sinks
	Rejected   uint64 `json:"rejected"`   // frames refused by normalizers
	Reconnects uint64 `json:"reconnects"` // reconnect cycles across all streams
	Buffered   int    `json:"buffered"`   // messages waiting in delivery buffers
	Dropped    uint64 `json:"dropped"`    // buffered messages evicted at capacity
}
