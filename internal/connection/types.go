package connection

import (
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/marketstream/internal/backoff"
	"github.com/rickgao/marketstream/internal/model"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no frames)")
	ErrConnectionLost  = errors.New("connection lost")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrAlreadyStarted  = errors.New("supervisor already started")
)

// TimestampedMessage wraps raw frame bytes with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL
	HandshakeTimeout time.Duration // Dial handshake deadline
	PingInterval     time.Duration // How often to send keepalive pings
	StaleTimeout     time.Duration // Max quiet time before the connection is declared dead
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns defaults for a single-stream connection.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		StaleTimeout:     90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1024,
	}
}

// SupervisorConfig configures one stream supervisor.
type SupervisorConfig struct {
	Symbol     string           // venue symbol as given at subscribe time, e.g. "BTCUSDT"
	StreamType model.StreamType // orderbook or ticker

	URL string // overrides the adapter's stream URL when set

	Backoff               backoff.Policy // reconnect schedule
	Client                ClientConfig   // per-connection settings; URL is filled in per dial
	DialLimiter           *rate.Limiter  // shared per-exchange dial throttle (nil = unlimited)
	DialTimeout           time.Duration  // deadline for one connect attempt
	MaxConsecutiveRejects int            // rejected frames tolerated before the connection is recycled
	StopTimeout           time.Duration  // shutdown bound when Stop's context has no deadline
}

// DefaultSupervisorConfig returns defaults; Symbol and StreamType must still
// be set by the caller.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Backoff:               backoff.Default(),
		Client:                DefaultClientConfig(),
		DialTimeout:           10 * time.Second,
		MaxConsecutiveRejects: 5,
		StopTimeout:           2 * time.Second,
	}
}

// SupervisorStats is a point-in-time snapshot of one supervised stream.
type SupervisorStats struct {
	StreamID          model.StreamID
	State             model.ConnectionState
	AttemptCount      int    // consecutive failed connection attempts
	Reconnects        uint64 // reconnect cycles entered
	MessagesDelivered uint64 // normalized messages handed to the sink
	FramesRejected    uint64 // frames the normalizer refused
	LastActivity      time.Time
	ConnectedAt       time.Time // zero when not connected
}
