package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/marketstream/internal/backoff"
	"github.com/rickgao/marketstream/internal/exchange"
	"github.com/rickgao/marketstream/internal/model"
	"github.com/rickgao/marketstream/internal/sink"
)

// Supervisor owns the full lifecycle of one stream subscription: the dial,
// the subscribe handshake, frame normalization into the sink, reconnection
// with exponential backoff, and teardown.
//
// States move as
//
//	connecting   -> connected | reconnecting | stopped
//	connected    -> reconnecting | stopped
//	reconnecting -> connecting | failed | stopped
//
// with failed and stopped terminal. The attempt count grows by one per
// consecutive failed connection attempt and resets to zero the moment a
// connection is established.
type Supervisor struct {
	cfg     SupervisorConfig
	adapter exchange.Adapter
	out     sink.Sink
	logger  *slog.Logger

	streamID  model.StreamID
	createdAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.RWMutex
	started      bool
	state        model.ConnectionState
	attempts     int
	lastActivity time.Time
	connectedAt  time.Time
	lastErr      error
	client       Client

	reconnects uint64
	delivered  uint64
	rejected   uint64
}

// NewSupervisor builds a supervisor for one stream. It validates the symbol
// and stream type but opens no connection; Start launches the first attempt.
func NewSupervisor(cfg SupervisorConfig, adapter exchange.Adapter, out sink.Sink, logger *slog.Logger) (*Supervisor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if adapter == nil {
		return nil, fmt.Errorf("supervisor: nil adapter")
	}
	if out == nil {
		return nil, fmt.Errorf("supervisor: nil sink")
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("supervisor: empty symbol")
	}
	if !cfg.StreamType.Valid() {
		return nil, fmt.Errorf("supervisor: invalid stream type %q", cfg.StreamType)
	}

	def := DefaultSupervisorConfig()
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff = def.Backoff
	} else if cfg.Backoff.MaxAttempts <= 0 {
		cfg.Backoff.MaxAttempts = backoff.DefaultMaxAttempts
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.MaxConsecutiveRejects <= 0 {
		cfg.MaxConsecutiveRejects = def.MaxConsecutiveRejects
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}

	id := model.NewStreamID(adapter.Name(), cfg.Symbol, cfg.StreamType)
	return &Supervisor{
		cfg:       cfg,
		adapter:   adapter,
		out:       out,
		logger:    logger.With("stream_id", id),
		streamID:  id,
		createdAt: time.Now(),
		state:     model.StateConnecting,
	}, nil
}

// Start launches the supervision loop. It returns once the first connection
// attempt is underway, not once it completes.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()

	s.logger.Info("stream supervisor started",
		"exchange", s.adapter.Name(),
		"symbol", s.cfg.Symbol,
		"stream_type", s.cfg.StreamType,
	)
	return nil
}

// Stop ends supervision. It cancels an in-flight dial or backoff wait,
// closes the connection, and waits for the loop to exit; when ctx carries no
// deadline the configured StopTimeout bounds the wait. A stream that already
// failed keeps its failed state.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		if !s.state.Terminal() {
			s.state = model.StateStopped
		}
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var release context.CancelFunc
		ctx, release = context.WithTimeout(ctx, s.cfg.StopTimeout)
		defer release()
	}

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("stop timed out waiting for supervision loop")
	}

	s.mu.Lock()
	if !s.state.Terminal() {
		s.state = model.StateStopped
	}
	state := s.state
	s.mu.Unlock()

	s.logger.Info("stream supervisor stopped", "state", state)
	return nil
}

// ---------------------------------------------------------------- accessors

// StreamID returns the deterministic stream identifier.
func (s *Supervisor) StreamID() model.StreamID {
	return s.streamID
}

// CreatedAt returns when the supervisor was created.
func (s *Supervisor) CreatedAt() time.Time {
	return s.createdAt
}

// State returns the current lifecycle state.
func (s *Supervisor) State() model.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// AttemptCount returns the consecutive failed connection attempts.
func (s *Supervisor) AttemptCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempts
}

// LastActivity returns the receive time of the last accepted frame, folding
// in ws-level pings seen on the live connection.
func (s *Supervisor) LastActivity() time.Time {
	s.mu.RLock()
	last := s.lastActivity
	client := s.client
	s.mu.RUnlock()

	if client != nil {
		if t := client.LastControlAt(); t.After(last) {
			last = t
		}
	}
	return last
}

// Info returns the stream's listing entry.
func (s *Supervisor) Info() model.StreamInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var uptime time.Duration
	if s.state == model.StateConnected && !s.connectedAt.IsZero() {
		uptime = time.Since(s.connectedAt)
	}
	return model.StreamInfo{
		StreamID:     s.streamID,
		Symbol:       s.cfg.Symbol,
		Exchange:     s.adapter.Name(),
		StreamType:   s.cfg.StreamType,
		State:        s.state,
		AttemptCount: s.attempts,
		Uptime:       uptime,
		CreatedAt:    s.createdAt,
	}
}

// Stats returns a counters snapshot.
func (s *Supervisor) Stats() SupervisorStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SupervisorStats{
		StreamID:          s.streamID,
		State:             s.state,
		AttemptCount:      s.attempts,
		Reconnects:        s.reconnects,
		MessagesDelivered: s.delivered,
		FramesRejected:    s.rejected,
		LastActivity:      s.lastActivity,
		ConnectedAt:       s.connectedAt,
	}
}

// ------------------------------------------------------------- supervision

// run is the supervision loop: connect, pump frames, back off, repeat.
func (s *Supervisor) run() {
	defer s.wg.Done()

	attempt := 0
	for {
		client, err := s.connect()
		if err == nil {
			attempt = 0
			s.enterConnected(client)
			err = s.pump(client)
			client.Close()
			s.detachClient()
		}

		if s.ctx.Err() != nil {
			s.enterStopped()
			return
		}

		attempt++
		delay, giveUp := s.cfg.Backoff.Next(attempt)
		if giveUp {
			s.enterFailed(attempt, err)
			return
		}

		s.enterReconnecting(attempt, err)
		s.logger.Info("reconnecting",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			s.enterStopped()
			return
		}
		s.enterConnecting()
	}
}

// connect performs one rate-limited dial plus the subscribe handshake.
func (s *Supervisor) connect() (Client, error) {
	if s.cfg.DialLimiter != nil {
		if err := s.cfg.DialLimiter.Wait(s.ctx); err != nil {
			return nil, err
		}
	}

	url := s.cfg.URL
	if url == "" {
		url = s.adapter.StreamURL(s.cfg.Symbol, s.cfg.StreamType)
	}
	clientCfg := s.cfg.Client
	clientCfg.URL = url

	client := NewClient(clientCfg, s.logger)

	dialCtx, cancel := context.WithTimeout(s.ctx, s.cfg.DialTimeout)
	defer cancel()
	if err := client.Connect(dialCtx); err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	frames, err := s.adapter.SubscribeFrames(s.cfg.Symbol, s.cfg.StreamType)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("build subscribe frames: %w", err)
	}
	for _, frame := range frames {
		if err := client.Send(frame); err != nil {
			client.Close()
			return nil, fmt.Errorf("send subscribe frame: %w", err)
		}
	}

	return client, nil
}

// pump consumes frames until the connection dies, too many consecutive
// frames are rejected, or the supervisor is stopped. Control frames count as
// activity; rejected frames never do.
func (s *Supervisor) pump(client Client) error {
	rejects := 0
	for {
		select {
		case <-s.ctx.Done():
			return nil

		case err := <-client.Errors():
			return err

		case msg, ok := <-client.Messages():
			if !ok {
				return ErrConnectionLost
			}

			norm, err := s.adapter.Normalize(s.cfg.Symbol, s.cfg.StreamType, msg.Data, msg.ReceivedAt)
			if err != nil {
				rejects++
				s.noteRejected()
				s.logger.Warn("frame rejected",
					"error", err,
					"consecutive", rejects,
				)
				if rejects >= s.cfg.MaxConsecutiveRejects {
					return fmt.Errorf("%d consecutive rejected frames: %w", rejects, err)
				}
				continue
			}

			rejects = 0
			s.touch(msg.ReceivedAt)

			if norm == nil {
				continue
			}
			if err := s.out.Deliver(norm); err != nil {
				s.logger.Warn("message delivery failed", "error", err)
				continue
			}
			s.noteDelivered()
		}
	}
}

// ---------------------------------------------------------- state tracking

// enterConnecting marks the start of a redial once a backoff wait ends.
func (s *Supervisor) enterConnecting() {
	s.mu.Lock()
	s.state = model.StateConnecting
	s.mu.Unlock()
}

func (s *Supervisor) enterConnected(client Client) {
	now := time.Now()
	s.mu.Lock()
	s.state = model.StateConnected
	s.attempts = 0
	s.connectedAt = now
	s.lastActivity = now
	s.lastErr = nil
	s.client = client
	s.mu.Unlock()

	s.logger.Info("stream connected")
}

// detachClient folds the dead connection's last control-frame time into the
// activity clock and drops the reference.
func (s *Supervisor) detachClient() {
	s.mu.Lock()
	if s.client != nil {
		if t := s.client.LastControlAt(); t.After(s.lastActivity) {
			s.lastActivity = t
		}
	}
	s.client = nil
	s.connectedAt = time.Time{}
	s.mu.Unlock()
}

func (s *Supervisor) enterReconnecting(attempt int, cause error) {
	s.mu.Lock()
	s.state = model.StateReconnecting
	s.attempts = attempt
	s.lastErr = cause
	s.reconnects++
	s.mu.Unlock()
}

func (s *Supervisor) enterFailed(attempt int, cause error) {
	s.mu.Lock()
	s.state = model.StateFailed
	s.attempts = attempt
	s.lastErr = cause
	s.mu.Unlock()

	s.logger.Error("stream failed, retries exhausted",
		"attempts", attempt,
		"error", cause,
	)
}

func (s *Supervisor) enterStopped() {
	s.mu.Lock()
	if !s.state.Terminal() {
		s.state = model.StateStopped
	}
	s.mu.Unlock()
}

func (s *Supervisor) touch(at time.Time) {
	s.mu.Lock()
	if at.After(s.lastActivity) {
		s.lastActivity = at
	}
	s.mu.Unlock()
}

func (s *Supervisor) noteRejected() {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
}

func (s *Supervisor) noteDelivered() {
	s.mu.Lock()
	s.delivered++
	s.mu.Unlock()
}
