package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/rickgao/marketstream/internal/connection"
	"github.com/rickgao/marketstream/internal/exchange"
	"github.com/rickgao/marketstream/internal/health"
	"github.com/rickgao/marketstream/internal/model"
	"github.com/rickgao/marketstream/internal/sink"
)

// entry pairs a supervisor with its delivery buffer.
type entry struct {
	sup *connection.Supervisor
	buf *sink.BufferSink
}

// registryImpl implements the Registry interface.
type registryImpl struct {
	cfg       Config
	broadcast sink.Sink // optional fan-out shared by all streams
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	entries  map[model.StreamID]*entry
	order    []model.StreamID         // creation order
	limiters map[string]*rate.Limiter // per-exchange dial throttles
	closed   bool
}

// NewRegistry creates a Stream Registry. broadcast, when non-nil, receives
// every normalized message from every stream in addition to the per-stream
// buffers.
func NewRegistry(cfg Config, broadcast sink.Sink, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MaxStreams <= 0 {
		cfg.MaxStreams = def.MaxStreams
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = def.StaleThreshold
	}
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = def.BufferCapacity
	}
	if cfg.BufferMaxCapacity <= 0 {
		cfg.BufferMaxCapacity = def.BufferMaxCapacity
	}
	if cfg.DialsPerSecond <= 0 {
		cfg.DialsPerSecond = def.DialsPerSecond
	}
	if cfg.DialBurst <= 0 {
		cfg.DialBurst = def.DialBurst
	}

	return &registryImpl{
		cfg:       cfg,
		broadcast: broadcast,
		logger:    logger,
		entries:   make(map[model.StreamID]*entry),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Start stores the base context that every supervisor inherits. Calling it
// again is a no-op.
func (r *registryImpl) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.ctx != nil {
		return nil
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.logger.Info("stream registry started", "max_streams", r.cfg.MaxStreams)
	return nil
}

// Stop tears down every stream concurrently, waiting up to ctx's deadline.
func (r *registryImpl) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	snapshot := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	r.entries = make(map[model.StreamID]*entry)
	r.order = nil
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var wg sync.WaitGroup
	for _, e := range snapshot {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			if err := e.sup.Stop(ctx); err != nil {
				r.logger.Warn("stream stop failed",
					"stream_id", e.sup.StreamID(),
					"error", err,
				)
			}
			e.buf.Close()
		}(e)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("stream registry stopped", "streams", len(snapshot))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---------------------------------------------------------------- operations

// Subscribe ensures a supervised stream exists for (symbol, exchange, type).
func (r *registryImpl) Subscribe(symbol, exchangeName string, streamType model.StreamType) (model.StreamID, error) {
	if symbol == "" {
		return "", errors.New("symbol required")
	}
	if !streamType.Valid() {
		return "", fmt.Errorf("invalid stream type %q", streamType)
	}
	adapter, err := exchange.New(exchangeName)
	if err != nil {
		return "", err
	}

	id := model.NewStreamID(adapter.Name(), symbol, streamType)

	stale, err := r.subscribe(id, symbol, adapter, streamType)

	// A superseded stream is already terminal; Stop just releases what it
	// still holds.
	if stale != nil {
		if serr := stale.sup.Stop(context.Background()); serr != nil {
			r.logger.Warn("superseded stream stop failed", "stream_id", id, "error", serr)
		}
		stale.buf.Close()
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// subscribe does the tracked part of Subscribe (write-locked). A terminal
// entry being replaced is returned for the caller to stop outside the lock.
func (r *registryImpl) subscribe(id model.StreamID, symbol string, adapter exchange.Adapter, streamType model.StreamType) (stale *entry, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if r.ctx == nil {
		return nil, ErrNotStarted
	}

	if e, ok := r.entries[id]; ok {
		if !e.sup.State().Terminal() {
			r.logger.Debug("stream already live", "stream_id", id)
			return nil, nil
		}
		// Terminal stream occupying this id; replaced below. It does not
		// count against the limit.
		stale = e
	}

	if r.liveLocked() >= r.cfg.MaxStreams {
		return nil, fmt.Errorf("%w: max %d streams", ErrSubscriptionLimit, r.cfg.MaxStreams)
	}

	if stale != nil {
		r.removeLocked(id)
	}

	supCfg := r.cfg.Supervisor
	supCfg.Symbol = symbol
	supCfg.StreamType = streamType
	supCfg.DialLimiter = r.limiterLocked(adapter.Name())

	buf := sink.NewBufferSink(r.cfg.BufferCapacity, r.cfg.BufferMaxCapacity)
	var out sink.Sink = buf
	if r.broadcast != nil {
		out = sink.MultiSink(buf, r.broadcast)
	}

	sup, err := connection.NewSupervisor(supCfg, adapter, out, r.logger)
	if err != nil {
		buf.Close()
		return stale, err
	}
	if err := sup.Start(r.ctx); err != nil {
		buf.Close()
		return stale, err
	}

	r.entries[id] = &entry{sup: sup, buf: buf}
	r.order = append(r.order, id)

	r.logger.Info("stream subscribed",
		"stream_id", id,
		"exchange", adapter.Name(),
		"symbol", symbol,
		"type", streamType,
		"superseded", stale != nil,
	)
	return stale, nil
}

// StopStream tears down one stream. The entry is removed immediately, so a
// second call with the same id returns false.
func (r *registryImpl) StopStream(ctx context.Context, id model.StreamID) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		r.removeLocked(id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	if err := e.sup.Stop(ctx); err != nil {
		r.logger.Warn("stream stop failed", "stream_id", id, "error", err)
	}
	e.buf.Close()

	r.logger.Info("stream stopped", "stream_id", id)
	return true
}

// ListActiveStreams snapshots every tracked stream in creation order.
func (r *registryImpl) ListActiveStreams() []model.StreamInfo {
	sups := r.supervisors()

	infos := make([]model.StreamInfo, 0, len(sups))
	for _, sup := range sups {
		infos = append(infos, sup.Info())
	}
	return infos
}

// CheckStreamHealth reports liveness for one stream.
func (r *registryImpl) CheckStreamHealth(id model.StreamID) (model.HealthReport, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()

	if !ok {
		return model.HealthReport{}, fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}
	return health.Report(e.sup, r.cfg.StaleThreshold), nil
}

// Buffer exposes a stream's delivery buffer for consumers.
func (r *registryImpl) Buffer(id model.StreamID) (*sink.BufferSink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.buf, true
}

// Probes exposes every tracked stream to the health monitor.
func (r *registryImpl) Probes() []health.Probe {
	r.mu.Lock()
	defer r.mu.Unlock()

	probes := make([]health.Probe, 0, len(r.order))
	for _, id := range r.order {
		if e, ok := r.entries[id]; ok {
			probes = append(probes, e.sup)
		}
	}
	return probes
}

// Stats aggregates counters across every tracked stream.
func (r *registryImpl) Stats() Stats {
	r.mu.Lock()
	snapshot := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	r.mu.Unlock()

	var st Stats
	st.Streams = len(snapshot)
	for _, e := range snapshot {
		ss := e.sup.Stats()
		if !ss.State.Terminal() {
			st.Live++
		}
		st.Delivered += ss.MessagesDelivered
		st.Rejected += ss.FramesRejected
		st.Reconnects += ss.Reconnects

		bs := e.buf.Stats()
		st.Buffered += bs.Queued
		st.Dropped += bs.Dropped
	}
	return st
}

// ---------------------------------------------------------------- internals

// liveLocked counts streams that are not failed or stopped. Caller must
// hold r.mu.
func (r *registryImpl) liveLocked() int {
	n := 0
	for _, e := range r.entries {
		if !e.sup.State().Terminal() {
			n++
		}
	}
	return n
}

// limiterLocked returns the dial limiter for an exchange, creating it on
// first use. Caller must hold r.mu.
func (r *registryImpl) limiterLocked(exchangeName string) *rate.Limiter {
	lim, ok := r.limiters[exchangeName]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(r.cfg.DialsPerSecond), r.cfg.DialBurst)
		r.limiters[exchangeName] = lim
	}
	return lim
}

// removeLocked drops a stream from the map and the creation order. Caller
// must hold r.mu.
func (r *registryImpl) removeLocked(id model.StreamID) {
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// supervisors snapshots the tracked supervisors in creation order.
func (r *registryImpl) supervisors() []*connection.Supervisor {
	r.mu.Lock()
	defer r.mu.Unlock()

	sups := make([]*connection.Supervisor, 0, len(r.order))
	for _, id := range r.order {
		if e, ok := r.entries[id]; ok {
			sups = append(sups, e.sup)
		}
	}
	return sups
}
