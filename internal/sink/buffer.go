package sink

import (
	"sync"

	"github.com/rickgao/marketstream/internal/model"
)

// Buffer capacity defaults. The ring starts small, doubles under bursts, and
// never grows past the max; at max capacity the oldest queued message is
// evicted.
const (
	DefaultBufferCapacity    = 256
	DefaultBufferMaxCapacity = 8192
)

// BufferSink queues normalized messages on a growable ring buffer. Deliver
// never blocks: a full ring either doubles (below the max capacity) or drops
// the oldest queued message. Consumers drain the ring with Receive or
// TryReceive.
type BufferSink struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	items  []*model.NormalizedMessage
	head   int // next message to pop
	tail   int // next free slot
	count  int
	max    int
	closed bool

	totalIn  uint64 // messages accepted by Deliver
	totalOut uint64 // messages handed to consumers
	dropped  uint64 // messages evicted at max capacity
	resizes  int
}

// BufferStats is a point-in-time snapshot of a BufferSink's counters.
type BufferStats struct {
	Queued   int    `json:"queued"`
	Capacity int    `json:"capacity"`
	TotalIn  uint64 `json:"total_in"`
	TotalOut uint64 `json:"total_out"`
	Dropped  uint64 `json:"dropped"`
	Resizes  int    `json:"resizes"`
}

// NewBufferSink returns a buffer that starts at initialCapacity slots and
// grows by doubling up to maxCapacity. Non-positive arguments fall back to
// the package defaults; a max below the initial capacity is raised to it.
func NewBufferSink(initialCapacity, maxCapacity int) *BufferSink {
	if initialCapacity <= 0 {
		initialCapacity = DefaultBufferCapacity
	}
	if maxCapacity <= 0 {
		maxCapacity = DefaultBufferMaxCapacity
	}
	if maxCapacity < initialCapacity {
		maxCapacity = initialCapacity
	}
	b := &BufferSink{
		items: make([]*model.NormalizedMessage, initialCapacity),
		max:   maxCapacity,
	}
	b.notEmpty = sync.NewCond(&b.mu)
	return b
}

// Deliver queues msg. It returns ErrSinkClosed after Close and nil otherwise.
func (b *BufferSink) Deliver(msg *model.NormalizedMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrSinkClosed
	}
	if b.count == len(b.items) {
		if len(b.items) < b.max {
			b.grow()
		} else {
			b.head = (b.head + 1) % len(b.items)
			b.count--
			b.dropped++
		}
	}
	b.items[b.tail] = msg
	b.tail = (b.tail + 1) % len(b.items)
	b.count++
	b.totalIn++
	b.notEmpty.Signal()
	return nil
}

// Receive blocks until a message is queued or the buffer is closed. After
// Close it keeps draining queued messages and reports false only once the
// ring is empty.
func (b *BufferSink) Receive() (*model.NormalizedMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.notEmpty.Wait()
	}
	if b.count == 0 {
		return nil, false
	}
	return b.pop(), true
}

// TryReceive pops a message without blocking. It reports false when the ring
// is empty.
func (b *BufferSink) TryReceive() (*model.NormalizedMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil, false
	}
	return b.pop(), true
}

// Close stops the buffer and wakes blocked Receive calls. Queued messages
// stay receivable. Close is idempotent.
func (b *BufferSink) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.notEmpty.Broadcast()
}

// Len reports the number of queued messages.
func (b *BufferSink) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap reports the current ring capacity.
func (b *BufferSink) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Stats returns a snapshot of the buffer counters.
func (b *BufferSink) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Queued:   b.count,
		Capacity: len(b.items),
		TotalIn:  b.totalIn,
		TotalOut: b.totalOut,
		Dropped:  b.dropped,
		Resizes:  b.resizes,
	}
}

// pop removes and returns the oldest message. Callers hold b.mu and have
// checked count > 0.
func (b *BufferSink) pop() *model.NormalizedMessage {
	msg := b.items[b.head]
	b.items[b.head] = nil
	b.head = (b.head + 1) % len(b.items)
	b.count--
	b.totalOut++
	return msg
}

// grow doubles the ring, clamped to the max capacity, and re-packs queued
// messages starting at slot zero. Callers hold b.mu.
func (b *BufferSink) grow() {
	newCap := len(b.items) * 2
	if newCap > b.max {
		newCap = b.max
	}
	next := make([]*model.NormalizedMessage, newCap)
	for i := 0; i < b.count; i++ {
		next[i] = b.items[(b.head+i)%len(b.items)]
	}
	b.items = next
	b.head = 0
	b.tail = b.count
	b.resizes++
}
