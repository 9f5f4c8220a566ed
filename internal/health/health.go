package health

import (
	"time"

	"github.com/rickgao/marketstream/internal/model"
)

// DefaultStaleThreshold is how long an established connection may stay
// quiet before it is reported stale.
const DefaultStaleThreshold = 60 * time.Second

// Probe exposes the live state of a single stream.
// *connection.Supervisor satisfies it.
type Probe interface {
	StreamID() model.StreamID
	State() model.ConnectionState
	LastActivity() time.Time
	AttemptCount() int
	CreatedAt() time.Time
}

// Evaluate classifies a stream from its connection state and the time since
// the last accepted frame. Only an established connection can be healthy or
// stale; connecting, reconnecting, failed, and stopped streams are down.
func Evaluate(state model.ConnectionState, activityAge, staleThreshold time.Duration) model.HealthStatus {
	if state != model.StateConnected {
		return model.HealthDown
	}
	if activityAge > staleThreshold {
		return model.HealthStale
	}
	return model.HealthHealthy
}

// Report builds the health snapshot for one stream. A stream that has never
// received a frame ages from its creation time.
func Report(p Probe, staleThreshold time.Duration) model.HealthReport {
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}

	last := p.LastActivity()
	if last.IsZero() {
		last = p.CreatedAt()
	}
	age := time.Since(last)
	state := p.State()

	return model.HealthReport{
		StreamID:        p.StreamID(),
		State:           state,
		Status:          Evaluate(state, age, staleThreshold),
		LastActivityAge: age,
		AttemptCount:    p.AttemptCount(),
	}
}
