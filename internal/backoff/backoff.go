// Package backoff computes reconnect delays for failed stream connections.
//
// The policy is a pure function of the consecutive-failure count: no shared
// state, no clock access, so reconnect behavior is testable without waiting
// out real delays.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Default schedule: 1s, 2s, 4s, 8s, 16s, then give up.
const (
	DefaultBase        = 1 * time.Second
	DefaultMaxAttempts = 5
	DefaultJitter      = 0.2
)

// Policy maps an attempt count to a retry delay and a give-up decision.
// The delay for attempt n is Base * 2^(n-1), with up to ±Jitter applied so
// simultaneous failures across many streams do not reconnect in lockstep.
type Policy struct {
	Base        time.Duration // delay before the first retry
	MaxAttempts int           // attempts allowed before giving up
	Jitter      float64       // fraction of the delay, e.g. 0.2 for ±20%

	// randInt64N is swapped out in tests for deterministic jitter.
	randInt64N func(n int64) int64
}

// New returns a Policy with the given schedule. Non-positive base or
// maxAttempts fall back to the defaults.
func New(base time.Duration, maxAttempts int, jitter float64) Policy {
	if base <= 0 {
		base = DefaultBase
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if jitter < 0 || jitter >= 1 {
		jitter = DefaultJitter
	}
	return Policy{
		Base:        base,
		MaxAttempts: maxAttempts,
		Jitter:      jitter,
		randInt64N:  rand.Int64N,
	}
}

// Default returns the standard schedule (1s base, 5 attempts, ±20% jitter).
func Default() Policy {
	return New(DefaultBase, DefaultMaxAttempts, DefaultJitter)
}

// Next returns the delay to wait before retry number attempt (1-based
// consecutive-failure count) and whether to give up instead. Attempts past
// MaxAttempts give up; the returned delay is then zero.
func (p Policy) Next(attempt int) (delay time.Duration, giveUp bool) {
	if attempt > p.MaxAttempts {
		return 0, true
	}
	if attempt < 1 {
		attempt = 1
	}

	delay = p.Base << (attempt - 1)

	if p.Jitter > 0 {
		// delay * (1-Jitter) + rand[0, 2*Jitter*delay) keeps the result
		// within ±Jitter of the nominal delay.
		spread := int64(float64(delay) * p.Jitter * 2)
		floor := time.Duration(float64(delay) * (1 - p.Jitter))
		if spread > 0 {
			rnd := p.randInt64N
			if rnd == nil {
				rnd = rand.Int64N
			}
			delay = floor + time.Duration(rnd(spread))
		}
	}

	return delay, false
}
