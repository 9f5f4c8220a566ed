package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSchedule(t *testing.T) {
	p := New(1*time.Second, 5, 0) // jitter off for exact values

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}

	for i, wantDelay := range want {
		attempt := i + 1
		delay, giveUp := p.Next(attempt)
		require.False(t, giveUp, "attempt %d must not give up", attempt)
		assert.Equal(t, wantDelay, delay, "attempt %d", attempt)
	}
}

func TestNextGivesUpPastMaxAttempts(t *testing.T) {
	p := Default()

	for _, attempt := range []int{6, 7, 10, 100} {
		delay, giveUp := p.Next(attempt)
		assert.True(t, giveUp, "attempt %d must give up", attempt)
		assert.Zero(t, delay, "attempt %d", attempt)
	}
}

func TestNextJitterBounds(t *testing.T) {
	p := Default()

	// Lowest possible draw lands exactly on the -20% floor.
	p.randInt64N = func(n int64) int64 { return 0 }
	delay, giveUp := p.Next(3)
	require.False(t, giveUp)
	assert.Equal(t, time.Duration(float64(4*time.Second)*0.8), delay)

	// Highest possible draw stays strictly under the +20% ceiling.
	p.randInt64N = func(n int64) int64 { return n - 1 }
	delay, _ = p.Next(3)
	assert.Less(t, delay, time.Duration(float64(4*time.Second)*1.2)+time.Nanosecond)
	assert.Greater(t, delay, 4*time.Second)
}

func TestNextJitterStaysInRange(t *testing.T) {
	p := Default()

	for attempt := 1; attempt <= 5; attempt++ {
		nominal := DefaultBase << (attempt - 1)
		lo := time.Duration(float64(nominal) * 0.8)
		hi := time.Duration(float64(nominal) * 1.2)

		for i := 0; i < 200; i++ {
			delay, giveUp := p.Next(attempt)
			require.False(t, giveUp)
			assert.GreaterOrEqual(t, delay, lo, "attempt %d", attempt)
			assert.LessOrEqual(t, delay, hi, "attempt %d", attempt)
		}
	}
}

func TestNextClampsLowAttempts(t *testing.T) {
	p := New(1*time.Second, 5, 0)

	for _, attempt := range []int{0, -1} {
		delay, giveUp := p.Next(attempt)
		assert.False(t, giveUp)
		assert.Equal(t, 1*time.Second, delay, "attempt %d treated as first retry", attempt)
	}
}

func TestNewFallsBackToDefaults(t *testing.T) {
	p := New(0, 0, -1)
	assert.Equal(t, DefaultBase, p.Base)
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultJitter, p.Jitter)
	require.NotNil(t, p.randInt64N)
}
