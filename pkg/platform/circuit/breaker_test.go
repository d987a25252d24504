package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outcome is one recorded broker call: true for success.
type outcome bool

const (
	ok   outcome = true
	fail outcome = false
)

func record(b *Breaker, outcomes ...outcome) StateChange {
	var last StateChange
	for _, o := range outcomes {
		if o {
			_, last = b.RecordSuccess()
		} else {
			_, last = b.RecordFailure()
		}
	}
	return last
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		outcomes []outcome
		wantOpen bool
	}{
		{"starts closed", nil, nil, false},
		{"opens at the failure threshold", []Option{WithFailureThreshold(3)}, []outcome{fail, fail, fail}, true},
		{"stays closed below the threshold", []Option{WithFailureThreshold(3)}, []outcome{fail, fail}, false},
		{"success clears consecutive failures", []Option{WithFailureThreshold(3)}, []outcome{fail, fail, ok, fail, fail}, false},
		{"closes after enough successes", []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, []outcome{fail, ok, ok}, false},
		{"one success is not enough to close", []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, []outcome{fail, ok}, true},
		{"failure while open restarts the success count", []Option{WithFailureThreshold(1), WithSuccessThreshold(3)}, []outcome{fail, ok, ok, fail, ok, ok}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("flag-events", tt.opts...)
			record(b, tt.outcomes...)
			assert.Equal(t, tt.wantOpen, b.IsOpen())
		})
	}
}

func TestBreakerReportsStateChangesOnce(t *testing.T) {
	b := New("flag-events", WithFailureThreshold(1), WithSuccessThreshold(1))
	assert.Equal(t, "flag-events", b.Name())

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback, "open breaker keeps shedding")
	assert.False(t, change.Opened, "already open")

	change = record(b, ok)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReset(t *testing.T) {
	b := New("flag-events", WithFailureThreshold(1))
	record(b, fail)
	require.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
}

func TestBreakerAllowsOneProbeAfterCooldown(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := New("flag-events", WithFailureThreshold(1), WithCooldown(10*time.Second), WithClock(func() time.Time { return now }))

	assert.True(t, b.Allow())
	record(b, fail)
	assert.False(t, b.Allow(), "inside the cooldown")

	now = now.Add(11 * time.Second)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "next call waits for another cooldown")
}
