package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	fc := &fakeClock{now: time.Unix(0, 0)}
	cb := New("browser-launch", 3, 3, time.Minute, 5*time.Second, WithClock(fc))

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return assert.AnError })
		require.Error(t, err)
	}

	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	fc := &fakeClock{now: time.Unix(0, 0)}
	cb := New("download", 2, 2, time.Minute, 10*time.Second, WithClock(fc), WithHalfOpenSuccessThreshold(2))

	require.Error(t, cb.Execute(func() error { return assert.AnError }))
	require.Error(t, cb.Execute(func() error { return assert.AnError }))
	require.Equal(t, StateOpen, cb.GetState())

	fc.now = fc.now.Add(11 * time.Second)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.GetState())

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	fc := &fakeClock{now: time.Unix(0, 0)}
	cb := New("download", 1, 1, time.Minute, 5*time.Second, WithClock(fc))

	require.Error(t, cb.Execute(func() error { return assert.AnError }))
	require.Equal(t, StateOpen, cb.GetState())

	fc.now = fc.now.Add(6 * time.Second)
	require.Error(t, cb.Execute(func() error { return assert.AnError }))
	assert.Equal(t, StateOpen, cb.GetState())
}
