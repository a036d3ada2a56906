package clockshim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRejectsNonPositiveFPS(t *testing.T) {
	_, err := Render(Params{FPS: 0})
	assert.Error(t, err)
}

func TestRenderIncludesEpsilonWhenEnabled(t *testing.T) {
	script, err := Render(Params{FPS: 30, DateNowEpsilon: true})
	require.NoError(t, err)
	assert.Contains(t, script, "dateNowEpsilonCalls")
	assert.Contains(t, script, "0.01")
}

func TestRenderOmitsEpsilonWhenDisabled(t *testing.T) {
	script, err := Render(Params{FPS: 30, DateNowEpsilon: false})
	require.NoError(t, err)
	assert.False(t, strings.Contains(script, "v += 0.01"))
}

func TestExpectedTimeAtIsFrameAccurate(t *testing.T) {
	for i := 0; i < 300; i++ {
		got := ExpectedTimeAt(0, 30, i)
		want := float64(i) * (1000.0 / 30.0)
		assert.InDelta(t, want, got, 1e-9)
	}
}

func TestClockStateNeverRegresses(t *testing.T) {
	cs := NewClockState(30, 0, 300)
	prev := cs.CurrentTimeMS
	for i := 0; i < 300; i++ {
		cs.Advance()
		assert.GreaterOrEqual(t, cs.CurrentTimeMS, prev)
		prev = cs.CurrentTimeMS
	}
	assert.Equal(t, 300, cs.FrameIndex)
}

func TestTimerIDsAreStrictlyNegative(t *testing.T) {
	cs := NewClockState(30, 0, 10)
	seen := map[int]bool{}
	for i := 0; i < 5; i++ {
		id := cs.NextTimerID()
		assert.Less(t, id, 0)
		assert.False(t, seen[id], "timer id reused: %d", id)
		seen[id] = true
	}
}

func TestDateNowEpsilonIsMonotonicWithinTick(t *testing.T) {
	cs := NewClockState(30, 1000, 10)
	a := cs.DateNow(1, true)
	b := cs.DateNow(2, true)
	assert.Greater(t, b, a)
}

func TestDateNowWithoutEpsilonIsStable(t *testing.T) {
	cs := NewClockState(30, 1000, 10)
	a := cs.DateNow(1, false)
	b := cs.DateNow(2, false)
	assert.Equal(t, a, b)
}
