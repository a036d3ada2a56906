package mediashim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newState(start, end float64) *MediaState {
	return &MediaState{Descriptor: Descriptor{StartTime: start, EndTime: end}}
}

func TestStepSkipsBeforeWindow(t *testing.T) {
	m := newState(100, 200)
	decision, _ := m.Step(50)
	assert.Equal(t, DecisionSkip, decision)
}

func TestStepLoadsWhenNotReady(t *testing.T) {
	m := newState(0, 200)
	decision, _ := m.Step(10)
	assert.Equal(t, DecisionLoad, decision)
}

func TestStepSeeksWhenReady(t *testing.T) {
	m := newState(100, 200)
	m.Ready = true
	decision, target := m.Step(150)
	assert.Equal(t, DecisionSeek, decision)
	assert.Equal(t, 50.0, target)
}

func TestStepSeekSubtractsOffsetTime(t *testing.T) {
	m := newState(0, 1000)
	m.Ready = true
	m.OffsetTime = 300
	_, target := m.Step(500)
	assert.Equal(t, 200.0, target)
}

func TestStepDestroysDeadMedia(t *testing.T) {
	m := newState(0, 1000)
	m.Dead = true
	decision, _ := m.Step(10)
	assert.Equal(t, DecisionDestroy, decision)
}

func TestLoopWithoutLoopFlagMarksDead(t *testing.T) {
	m := newState(0, 1000)
	m.Loop(333)
	assert.True(t, m.Dead)
}

func TestLoopWithLoopFlagAccumulatesOffset(t *testing.T) {
	m := newState(0, 1000)
	m.Descriptor.Loop = true
	m.Ready = true
	m.Loop(333)
	assert.Equal(t, 333.0, m.OffsetTime)
	assert.False(t, m.Ready)
	assert.False(t, m.Dead)
}

func TestFrameBufferStoreAndTakeRetainsAtMostOne(t *testing.T) {
	fb := NewFrameBuffer(10)
	fb.Store(3, []byte("frame3"))
	fb.Store(3, []byte("frame3-again"))
	data, ok := fb.Take(3)
	assert.True(t, ok)
	assert.Equal(t, []byte("frame3-again"), data)

	_, ok = fb.Take(3)
	assert.False(t, ok, "consumed entries must be nilled")
}

func TestFrameBufferDecodedIndexNeverExceedsFrameCount(t *testing.T) {
	fb := NewFrameBuffer(5)
	fb.Store(4, []byte("last"))
	fb.Store(10, []byte("beyond"))
	assert.Equal(t, 5, fb.DecodedFrameIndex())
	_, ok := fb.Take(10)
	assert.False(t, ok, "frames beyond frameCount must be dropped")
}

func TestFrameBufferTakeMissingParksAsNotOK(t *testing.T) {
	fb := NewFrameBuffer(5)
	_, ok := fb.Take(2)
	assert.False(t, ok)
}
