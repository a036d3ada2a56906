package capturectx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmallestElapsedFiresOnlyOneKey(t *testing.T) {
	ta := NewTimeActions(TimeActionSmallestElapsed)
	ta.Add(100)
	ta.Add(200)
	ta.Add(300)

	fired := ta.Resolve(250)
	assert.Equal(t, []float64{100}, fired)
	assert.Equal(t, 2, ta.Len())
}

func TestSmallestElapsedConsumesFiredKey(t *testing.T) {
	ta := NewTimeActions(TimeActionSmallestElapsed)
	ta.Add(100)
	ta.Resolve(150)
	assert.Equal(t, 0, ta.Len())
	assert.Empty(t, ta.Resolve(150))
}

func TestAllElapsedFiresEveryElapsedKeyAscending(t *testing.T) {
	ta := NewTimeActions(TimeActionAllElapsed)
	ta.Add(300)
	ta.Add(100)
	ta.Add(200)

	fired := ta.Resolve(250)
	assert.Equal(t, []float64{100, 200}, fired)
	assert.Equal(t, 1, ta.Len())
}

func TestResolveIgnoresFutureKeys(t *testing.T) {
	ta := NewTimeActions(TimeActionAllElapsed)
	ta.Add(500)
	assert.Empty(t, ta.Resolve(100))
	assert.Equal(t, 1, ta.Len())
}

func TestResolveOnEmptySetReturnsNil(t *testing.T) {
	ta := NewTimeActions(TimeActionSmallestElapsed)
	assert.Nil(t, ta.Resolve(100))
}
