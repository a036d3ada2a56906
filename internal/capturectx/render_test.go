package capturectx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRejectsInvalidConfig(t *testing.T) {
	_, err := Render(Config{FPS: 0, DurationMS: 1000})
	assert.Error(t, err)
}

func TestRenderEmbedsDerivedFrameCount(t *testing.T) {
	script, err := Render(Config{FPS: 30, DurationMS: 1000})
	require.NoError(t, err)
	assert.Contains(t, script, "frameCount: 30")
}

func TestRenderEmbedsExplicitFrameCountOverDerived(t *testing.T) {
	script, err := Render(Config{FPS: 30, DurationMS: 1000, FrameCount: 45})
	require.NoError(t, err)
	assert.Contains(t, script, "frameCount: 45")
}

func TestRenderIncludesHardwareAccelerationHint(t *testing.T) {
	script, err := Render(Config{FPS: 30, DurationMS: 1000, VideoDecoderHardwareAcceleration: "prefer-hardware"})
	require.NoError(t, err)
	assert.Contains(t, script, "prefer-hardware")
}
