package preprocessor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webvideocreator/wvc/internal/mediashim"
)

func TestBuildTranscodePlanDetectsWebM(t *testing.T) {
	p := &Preprocessor{}
	plan, err := p.buildTranscodePlan(context.Background(), "main.webm", "", mediashim.VideoConfig{Format: "video/webm"})
	require.NoError(t, err)
	assert.True(t, plan.needsH264)
	assert.False(t, plan.wantsAudio)
	assert.False(t, plan.wantsClip)
}

func TestBuildTranscodePlanIgnoresNonWebM(t *testing.T) {
	p := &Preprocessor{}
	plan, err := p.buildTranscodePlan(context.Background(), "main.mp4", "", mediashim.VideoConfig{Format: "video/mp4"})
	require.NoError(t, err)
	assert.False(t, plan.needsH264)
}

func TestBuildTranscodePlanWantsAudioWhenUnmuted(t *testing.T) {
	p := &Preprocessor{}
	plan, err := p.buildTranscodePlan(context.Background(), "main.mp4", "", mediashim.VideoConfig{Volume: 0.8})
	require.NoError(t, err)
	assert.True(t, plan.wantsAudio)
}

func TestBuildTranscodePlanSkipsAudioWhenMuted(t *testing.T) {
	p := &Preprocessor{}
	plan, err := p.buildTranscodePlan(context.Background(), "main.mp4", "", mediashim.VideoConfig{Volume: 0})
	require.NoError(t, err)
	assert.False(t, plan.wantsAudio)
}

func TestBuildTranscodePlanWantsClipOnSeek(t *testing.T) {
	p := &Preprocessor{}
	plan, err := p.buildTranscodePlan(context.Background(), "main.mp4", "", mediashim.VideoConfig{SeekStart: 500})
	require.NoError(t, err)
	assert.True(t, plan.wantsClip)

	plan, err = p.buildTranscodePlan(context.Background(), "main.mp4", "", mediashim.VideoConfig{SeekEnd: 2000})
	require.NoError(t, err)
	assert.True(t, plan.wantsClip)
}

func TestBuildTranscodePlanCarriesMaskPath(t *testing.T) {
	p := &Preprocessor{}
	plan, err := p.buildTranscodePlan(context.Background(), "main.mp4", "mask.webm", mediashim.VideoConfig{})
	require.NoError(t, err)
	assert.Equal(t, "mask.webm", plan.maskPath)
}

func TestFormatSeekSecondsConvertsMillisToSeconds(t *testing.T) {
	assert.Equal(t, "1.5", formatSeekSeconds(1500))
	assert.Equal(t, "0", formatSeekSeconds(0))
}
