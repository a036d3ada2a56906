package synthesizer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webvideocreator/wvc/internal/audiomixer"
	"github.com/webvideocreator/wvc/internal/encoder"
	"github.com/webvideocreator/wvc/internal/pagedriver"
)

func chunk(path string, dur time.Duration, tr *Transition) VideoChunk {
	return VideoChunk{
		OutputPath: path, Width: 1280, Height: 720, FPS: 30,
		Duration: dur, VideoEncoder: encoder.CodecLibx264, Transition: tr,
	}
}

func TestEffectiveDurationNoTransition(t *testing.T) {
	c := chunk("a.ts", 5*time.Second, nil)
	assert.Equal(t, 5*time.Second, c.EffectiveDuration())
}

func TestEffectiveDurationWithTransition(t *testing.T) {
	c := chunk("a.ts", 5*time.Second, &Transition{ID: TransitionFade, Duration: time.Second})
	assert.Equal(t, 4*time.Second, c.EffectiveDuration())
}

func TestAddChunkRejectsDimensionMismatch(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.AddChunk(chunk("a.ts", time.Second, nil)))
	bad := chunk("b.ts", time.Second, nil)
	bad.Width = 640
	assert.Error(t, s.AddChunk(bad))
}

func TestAddChunkRejectsNonChunkableEncoder(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.AddChunk(chunk("a.ts", time.Second, nil)))
	bad := chunk("b.ts", time.Second, nil)
	bad.VideoEncoder = encoder.CodecLibvpx
	assert.Error(t, s.AddChunk(bad))
}

func TestAddChunkRejectsOversizedTransition(t *testing.T) {
	// spec.md §8: "Chunks with transitions whose duration > min(neighbor.duration)
	// should fail config validation early."
	s := New(Config{})
	require.NoError(t, s.AddChunk(chunk("a.ts", 1*time.Second, &Transition{ID: TransitionFade, Duration: 2 * time.Second})))
	err := s.AddChunk(chunk("b.ts", 5*time.Second, nil))
	assert.Error(t, err)
}

func TestAddChunkRejectsUnknownTransition(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.AddChunk(chunk("a.ts", 5*time.Second, &Transition{ID: "not-a-real-transition", Duration: time.Second})))
	err := s.AddChunk(chunk("b.ts", 5*time.Second, nil))
	assert.Error(t, err)
}

func TestOffsetsTwoChunkFade(t *testing.T) {
	// spec.md §8 scenario 4: two 5s chunks with a 1s FADE transition ->
	// second chunk's cumulative offset is 4s (5s - 1s transition).
	s := New(Config{})
	require.NoError(t, s.AddChunk(chunk("a.ts", 5*time.Second, &Transition{ID: TransitionFade, Duration: time.Second})))
	require.NoError(t, s.AddChunk(chunk("b.ts", 5*time.Second, nil)))

	offs := s.Offsets()
	require.Len(t, offs, 2)
	assert.Equal(t, time.Duration(0), offs[0])
	assert.Equal(t, 4*time.Second, offs[1])
	assert.Equal(t, 9*time.Second, s.TotalDuration())
}

func TestOffsetAudiosShiftsStartAndEndTime(t *testing.T) {
	s := New(Config{})
	c0 := chunk("a.ts", 5*time.Second, &Transition{ID: TransitionFade, Duration: time.Second})
	c0.Audios = []audiomixer.Input{{AudioDescriptor: pagedriver.AudioDescriptor{StartTime: 500, EndTime: 2000}}}
	require.NoError(t, s.AddChunk(c0))

	c1 := chunk("b.ts", 5*time.Second, nil)
	c1.Audios = []audiomixer.Input{{AudioDescriptor: pagedriver.AudioDescriptor{StartTime: 100, EndTime: 300}}}
	require.NoError(t, s.AddChunk(c1))

	out := s.OffsetAudios()
	require.Len(t, out, 2)
	assert.Equal(t, float64(500), out[0].StartTime, "first chunk has zero offset")
	assert.Equal(t, float64(4100), out[1].StartTime, "second chunk offset by 4s == 4000ms")
	assert.Equal(t, float64(4300), out[1].EndTime)
}

func TestSetChunkAudiosBackfillsAfterAdd(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.AddChunk(chunk("a.ts", time.Second, nil)))

	audios := []audiomixer.Input{{AudioDescriptor: pagedriver.AudioDescriptor{StartTime: 100, EndTime: 300}}}
	require.NoError(t, s.SetChunkAudios(0, audios))

	out := s.OffsetAudios()
	require.Len(t, out, 1)
	assert.Equal(t, float64(100), out[0].StartTime)
}

func TestSetChunkAudiosRejectsOutOfRangeIndex(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.AddChunk(chunk("a.ts", time.Second, nil)))
	assert.Error(t, s.SetChunkAudios(5, nil))
}

func TestBuildGroupsSplitsOnTransitionsOnly(t *testing.T) {
	chunks := []VideoChunk{
		chunk("a.ts", time.Second, nil),
		chunk("b.ts", time.Second, &Transition{ID: TransitionFade, Duration: 200 * time.Millisecond}),
		chunk("c.ts", time.Second, nil),
	}
	groups := buildGroups(chunks)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"a.ts", "b.ts"}, groups[0].paths)
	assert.Equal(t, []string{"c.ts"}, groups[1].paths)
}

func TestGroupInputUsesConcatProtocolForMultiChunkGroup(t *testing.T) {
	g := group{paths: []string{"a.ts", "b.ts"}}
	assert.Equal(t, "concat:a.ts|b.ts", g.input())

	single := group{paths: []string{"a.ts"}}
	assert.Equal(t, "a.ts", single.input())
}

func TestBuildSpliceArgsNoTransitionsSingleGroup(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.AddChunk(chunk("a.ts", time.Second, nil)))
	require.NoError(t, s.AddChunk(chunk("b.ts", time.Second, nil)))

	args, err := s.BuildSpliceArgs("/tmp/out.mp4")
	require.NoError(t, err)
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "concat:a.ts|b.ts")
	assert.NotContains(t, joined, "xfade")
	assert.Contains(t, joined, "-map 0:v")
}

func TestBuildSpliceArgsWithTransitionUsesXfade(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.AddChunk(chunk("a.ts", 5*time.Second, &Transition{ID: TransitionFade, Duration: time.Second})))
	require.NoError(t, s.AddChunk(chunk("b.ts", 5*time.Second, nil)))

	args, err := s.BuildSpliceArgs("/tmp/out.mp4")
	require.NoError(t, err)
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "xfade=transition=fade:duration=1:offset=4")
	assert.Contains(t, joined, "-map [v1]")
}

func TestBuildSpliceArgsWithCoverOverlay(t *testing.T) {
	s := New(Config{CoverPath: "/tmp/cover.png"})
	require.NoError(t, s.AddChunk(chunk("a.ts", time.Second, nil)))

	args, err := s.BuildSpliceArgs("/tmp/out.mp4")
	require.NoError(t, err)
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "overlay=repeatlast=0")
	assert.Contains(t, joined, "-map [vout]")
}

func TestBuildSpliceArgsNoChunksErrors(t *testing.T) {
	s := New(Config{})
	_, err := s.BuildSpliceArgs("/tmp/out.mp4")
	assert.Error(t, err)
}

func TestTransitionValidVocabulary(t *testing.T) {
	assert.True(t, TransitionFade.Valid())
	assert.True(t, TransitionPixelize.Valid())
	assert.False(t, TransitionID("made-up").Valid())
}
