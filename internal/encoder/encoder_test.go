package encoder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveBitrate(t *testing.T) {
	// spec.md §4.7: "(2560·pixels/921600)·(quality/100) kbps"; at
	// 1280x720 (921600 px) and quality 100 the formula reduces to the
	// reference 2560kbps figure.
	got := DeriveBitrate(1280, 720, 100)
	assert.Equal(t, "2560k", got)
}

func TestDeriveBitrateHalfQuality(t *testing.T) {
	got := DeriveBitrate(1280, 720, 50)
	assert.Equal(t, "1280k", got)
}

func TestDeriveBitrateZeroQualityDefaultsTo100(t *testing.T) {
	assert.Equal(t, DeriveBitrate(1280, 720, 0), DeriveBitrate(1280, 720, 100))
}

func TestChunkableCodecs(t *testing.T) {
	// spec.md §3: "videoEncoder (must be H264|H265|VP9 for chunking)".
	assert.True(t, CodecLibx264.Chunkable())
	assert.True(t, CodecH264NVENC.Chunkable())
	assert.True(t, CodecLibx265.Chunkable())
	assert.True(t, CodecLibvpxVP9.Chunkable())
	assert.False(t, CodecLibvpx.Chunkable(), "VP8 is not chunkable")
}

func TestBitstreamFilterOnlyForMPEGTS(t *testing.T) {
	assert.Equal(t, "h264_mp4toannexb", BitstreamFilter(CodecLibx264, ContainerMPEGTS))
	assert.Equal(t, "hevc_mp4toannexb", BitstreamFilter(CodecLibx265, ContainerMPEGTS))
	assert.Equal(t, "vp9_superframe", BitstreamFilter(CodecLibvpxVP9, ContainerMPEGTS))
	assert.Empty(t, BitstreamFilter(CodecLibx264, ContainerMP4))
	assert.Empty(t, BitstreamFilter(CodecLibvpx, ContainerMPEGTS), "VP8 has no chunk bitstream filter")
}

func TestBuildArgsBaseline(t *testing.T) {
	args := BuildArgs(BuildArgsInput{
		Width: 1280, Height: 720, FPS: 30,
		VideoEncoder: CodecLibx264,
		PixelFormat:  "yuv420p",
		Container:    ContainerMP4,
		OutputPath:   "/tmp/out.mp4",
	})
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-f image2pipe")
	assert.Contains(t, joined, "-r 30")
	assert.Contains(t, joined, "-i pipe:0")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-b:v 2560k")
	assert.Contains(t, joined, "-pix_fmt yuv420p")
	assert.Contains(t, joined, "-profile:v main -preset medium")
	assert.Contains(t, joined, "-movflags +faststart")
	assert.True(t, strings.HasSuffix(joined, "/tmp/out.mp4"))
}

func TestBuildArgsChunkIncludesBitstreamFilter(t *testing.T) {
	args := BuildArgs(BuildArgsInput{
		Width: 1920, Height: 1080, FPS: 60,
		VideoEncoder: CodecLibx265,
		Container:    ContainerMPEGTS,
		OutputPath:   "/tmp/chunk_0.ts",
	})
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-bsf:v hevc_mp4toannexb")
	assert.Contains(t, joined, "-f mpegts")
}

func TestBuildArgsWithCoverOverlay(t *testing.T) {
	args := BuildArgs(BuildArgsInput{
		Width: 640, Height: 480, FPS: 24,
		VideoEncoder:    CodecLibvpxVP9,
		PixelFormat:     "yuva420p",
		Container:       ContainerWebM,
		AttachCoverPath: "/tmp/cover.png",
		OutputPath:      "/tmp/out.webm",
	})
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-i /tmp/cover.png")
	assert.Contains(t, joined, "-filter_complex")
	assert.Contains(t, joined, "scale=640:480")
	assert.Contains(t, joined, "-pix_fmt yuva420p")
	assert.NotContains(t, joined, "-profile:v", "VP9 has no H264/HEVC profile/preset pair")
}

func TestBuildArgsFormatFPSNonInteger(t *testing.T) {
	args := BuildArgs(BuildArgsInput{
		Width: 100, Height: 100, FPS: 29.97,
		VideoEncoder: CodecLibx264,
		Container:    ContainerMP4,
		OutputPath:   "/tmp/out.mp4",
	})
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-r 29.97")
}

func TestIsHardwareFailureDetectsKnownStderr(t *testing.T) {
	tail := []string{"frame=1", "Error while opening encoder for output stream #0:0 - maybe incorrect parameters"}
	require.True(t, isHardwareFailure(nil, tail))
}

func TestTranslateFailureRewritesHint(t *testing.T) {
	tail := []string{"Error while opening encoder for output stream #0:0"}
	err := translateFailure(assertErr{}, tail)
	assert.Contains(t, err.Error(), "hardware")
}

type assertErr struct{}

func (assertErr) Error() string { return "exit status 1" }
