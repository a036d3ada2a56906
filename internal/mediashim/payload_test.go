package mediashim

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	buffer := []byte("main-track-bytes")
	mask := []byte("mask-track-bytes")
	refs := BlobsFor([]string{"buffer", "maskBuffer"}, [][]byte{buffer, mask})

	desc := PreprocessResult{
		Buffer:     refs[0],
		MaskBuffer: &refs[1],
		Codec:      "avc1.64001f",
		Width:      640,
		Height:     480,
		FPS:        30,
		FrameCount: 90,
	}

	packed, err := PackPayload(desc, buffer, mask)
	require.NoError(t, err)

	gotDesc, segment, err := UnpackPayload(bytes.NewReader(packed))
	require.NoError(t, err)
	assert.Equal(t, desc.Codec, gotDesc.Codec)
	assert.True(t, gotDesc.HasMaskTrack())

	gotBuffer, err := gotDesc.Buffer.Slice(segment)
	require.NoError(t, err)
	assert.Equal(t, buffer, gotBuffer)

	gotMask, err := gotDesc.MaskBuffer.Slice(segment)
	require.NoError(t, err)
	assert.Equal(t, mask, gotMask)
}

func TestPackPayloadWithoutMask(t *testing.T) {
	buffer := []byte("only-track")
	refs := BlobsFor([]string{"buffer"}, [][]byte{buffer})
	desc := PreprocessResult{Buffer: refs[0], Codec: "vp09.00.10.08", Width: 320, Height: 240, FPS: 24, FrameCount: 48}

	packed, err := PackPayload(desc, buffer)
	require.NoError(t, err)

	gotDesc, segment, err := UnpackPayload(bytes.NewReader(packed))
	require.NoError(t, err)
	assert.False(t, gotDesc.HasMaskTrack())

	got, err := gotDesc.Buffer.Slice(segment)
	require.NoError(t, err)
	assert.Equal(t, buffer, got)
}

func TestBlobSliceRejectsOutOfBounds(t *testing.T) {
	ref := BlobRef{Name: "buffer", Start: 0, End: 100}
	_, err := ref.Slice([]byte("short"))
	assert.Error(t, err)
}

func TestMatchesDimensionsDetectsFatalMismatch(t *testing.T) {
	main := PreprocessResult{Width: 640, Height: 480, FrameCount: 90, FPS: 30}
	mismatched := PreprocessResult{Width: 640, Height: 480, FrameCount: 89, FPS: 30}
	assert.True(t, main.MatchesDimensions(main))
	assert.False(t, main.MatchesDimensions(mismatched))
}

func TestBlobRefJSONShape(t *testing.T) {
	ref := BlobRef{Name: "buffer", Start: 3, End: 10}
	data, err := ref.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["buffer", 3, 10]`, string(data))

	var round BlobRef
	require.NoError(t, round.UnmarshalJSON(data))
	assert.Equal(t, ref, round)
}
