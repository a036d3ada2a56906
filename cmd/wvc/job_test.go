package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webvideocreator/wvc/internal/synthesizer"
)

func TestLoadJob(t *testing.T) {
	j, err := loadJob("testdata/job.example.json")
	require.NoError(t, err)
	require.Equal(t, "example-run", j.RunID)
	require.Len(t, j.Scenes, 2)
	require.Equal(t, "aac", j.AudioCodec)
	require.Equal(t, float64(100), j.VideoVolume)

	tr := j.Scenes[0].transition()
	require.NotNil(t, tr)
	require.Equal(t, synthesizer.TransitionFade, tr.ID)
	require.True(t, tr.ID.Valid())

	require.Nil(t, j.Scenes[1].transition())
}

func TestLoadJobRequiresOutputPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/job.json"
	contents := `{"scenes":[{"url":"https://x","width":1,"height":1,"fps":30,"durationMs":1000,"videoEncoder":"libx264"}]}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := loadJob(path)
	require.Error(t, err)
}

func TestLoadJobDefaultsRunID(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/job.json"
	contents := `{"outputPath":"out.mp4","scenes":[{"url":"https://x","width":1,"height":1,"fps":30,"durationMs":1000,"videoEncoder":"libx264"}]}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	j, err := loadJob(path)
	require.NoError(t, err)
	require.Empty(t, j.RunID)
}
