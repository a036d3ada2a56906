package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webvideocreator/wvc/internal/pagedriver"
)

func TestAttachAudioCollectorRecordsAddAudio(t *testing.T) {
	page := &pagedriver.Page{}
	c := attachAudioCollector(page)

	page.OnAudio(pagedriver.AudioDescriptor{ID: "a1", Source: "https://example.com/a.mp3", StartTime: 100, EndTime: 500})

	got := c.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "https://example.com/a.mp3", got[0].Path)
	assert.Equal(t, float64(500), got[0].EndTime)
}

func TestAttachAudioCollectorAppliesEndTimeUpdate(t *testing.T) {
	page := &pagedriver.Page{}
	c := attachAudioCollector(page)

	page.OnAudio(pagedriver.AudioDescriptor{ID: "a1", StartTime: 100, EndTime: 500})
	page.OnAudioEndTimeUpdate("a1", 900)

	got := c.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, float64(900), got[0].EndTime)
}

func TestAttachAudioCollectorIgnoresUnknownEndTimeUpdate(t *testing.T) {
	page := &pagedriver.Page{}
	c := attachAudioCollector(page)

	page.OnAudio(pagedriver.AudioDescriptor{ID: "a1", EndTime: 500})
	page.OnAudioEndTimeUpdate("does-not-exist", 900)

	got := c.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, float64(500), got[0].EndTime)
}

func TestAudioCollectorSnapshotIsACopy(t *testing.T) {
	page := &pagedriver.Page{}
	c := attachAudioCollector(page)
	page.OnAudio(pagedriver.AudioDescriptor{ID: "a1"})

	snap := c.snapshot()
	snap[0].ID = "mutated"

	assert.Equal(t, "a1", c.snapshot()[0].ID)
}
