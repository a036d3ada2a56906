package mediashim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAdapterDefaultsPreprocessURL(t *testing.T) {
	script, err := Render(AdapterParams{})
	require.NoError(t, err)
	assert.Contains(t, script, "/api/video_preprocess")
}

func TestRenderAdapterHonorsCustomPreprocessURL(t *testing.T) {
	script, err := Render(AdapterParams{PreprocessURL: "/custom/preprocess"})
	require.NoError(t, err)
	assert.Contains(t, script, "/custom/preprocess")
	assert.NotContains(t, script, "/api/video_preprocess")
}

func TestRenderAdapterEmbedsAllSelectorVariants(t *testing.T) {
	script, err := Render(AdapterParams{})
	require.NoError(t, err)
	for _, s := range Selectors {
		assert.Contains(t, script, string(s.Variant))
	}
}

func TestRenderAdapterEmbedsVideoAttributeVocabulary(t *testing.T) {
	script, err := Render(AdapterParams{})
	require.NoError(t, err)
	assert.Contains(t, script, "retryFetchs")
	assert.Contains(t, script, "fadeInDuration")
}

func TestRenderAdapterImplementsEveryDispatchVariant(t *testing.T) {
	script, err := Render(AdapterParams{})
	require.NoError(t, err)
	assert.Contains(t, script, "seekVideoCanvas")
	assert.Contains(t, script, "seekDynamicImage")
	assert.Contains(t, script, "seekLottieCanvas")
}

func TestVendorScriptsExposeRenamedGlobals(t *testing.T) {
	scripts := VendorScripts()
	require.Len(t, scripts, 2)
	joined := scripts[0] + scripts[1]
	assert.Contains(t, joined, "window.____MP4Box")
	assert.Contains(t, joined, "window.____lottie")
}
