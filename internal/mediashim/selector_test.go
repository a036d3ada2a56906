package mediashim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForElementLottieTag(t *testing.T) {
	v, ok := ForElement("lottie", func(string) bool { return false }, func(...string) bool { return false })
	assert.True(t, ok)
	assert.Equal(t, VariantLottieCanvas, v)
}

func TestForElementCanvasAttributeRouting(t *testing.T) {
	v, ok := ForElement("canvas", func(name string) bool { return name == "video-capture" }, func(...string) bool { return false })
	assert.True(t, ok)
	assert.Equal(t, VariantVideoCanvas, v)
}

func TestForElementCanvasWithoutMarkerAttrIsUnmatched(t *testing.T) {
	_, ok := ForElement("canvas", func(string) bool { return false }, func(...string) bool { return false })
	assert.False(t, ok)
}

func TestForElementVideoBySuffix(t *testing.T) {
	v, ok := ForElement("video", func(string) bool { return false }, func(suffixes ...string) bool {
		for _, s := range suffixes {
			if s == ".mp4" {
				return true
			}
		}
		return false
	})
	assert.True(t, ok)
	assert.Equal(t, VariantVideoCanvas, v)
}

func TestForElementUnknownTagIsUnmatched(t *testing.T) {
	_, ok := ForElement("div", func(string) bool { return false }, func(...string) bool { return false })
	assert.False(t, ok)
}

func TestSelectorsCoverAllVariantsExceptNone(t *testing.T) {
	seen := map[Variant]bool{}
	for _, s := range Selectors {
		seen[s.Variant] = true
		assert.NotEmpty(t, s.CSS)
	}
	for _, v := range []Variant{VariantSvgAnimation, VariantInnerAudio, VariantVideoCanvas, VariantDynamicImage, VariantLottieCanvas} {
		assert.True(t, seen[v], "selector table missing entry for %s", v)
	}
}

func TestVideoAttributesCoverSpecVocabulary(t *testing.T) {
	want := []string{
		"startTime", "endTime", "seekStart", "seekEnd", "fadeInDuration", "fadeOutDuration",
		"loop", "autoplay", "muted", "volume", "retryFetchs", "ignoreCache", "format", "maskSrc", "capture",
	}
	got := map[string]bool{}
	for _, a := range VideoAttributes {
		got[a.Camel] = true
	}
	for _, w := range want {
		assert.True(t, got[w], "missing video attribute %s", w)
	}
}

func TestForwardedPropertiesIncludeCoreSurface(t *testing.T) {
	joined := strings.Join(ForwardedProperties, ",")
	for _, want := range []string{"textContent", "classList", "scrollIntoView", "dataset", "cloneNode", "getAnimations"} {
		assert.Contains(t, joined, want)
	}
}
