package mediashim

// Selector pairs a CSS selector fragment with the variant it converts to
// (spec.md §4.2 element discovery table). The adapter JS template ranges
// over Selectors to build its discovery query list, so this table is the
// single source of truth for both the Go and in-page sides.
type Selector struct {
	Variant Variant
	CSS     string
}

// Selectors is the closed discovery table spec.md §4.2 names. Order
// matters only in that canvas[*-capture] variants are listed alongside
// their source-element equivalents; the adapter treats every match the
// same regardless of table position.
var Selectors = []Selector{
	{VariantSvgAnimation, "svg:has(animate), svg:has(animateTransform), svg:has(animateMotion), svg:has(animateColor)"},
	{VariantInnerAudio, `audio[src$=".mp3"], audio[src*=".mp3?"], audio[src$=".ogg"], audio[src*=".ogg?"], audio[src$=".aac"], audio[src*=".aac?"], audio[capture]`},
	{VariantVideoCanvas, `video[src$=".mp4"], video[src*=".mp4?"], video[src$=".webm"], video[src*=".webm?"], video[src$=".mkv"], video[src*=".mkv?"], video[capture], canvas[video-capture]`},
	{VariantDynamicImage, `img[src$=".gif"], img[src*=".gif?"], img[src$=".webp"], img[src*=".webp?"], img[src$=".apng"], img[src*=".apng?"], img[capture], canvas[dyimage-capture]`},
	{VariantLottieCanvas, "lottie, canvas[lottie-capture]"},
}

// ForElement classifies a tag name against the fixed selector vocabulary.
// It is the host-side equivalent of the in-page discovery query, used by
// tests that assert the table's completeness without a DOM.
func ForElement(tag string, hasAttr func(name string) bool, srcSuffix func(suffixes ...string) bool) (Variant, bool) {
	switch tag {
	case "lottie":
		return VariantLottieCanvas, true
	case "canvas":
		switch {
		case hasAttr("video-capture"):
			return VariantVideoCanvas, true
		case hasAttr("dyimage-capture"):
			return VariantDynamicImage, true
		case hasAttr("lottie-capture"):
			return VariantLottieCanvas, true
		}
		return "", false
	case "audio":
		if hasAttr("capture") || srcSuffix(".mp3", ".ogg", ".aac") {
			return VariantInnerAudio, true
		}
	case "video":
		if hasAttr("capture") || srcSuffix(".mp4", ".webm", ".mkv") {
			return VariantVideoCanvas, true
		}
	case "img":
		if hasAttr("capture") || srcSuffix(".gif", ".webp", ".apng") {
			return VariantDynamicImage, true
		}
	case "svg":
		return VariantSvgAnimation, true
	}
	return "", false
}

// ForwardedProperties is the fixed vocabulary of DOM reads/writes the
// element proxy forwards from the original source reference to the
// replacement canvas (spec.md §6 "DOM element proxy surface").
var ForwardedProperties = []string{
	"textContent", "innerHTML", "innerText", "value", "style", "src",
	"classList", "className", "hidden", "attributes",
	"children", "childNodes", "firstChild", "firstElementChild", "lastChild", "lastElementChild",
	"addEventListener", "removeEventListener",
	"append", "prepend", "replaceChild", "replaceChildren", "removeChild", "before", "insertBefore",
	"scroll", "scrollBy", "scrollIntoView",
	"scrollTop", "scrollLeft", "scrollWidth", "scrollHeight",
	"offsetParent", "offsetTop", "offsetLeft", "offsetWidth", "offsetHeight",
	"clientWidth", "clientHeight", "clientTop", "clientLeft",
	"dataset", "matches", "closest",
	"getAttribute", "setAttribute", "removeAttribute", "hasAttribute", "getAttributeNames",
	"cloneNode", "nodeName", "nodeType", "nodeValue", "normalize", "getAnimations",
}

// VideoAttributes is the fixed vocabulary of element extensions the
// adapter recognizes on video sources (spec.md §6). Each entry lists the
// kebab-case HTML attribute name and its camelCase property alias.
type VideoAttribute struct {
	Kebab  string
	Camel  string
	Number bool // integer-string attribute vs boolean/string attribute
	Bool   bool
}

var VideoAttributes = []VideoAttribute{
	{Kebab: "start-time", Camel: "startTime", Number: true},
	{Kebab: "end-time", Camel: "endTime", Number: true},
	{Kebab: "seek-start", Camel: "seekStart", Number: true},
	{Kebab: "seek-end", Camel: "seekEnd", Number: true},
	{Kebab: "fade-in-duration", Camel: "fadeInDuration", Number: true},
	{Kebab: "fade-out-duration", Camel: "fadeOutDuration", Number: true},
	{Kebab: "loop", Camel: "loop", Bool: true},
	{Kebab: "autoplay", Camel: "autoplay", Bool: true},
	{Kebab: "muted", Camel: "muted", Bool: true},
	{Kebab: "volume", Camel: "volume", Number: true},
	{Kebab: "retry-fetchs", Camel: "retryFetchs", Number: true},
	{Kebab: "ignore-cache", Camel: "ignoreCache", Bool: true},
	{Kebab: "format", Camel: "format"},
	{Kebab: "_maskSrc", Camel: "maskSrc"},
	{Kebab: "capture", Camel: "capture", Bool: true},
}
