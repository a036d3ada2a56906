// Render produces the media adapter's injected script from the same
// selector/property tables the rest of this package exposes, so the
// in-page discovery query and the Go-side mirror can never drift apart.
package mediashim

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed adapter.js.tmpl
var adapterTemplateSource string

//go:embed vendor_mp4box.js
var vendorMP4BoxJS string

//go:embed vendor_lottie.js
var vendorLottieJS string

var adapterTemplate = template.Must(template.New("adapter").Funcs(template.FuncMap{
	"jsStringSlice": jsStringSlice,
}).Parse(adapterTemplateSource))

// VendorScripts returns the document-start scripts that must run before
// the adapter script itself: the MP4 box reader and Lottie renderer
// VideoCanvas and LottieCanvas call into (spec.md §4.4 "injects ... the
// MP4 box library, and the Lottie library, renamed off the global
// namespace"). Order does not matter between the two; both must precede
// the adapter script, which references window.____MP4Box/window.____lottie.
func VendorScripts() []string {
	return []string{vendorMP4BoxJS, vendorLottieJS}
}

// AdapterParams parameterizes the generated adapter script.
type AdapterParams struct {
	// PreprocessURL is the host-intercepted endpoint VideoCanvas POSTs
	// its VideoConfig clone to (spec.md §4.2, §4.4).
	PreprocessURL string
}

type selectorEntry struct {
	Variant string
	CSS     string
}

// Render builds the adapter script, embedding the CSS discovery
// selectors, the forwarded-property list, and the video attribute table
// verbatim from the Go tables above.
func Render(p AdapterParams) (string, error) {
	if p.PreprocessURL == "" {
		p.PreprocessURL = "/api/video_preprocess"
	}

	selectors := make([]selectorEntry, 0, len(Selectors))
	for _, s := range Selectors {
		selectors = append(selectors, selectorEntry{Variant: string(s.Variant), CSS: s.CSS})
	}

	data := struct {
		PreprocessURL  string
		Selectors      []selectorEntry
		ForwardedProps []string
		VideoAttrs     []VideoAttribute
	}{
		PreprocessURL:  p.PreprocessURL,
		Selectors:      selectors,
		ForwardedProps: ForwardedProperties,
		VideoAttrs:     VideoAttributes,
	}

	var buf bytes.Buffer
	if err := adapterTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mediashim: render adapter: %w", err)
	}
	return buf.String(), nil
}

func jsStringSlice(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
