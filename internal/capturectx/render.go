package capturectx

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

//go:embed capturectx.js.tmpl
var loopTemplateSource string

var loopTemplate = template.Must(template.New("capturectx").Parse(loopTemplateSource))

// Render produces the capture loop's injected script for a validated
// Config. Frame count is resolved to its effective (possibly derived)
// value before templating, so the in-page loop never re-derives it and
// can never reproduce the source's buggy extra fps multiplication
// spec.md §9 calls out.
func Render(cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	cfg.FrameCount = cfg.EffectiveFrameCount()

	var buf bytes.Buffer
	if err := loopTemplate.Execute(&buf, cfg); err != nil {
		return "", fmt.Errorf("capturectx: render: %w", err)
	}
	return buf.String(), nil
}
