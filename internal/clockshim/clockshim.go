// Package clockshim renders the in-page virtual clock and API shim
// described in spec.md §4.1 (C1). The shim itself runs as injected
// JavaScript inside the page; this package is the Go-side single source
// of truth for its parameters, built the way internal/vod/ffmpeg_builder.go
// builds an ffmpeg argument list from one typed input struct instead of
// string concatenation sprinkled across callers.
package clockshim

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

//go:embed clockshim.js.tmpl
var shimTemplateSource string

var shimTemplate = template.Must(template.New("clockshim").Parse(shimTemplateSource))

// Params parameterizes the generated shim script.
type Params struct {
	// FPS sets the shim's frame interval (1000/FPS), the step by which the
	// script's ____advanceVirtualClock moves the virtual clock on every
	// capture tick.
	FPS int

	// DateNowEpsilon enables the `+0.01` per-call monotonic nudge to
	// Date.now() that some animation libraries require to see strictly
	// increasing timestamps within one virtual tick (spec.md §4.1, §9
	// Open Questions). Default true; exposed so a caller whose page
	// doesn't need it can turn off the (tiny) behavioral deviation from
	// a real clock.
	DateNowEpsilon bool
}

// Render produces the JavaScript source to inject at document-start,
// before any page script runs, per spec.md §4.4 ("pre-injects, in
// document-start order, the adapter and capture context source").
func Render(p Params) (string, error) {
	if p.FPS <= 0 {
		return "", fmt.Errorf("clockshim: fps must be positive, got %d", p.FPS)
	}
	var buf bytes.Buffer
	if err := shimTemplate.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("clockshim: render: %w", err)
	}
	return buf.String(), nil
}

// ClockState mirrors the in-page virtual clock state (spec.md §3) for
// host-side reasoning and tests. The page is the actual owner; this type
// exists so invariants (frame-accurate virtual time, negative timer IDs,
// monotonic currentTime) can be asserted against in Go tests without a
// browser, and so capturectx can predict the tick sequence it will drive
// the page through.
type ClockState struct {
	CurrentTimeMS   float64
	FrameIndex      int
	FrameIntervalMS float64
	FrameCountTarget int
	StartTimeWallMS float64
	nextTimerID     int
}

// NewClockState constructs the initial state for a capture run.
func NewClockState(fps int, startTimeWallMS float64, frameCountTarget int) ClockState {
	return ClockState{
		FrameIntervalMS:  1000 / float64(fps),
		FrameCountTarget: frameCountTarget,
		StartTimeWallMS:  startTimeWallMS,
		nextTimerID:      -1,
	}
}

// NextTimerID returns the next strictly-negative virtualized timer ID,
// distinct from any real (positive) timer ID the page may also hold
// (spec.md §3 invariant 4).
func (c *ClockState) NextTimerID() int {
	id := c.nextTimerID
	c.nextTimerID--
	return id
}

// Advance moves the virtual clock forward by exactly one frame interval.
// It never regresses (spec.md §3 invariant: "currentTime never regresses").
func (c *ClockState) Advance() {
	c.CurrentTimeMS += c.FrameIntervalMS
	c.FrameIndex++
}

// ExpectedTimeAt returns the expected virtual time at the given tick,
// per spec.md §8 invariant 1: startTime + i*(1000/fps), stable to ~1 ULP.
func ExpectedTimeAt(startTimeMS float64, fps int, tick int) float64 {
	return startTimeMS + float64(tick)*(1000/float64(fps))
}

// DateNow returns startTime_wall + currentTime, optionally nudged by the
// monotonic epsilon compatibility shim (spec.md §4.1).
func (c *ClockState) DateNow(epsilonCallCount int, enableEpsilon bool) float64 {
	v := c.StartTimeWallMS + c.CurrentTimeMS
	if enableEpsilon {
		v += 0.01 * float64(epsilonCallCount)
	}
	return v
}
