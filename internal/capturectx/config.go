// Package capturectx owns the capture loop configuration and the
// Go-side mirror of its lifecycle (spec.md §4.3, C3). Like clockshim and
// mediashim, the loop itself runs in-page; this package renders its
// script and exposes the typed knobs needed to predict its tick
// sequence host-side.
package capturectx

import (
	"fmt"
	"math"
)

// TimeActionPolicy controls how seekTimeActions resolves a tick against
// the pending sparse map, resolving the Open Question spec.md §9 raises
// about the source's ambiguous "smallest elapsed key" behavior.
type TimeActionPolicy int

const (
	// TimeActionSmallestElapsed preserves the literal source behavior:
	// exactly one action fires per tick, the one at the smallest key
	// <= currentTime, consumed (removed) on fire.
	TimeActionSmallestElapsed TimeActionPolicy = iota

	// TimeActionAllElapsed fires every pending action whose key is
	// <= currentTime, in ascending key order, each consumed on fire.
	// Opt-in surfacing of the "maybe this was the real intent" reading
	// spec.md §9 flags, without silently changing default behavior.
	TimeActionAllElapsed
)

// Config is the capture loop's parameter set (spec.md §4.3).
type Config struct {
	FPS         int
	StartTimeMS float64
	DurationMS  float64

	// FrameCount, if zero, is derived as
	// floor(DurationMS * FPS / 1000) -- spec.md §9's resolution of the
	// source's visibly buggy setDuration, which multiplied by an
	// undefined fps. Never compute this as DurationMS*FPS without the
	// /1000 division, and never reintroduce a second multiplication.
	FrameCount int

	Autostart bool

	// VideoDecoderHardwareAcceleration is forwarded verbatim to the
	// platform VideoDecoder config the media adapter constructs for
	// VideoCanvas (spec.md §4.2).
	VideoDecoderHardwareAcceleration string

	// TimeActionPolicy selects how seekTimeActions resolves pending
	// entries each tick. Defaults to TimeActionSmallestElapsed.
	TimeActionPolicy TimeActionPolicy

	// DateNowEpsilon mirrors clockshim.Params.DateNowEpsilon. Render does
	// not read it; the epsilon is applied by the clock shim script, which
	// is rendered from clockshim.Params.
	DateNowEpsilon bool
}

// FrameIntervalMS is 1000/fps, the duration of one virtual tick.
func (c Config) FrameIntervalMS() float64 {
	return 1000 / float64(c.FPS)
}

// EffectiveFrameCount returns c.FrameCount if set explicitly, else the
// derived value floor(duration_ms * fps / 1000).
func (c Config) EffectiveFrameCount() int {
	if c.FrameCount > 0 {
		return c.FrameCount
	}
	return int(c.DurationMS * float64(c.FPS) / 1000)
}

// Validate rejects configurations spec.md §7 "Config error" names:
// non-finite fps/duration/frameCount. Even pixel dimensions are
// validated by the encoder, which owns width/height.
func (c Config) Validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("capturectx: fps must be positive, got %d", c.FPS)
	}
	if math.IsNaN(c.DurationMS) || math.IsInf(c.DurationMS, 0) || c.DurationMS <= 0 {
		return fmt.Errorf("capturectx: duration_ms must be positive, got %f", c.DurationMS)
	}
	if c.FrameCount < 0 {
		return fmt.Errorf("capturectx: frameCount must not be negative, got %d", c.FrameCount)
	}
	return nil
}
