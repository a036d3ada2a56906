package mediashim

// DynamicImageState mirrors the animated-image decoder driver spec.md
// §4.2 describes for DynamicImage: "Each seek(t) decodes frameIndex++
// unless (t - lastFrameTimestamp) < lastFrameDuration (in which case it
// re-uses the drawn frame). Loop semantics follow the file's repetition
// count unless loop is forced. Range-error from the decoder resets the
// sequence (accept one retry)."
type DynamicImageState struct {
	FrameIndex        int
	LastFrameTimestampMS float64
	LastFrameDurationMS  float64
	RepetitionCount   int // from the file; 0 means "loop forever" per GIF/WebP/APNG convention
	ForceLoop         bool
	retriesUsed       int
}

// ShouldDecode reports whether Seek(t) should advance the decoder
// (rather than re-drawing the already-decoded frame).
func (d *DynamicImageState) ShouldDecode(t float64) bool {
	return (t - d.LastFrameTimestampMS) >= d.LastFrameDurationMS
}

// Advance records that a new frame was decoded at virtual time t with
// the given display duration.
func (d *DynamicImageState) Advance(t, durationMS float64) {
	d.FrameIndex++
	d.LastFrameTimestampMS = t
	d.LastFrameDurationMS = durationMS
}

// Loops reports whether the sequence should wrap rather than stop once
// its native repetition count is exhausted.
func (d *DynamicImageState) Loops() bool {
	return d.ForceLoop || d.RepetitionCount == 0
}

// RecoverFromRangeError implements the one-retry-then-fail policy for a
// decoder range error. It returns false once the single retry has
// already been spent.
func (d *DynamicImageState) RecoverFromRangeError() bool {
	if d.retriesUsed > 0 {
		return false
	}
	d.retriesUsed++
	d.FrameIndex = 0
	d.LastFrameTimestampMS = 0
	d.LastFrameDurationMS = 0
	return true
}
