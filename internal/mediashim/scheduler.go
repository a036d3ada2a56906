package mediashim

// Decision is the outcome of one scheduler step for one media, mirroring
// the in-page per-frame algorithm of spec.md §4.2:
//
//	if canDestroy(t) -> destroy
//	else if !canPlay(t) -> skip
//	else if !isReady() -> load (skip frame on failure, mark dead)
//	else -> seek(t - startTime - offsetTime)
type Decision int

const (
	DecisionSkip Decision = iota
	DecisionDestroy
	DecisionLoad
	DecisionSeek
)

// MediaState tracks the host-side mirror of one scheduled media's
// lifecycle: readiness, death, and cumulative loop offset. Real
// readiness/decoder-failure signals originate in the page; tests drive
// this type directly to assert the decision table without a browser.
type MediaState struct {
	Descriptor
	Ready      bool
	Dead       bool
	OffsetTime float64
}

// Step runs one scheduler tick and returns the decision plus the seek
// target when the decision is DecisionSeek (spec.md §4.2).
func (m *MediaState) Step(t float64) (Decision, float64) {
	if m.canDestroy(t) {
		return DecisionDestroy, 0
	}
	if !m.canPlay(t) {
		return DecisionSkip, 0
	}
	if !m.Ready {
		return DecisionLoad, 0
	}
	return DecisionSeek, t - m.StartTime - m.OffsetTime
}

// canDestroy reports whether a media should be torn down: it has gone
// dead (decoder/load failure with no retries left) or time has moved
// past its clamped window entirely.
func (m *MediaState) canDestroy(t float64) bool {
	return m.Dead || t >= m.EndTime
}

// canPlay reports whether t falls within this media's eligible window
// (spec.md §3 "Eligible").
func (m *MediaState) canPlay(t float64) bool {
	return m.Eligible(t)
}

// Loop applies spec.md §4.2's loop-wrap rule: "a media that reaches its
// end with loop=true increments offsetTime cumulative and resets decoder
// state." Callers invoke this when a seek lands past the source's own
// duration; it does not inspect Dead/Ready so it composes with Step's
// next call without special-casing.
func (m *MediaState) Loop(sourceDurationMS float64) {
	if !m.Descriptor.Loop {
		m.Dead = true
		return
	}
	m.OffsetTime += sourceDurationMS
	m.Ready = false
}

// FrameBuffer mirrors VideoCanvas's acquireFrame cache (spec.md §4.2,
// §8 invariant: "at most one frame retained per index; consumed entries
// are nilled; decodedFrameIndex never exceeds frameCount"). The decoder
// onOutput path calls Store as frames arrive; the render path calls
// Take to consume exactly one frame per acquireFrame(i) call.
type FrameBuffer struct {
	frames          map[int][]byte
	decodedFrameIndex int
	frameCount      int
}

// NewFrameBuffer constructs an empty buffer bounded to frameCount
// decodable indices.
func NewFrameBuffer(frameCount int) *FrameBuffer {
	return &FrameBuffer{frames: make(map[int][]byte), frameCount: frameCount}
}

// Store records a decoded frame at index i, tagging it as the decoder's
// onOutput callback does with decodedFrameIndex++. A frame whose index
// would exceed frameCount is dropped, preserving the invariant that
// decodedFrameIndex never exceeds frameCount.
func (f *FrameBuffer) Store(i int, data []byte) {
	if i >= f.frameCount {
		return
	}
	if i+1 > f.decodedFrameIndex {
		f.decodedFrameIndex = i + 1
	}
	f.frames[i] = data
}

// Take consumes and nils the frame at index i, returning ok=false if no
// frame is cached there yet (the caller must park and wait, per
// acquireFrame's "parks the request" behavior).
func (f *FrameBuffer) Take(i int) ([]byte, bool) {
	data, ok := f.frames[i]
	if ok {
		delete(f.frames, i)
	}
	return data, ok
}

// DecodedFrameIndex reports one past the highest index stored so far, for
// tests asserting the "never exceeds frameCount" invariant.
func (f *FrameBuffer) DecodedFrameIndex() int {
	return f.decodedFrameIndex
}
