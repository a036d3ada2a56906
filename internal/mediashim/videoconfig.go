package mediashim

import "encoding/json"

// VideoConfig is the JSON clone of a VideoCanvas element's configuration
// the page POSTs to `/api/video_preprocess` (spec.md §4.2, §4.4).
// internal/pagedriver decodes it off the intercepted request body and
// hands it to C7 (internal/preprocessor).
type VideoConfig struct {
	Src             string  `json:"src"`
	MaskSrc         string  `json:"maskSrc,omitempty"`
	Format          string  `json:"format,omitempty"`
	StartTime       float64 `json:"startTime,omitempty"`
	EndTime         float64 `json:"endTime,omitempty"`
	SeekStart       float64 `json:"seekStart,omitempty"`
	SeekEnd         float64 `json:"seekEnd,omitempty"`
	FadeInDuration  float64 `json:"fadeInDuration,omitempty"`
	FadeOutDuration float64 `json:"fadeOutDuration,omitempty"`
	Loop            bool    `json:"loop,omitempty"`
	Volume          float64 `json:"volume,omitempty"`
	RetryFetchs     int     `json:"retryFetchs,omitempty"`
	IgnoreCache     bool    `json:"ignoreCache,omitempty"`
}

// BlobRef is a reference into a packed payload's raw binary segment,
// shaped `["name", startOffset, endOffset]` per spec.md §6 "Preprocessor
// payload format".
type BlobRef struct {
	Name  string
	Start int
	End   int
}

// MarshalJSON encodes a BlobRef as the 3-element array the format names.
func (b BlobRef) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{b.Name, b.Start, b.End})
}

// UnmarshalJSON decodes the 3-element array form back into a BlobRef.
func (b *BlobRef) UnmarshalJSON(data []byte) error {
	var raw [3]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &b.Name); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[1], &b.Start); err != nil {
		return err
	}
	return json.Unmarshal(raw[2], &b.End)
}

// PreprocessResult is the JSON descriptor half of a packed payload
// (spec.md §4.2). Buffer, MaskBuffer and AudioBuffer are blob references
// into the binary segment that follows the JSON header. MaskBuffer is
// present only when the VideoConfig named a mask source (MaskSrc); the
// main source's ALPHA_MODE tag is not inspected.
type PreprocessResult struct {
	Buffer      BlobRef  `json:"buffer"`
	MaskBuffer  *BlobRef `json:"maskBuffer,omitempty"`
	AudioBuffer *BlobRef `json:"audioBuffer,omitempty"`
	Codec       string   `json:"codec"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	FPS         float64  `json:"fps"`
	FrameCount  int      `json:"frameCount"`
	HasMask     bool     `json:"hasMask"`
	HasAudio    bool     `json:"hasAudio"`
	HasClip     bool     `json:"hasClip"`
}

// HasMaskTrack reports whether this result carries an alpha track.
func (r PreprocessResult) HasMaskTrack() bool {
	return r.MaskBuffer != nil
}

// MatchesDimensions reports whether two decoder configs agree on the
// fields spec.md §4.2 requires to match between main and mask tracks:
// "codedWidth, codedHeight, frameCount, fps; mismatch is fatal."
func (r PreprocessResult) MatchesDimensions(other PreprocessResult) bool {
	return r.Width == other.Width &&
		r.Height == other.Height &&
		r.FrameCount == other.FrameCount &&
		r.FPS == other.FPS
}
