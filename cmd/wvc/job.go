package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/webvideocreator/wvc/internal/encoder"
	"github.com/webvideocreator/wvc/internal/synthesizer"
)

// jobScene is one JSON-file entry describing a page to capture and
// chunk-encode (render.Scene without the internal types a job file
// can't express directly).
type jobScene struct {
	URL          string  `json:"url"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	FPS          int     `json:"fps"`
	DurationMS   float64 `json:"durationMs"`
	VideoEncoder string  `json:"videoEncoder"`
	Transition   *struct {
		ID         string `json:"id"`
		DurationMS int    `json:"durationMs"`
	} `json:"transition,omitempty"`
}

// job is the CLI's render request: one or more scenes spliced into a
// single output file, per spec.md §4.9's multi-chunk synthesis.
type job struct {
	RunID       string     `json:"runId"`
	OutputPath  string     `json:"outputPath"`
	CoverPath   string     `json:"coverPath,omitempty"`
	AudioCodec  string     `json:"audioCodec,omitempty"`
	VideoVolume float64    `json:"videoVolume,omitempty"`
	Scenes      []jobScene `json:"scenes"`
}

func loadJob(path string) (job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return job{}, fmt.Errorf("read job file: %w", err)
	}
	var j job
	if err := json.Unmarshal(data, &j); err != nil {
		return job{}, fmt.Errorf("parse job file: %w", err)
	}
	if len(j.Scenes) == 0 {
		return job{}, fmt.Errorf("job must list at least one scene")
	}
	if j.OutputPath == "" {
		return job{}, fmt.Errorf("job.outputPath is required")
	}
	if j.AudioCodec == "" {
		j.AudioCodec = string(encoder.AudioAAC)
	}
	if j.VideoVolume == 0 {
		j.VideoVolume = 100
	}
	return j, nil
}

func (s jobScene) transition() *synthesizer.Transition {
	if s.Transition == nil {
		return nil
	}
	return &synthesizer.Transition{
		ID:       synthesizer.TransitionID(s.Transition.ID),
		Duration: time.Duration(s.Transition.DurationMS) * time.Millisecond,
	}
}
