// Package synthesizer implements the Chunk Synthesizer (C10): it orders
// VideoChunks, offsets each chunk's audio descriptors by the cumulative
// effective duration of the chunks before it, builds the Xfade/concat
// splice graph across chunk boundaries, and delegates the final audio
// mix to internal/audiomixer. Grounded on internal/vod/manager.go's
// exactly-once job orchestration (Manager/Run, a done channel per job),
// adapted from "one VOD build per ID" to "one chunk encode per chunk,
// joined before the final splice".
package synthesizer

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/webvideocreator/wvc/internal/audiomixer"
	"github.com/webvideocreator/wvc/internal/encoder"
	"github.com/webvideocreator/wvc/internal/metrics"
	"github.com/webvideocreator/wvc/internal/procgroup"
	"github.com/webvideocreator/wvc/internal/wlog"
)

// TransitionID is the fixed Xfade vocabulary spec.md §6 names.
type TransitionID string

// The full vocabulary forwarded to ffmpeg's xfade filter, verbatim from
// spec.md §6 "Transitions".
const (
	TransitionFade        TransitionID = "fade"
	TransitionWipeLeft    TransitionID = "wipeleft"
	TransitionWipeRight   TransitionID = "wiperight"
	TransitionWipeUp      TransitionID = "wipeup"
	TransitionWipeDown    TransitionID = "wipedown"
	TransitionSlideLeft   TransitionID = "slideleft"
	TransitionSlideRight  TransitionID = "slideright"
	TransitionSlideUp     TransitionID = "slideup"
	TransitionSlideDown   TransitionID = "slidedown"
	TransitionCircleCrop  TransitionID = "circlecrop"
	TransitionRectCrop    TransitionID = "rectcrop"
	TransitionDistance    TransitionID = "distance"
	TransitionFadeBlack   TransitionID = "fadeblack"
	TransitionFadeWhite   TransitionID = "fadewhite"
	TransitionRadial      TransitionID = "radial"
	TransitionSmoothLeft  TransitionID = "smoothleft"
	TransitionSmoothRight TransitionID = "smoothright"
	TransitionSmoothUp    TransitionID = "smoothup"
	TransitionSmoothDown  TransitionID = "smoothdown"
	TransitionCircleOpen  TransitionID = "circleopen"
	TransitionCircleClose TransitionID = "circleclose"
	TransitionVertOpen    TransitionID = "vertopen"
	TransitionVertClose   TransitionID = "vertclose"
	TransitionHorzOpen    TransitionID = "horzopen"
	TransitionHorzClose   TransitionID = "horzclose"
	TransitionDissolve    TransitionID = "dissolve"
	TransitionPixelize    TransitionID = "pixelize"
	TransitionDiagTL      TransitionID = "diagtl"
	TransitionDiagTR      TransitionID = "diagtr"
	TransitionDiagBL      TransitionID = "diagbl"
	TransitionDiagBR      TransitionID = "diagbr"
	TransitionHLSlice     TransitionID = "hlslice"
	TransitionHRSlice     TransitionID = "hrslice"
	TransitionVUSlice     TransitionID = "vuslice"
	TransitionVDSlice     TransitionID = "vdslice"
	TransitionHBlur       TransitionID = "hblur"
	TransitionFadeGrays   TransitionID = "fadegrays"
	TransitionWipeTL      TransitionID = "wipetl"
	TransitionWipeTR      TransitionID = "wipetr"
	TransitionWipeBL      TransitionID = "wipebl"
	TransitionWipeBR      TransitionID = "wipebr"
	TransitionSqueezeH    TransitionID = "squeezeh"
	TransitionSqueezeV    TransitionID = "squeezev"
	TransitionZoomIn      TransitionID = "zoomin"
	TransitionHLWind      TransitionID = "hlwind"
	TransitionHRWind      TransitionID = "hrwind"
	TransitionVUWind      TransitionID = "vuwind"
	TransitionVDWind      TransitionID = "vdwind"
	TransitionCoverLeft   TransitionID = "coverleft"
	TransitionCoverRight  TransitionID = "coverright"
	TransitionCoverUp     TransitionID = "coverup"
	TransitionCoverDown   TransitionID = "coverdown"
	TransitionRevealLeft  TransitionID = "revealleft"
	TransitionRevealRight TransitionID = "revealright"
	TransitionRevealUp    TransitionID = "revealup"
	TransitionRevealDown  TransitionID = "revealdown"
)

var validTransitions = map[TransitionID]bool{
	TransitionFade: true, TransitionWipeLeft: true, TransitionWipeRight: true,
	TransitionWipeUp: true, TransitionWipeDown: true, TransitionSlideLeft: true,
	TransitionSlideRight: true, TransitionSlideUp: true, TransitionSlideDown: true,
	TransitionCircleCrop: true, TransitionRectCrop: true, TransitionDistance: true,
	TransitionFadeBlack: true, TransitionFadeWhite: true, TransitionRadial: true,
	TransitionSmoothLeft: true, TransitionSmoothRight: true, TransitionSmoothUp: true,
	TransitionSmoothDown: true, TransitionCircleOpen: true, TransitionCircleClose: true,
	TransitionVertOpen: true, TransitionVertClose: true, TransitionHorzOpen: true,
	TransitionHorzClose: true, TransitionDissolve: true, TransitionPixelize: true,
	TransitionDiagTL: true, TransitionDiagTR: true, TransitionDiagBL: true, TransitionDiagBR: true,
	TransitionHLSlice: true, TransitionHRSlice: true, TransitionVUSlice: true, TransitionVDSlice: true,
	TransitionHBlur: true, TransitionFadeGrays: true,
	TransitionWipeTL: true, TransitionWipeTR: true, TransitionWipeBL: true, TransitionWipeBR: true,
	TransitionSqueezeH: true, TransitionSqueezeV: true, TransitionZoomIn: true,
	TransitionHLWind: true, TransitionHRWind: true, TransitionVUWind: true, TransitionVDWind: true,
	TransitionCoverLeft: true, TransitionCoverRight: true, TransitionCoverUp: true, TransitionCoverDown: true,
	TransitionRevealLeft: true, TransitionRevealRight: true, TransitionRevealUp: true, TransitionRevealDown: true,
}

// Valid reports whether id is in the fixed vocabulary spec.md §6 names.
func (id TransitionID) Valid() bool { return validTransitions[id] }

// Transition is spec.md §3's transition descriptor.
type Transition struct {
	ID       TransitionID
	Duration time.Duration
}

// VideoChunk is spec.md §3's per-scene unit: an encoded MPEG-TS
// intermediate plus the transition into the next chunk (if any) and the
// audio descriptors that were emitted while it captured.
type VideoChunk struct {
	OutputPath   string
	Width, Height int
	FPS          float64
	Duration     time.Duration
	VideoEncoder encoder.VideoCodec
	Transition   *Transition
	Audios       []audiomixer.Input
}

// EffectiveDuration is the glossary's "Effective chunk duration —
// duration − transition.duration; the contribution to the composite
// timeline" (spec.md §3, §8 invariant 6: "transitions attributed to the
// source of each boundary").
func (c VideoChunk) EffectiveDuration() time.Duration {
	if c.Transition == nil {
		return c.Duration
	}
	return c.Duration - c.Transition.Duration
}

// Synthesizer accumulates an ordered chunk list and coordinates their
// encoding, audio offsetting, and final splice+mix.
type Synthesizer struct {
	cfg Config

	mu     sync.Mutex
	chunks []VideoChunk
}

// Config bounds one synthesizer run.
type Config struct {
	FFmpegPath  string
	RunID       string
	CoverPath   string
	AudioCodec  encoder.AudioCodec
	VideoVolume float64
	OutputPath  string // final muxed file, after audio mix
}

// New constructs an empty Synthesizer.
func New(cfg Config) *Synthesizer {
	return &Synthesizer{cfg: cfg}
}

// AddChunk appends chunk after validating it against the chunks already
// present: width/height/fps must agree across all chunks (spec.md §4.9
// "Validates that all chunks share width/height/fps"), and a
// transition's duration must not exceed either neighbor's own duration
// (spec.md §8 "Chunks with transitions whose duration > min(neighbor.duration)
// should fail config validation early").
func (s *Synthesizer) AddChunk(chunk VideoChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chunks) > 0 {
		first := s.chunks[0]
		if chunk.Width != first.Width || chunk.Height != first.Height || chunk.FPS != first.FPS {
			return fmt.Errorf("synthesizer: chunk %s dimensions/fps (%dx%d@%g) disagree with first chunk (%dx%d@%g)",
				chunk.OutputPath, chunk.Width, chunk.Height, chunk.FPS, first.Width, first.Height, first.FPS)
		}
		if !chunk.VideoEncoder.Chunkable() {
			return fmt.Errorf("synthesizer: chunk %s encoder %s cannot back a chunk output (must be H264|H265|VP9)", chunk.OutputPath, chunk.VideoEncoder)
		}
		prev := s.chunks[len(s.chunks)-1]
		if prev.Transition != nil {
			if prev.Transition.Duration > prev.Duration || prev.Transition.Duration > chunk.Duration {
				return fmt.Errorf("synthesizer: transition duration %s exceeds a neighboring chunk's own duration", prev.Transition.Duration)
			}
			if !prev.Transition.ID.Valid() {
				return fmt.Errorf("synthesizer: unknown transition %q", prev.Transition.ID)
			}
		}
	}

	s.chunks = append(s.chunks, chunk)
	return nil
}

// SetChunkAudios attaches audio inputs to an already-added chunk. Audio
// descriptors only arrive off the page's OnAudio callback during capture,
// which completes after AddChunk (AddChunk must run first to validate
// dimensions before the chunk's encoder starts), so callers add the chunk
// with Audios nil and backfill it once capture for that chunk is done.
func (s *Synthesizer) SetChunkAudios(idx int, audios []audiomixer.Input) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.chunks) {
		return fmt.Errorf("synthesizer: chunk index %d out of range", idx)
	}
	s.chunks[idx].Audios = audios
	return nil
}

// Offsets returns, for each chunk in order, the cumulative effective
// duration of every chunk before it (spec.md §8 invariant 7: "its final
// startTime in the composite equals the descriptor's local startTime
// plus the chunk's cumulative offset").
func (s *Synthesizer) Offsets() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return offsets(s.chunks)
}

func offsets(chunks []VideoChunk) []time.Duration {
	out := make([]time.Duration, len(chunks))
	var cumulative time.Duration
	for i, c := range chunks {
		out[i] = cumulative
		cumulative += c.EffectiveDuration()
	}
	return out
}

// OffsetAudios returns chunk i's audio inputs with StartTime/EndTime
// shifted by the cumulative offset computed for that chunk, ready to
// hand to audiomixer.BuildFilterGraph for the spliced composite.
func (s *Synthesizer) OffsetAudios() []audiomixer.Input {
	s.mu.Lock()
	defer s.mu.Unlock()

	offs := offsets(s.chunks)
	var out []audiomixer.Input
	for i, c := range s.chunks {
		offsetMs := float64(offs[i].Milliseconds())
		for _, a := range c.Audios {
			shifted := a
			shifted.StartTime += offsetMs
			shifted.EndTime += offsetMs
			out = append(out, shifted)
		}
	}
	return out
}

// TotalDuration is spec.md §8 invariant 6: "total video duration equals
// Σ duration_i − Σ transition_i.duration".
func (s *Synthesizer) TotalDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, c := range s.chunks {
		total += c.EffectiveDuration()
	}
	return total
}

// EncodeChunk streams frames (pulled from framesFn until it returns
// ok=false) through a fresh C8 encoder into chunks[idx]'s OutputPath,
// reporting progress as a fraction of this chunk's frame budget scaled
// into the chunk stage's 95% share of overall progress (spec.md §4.9
// "Progress accounting: the chunk stage is 95% of overall progress").
func (s *Synthesizer) EncodeChunk(ctx context.Context, idx int, framesFn func() ([]byte, bool), totalFrameBudget int) error {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.chunks) {
		s.mu.Unlock()
		return fmt.Errorf("synthesizer: chunk index %d out of range", idx)
	}
	chunk := s.chunks[idx]
	s.mu.Unlock()

	enc, err := encoder.Start(ctx, s.cfg.FFmpegPath, encoder.BuildArgsInput{
		Width: chunk.Width, Height: chunk.Height, FPS: chunk.FPS,
		VideoEncoder: chunk.VideoEncoder,
		Container:    encoder.ContainerMPEGTS,
		OutputPath:   chunk.OutputPath,
	}, encoder.DefaultParallelWriteFrames)
	if err != nil {
		return fmt.Errorf("synthesizer: start chunk %d encoder: %w", idx, err)
	}

	var written int
	for {
		data, ok := framesFn()
		if !ok {
			break
		}
		if err := enc.WriteFrame(data); err != nil {
			_ = enc.Close(ctx)
			return fmt.Errorf("synthesizer: write frame to chunk %d: %w", idx, err)
		}
		written++
		if totalFrameBudget > 0 {
			ratio := 0.95 * float64(written) / float64(totalFrameBudget)
			metrics.SetChunkProgress(s.cfg.RunID, ratio)
		}
	}

	if err := enc.Close(ctx); err != nil {
		return fmt.Errorf("synthesizer: close chunk %d encoder: %w", idx, err)
	}
	return nil
}

// group is a maximal run of adjacent chunks joined by concat (no
// transition between them); the group's own Transition, if any, is the
// last chunk's transition into the NEXT group. duration is the RAW sum
// of the group's chunk durations (the length of its own video stream,
// before any trailing transition trims the composite), matching the
// length of the single ffmpeg input this group becomes.
type group struct {
	paths      []string
	duration   time.Duration
	transition *Transition
}

// effectiveDuration mirrors VideoChunk.EffectiveDuration at group
// granularity: the group's contribution to the composite timeline once
// its own trailing transition's overlap is accounted for.
func (g group) effectiveDuration() time.Duration {
	if g.transition == nil {
		return g.duration
	}
	return g.duration - g.transition.Duration
}

func buildGroups(chunks []VideoChunk) []group {
	var groups []group
	var cur group
	for _, c := range chunks {
		cur.paths = append(cur.paths, c.OutputPath)
		cur.duration += c.Duration
		if c.Transition != nil {
			cur.transition = c.Transition
			groups = append(groups, cur)
			cur = group{}
			continue
		}
	}
	if len(cur.paths) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// input returns the ffmpeg `-i` argument for one group: the bare
// path for a single-chunk group, or the concat-protocol join spec.md
// §4.9 names ("Adjacent chunks without transitions are merged via the
// concat protocol (concat:a.ts|b.ts|…) as a single input to the graph")
// for a multi-chunk group.
func (g group) input() string {
	if len(g.paths) == 1 {
		return g.paths[0]
	}
	return "concat:" + strings.Join(g.paths, "|")
}

// BuildSpliceArgs assembles the ffmpeg command line that splices s's
// chunks into one video-only intermediate (spec.md §4.9): a cascading
// Xfade graph across transition boundaries, concat-protocol merges
// between transition-free neighbors, and an optional cover overlay with
// `repeatlast=0` on the final output.
func (s *Synthesizer) BuildSpliceArgs(outputPath string) ([]string, error) {
	s.mu.Lock()
	chunks := append([]VideoChunk(nil), s.chunks...)
	s.mu.Unlock()

	if len(chunks) == 0 {
		return nil, fmt.Errorf("synthesizer: no chunks to splice")
	}

	groups := buildGroups(chunks)
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, g := range groups {
		args = append(args, "-i", g.input())
	}

	var filter strings.Builder
	lastLabel := "0:v"
	var cumulative time.Duration
	for i := 1; i < len(groups); i++ {
		prev := groups[i-1]
		d := prev.transition.Duration
		offset := cumulative + prev.duration - d
		outLabel := fmt.Sprintf("v%d", i)
		fmt.Fprintf(&filter, "[%s][%d:v]xfade=transition=%s:duration=%s:offset=%s[%s];",
			lastLabel, i, prev.transition.ID, formatSeconds(d), formatSeconds(offset), outLabel)
		// offset already equals cumulative_prev + prev.effectiveDuration(),
		// i.e. the position where prev's group ends in the merged timeline.
		cumulative = offset
		lastLabel = outLabel
	}

	finalLabel := lastLabel
	if s.cfg.CoverPath != "" {
		args = append(args, "-i", s.cfg.CoverPath)
		fmt.Fprintf(&filter, "[%s][%d:v]overlay=repeatlast=0[vout];", lastLabel, len(groups))
		finalLabel = "vout"
	}

	if filter.Len() > 0 {
		args = append(args, "-filter_complex", filter.String(), "-map", fmt.Sprintf("[%s]", finalLabel))
	} else {
		args = append(args, "-map", "0:v")
	}

	args = append(args, "-an", "-c:v", "libx264", "-preset", "medium", outputPath)
	return args, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// Splice runs the ffmpeg splice pass built by BuildSpliceArgs, producing
// a video-only file ready for the final audiomixer pass.
func (s *Synthesizer) Splice(ctx context.Context, outputPath string) error {
	args, err := s.BuildSpliceArgs(outputPath)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, ffmpegPathOrDefault(s.cfg.FFmpegPath), args...)
	procgroup.Set(cmd)

	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		wlog.WithContext(ctx, wlog.WithComponent("synthesizer")).Error().
			Err(err).Str("stderr_tail", tail(stderr.String(), 2000)).Msg("splice failed")
		return fmt.Errorf("synthesizer: splice: %w", err)
	}
	return nil
}

// Finalize splices every chunk then runs the single audiomixer pass
// over the spliced video-only stream and the accumulated, offset audio
// inputs, writing s.cfg.OutputPath.
func (s *Synthesizer) Finalize(ctx context.Context, splicedVideoPath string) error {
	if err := s.Splice(ctx, splicedVideoPath); err != nil {
		return err
	}
	metrics.SetChunkProgress(s.cfg.RunID, 0.95)

	err := audiomixer.Mix(ctx, audiomixer.Config{
		FFmpegPath:  s.cfg.FFmpegPath,
		VideoPath:   splicedVideoPath,
		Inputs:      s.OffsetAudios(),
		VideoVolume: s.cfg.VideoVolume,
		AudioCodec:  s.cfg.AudioCodec,
		Duration:    s.TotalDuration(),
		OutputPath:  s.cfg.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("synthesizer: finalize mix: %w", err)
	}
	metrics.SetChunkProgress(s.cfg.RunID, 1.0)
	return nil
}

func ffmpegPathOrDefault(p string) string {
	if p == "" {
		return "ffmpeg"
	}
	return p
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
