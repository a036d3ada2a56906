// Package audiomixer implements the Audio Mixer (C9): a second encoder
// pass that builds a complex filter graph from the render run's audio
// descriptors (trim/loop/delay/volume/fade per spec.md §4.8) and remuxes
// it against the video-only intermediate. Grounded on
// internal/infra/ffmpeg/runner.go's started-subprocess shape plus
// internal/vod/ffmpeg_builder.go's decision-tree-returns-args style for
// the filter-graph assembly.
package audiomixer

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/webvideocreator/wvc/internal/encoder"
	"github.com/webvideocreator/wvc/internal/pagedriver"
	"github.com/webvideocreator/wvc/internal/procgroup"
	"github.com/webvideocreator/wvc/internal/wlog"
)

// Input pairs one audio descriptor with the local file path C7 (or a
// host-side media file) resolved it to; the filter graph references the
// path as an ffmpeg `-i` input, the descriptor as the trim/fade/volume
// parameters.
type Input struct {
	pagedriver.AudioDescriptor
	Path string
}

// Config describes one mixing pass: the video-only intermediate plus
// every audio input to fold into it.
type Config struct {
	FFmpegPath  string
	VideoPath   string
	Inputs      []Input
	VideoVolume float64 // spec.md §4.8's "videoVolume" multiplier, 0..100; 100 is unity
	AudioCodec  encoder.AudioCodec
	Duration    time.Duration // clamps total output length to the final video length
	OutputPath  string
}

// BuildFilterGraph constructs the complex filter spec.md §4.8 documents
// literally:
//
//	[i+1]atrim=0:(endTime-startTime)/1000
//	     [,aloop=-1:2e9 if loop]
//	     ,adelay=startTime|startTime
//	     ,volume=(volume·videoVolume)/10000
//	     [,afade=in:st=startTime/1000:d=fadeIn/1000]
//	     [,afade=out:st=(loopEnd - fadeOut)/1000:d=fadeOut/1000]
//	     [a_i]
//
// followed by `[a_0]…[a_N]amix=inputs=N:normalize=0`. Returns "" when
// inputs is empty (no audio to mix).
func BuildFilterGraph(inputs []Input, videoVolume float64) string {
	if len(inputs) == 0 {
		return ""
	}
	if videoVolume == 0 {
		videoVolume = 100
	}

	var b strings.Builder
	labels := make([]string, 0, len(inputs))
	for i, in := range inputs {
		label := fmt.Sprintf("a_%d", i)
		labels = append(labels, label)

		fmt.Fprintf(&b, "[%d:a]atrim=0:%s", i+1, msToSeconds(in.EndTime-in.StartTime))
		if in.Loop {
			b.WriteString(",aloop=-1:2e9")
		}
		fmt.Fprintf(&b, ",adelay=%d|%d", int64(in.StartTime), int64(in.StartTime))
		fmt.Fprintf(&b, ",volume=%s", volumeExpr(in.Volume, videoVolume))

		if in.FadeInDuration > 0 {
			fmt.Fprintf(&b, ",afade=in:st=%s:d=%s", msToSeconds(in.StartTime), msToSeconds(in.FadeInDuration))
		}
		if in.FadeOutDuration > 0 {
			fmt.Fprintf(&b, ",afade=out:st=%s:d=%s", msToSeconds(in.EndTime-in.FadeOutDuration), msToSeconds(in.FadeOutDuration))
		}
		fmt.Fprintf(&b, "[%s];", label)
	}

	for _, l := range labels {
		fmt.Fprintf(&b, "[%s]", l)
	}
	fmt.Fprintf(&b, "amix=inputs=%d:normalize=0", len(labels))
	return b.String()
}

// volumeExpr implements spec.md §4.8's "volume=(volume·videoVolume)/10000",
// where both factors are 0..100 percentages.
func volumeExpr(volume, videoVolume float64) string {
	v := (volume * videoVolume) / 10000
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func msToSeconds(ms float64) string {
	return strconv.FormatFloat(ms/1000, 'f', -1, 64)
}

// BuildArgs assembles the ffmpeg command line for one mixing pass: the
// video stream is copied, the mixed audio is encoded to cfg.AudioCodec,
// and the output duration is clamped to cfg.Duration (spec.md §4.8:
// "Total output duration is clamped to the final video length").
func BuildArgs(cfg Config) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", cfg.VideoPath}
	for _, in := range cfg.Inputs {
		args = append(args, "-i", in.Path)
	}

	codec := cfg.AudioCodec
	if codec == "" {
		codec = encoder.AudioAAC
	}

	if len(cfg.Inputs) == 0 {
		args = append(args, "-c:v", "copy", "-an")
	} else {
		graph := BuildFilterGraph(cfg.Inputs, cfg.VideoVolume) + "[amix]"
		args = append(args,
			"-filter_complex", graph,
			"-map", "0:v:0",
			"-map", "[amix]",
			"-c:v", "copy",
			"-c:a", string(codec),
		)
	}

	if cfg.Duration > 0 {
		args = append(args, "-t", strconv.FormatFloat(cfg.Duration.Seconds(), 'f', -1, 64))
	}
	args = append(args, "-movflags", "+faststart", cfg.OutputPath)
	return args
}

// Mix runs one ffmpeg pass per cfg; ffmpeg writes cfg.OutputPath
// directly (no temp file or atomic rename). Grounded on internal/infra/ffmpeg/runner.go's
// Executor.Start, simplified to run-to-completion since a mixing pass
// has no frame-pipe input to stream.
func Mix(ctx context.Context, cfg Config) error {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}

	args := BuildArgs(cfg)
	cmd := exec.CommandContext(ctx, cfg.FFmpegPath, args...)
	procgroup.Set(cmd)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		wlog.WithContext(ctx, wlog.WithComponent("audiomixer")).Error().
			Err(err).Str("stderr_tail", tail(stderr.String(), 2000)).Msg("mix failed")
		return fmt.Errorf("audiomixer: ffmpeg exited: %w", err)
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
