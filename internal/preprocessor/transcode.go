package preprocessor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/webvideocreator/wvc/internal/mediashim"
	"github.com/webvideocreator/wvc/internal/procgroup"
	"github.com/webvideocreator/wvc/internal/wlog"
)

// transcodePlan is the decision tree spec.md §4.6 describes, evaluated
// once per VideoConfig before any ffmpeg invocation runs.
type transcodePlan struct {
	mainPath  string
	maskPath  string
	cfg       mediashim.VideoConfig
	needsH264 bool // container is WebM: downstream needs an MP4-compatible input
	wantsAudio bool // "if unmuted": a positive volume asked for an audio track
	wantsClip bool // seekStart or seekEnd set: re-clip so the page decoder starts at frame 0
}

// transcodeOutcome is what execute produces: the final video (and optional
// mask) file paths plus the probed decoder-config fields C2/C4 compare
// across main/mask tracks (spec.md §4.2 "MatchesDimensions").
type transcodeOutcome struct {
	videoPath  string
	maskPath   string
	audioPath  string
	codec      string
	width      int
	height     int
	fps        float64
	frameCount int
	hasAudio   bool
	hasClip    bool
}

// buildTranscodePlan evaluates spec.md §4.6's decision tree against cfg
// without running ffmpeg yet.
func (p *Preprocessor) buildTranscodePlan(ctx context.Context, mainPath, maskPath string, cfg mediashim.VideoConfig) (transcodePlan, error) {
	return transcodePlan{
		mainPath:   mainPath,
		maskPath:   maskPath,
		cfg:        cfg,
		needsH264:  strings.Contains(strings.ToLower(cfg.Format), "webm"),
		wantsAudio: cfg.Volume > 0,
		wantsClip:  cfg.SeekStart > 0 || cfg.SeekEnd > 0,
	}, nil
}

// execute runs the ffmpeg passes plan.needsH264/wantsAudio/wantsClip call
// for, then probes the resulting video (and mask, if present) with
// ffprobe and a mp4ff structural sanity check.
func (p *Preprocessor) execute(ctx context.Context, plan transcodePlan) (transcodeOutcome, error) {
	videoPath := plan.mainPath
	if plan.needsH264 {
		out := p.workPath(plan.mainPath, ".h264.mp4")
		if err := p.runFFmpeg(ctx, "-i", plan.mainPath, "-c:v", "libx264", "-crf", "18", "-movflags", "+faststart", "-y", out); err != nil {
			return transcodeOutcome{}, fmt.Errorf("preprocessor: webm->h264 transcode: %w", err)
		}
		videoPath = out
	}

	var maskPath string
	if plan.maskPath != "" {
		maskPath = p.workPath(plan.maskPath, ".alpha.mp4")
		if err := p.runFFmpeg(ctx, "-i", plan.maskPath, "-vf", "alphaextract", "-c:v", "libx264", "-crf", "18", "-movflags", "+faststart", "-y", maskPath); err != nil {
			return transcodeOutcome{}, fmt.Errorf("preprocessor: alphaextract: %w", err)
		}
	}

	var audioPath string
	var hasAudio bool
	if plan.wantsAudio {
		candidate := p.workPath(plan.mainPath, ".mp3")
		if err := p.runFFmpeg(ctx, "-i", plan.mainPath, "-vn", "-c:a", "libmp3lame", "-y", candidate); err != nil {
			return transcodeOutcome{}, fmt.Errorf("preprocessor: demux audio: %w", err)
		}
		audioPath = candidate
		hasAudio = true
	}

	var hasClip bool
	if plan.wantsClip {
		clipped := p.workPath(videoPath, ".clip.mp4")
		args := []string{"-i", videoPath}
		if plan.cfg.SeekStart > 0 {
			args = append(args, "-ss", formatSeekSeconds(plan.cfg.SeekStart))
		}
		if plan.cfg.SeekEnd > 0 {
			args = append(args, "-to", formatSeekSeconds(plan.cfg.SeekEnd))
		}
		args = append(args, "-movflags", "frag_keyframe+empty_moov", "-y", clipped)
		if err := p.runFFmpeg(ctx, args...); err != nil {
			return transcodeOutcome{}, fmt.Errorf("preprocessor: reclip: %w", err)
		}
		videoPath = clipped
		hasClip = true
	}

	info, err := p.probe(ctx, videoPath)
	if err != nil {
		return transcodeOutcome{}, fmt.Errorf("preprocessor: probe main: %w", err)
	}
	sanityCheckMP4(videoPath)

	if maskPath != "" {
		maskInfo, err := p.probe(ctx, maskPath)
		if err != nil {
			return transcodeOutcome{}, fmt.Errorf("preprocessor: probe mask: %w", err)
		}
		sanityCheckMP4(maskPath)

		main := mediashim.PreprocessResult{Width: info.width, Height: info.height, FPS: info.fps, FrameCount: info.frameCount}
		mask := mediashim.PreprocessResult{Width: maskInfo.width, Height: maskInfo.height, FPS: maskInfo.fps, FrameCount: maskInfo.frameCount}
		if !main.MatchesDimensions(mask) {
			return transcodeOutcome{}, fmt.Errorf(
				"preprocessor: main/mask decoder config mismatch: main=%dx%d@%gfps/%dframes mask=%dx%d@%gfps/%dframes",
				info.width, info.height, info.fps, info.frameCount,
				maskInfo.width, maskInfo.height, maskInfo.fps, maskInfo.frameCount,
			)
		}
	}

	return transcodeOutcome{
		videoPath:  videoPath,
		maskPath:   maskPath,
		audioPath:  audioPath,
		codec:      info.codec,
		width:      info.width,
		height:     info.height,
		fps:        info.fps,
		frameCount: info.frameCount,
		hasAudio:   hasAudio,
		hasClip:    hasClip,
	}, nil
}

func (p *Preprocessor) workPath(base, suffix string) string {
	return filepath.Join(p.cfg.TmpDir, cacheKey(base)+suffix)
}

func (p *Preprocessor) runFFmpeg(ctx context.Context, args ...string) error {
	bin := p.cfg.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...)
	procgroup.Set(cmd)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w (stderr: %s)", bin, err, stderr.String())
	}
	return nil
}

func formatSeekSeconds(ms float64) string {
	return strconv.FormatFloat(ms/1000, 'f', -1, 64)
}

type probedInfo struct {
	codec      string
	width      int
	height     int
	fps        float64
	frameCount int
}

// probe shells out to ffprobe the same way internal/infra/ffmpeg/probe.go
// does (JSON streams+format, manual field parsing), narrowed to the video
// stream fields C2/C4 need.
func (p *Preprocessor) probe(ctx context.Context, path string) (probedInfo, error) {
	bin := p.cfg.FFprobePath
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return probedInfo{}, fmt.Errorf("ffprobe: %w", err)
	}

	var data struct {
		Streams []struct {
			CodecType    string `json:"codec_type"`
			CodecName    string `json:"codec_name"`
			Width        int    `json:"width"`
			Height       int    `json:"height"`
			NbFrames     string `json:"nb_frames"`
			AvgFrameRate string `json:"avg_frame_rate"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &data); err != nil {
		return probedInfo{}, fmt.Errorf("ffprobe: decode json: %w", err)
	}

	var info probedInfo
	for _, s := range data.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.codec = s.CodecName
		info.width = s.Width
		info.height = s.Height
		if n, err := strconv.Atoi(s.NbFrames); err == nil {
			info.frameCount = n
		}
		if parts := strings.Split(s.AvgFrameRate, "/"); len(parts) == 2 {
			num, errNum := strconv.ParseFloat(parts[0], 64)
			den, errDen := strconv.ParseFloat(parts[1], 64)
			if errNum == nil && errDen == nil && den > 0 {
				info.fps = num / den
			}
		}
		break
	}
	if info.codec == "" {
		return probedInfo{}, fmt.Errorf("ffprobe: no video stream found in %s", path)
	}
	if info.frameCount == 0 && data.Format.Duration != "" && info.fps > 0 {
		if d, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil {
			info.frameCount = int(d * info.fps)
		}
	}
	return info, nil
}

// sanityCheckMP4 walks the file's boxes with mp4ff and logs (never failing
// the run on) a moov box that holds zero tracks. It does not compare
// against ffprobe's reading.
func sanityCheckMP4(path string) {
	f, err := mp4ffParseFile(path)
	if err != nil || f == nil || f.Moov == nil {
		return
	}
	if len(f.Moov.Traks) == 0 {
		wlog.WithComponent("preprocessor").Warn().Str("path", path).Msg("mp4ff found zero tracks in moov")
	}
}

// mp4ffParseFile opens and decodes path with mp4ff, isolated into its own
// function so a malformed file never escapes into the main transcode path
// as anything but a plain error.
func mp4ffParseFile(path string) (f *mp4.File, err error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, openErr
	}
	defer file.Close()
	return mp4.DecodeFile(file)
}
