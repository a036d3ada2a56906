// Package encoder implements the Frame Encoder (C8): a pipe writer that
// streams captured frame bytes into an ffmpeg subprocess configured as
// an image2pipe consumer, producing either a final MP4/WebM file or an
// MPEG-TS chunk intermediate. Grounded on
// internal/infra/ffmpeg/runner.go's handle type (a started subprocess
// with a stderr-scanning monitor feeding a diagnostics ring buffer),
// retargeted from HLS segment output to image2pipe input.
package encoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/webvideocreator/wvc/internal/metrics"
	"github.com/webvideocreator/wvc/internal/procgroup"
	"github.com/webvideocreator/wvc/internal/wlog"
)

// VideoCodec is the encoder vocabulary spec.md §6 names exactly, split
// by hardware backend.
type VideoCodec string

const (
	// CPU
	CodecLibx264    VideoCodec = "libx264"
	CodecLibx265    VideoCodec = "libx265"
	CodecLibvpx     VideoCodec = "libvpx"
	CodecLibvpxVP9  VideoCodec = "libvpx-vp9"
	// Intel QSV
	CodecH264QSV VideoCodec = "h264_qsv"
	CodecHEVCQSV VideoCodec = "hevc_qsv"
	CodecVP8QSV  VideoCodec = "vp8_qsv"
	CodecVP9QSV  VideoCodec = "vp9_qsv"
	// AMD AMF
	CodecH264AMF VideoCodec = "h264_amf"
	CodecH265AMF VideoCodec = "h265_amf"
	// NVIDIA NVENC
	CodecH264NVENC VideoCodec = "h264_nvenc"
	CodecHEVCNVENC VideoCodec = "hevc_nvenc"
	// OMX / V4L2
	CodecH264OMX     VideoCodec = "h264_omx"
	CodecH264V4L2M2M VideoCodec = "h264_v4l2m2m"
	// VAAPI
	CodecH264VAAPI VideoCodec = "h264_vaapi"
	CodecHEVCVAAPI VideoCodec = "hevc_vaapi"
	CodecVP8VAAPI  VideoCodec = "vp8_vaapi"
	CodecVP9VAAPI  VideoCodec = "vp9_vaapi"
	// VideoToolbox
	CodecH264VideoToolbox VideoCodec = "h264_videotoolbox"
	CodecHEVCVideoToolbox VideoCodec = "hevc_videotoolbox"
)

// AudioCodec is the two-member audio vocabulary spec.md §6 names.
type AudioCodec string

const (
	AudioAAC    AudioCodec = "aac"
	AudioOpus   AudioCodec = "libopus"
)

// family classifies a VideoCodec for the profile/preset and bitstream
// filter decisions that follow the encoded format rather than the
// specific hardware backend.
type family int

const (
	familyUnknown family = iota
	familyH264
	familyHEVC
	familyVP8
	familyVP9
)

func (c VideoCodec) family() family {
	switch c {
	case CodecLibx264, CodecH264QSV, CodecH264AMF, CodecH264NVENC, CodecH264OMX, CodecH264V4L2M2M, CodecH264VAAPI, CodecH264VideoToolbox:
		return familyH264
	case CodecLibx265, CodecHEVCQSV, CodecH265AMF, CodecHEVCNVENC, CodecHEVCVAAPI, CodecHEVCVideoToolbox:
		return familyHEVC
	case CodecLibvpx, CodecVP8QSV, CodecVP8VAAPI:
		return familyVP8
	case CodecLibvpxVP9, CodecVP9QSV, CodecVP9VAAPI:
		return familyVP9
	default:
		return familyUnknown
	}
}

// Chunkable reports whether c may back a VideoChunk output per spec.md
// §3 ("videoEncoder (must be H264|H265|VP9 for chunking)").
func (c VideoCodec) Chunkable() bool {
	switch c.family() {
	case familyH264, familyHEVC, familyVP9:
		return true
	default:
		return false
	}
}

// Container is the muxed output shape: a final file or the MPEG-TS
// chunk intermediate spec.md §4.9/§6 names.
type Container string

const (
	ContainerMP4    Container = "mp4"
	ContainerWebM   Container = "webm"
	ContainerMPEGTS Container = "mpegts"
)

// BuildArgsInput captures every parameter spec.md §4.7 lists for one
// ffmpeg invocation, mirroring internal/vod/ffmpeg_builder.go's typed
// BuildArgsInput-returns-Args pattern.
type BuildArgsInput struct {
	Width, Height int
	FPS           float64
	VideoEncoder  VideoCodec
	Bitrate       string // "4000k"; empty derives the spec formula
	Quality       int    // 0..100, only used when Bitrate is empty
	PixelFormat   string // "yuv420p" or "yuva420p" for WebM with alpha
	Container     Container
	AttachCoverPath string
	OutputPath    string
}

// DeriveBitrate implements spec.md §4.7's fallback formula:
// "(2560·pixels/921600)·(quality/100) kbps".
func DeriveBitrate(width, height, quality int) string {
	if quality <= 0 {
		quality = 100
	}
	pixels := float64(width * height)
	kbps := (2560 * pixels / 921600) * (float64(quality) / 100)
	return fmt.Sprintf("%dk", int(kbps+0.5))
}

// BitstreamFilter returns the filter spec.md §4.7/§6 names for a
// VideoChunk output ("Bitstream filter for VideoChunk outputs:
// h264_mp4toannexb / hevc_mp4toannexb / vp9_superframe into mpegts"),
// or "" when the container isn't a chunk intermediate.
func BitstreamFilter(codec VideoCodec, container Container) string {
	if container != ContainerMPEGTS {
		return ""
	}
	switch codec.family() {
	case familyH264:
		return "h264_mp4toannexb"
	case familyHEVC:
		return "hevc_mp4toannexb"
	case familyVP9:
		return "vp9_superframe"
	default:
		return ""
	}
}

// BuildArgs assembles the ffmpeg command line for one encoder
// invocation per spec.md §4.7.
func BuildArgs(in BuildArgsInput) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "image2pipe",
		"-r", formatFPS(in.FPS),
		"-i", "pipe:0",
	}

	if in.AttachCoverPath != "" {
		args = append(args, "-i", in.AttachCoverPath)
		args = append(args, "-filter_complex",
			fmt.Sprintf("[1:v]scale=%d:%d[cov];[0:v][cov]overlay=shortest=1", in.Width, in.Height))
	}

	args = append(args, "-c:v", string(in.VideoEncoder))

	bitrate := in.Bitrate
	if bitrate == "" {
		bitrate = DeriveBitrate(in.Width, in.Height, in.Quality)
	}
	args = append(args, "-b:v", bitrate)

	pixFmt := in.PixelFormat
	if pixFmt == "" {
		pixFmt = "yuv420p"
	}
	args = append(args, "-pix_fmt", pixFmt)

	switch in.VideoEncoder.family() {
	case familyH264, familyHEVC:
		args = append(args, "-profile:v", "main", "-preset", "medium")
	}

	if bsf := BitstreamFilter(in.VideoEncoder, in.Container); bsf != "" {
		args = append(args, "-bsf:v", bsf)
	}

	args = append(args, "-movflags", "+faststart")

	container := in.Container
	if container == "" {
		container = ContainerMP4
	}
	args = append(args, "-f", string(container), in.OutputPath)
	return args
}

func formatFPS(fps float64) string {
	if fps == float64(int(fps)) {
		return strconv.Itoa(int(fps))
	}
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

// DefaultParallelWriteFrames is spec.md §4.7's "buffers up to
// parallelWriteFrames (default 10) frames and flushes as one
// concatenated write".
const DefaultParallelWriteFrames = 10

// knownFatalStderr maps a substring ffmpeg writes to stderr on certain
// well-understood failures to a user-facing hardware-support hint
// (spec.md §7 "Encoder failure").
var knownFatalStderr = []struct {
	substr string
	hint   string
}{
	{"Error while opening encoder for output stream", "hardware encoder unavailable or at its parallel session limit (check NVENC concurrent-session caps or codec hardware support)"},
}

// exitCodeHardwareFailure is the Windows STATUS_ACCESS_VIOLATION-style
// exit code spec.md §7 calls out by its unsigned decimal form
// (3221225477 == 0xC0000005 as int32, i.e. -1073741819).
const exitCodeHardwareFailure = -1073741819

// Encoder streams frames into one ffmpeg subprocess over its stdin,
// batching writes per spec.md §4.7. It satisfies the same "started
// resource with progress + diagnostics" shape as
// internal/infra/ffmpeg/runner.go's handle.
type Encoder struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	ring    *ringBuffer
	done    chan error
	pending *renameio.PendingFile

	mu        sync.Mutex
	batch     [][]byte
	batchSize int
	maxBatch  int

	closeOnce sync.Once
	aborted   bool
}

// Start launches ffmpeg per in and returns a ready Encoder. ffmpeg is
// pointed at a renameio pending file's temp name rather than
// in.OutputPath directly, so a crashed or aborted encode never leaves a
// partial file at the destination path (spec.md §2A: "internal/encoder
// ... final-output writes (atomic rename onto the destination path)").
// parallelWriteFrames <= 0 uses DefaultParallelWriteFrames.
func Start(ctx context.Context, ffmpegPath string, in BuildArgsInput, parallelWriteFrames int) (*Encoder, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if parallelWriteFrames <= 0 {
		parallelWriteFrames = DefaultParallelWriteFrames
	}

	pending, err := renameio.NewPendingFile(in.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("encoder: create pending output: %w", err)
	}
	in.OutputPath = pending.Name()

	args := BuildArgs(in)
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	procgroup.Set(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = pending.Cleanup()
		return nil, fmt.Errorf("encoder: stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = pending.Cleanup()
		return nil, fmt.Errorf("encoder: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = pending.Cleanup()
		return nil, fmt.Errorf("encoder: start %s: %w", ffmpegPath, err)
	}

	e := &Encoder{
		cmd:      cmd,
		stdin:    stdin,
		ring:     newRingBuffer(100),
		done:     make(chan error, 1),
		pending:  pending,
		maxBatch: parallelWriteFrames,
	}
	go e.monitor(stderr)
	return e, nil
}

func (e *Encoder) monitor(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		e.ring.add(scanner.Text())
	}
	e.done <- e.cmd.Wait()
	close(e.done)
}

// WriteFrame enqueues one captured frame's bytes. An empty buffer is
// still enqueued and counted per spec.md §4.4 ("an empty result is
// still counted; it may be a no-op frame").
func (e *Encoder) WriteFrame(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf := append([]byte(nil), data...)
	e.batch = append(e.batch, buf)
	e.batchSize++
	if e.batchSize < e.maxBatch {
		return nil
	}
	return e.flushLocked()
}

// Flush writes any batched-but-unsent frames now.
func (e *Encoder) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

func (e *Encoder) flushLocked() error {
	if len(e.batch) == 0 {
		return nil
	}
	var combined bytes.Buffer
	for _, b := range e.batch {
		combined.Write(b)
	}
	e.batch = e.batch[:0]
	e.batchSize = 0
	if _, err := e.stdin.Write(combined.Bytes()); err != nil {
		return fmt.Errorf("encoder: pipe write: %w", err)
	}
	return nil
}

// Abort sends ffmpeg a graceful quit over stdin ("q"), per spec.md §4.7
// ("On abort, the encoder is sent q on stdin and the end listener is
// removed"). If the write fails the subprocess's process group is
// force-killed instead.
func (e *Encoder) Abort(grace, kill time.Duration) {
	e.mu.Lock()
	e.aborted = true
	_, writeErr := io.WriteString(e.stdin, "q")
	e.mu.Unlock()
	if writeErr != nil && e.cmd.Process != nil {
		_ = procgroup.KillGroup(e.cmd.Process.Pid, grace, kill)
	}
}

// Close flushes remaining frames, closes stdin, and waits for the
// subprocess to exit, translating known fatal stderr/exit-code patterns
// per spec.md §7.
func (e *Encoder) Close(ctx context.Context) error {
	var closeErr error
	e.closeOnce.Do(func() {
		if err := e.Flush(); err != nil {
			wlog.WithContext(ctx, wlog.WithComponent("encoder")).Warn().Err(err).Msg("flush on close failed")
		}
		_ = e.stdin.Close()
		waitErr := <-e.done
		if waitErr != nil {
			metrics.IncEncoderFailure(classifyFailure(waitErr, e.ring.all()))
			closeErr = translateFailure(waitErr, e.ring.all())
			_ = e.pending.Cleanup()
			return
		}
		if err := e.pending.CloseAtomicallyReplace(); err != nil {
			closeErr = fmt.Errorf("encoder: atomic rename onto output path: %w", err)
		}
	})
	return closeErr
}

func classifyFailure(err error, stderrTail []string) string {
	if isHardwareFailure(err, stderrTail) {
		return "hardware"
	}
	return "other"
}

func isHardwareFailure(err error, stderrTail []string) bool {
	for _, line := range stderrTail {
		for _, known := range knownFatalStderr {
			if strings.Contains(line, known.substr) {
				return true
			}
		}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == exitCodeHardwareFailure {
		return true
	}
	return false
}

// translateFailure rewrites a known hardware-support failure into the
// hint spec.md §7 describes; other failures propagate unchanged.
func translateFailure(err error, stderrTail []string) error {
	if isHardwareFailure(err, stderrTail) {
		for _, line := range stderrTail {
			for _, known := range knownFatalStderr {
				if strings.Contains(line, known.substr) {
					return fmt.Errorf("encoder: %s: %w", known.hint, err)
				}
			}
		}
		return fmt.Errorf("encoder: %s: %w", knownFatalStderr[0].hint, err)
	}
	return fmt.Errorf("encoder: ffmpeg exited: %w (stderr tail: %s)", err, strings.Join(stderrTail, " | "))
}

// ringBuffer is a fixed-size line ring, the same shape as
// internal/infra/ffmpeg/runner.go's RingBuffer, adapted to this
// package's diagnostics needs.
type ringBuffer struct {
	lines []string
	pos   int
	full  bool
	mu    sync.Mutex
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{lines: make([]string, size)}
}

func (r *ringBuffer) add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.pos] = line
	r.pos = (r.pos + 1) % len(r.lines)
	if r.pos == 0 {
		r.full = true
	}
}

func (r *ringBuffer) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]string(nil), r.lines[:r.pos]...)
	}
	res := make([]string, len(r.lines))
	copy(res, r.lines[r.pos:])
	copy(res[len(r.lines)-r.pos:], r.lines[:r.pos])
	return res
}
