// Package preprocessor implements the Media Preprocessor (C7): the
// download+transcode backend behind the page's `/api/video_preprocess`
// RPC, including the MP3 demux of a video's audio track when it is unmuted.
// Grounded on internal/jobs/picon_pool.go's inflight-dedupe/negative-cache
// shape and internal/vod/ffmpeg_builder.go's decision-tree-returns-args
// pattern for the transcode logic.
package preprocessor

import (
	"context"
	"fmt"
	"hash/crc32"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/webvideocreator/wvc/internal/mediashim"
	"github.com/webvideocreator/wvc/internal/metrics"
	"github.com/webvideocreator/wvc/internal/resilience"
)

// Config bounds the preprocessor's concurrency and retry behavior
// (spec.md §4.6: "two semaphores (default 10 downloads, 10 processes)...
// retryable up to retryFetchs with retryDelay ms backoff").
type Config struct {
	TmpDir         string
	MaxDownloads   int64
	MaxProcesses   int64
	DefaultRetries int
	RetryDelay     time.Duration
	ClientTimeout  time.Duration
	FFmpegPath     string
	FFprobePath    string

	// RequestsPerSecond paces outbound downloads ahead of the download
	// semaphore (spec.md §4.6's two semaphores bound concurrency, not
	// rate; a slow origin otherwise gets hammered the instant a slot frees).
	RequestsPerSecond float64

	// Breaker guards individual fetch attempts against a source that is
	// down or black-holing requests. It is tuned independently from the
	// browser-launch breaker cmd/wvc wires in front of the page pool: a
	// flaky origin trips and recovers on a timescale of single fetches,
	// not browser processes, so it needs a shorter window, more lenient
	// thresholds, and a faster half-open probe. Nil disables it.
	Breaker *resilience.CircuitBreaker
}

// DefaultConfig returns the spec's literal defaults.
func DefaultConfig(tmpDir string) Config {
	return Config{
		TmpDir:         tmpDir,
		MaxDownloads:   10,
		MaxProcesses:   10,
		DefaultRetries: 3,
		RetryDelay:     500 * time.Millisecond,
		ClientTimeout:     30 * time.Second,
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		RequestsPerSecond: 20,
	}
}

// Preprocessor serves one render run's video_preprocess RPC traffic.
type Preprocessor struct {
	cfg    Config
	client *http.Client

	downloadSem *semaphore.Weighted
	processSem  *semaphore.Weighted
	limiter     *rate.Limiter
	breaker     *resilience.CircuitBreaker

	inflightMu sync.Mutex
	inflight   map[string]*sync.WaitGroup
}

// New constructs a Preprocessor. cfg.TmpDir is created if absent.
func New(cfg Config) (*Preprocessor, error) {
	if cfg.MaxDownloads <= 0 {
		cfg.MaxDownloads = 10
	}
	if cfg.MaxProcesses <= 0 {
		cfg.MaxProcesses = 10
	}
	if err := os.MkdirAll(cfg.TmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("preprocessor: create tmp dir: %w", err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("preprocessor: build cookie jar: %w", err)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 20
	}

	return &Preprocessor{
		cfg:         cfg,
		client:      &http.Client{Timeout: cfg.ClientTimeout, Jar: jar},
		downloadSem: semaphore.NewWeighted(cfg.MaxDownloads),
		processSem:  semaphore.NewWeighted(cfg.MaxProcesses),
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		breaker:     cfg.Breaker,
		inflight:    make(map[string]*sync.WaitGroup),
	}, nil
}

// cacheKey is the CRC32 of the source URL, used as the tmp filename
// stem (spec.md §4.6, §6 "Persisted state layout").
func cacheKey(rawURL string) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(rawURL)))
}

func (p *Preprocessor) cachePath(rawURL, suffix string) string {
	return filepath.Join(p.cfg.TmpDir, cacheKey(rawURL)+suffix)
}

// Process runs the full VideoConfig pipeline: download (dedup'd by URL
// CRC), transcode decisions, optional reclip, and packs the result.
// It returns the descriptor and the single binary blob PackPayload
// expects (buffer, then maskBuffer appended if present).
func (p *Preprocessor) Process(ctx context.Context, cfg mediashim.VideoConfig) (mediashim.PreprocessResult, []byte, error) {
	mainPath, err := p.downloadDeduped(ctx, cfg.Src, p.cachePath(cfg.Src, filepath.Ext(cfg.Src)), cfg.RetryFetchs)
	if err != nil {
		return mediashim.PreprocessResult{}, nil, fmt.Errorf("preprocessor: download main: %w", err)
	}

	var maskPath string
	if cfg.MaskSrc != "" {
		maskPath, err = p.downloadDeduped(ctx, cfg.MaskSrc, p.cachePath(cfg.MaskSrc, filepath.Ext(cfg.MaskSrc)), cfg.RetryFetchs)
		if err != nil {
			return mediashim.PreprocessResult{}, nil, fmt.Errorf("preprocessor: download mask: %w", err)
		}
	}

	plan, err := p.buildTranscodePlan(ctx, mainPath, maskPath, cfg)
	if err != nil {
		return mediashim.PreprocessResult{}, nil, fmt.Errorf("preprocessor: plan: %w", err)
	}

	if err := p.processSem.Acquire(ctx, 1); err != nil {
		return mediashim.PreprocessResult{}, nil, fmt.Errorf("preprocessor: acquire process slot: %w", err)
	}
	outcome, err := p.execute(ctx, plan)
	p.processSem.Release(1)
	if err != nil {
		metrics.IncPreprocessorFetch("error")
		return mediashim.PreprocessResult{}, nil, err
	}
	metrics.IncPreprocessorFetch("downloaded")

	return p.pack(outcome)
}

// pack assembles the PackPayload-ready descriptor and blob from a
// transcodeOutcome's resulting files.
func (p *Preprocessor) pack(o transcodeOutcome) (mediashim.PreprocessResult, []byte, error) {
	main, err := os.ReadFile(o.videoPath)
	if err != nil {
		return mediashim.PreprocessResult{}, nil, fmt.Errorf("preprocessor: read transcoded video: %w", err)
	}

	blobNames := []string{"buffer"}
	blobs := [][]byte{main}
	if o.maskPath != "" {
		mask, err := os.ReadFile(o.maskPath)
		if err != nil {
			return mediashim.PreprocessResult{}, nil, fmt.Errorf("preprocessor: read mask video: %w", err)
		}
		blobNames = append(blobNames, "maskBuffer")
		blobs = append(blobs, mask)
	}
	if o.audioPath != "" {
		audio, err := os.ReadFile(o.audioPath)
		if err != nil {
			return mediashim.PreprocessResult{}, nil, fmt.Errorf("preprocessor: read demuxed audio: %w", err)
		}
		blobNames = append(blobNames, "audioBuffer")
		blobs = append(blobs, audio)
	}

	refs := mediashim.BlobsFor(blobNames, blobs)
	result := mediashim.PreprocessResult{
		Buffer:     refs[0],
		Codec:      o.codec,
		Width:      o.width,
		Height:     o.height,
		FPS:        o.fps,
		FrameCount: o.frameCount,
		HasMask:    o.maskPath != "",
		HasAudio:   o.hasAudio,
		HasClip:    o.hasClip,
	}
	next := 1
	if o.maskPath != "" {
		result.MaskBuffer = &refs[next]
		next++
	}
	if o.audioPath != "" {
		result.AudioBuffer = &refs[next]
		next++
	}

	combined := make([]byte, 0, len(main)+len(blobs[len(blobs)-1]))
	for _, b := range blobs {
		combined = append(combined, b...)
	}
	return result, combined, nil
}
