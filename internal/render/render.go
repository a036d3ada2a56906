// Package render is the top-level orchestrator (spec.md §4's component
// table has no single letter for this: it is the glue the host process
// wraps around C3-C10, acquiring a page per scene, draining its frames
// into a chunk encoder, then handing the finished chunk set to the
// synthesizer). Grounded on internal/vod/manager.go's exactly-once job
// orchestration shape, adapted from "one VOD build per ID" to "one
// render run strung together from N scene chunks".
package render

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/webvideocreator/wvc/internal/audiomixer"
	"github.com/webvideocreator/wvc/internal/browserdriver"
	"github.com/webvideocreator/wvc/internal/capturectx"
	"github.com/webvideocreator/wvc/internal/clockshim"
	"github.com/webvideocreator/wvc/internal/encoder"
	"github.com/webvideocreator/wvc/internal/mediashim"
	"github.com/webvideocreator/wvc/internal/metrics"
	"github.com/webvideocreator/wvc/internal/pagedriver"
	"github.com/webvideocreator/wvc/internal/pool"
	"github.com/webvideocreator/wvc/internal/resilience"
	"github.com/webvideocreator/wvc/internal/synthesizer"
	"github.com/webvideocreator/wvc/internal/wlog"
)

// Scene is one page-capture-to-chunk unit of a render run: a URL to
// visit, the frame geometry/duration to capture at, and the transition
// (if any) into the scene that follows it.
type Scene struct {
	URL          string
	Width        int
	Height       int
	FPS          int
	DurationMS   float64
	VideoEncoder encoder.VideoCodec
	Transition   *synthesizer.Transition
}

// Config bounds one Renderer.
type Config struct {
	Pool            *pool.Pool[*browserdriver.Browser, *pagedriver.Page]
	Synth           *synthesizer.Synthesizer
	RunID           string
	ChunkDir        string
	PreprocessURL   string
	DateNowEpsilon  bool
	FrameAcquireTimeout time.Duration
	Breaker         *resilience.CircuitBreaker
}

// Renderer runs a sequence of Scenes through a shared pool and
// synthesizer, producing one finished composite file.
type Renderer struct {
	cfg Config
}

// New constructs a Renderer over an already-built pool and synthesizer.
func New(cfg Config) *Renderer {
	if cfg.FrameAcquireTimeout <= 0 {
		cfg.FrameAcquireTimeout = 30 * time.Second
	}
	return &Renderer{cfg: cfg}
}

// Run renders every scene in order, encoding each into its own chunk,
// then finalizes the synthesizer's splice+mix pass into splicedPath.
func (r *Renderer) Run(ctx context.Context, scenes []Scene, splicedPath string) error {
	total := 0
	for _, sc := range scenes {
		total += capturectx.Config{FPS: sc.FPS, DurationMS: sc.DurationMS}.EffectiveFrameCount()
	}

	for idx, sc := range scenes {
		if err := r.renderScene(ctx, idx, sc, total); err != nil {
			return fmt.Errorf("render: scene %d: %w", idx, err)
		}
	}
	return r.cfg.Synth.Finalize(ctx, splicedPath)
}

// chunkPath names this run's idx-th MPEG-TS intermediate.
func (r *Renderer) chunkPath(idx int) string {
	return filepath.Join(r.cfg.ChunkDir, fmt.Sprintf("%s-chunk-%03d.ts", r.cfg.RunID, idx))
}

func (r *Renderer) renderScene(ctx context.Context, idx int, sc Scene, totalFrameBudget int) error {
	page, err := r.acquirePage(ctx)
	if err != nil {
		return fmt.Errorf("acquire page: %w", err)
	}
	defer func() { _ = r.cfg.Pool.ReleasePage(ctx, page) }()

	outputPath := r.chunkPath(idx)
	chunk := synthesizer.VideoChunk{
		OutputPath:   outputPath,
		Width:        sc.Width,
		Height:       sc.Height,
		FPS:          float64(sc.FPS),
		Duration:     time.Duration(sc.DurationMS * float64(time.Millisecond)),
		VideoEncoder: sc.VideoEncoder,
		Transition:   sc.Transition,
	}
	if err := r.cfg.Synth.AddChunk(chunk); err != nil {
		return fmt.Errorf("add chunk: %w", err)
	}

	audios := attachAudioCollector(page)

	captureCfg := capturectx.Config{
		FPS:            sc.FPS,
		DurationMS:     sc.DurationMS,
		Autostart:      true,
		DateNowEpsilon: r.cfg.DateNowEpsilon,
	}
	if err := captureCfg.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	clockParams := clockshim.Params{FPS: sc.FPS, DateNowEpsilon: r.cfg.DateNowEpsilon}
	adapterParams := mediashim.AdapterParams{PreprocessURL: r.cfg.PreprocessURL}

	if err := page.Goto(ctx, sc.URL, clockParams, adapterParams, captureCfg); err != nil {
		return fmt.Errorf("goto: %w", err)
	}

	framesFn := drainFrames(ctx, page, captureCfg.EffectiveFrameCount(), r.cfg.FrameAcquireTimeout)
	if err := r.cfg.Synth.EncodeChunk(ctx, idx, framesFn, totalFrameBudget); err != nil {
		return fmt.Errorf("encode chunk: %w", err)
	}

	if err := r.cfg.Synth.SetChunkAudios(idx, audios.snapshot()); err != nil {
		return fmt.Errorf("set chunk audios: %w", err)
	}
	return nil
}

// acquirePage wraps pool.AcquirePage with the optional circuit breaker,
// per spec.md's ambient resilience concern: a string of browser launch
// failures should stop hammering a dead Chrome binary rather than retry
// forever.
func (r *Renderer) acquirePage(ctx context.Context) (*pagedriver.Page, error) {
	if r.cfg.Breaker == nil {
		return r.cfg.Pool.AcquirePage(ctx)
	}

	var page *pagedriver.Page
	err := r.cfg.Breaker.Execute(func() error {
		var acquireErr error
		page, acquireErr = r.cfg.Pool.AcquirePage(ctx)
		return acquireErr
	})
	metrics.SetCircuitBreakerState("pool", r.cfg.Breaker.GetState().String())
	if err != nil {
		if err == resilience.ErrCircuitOpen {
			metrics.RecordCircuitBreakerTrip("pool")
		}
		return nil, err
	}
	return page, nil
}

// audioCollector accumulates a page's addAudio/updateAudioEndTime
// binding calls for the scene currently capturing on it.
type audioCollector struct {
	mu     sync.Mutex
	inputs []audiomixer.Input
}

func attachAudioCollector(page *pagedriver.Page) *audioCollector {
	c := &audioCollector{}
	page.OnAudio = func(desc pagedriver.AudioDescriptor) {
		c.mu.Lock()
		defer c.mu.Unlock()
		// desc.Source is fed to ffmpeg directly as an -i argument: ffmpeg
		// reads http(s) URLs natively, so a track never needs to round-trip
		// through the video preprocessor's download cache (which is gated
		// to video/* content-types anyway).
		c.inputs = append(c.inputs, audiomixer.Input{AudioDescriptor: desc, Path: desc.Source})
	}
	page.OnAudioEndTimeUpdate = func(id string, endTime float64) {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i := range c.inputs {
			if c.inputs[i].ID == id {
				c.inputs[i].EndTime = endTime
			}
		}
	}
	return c
}

func (c *audioCollector) snapshot() []audiomixer.Input {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audiomixer.Input(nil), c.inputs...)
}

// drainFrames returns a closure matching synthesizer.EncodeChunk's
// framesFn signature: it reads FrameEvents off page.Frames() until
// frameBudget non-skip frames have been delivered, the page reports a
// hard error, or no frame arrives within timeout (spec.md §4.4's
// captureFrame acquire timeout, applied here at the drain boundary
// rather than per-beginFrame since that's already enforced inside
// Page.CaptureFrame).
func drainFrames(ctx context.Context, page *pagedriver.Page, frameBudget int, timeout time.Duration) func() ([]byte, bool) {
	delivered := 0
	return func() ([]byte, bool) {
		if frameBudget > 0 && delivered >= frameBudget {
			return nil, false
		}
		for {
			select {
			case <-ctx.Done():
				return nil, false
			case perr := <-page.Errors():
				wlog.WithContext(ctx, wlog.WithComponent("render")).Warn().Err(perr).Msg("page reported an error during capture")
				continue
			case ev, ok := <-page.Frames():
				if !ok {
					return nil, false
				}
				if ev.Skip {
					metrics.IncFramesCaptured("skipped")
					continue
				}
				delivered++
				metrics.IncFramesCaptured("captured")
				return ev.Data, true
			case <-time.After(timeout):
				metrics.IncFramesCaptured("timeout")
				return nil, false
			}
		}
	}
}
