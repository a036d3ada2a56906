// Command wvc drives one render run end to end: it loads a job file
// describing one or more page-capture scenes, wires the resource pool,
// preprocessor, and synthesizer together per internal/render, runs the
// scenes in order, and finalizes the spliced/mixed output file. CLI UX
// beyond this is out of scope (spec.md §1 "Out of scope").
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/webvideocreator/wvc/internal/browserdriver"
	"github.com/webvideocreator/wvc/internal/encoder"
	"github.com/webvideocreator/wvc/internal/mediashim"
	"github.com/webvideocreator/wvc/internal/pagedriver"
	"github.com/webvideocreator/wvc/internal/pool"
	"github.com/webvideocreator/wvc/internal/preprocessor"
	"github.com/webvideocreator/wvc/internal/render"
	"github.com/webvideocreator/wvc/internal/resilience"
	"github.com/webvideocreator/wvc/internal/synthesizer"
	"github.com/webvideocreator/wvc/internal/tracing"
	"github.com/webvideocreator/wvc/internal/wconfig"
	"github.com/webvideocreator/wvc/internal/wlog"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	jobPath := flag.String("job", "", "path to a render job JSON file")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("wvc %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	wlog.Configure(wlog.Config{Level: "info", Service: "wvc", Version: version})
	logger := wlog.WithComponent("main")

	if *jobPath == "" {
		logger.Fatal().Msg("missing required -job flag")
	}

	cfg, err := wconfig.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	wlog.Configure(wlog.Config{Level: cfg.LogLevel, Service: "wvc", Version: version})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "wvc",
		Version:     version,
		Endpoint:    cfg.TracingEndpoint,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	if cfg.DebugAddr != "" {
		startDebugListener(cfg.DebugAddr, logger)
	}

	j, err := loadJob(*jobPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load job file")
	}
	if j.RunID == "" {
		j.RunID = uuid.NewString()
	}

	if err := run(ctx, cfg, j); err != nil {
		logger.Fatal().Err(err).Msg("render failed")
	}
	logger.Info().Str("run_id", j.RunID).Str("output", j.OutputPath).Msg("render complete")
}

func startDebugListener(addr string, logger zerolog.Logger) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: tracing.Middleware("wvc")(r)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("debug listener stopped")
		}
	}()
}

func run(ctx context.Context, cfg wconfig.Config, j job) error {
	if err := os.MkdirAll(cfg.Preprocessor.TmpDir, 0o755); err != nil {
		return fmt.Errorf("create preprocessor tmp dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.OutputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	chunkDir := filepath.Join(filepath.Dir(j.OutputPath), "chunks")
	if err := os.MkdirAll(chunkDir, 0o755); err != nil {
		return fmt.Errorf("create chunk dir: %w", err)
	}

	// Tuned far more leniently than the browser-launch breaker below: a
	// flaky origin trips and recovers on the timescale of single HTTP
	// fetches (seconds), so it tolerates more failures in a shorter
	// window and probes recovery sooner, rather than sitting open for as
	// long as a crashed Chrome process needs to be judged dead.
	downloadBreaker := resilience.New("preprocessor-download", 6, 10, 20*time.Second, 10*time.Second)

	pp, err := preprocessor.New(preprocessor.Config{
		TmpDir:            cfg.Preprocessor.TmpDir,
		MaxDownloads:      int64(cfg.Preprocessor.DownloadConcurrency),
		MaxProcesses:      int64(cfg.Preprocessor.ProcessConcurrency),
		DefaultRetries:    cfg.Preprocessor.RetryFetchs,
		RetryDelay:        cfg.Preprocessor.RetryDelay,
		FFmpegPath:        cfg.FFmpegPath,
		FFprobePath:       cfg.FFprobePath,
		RequestsPerSecond: cfg.Preprocessor.RequestsPerSecond,
		Breaker:           downloadBreaker,
	})
	if err != nil {
		return fmt.Errorf("construct preprocessor: %w", err)
	}

	mode := browserdriver.RenderModeNormal
	if cfg.RenderMode == wconfig.RenderModeCompatible {
		mode = browserdriver.RenderModeCompatible
	}
	browserOpts := browserdriver.DefaultOptions(cfg.BrowserUserDataDir)
	browserOpts.Mode = mode
	browserOpts.GPU = cfg.VideoDecoderHardwareAccel

	fontLookup := func(path string) ([]byte, bool) {
		data, err := os.ReadFile(filepath.Join(cfg.LocalFontDir, filepath.FromSlash(path)))
		if err != nil {
			return nil, false
		}
		return data, true
	}

	preprocess := func(ctx context.Context, vc mediashim.VideoConfig) (mediashim.PreprocessResult, []byte, error) {
		return pp.Process(ctx, vc)
	}

	p := pool.New[*browserdriver.Browser, *pagedriver.Page](
		pool.Config{
			NumBrowserMin: cfg.Pool.NumBrowserMin,
			NumBrowserMax: cfg.Pool.NumBrowserMax,
			NumPageMin:    cfg.Pool.NumPageMin,
			NumPageMax:    cfg.Pool.NumPageMax,
		},
		browserdriver.Factory(browserOpts),
		pagedriver.Factory(preprocess, fontLookup),
	)
	defer func() { _ = p.Close(context.Background()) }()

	synth := synthesizer.New(synthesizer.Config{
		FFmpegPath:  cfg.FFmpegPath,
		RunID:       j.RunID,
		CoverPath:   j.CoverPath,
		AudioCodec:  encoder.AudioCodec(j.AudioCodec),
		VideoVolume: j.VideoVolume,
		OutputPath:  j.OutputPath,
	})

	// Stricter and slower to recover than downloadBreaker above: a browser
	// process crash-looping is a sign the Chrome binary itself is broken,
	// so fewer failures need to be seen before tripping and the cooldown
	// is long enough to matter (launching Chrome is not cheap to retry).
	var breaker *resilience.CircuitBreaker
	if cfg.BrowserLaunchTimeout > 0 {
		breaker = resilience.New("browser-launch", 3, 5, 60*time.Second, 30*time.Second)
	}

	renderer := render.New(render.Config{
		Pool:                p,
		Synth:               synth,
		RunID:               j.RunID,
		ChunkDir:            chunkDir,
		PreprocessURL:       "/api/video_preprocess",
		DateNowEpsilon:      cfg.DateNowEpsilon,
		FrameAcquireTimeout: cfg.FrameAcquireTimeout,
		Breaker:             breaker,
	})

	scenes := make([]render.Scene, 0, len(j.Scenes))
	for _, s := range j.Scenes {
		scenes = append(scenes, render.Scene{
			URL:          s.URL,
			Width:        s.Width,
			Height:       s.Height,
			FPS:          s.FPS,
			DurationMS:   s.DurationMS,
			VideoEncoder: encoder.VideoCodec(s.VideoEncoder),
			Transition:   s.transition(),
		})
	}

	splicedPath := filepath.Join(chunkDir, j.RunID+"-spliced.ts")
	return renderer.Run(ctx, scenes, splicedPath)
}
