// Package wconfig holds the single typed configuration struct for a
// render run. It is constructed once (env + optional YAML file), validated,
// and then passed down explicitly to the resource pool, the preprocessor
// and the encoders — never read back out of a package-level singleton
// (see SPEC_FULL.md, "Global mutable state").
package wconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputFormat is the container produced by the final synthesis pass.
type OutputFormat string

const (
	FormatMP4  OutputFormat = "mp4"
	FormatWebM OutputFormat = "webm"
)

// RenderMode selects how C4 requests a frame from the browser.
type RenderMode string

const (
	RenderModeNormal     RenderMode = "normal"     // HeadlessExperimental.beginFrame
	RenderModeCompatible RenderMode = "compatible" // Page.captureScreenshot
)

// TimeActionPolicy resolves the Open Question in spec.md §9 about
// seekTimeActions: fire the single smallest elapsed key per tick
// (literal source behavior) or fire every elapsed key in order.
type TimeActionPolicy string

const (
	TimeActionLiteral      TimeActionPolicy = "literal"
	TimeActionFireAllElapsed TimeActionPolicy = "fire_all_elapsed"
)

// PoolConfig bounds the two-tier browser/page pool (spec.md §3, §4.5).
type PoolConfig struct {
	NumBrowserMin int `yaml:"num_browser_min"`
	NumBrowserMax int `yaml:"num_browser_max"`
	NumPageMin    int `yaml:"num_page_min"`
	NumPageMax    int `yaml:"num_page_max"`
}

// PreprocessorConfig bounds C7's concurrency and retry behavior.
type PreprocessorConfig struct {
	DownloadConcurrency int           `yaml:"download_concurrency"`
	ProcessConcurrency  int           `yaml:"process_concurrency"`
	RetryFetchs         int           `yaml:"retry_fetchs"`
	RetryDelay          time.Duration `yaml:"retry_delay"`
	TmpDir              string        `yaml:"tmp_dir"`
	RequestsPerSecond   float64       `yaml:"requests_per_second"`
}

// Config is the effective global configuration for one render run,
// constructed once at startup (spec.md §9 "Global mutable state").
type Config struct {
	FPS                           int              `yaml:"fps"`
	Format                        OutputFormat     `yaml:"format"`
	RenderMode                    RenderMode       `yaml:"render_mode"`
	TimeActionPolicy              TimeActionPolicy `yaml:"time_action_policy"`
	DateNowEpsilon                bool             `yaml:"date_now_epsilon"`
	AllowUnsafeContext            bool             `yaml:"allow_unsafe_context"`
	FrameTimeout                  time.Duration    `yaml:"frame_timeout"`
	FrameAcquireTimeout           time.Duration    `yaml:"frame_acquire_timeout"`
	BrowserLaunchTimeout          time.Duration    `yaml:"browser_launch_timeout"`
	PreprocessDemuxTimeout        time.Duration    `yaml:"preprocess_demux_timeout"`
	ParallelWriteFrames           int              `yaml:"parallel_write_frames"`
	FFmpegPath                    string           `yaml:"ffmpeg_path"`
	FFprobePath                   string           `yaml:"ffprobe_path"`
	VideoDecoderHardwareAccel     bool             `yaml:"video_decoder_hardware_accel"`
	BrowserUserDataDir            string           `yaml:"browser_user_data_dir"`
	LocalFontDir                  string           `yaml:"local_font_dir"`

	LogLevel       string `yaml:"log_level"`
	DebugAddr      string `yaml:"debug_addr"`       // loopback listener for /healthz, /metrics
	TracingEnabled bool   `yaml:"tracing_enabled"`
	TracingEndpoint string `yaml:"tracing_endpoint"` // OTLP/HTTP collector address

	Pool         PoolConfig         `yaml:"pool"`
	Preprocessor PreprocessorConfig `yaml:"preprocessor"`
}

// Default returns the baseline configuration spec.md's components assume
// absent any override.
func Default() Config {
	return Config{
		FPS:                       30,
		Format:                    FormatMP4,
		RenderMode:                RenderModeNormal,
		TimeActionPolicy:          TimeActionLiteral,
		DateNowEpsilon:            true,
		FrameTimeout:              5 * time.Second,
		FrameAcquireTimeout:       30 * time.Second,
		BrowserLaunchTimeout:      30 * time.Second,
		PreprocessDemuxTimeout:    60 * time.Second,
		ParallelWriteFrames:       10,
		FFmpegPath:                "ffmpeg",
		FFprobePath:               "ffprobe",
		BrowserUserDataDir:        "tmp/browser",
		LocalFontDir:              "tmp/local_font",
		LogLevel:                  "info",
		DebugAddr:                 "127.0.0.1:9091",
		Pool: PoolConfig{
			NumBrowserMin: 1,
			NumBrowserMax: 2,
			NumPageMin:    1,
			NumPageMax:    2,
		},
		Preprocessor: PreprocessorConfig{
			DownloadConcurrency: 10,
			ProcessConcurrency:  10,
			RetryFetchs:         3,
			RetryDelay:          500 * time.Millisecond,
			TmpDir:              "tmp/preprocessor",
			RequestsPerSecond:   20,
		},
	}
}

// Load builds a Config from Default(), an optional YAML file, then
// environment variables (env wins), and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("wconfig: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("wconfig: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("WVC_FPS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FPS = n
		}
	}
	if v, ok := os.LookupEnv("WVC_FORMAT"); ok {
		cfg.Format = OutputFormat(strings.ToLower(v))
	}
	if v, ok := os.LookupEnv("WVC_RENDER_MODE"); ok {
		cfg.RenderMode = RenderMode(strings.ToLower(v))
	}
	if v, ok := os.LookupEnv("WVC_FFMPEG_PATH"); ok && v != "" {
		cfg.FFmpegPath = v
	}
	if v, ok := os.LookupEnv("WVC_ALLOW_UNSAFE_CONTEXT"); ok {
		cfg.AllowUnsafeContext = v == "true" || v == "1"
	}
	if v, ok := os.LookupEnv("WVC_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("WVC_DEBUG_ADDR"); ok && v != "" {
		cfg.DebugAddr = v
	}
	if v, ok := os.LookupEnv("WVC_TRACING_ENABLED"); ok {
		cfg.TracingEnabled = v == "true" || v == "1"
	}
	if v, ok := os.LookupEnv("WVC_TRACING_ENDPOINT"); ok && v != "" {
		cfg.TracingEndpoint = v
	}
}

// Validate rejects the non-finite/nonsensical configurations spec.md §7
// calls out as synchronous "config error" at start.
func (c Config) Validate() error {
	var errs []string

	if c.FPS <= 0 {
		errs = append(errs, "fps must be positive")
	}
	if c.Format != FormatMP4 && c.Format != FormatWebM {
		errs = append(errs, fmt.Sprintf("unknown format %q", c.Format))
	}
	if c.RenderMode != RenderModeNormal && c.RenderMode != RenderModeCompatible {
		errs = append(errs, fmt.Sprintf("unknown render mode %q", c.RenderMode))
	}
	if c.Pool.NumBrowserMin < 0 || c.Pool.NumBrowserMax < c.Pool.NumBrowserMin {
		errs = append(errs, "pool.num_browser_max must be >= num_browser_min >= 0")
	}
	if c.Pool.NumPageMin < 0 || c.Pool.NumPageMax < c.Pool.NumPageMin {
		errs = append(errs, "pool.num_page_max must be >= num_page_min >= 0")
	}
	if c.Pool.NumBrowserMax == 0 {
		errs = append(errs, "pool.num_browser_max must be > 0")
	}
	if c.Pool.NumPageMax == 0 {
		errs = append(errs, "pool.num_page_max must be > 0")
	}
	if c.Preprocessor.DownloadConcurrency <= 0 {
		errs = append(errs, "preprocessor.download_concurrency must be > 0")
	}
	if c.Preprocessor.ProcessConcurrency <= 0 {
		errs = append(errs, "preprocessor.process_concurrency must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("wconfig: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
