// Package browserdriver launches and tracks headless Chrome instances
// over the DevTools protocol via chromedp (C5). Grounded on
// jhinrichsen-VoxAlpha's ExecAllocator flag set and procgroup-style
// lifecycle discipline, generalized from one ad hoc test helper into a
// typed launcher the pool calls repeatedly.
package browserdriver

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/webvideocreator/wvc/internal/pool"
	"github.com/webvideocreator/wvc/internal/wlog"
)

// LaunchTimeout bounds browser startup (spec.md §5: "Launching the
// browser has its own timeout (30s)").
const LaunchTimeout = 30 * time.Second

// RenderMode selects between the beginFrame-driven capture path and the
// Page.screenshot fallback (spec.md §4.4 "captureFrame... two modes").
type RenderMode int

const (
	RenderModeNormal RenderMode = iota
	RenderModeCompatible
)

// Options configures a launched browser. The flag set is: no sandbox,
// --disable-threaded-animation, --disable-threaded-scrolling, disabled
// frame-rate cap, Angle with the GPU enabled unless GPU is false, and, in
// RenderModeNormal only, --deterministic-mode,
// --run-all-compositor-stages-before-draw and --enable-begin-frame-control.
// No process-model flag (single-process or process-per-tab) is set.
type Options struct {
	UserDataDir string
	Mode        RenderMode
	GPU         bool
}

// DefaultOptions mirrors spec.md §4.5's launch flag vocabulary for the
// normal (beginFrame-driven) render mode with GPU enabled.
func DefaultOptions(userDataDir string) Options {
	return Options{UserDataDir: userDataDir, Mode: RenderModeNormal, GPU: true}
}

func (o Options) execAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", !o.GPU),
		chromedp.Flag("use-angle", "default"),
		chromedp.Flag("user-data-dir", o.UserDataDir),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-threaded-animation", true),
		chromedp.Flag("disable-threaded-scrolling", true),
		chromedp.Flag("disable-frame-rate-limit", true),
		chromedp.Flag("disable-new-content-rendering-timeout", true),
		chromedp.Flag("disable-renderer-code-integrity", true),
	)
	if o.Mode == RenderModeNormal {
		opts = append(opts,
			chromedp.Flag("deterministic-mode", true),
			chromedp.Flag("run-all-compositor-stages-before-draw", true),
			chromedp.Flag("enable-begin-frame-control", true),
		)
	}
	return opts
}

var nextID int64

// Browser is a launched Chrome instance. It satisfies pool.Resource so
// internal/pool can manage a set of them directly.
type Browser struct {
	id      string
	machine *pool.Machine

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// Launch starts a new Chrome process under opts and waits for the
// DevTools target to become available, bounded by LaunchTimeout.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	launchCtx, cancelLaunch := context.WithTimeout(ctx, LaunchTimeout)
	defer cancelLaunch()

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts.execAllocatorOptions()...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(launchCtx, chromedp.ActionFunc(func(context.Context) error { return nil })); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("browserdriver: launch: %w", err)
	}

	id := fmt.Sprintf("browser-%d", atomic.AddInt64(&nextID, 1))
	wlog.WithContext(ctx, wlog.WithComponent("browserdriver")).Info().Str("browser_id", id).Msg("browser launched")

	return &Browser{
		id:          id,
		machine:     pool.NewMachine(),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      cancel,
	}, nil
}

// ID implements pool.Resource.
func (b *Browser) ID() string { return b.id }

// Machine implements pool.Resource.
func (b *Browser) Machine() *pool.Machine { return b.machine }

// Context returns the chromedp browser context new pages are derived
// from.
func (b *Browser) Context() context.Context { return b.ctx }

// Close tears down the browser's CDP context. chromedp's exec allocator
// owns the underlying process and reaps it on context cancellation
// (internal/procgroup is reserved for processes this module execs
// directly, namely ffmpeg in internal/encoder and internal/audiomixer).
func (b *Browser) Close(ctx context.Context) error {
	b.cancel()
	b.allocCancel()
	return nil
}
