// Package pagedriver is the per-tab host-side controller (C4): CDP
// session lifecycle, frame capture, request interception, and the
// exposed host functions page code calls. Grounded on
// internal/infra/ffmpeg/runner.go's "handle" shape (a started resource
// with a progress channel and a diagnostics ring buffer), generalized
// from a subprocess to a browser tab: progress is frame events,
// diagnostics is the page error channel.
package pagedriver

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/animation"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/headlessexperimental"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/webvideocreator/wvc/internal/browserdriver"
	"github.com/webvideocreator/wvc/internal/capturectx"
	"github.com/webvideocreator/wvc/internal/clockshim"
	"github.com/webvideocreator/wvc/internal/mediashim"
	"github.com/webvideocreator/wvc/internal/pool"
	"github.com/webvideocreator/wvc/internal/wlog"
)

// BeginFrameTimeout bounds captureFrame in normal mode (spec.md §4.4:
// "a configurable timeout (default 5s) declares the page UNAVAILABLED
// on expiry").
const BeginFrameTimeout = 5 * time.Second

var nextPageID int64

// FrameEvent is emitted to C8 (internal/encoder) for each captured
// frame. An empty PNG/JPEG payload is still emitted and counted, per
// spec.md §4.4 ("an empty result is still counted; it may be a no-op
// frame").
type FrameEvent struct {
	Index int
	Data  []byte
	Skip  bool
}

// Page is one tab's controller. It satisfies pool.Resource so the page
// tier of internal/pool can manage it directly.
type Page struct {
	id      string
	machine *pool.Machine
	mode    browserdriver.RenderMode

	browser *browserdriver.Browser
	ctx     context.Context
	cancel  context.CancelFunc

	allowUnsafeContext bool

	frames chan FrameEvent
	errors chan error

	animations map[string]animationTrack
	timeAct    *capturectx.TimeActions

	preprocess func(ctx context.Context, cfg mediashim.VideoConfig) (mediashim.PreprocessResult, []byte, error)
	fontLookup func(path string) ([]byte, bool)

	// OnAudio, OnAudioEndTimeUpdate, and OnTimeAction are set by the
	// synthesizer/caller that owns this page to receive the
	// corresponding exposed-binding calls (spec.md §6).
	OnAudio              func(AudioDescriptor)
	OnAudioEndTimeUpdate func(id string, endTime float64)
	OnTimeAction         func(key, currentTime float64)

	capturing atomic.Bool
}

type animationTrack struct {
	id        string
	pinnedAt  float64
	delay     float64
	duration  float64
	iterations float64
	backendNodeID cdp.BackendNodeID
}

// New opens a new tab under b and wires the exposed host bindings and
// request interception. Callers pass a preprocess callback (C7) and a
// font lookup (local font cache) since pagedriver owns the interception
// wiring but not those subsystems' internals.
func New(
	ctx context.Context,
	b *browserdriver.Browser,
	preprocess func(ctx context.Context, cfg mediashim.VideoConfig) (mediashim.PreprocessResult, []byte, error),
	fontLookup func(path string) ([]byte, bool),
) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.Context())

	id := fmt.Sprintf("page-%d", atomic.AddInt64(&nextPageID, 1))
	p := &Page{
		id:         id,
		machine:    pool.NewMachine(),
		browser:    b,
		ctx:        tabCtx,
		cancel:     cancel,
		frames:     make(chan FrameEvent, 4),
		errors:     make(chan error, 16),
		animations: make(map[string]animationTrack),
		timeAct:    capturectx.NewTimeActions(capturectx.TimeActionSmallestElapsed),
		preprocess: preprocess,
		fontLookup: fontLookup,
	}

	if err := chromedp.Run(tabCtx,
		network.Enable(),
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}),
		runtime.Enable(),
		page.Enable(),
	); err != nil {
		cancel()
		return nil, fmt.Errorf("pagedriver: init: %w", err)
	}

	for _, name := range []string{"captureFrame", "skipFrame", "screencastCompleted", "addAudio", "updateAudioEndTime", "seekCSSAnimations", "seekTimeActions", "throwError"} {
		if err := chromedp.Run(tabCtx, runtime.AddBinding(name)); err != nil {
			cancel()
			return nil, fmt.Errorf("pagedriver: expose binding %s: %w", name, err)
		}
	}

	chromedp.ListenTarget(tabCtx, p.handleEvent)

	return p, nil
}

// ID implements pool.Resource.
func (p *Page) ID() string { return p.id }

// Machine implements pool.Resource.
func (p *Page) Machine() *pool.Machine { return p.machine }

// Close releases the tab's CDP session.
func (p *Page) Close(ctx context.Context) error {
	p.cancel()
	return nil
}

// Frames returns the channel FrameEvents are delivered on.
func (p *Page) Frames() <-chan FrameEvent { return p.frames }

// Errors returns the channel page-context errors are delivered on.
func (p *Page) Errors() <-chan error { return p.errors }

// Goto navigates the tab, rejecting non-HTTPS/non-loopback URLs unless
// allowUnsafeContext is set (spec.md §4.4).
func (p *Page) Goto(ctx context.Context, target string, clockParams clockshim.Params, adapterParams mediashim.AdapterParams, captureCfg capturectx.Config) error {
	if err := p.validateURL(target); err != nil {
		return err
	}
	p.resetNavigationState()
	p.timeAct = capturectx.NewTimeActions(captureCfg.TimeActionPolicy)

	if err := chromedp.Run(p.ctx, animation.Enable()); err != nil {
		return fmt.Errorf("pagedriver: enable animation domain: %w", err)
	}

	clockJS, err := clockshim.Render(clockParams)
	if err != nil {
		return err
	}
	adapterJS, err := mediashim.Render(adapterParams)
	if err != nil {
		return err
	}
	loopJS, err := capturectx.Render(captureCfg)
	if err != nil {
		return err
	}

	actions := make([]chromedp.Action, 0, len(mediashim.VendorScripts())+4)
	for _, vendorJS := range mediashim.VendorScripts() {
		actions = append(actions, page.AddScriptToEvaluateOnNewDocument(vendorJS))
	}
	actions = append(actions,
		page.AddScriptToEvaluateOnNewDocument(clockJS),
		page.AddScriptToEvaluateOnNewDocument(adapterJS),
		page.AddScriptToEvaluateOnNewDocument(loopJS),
		page.Navigate(target),
	)
	if err := chromedp.Run(p.ctx, actions...); err != nil {
		return fmt.Errorf("pagedriver: navigate: %w", err)
	}

	if err := chromedp.Run(p.ctx, chromedp.Evaluate(`window.captureCtx && window.captureCtx.init && window.captureCtx.init()`, nil)); err != nil {
		return fmt.Errorf("pagedriver: captureCtx.init: %w", err)
	}
	return nil
}

func (p *Page) validateURL(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("pagedriver: invalid url %q: %w", target, err)
	}
	if p.allowUnsafeContext {
		return nil
	}
	if u.Scheme == "https" {
		return nil
	}
	if u.Hostname() == "localhost" || u.Hostname() == "127.0.0.1" {
		return nil
	}
	return fmt.Errorf("pagedriver: rejected non-HTTPS, non-loopback url %q (set AllowUnsafeContext to override)", target)
}

func (p *Page) resetNavigationState() {
	p.animations = make(map[string]animationTrack)
	p.timeAct = capturectx.NewTimeActions(capturectx.TimeActionSmallestElapsed)
}

// CaptureFrame issues one beginFrame (normal mode) or Page.screenshot
// (compatible mode) and returns the raw image bytes. It times out after
// BeginFrameTimeout in normal mode.
func (p *Page) CaptureFrame(ctx context.Context, format string, quality int) ([]byte, error) {
	capCtx, cancel := context.WithTimeout(p.ctx, BeginFrameTimeout)
	defer cancel()

	if p.mode == browserdriver.RenderModeCompatible {
		var data []byte
		if err := chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			data, err = page.CaptureScreenshot().WithOptimizeForSpeed(true).Do(ctx)
			return err
		})); err != nil {
			return nil, fmt.Errorf("pagedriver: compatible capture: %w", err)
		}
		return data, nil
	}

	var data []byte
	err := chromedp.Run(capCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		screenshot := &headlessexperimental.ScreenshotParams{Format: headlessexperimental.ScreenshotParamsFormat(format), Quality: int64(quality)}
		_, screenshotData, err := headlessexperimental.BeginFrame().WithScreenshot(screenshot).Do(ctx)
		if err != nil {
			return err
		}
		data = screenshotData
		return nil
	}))
	if err != nil {
		wlog.WithContext(ctx, wlog.WithComponent("pagedriver")).Error().Str("page_id", p.id).Err(err).Msg("beginFrame timeout, page unavailabled")
		_ = p.machine.Transition(pool.StateUnavailabled)
		return nil, fmt.Errorf("pagedriver: beginFrame: %w", err)
	}
	return data, nil
}

// handleEvent dispatches CDP events for request interception and
// exposed-binding calls.
func (p *Page) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *fetch.EventRequestPaused:
		go p.handleRequestPaused(e)
	case *runtime.EventBindingCalled:
		go p.handleBindingCalled(e)
	case *page.EventJavascriptDialogOpening:
		go func() { _ = chromedp.Run(p.ctx, page.HandleJavaScriptDialog(false)) }()
	}
}
