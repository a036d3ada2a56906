package pagedriver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/animation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/webvideocreator/wvc/internal/wlog"
)

// AudioDescriptor mirrors spec.md §3's "Audio descriptor" shape, as
// delivered by the page's addAudio binding call.
type AudioDescriptor struct {
	ID              string  `json:"id"`
	Source          string  `json:"source"`
	StartTime       float64 `json:"startTime"`
	EndTime         float64 `json:"endTime"`
	Duration        float64 `json:"duration,omitempty"`
	Loop            bool    `json:"loop"`
	Volume          float64 `json:"volume"`
	SeekStart       float64 `json:"seekStart"`
	SeekEnd         float64 `json:"seekEnd"`
	FadeInDuration  float64 `json:"fadeInDuration,omitempty"`
	FadeOutDuration float64 `json:"fadeOutDuration,omitempty"`
}

// handleBindingCalled dispatches one of the eight exposed host
// functions spec.md §6 names. chromedp's runtime.AddBinding delivers
// the call's single string argument verbatim in e.Payload.
func (p *Page) handleBindingCalled(e *runtime.EventBindingCalled) {
	ctx := p.ctx

	switch e.Name {
	case "captureFrame":
		data, err := p.CaptureFrame(ctx, "jpeg", 80)
		keepGoing := err == nil
		select {
		case p.frames <- FrameEvent{Data: data, Skip: false}:
		default:
		}
		p.respondBinding(e, keepGoing)

	case "skipFrame":
		select {
		case p.frames <- FrameEvent{Skip: true}:
		default:
		}

	case "screencastCompleted":
		p.capturing.Store(false)

	case "addAudio":
		var desc AudioDescriptor
		if err := json.Unmarshal([]byte(e.Payload), &desc); err != nil {
			wlog.WithContext(ctx, wlog.WithComponent("pagedriver")).Warn().Err(err).Msg("addAudio: decode failed")
			return
		}
		if p.OnAudio != nil {
			p.OnAudio(desc)
		}

	case "updateAudioEndTime":
		var args [2]json.RawMessage
		if err := json.Unmarshal([]byte(e.Payload), &args); err != nil {
			return
		}
		var id string
		var endTime float64
		_ = json.Unmarshal(args[0], &id)
		_ = json.Unmarshal(args[1], &endTime)
		if p.OnAudioEndTimeUpdate != nil {
			p.OnAudioEndTimeUpdate(id, endTime)
		}

	case "seekCSSAnimations":
		var t float64
		_ = json.Unmarshal([]byte(e.Payload), &t)
		p.seekCSSAnimations(ctx, t)

	case "seekTimeActions":
		var t float64
		_ = json.Unmarshal([]byte(e.Payload), &t)
		for _, key := range p.timeAct.Resolve(t) {
			if p.OnTimeAction != nil {
				p.OnTimeAction(key, t)
			}
		}

	case "throwError":
		var args [2]json.RawMessage
		_ = json.Unmarshal([]byte(e.Payload), &args)
		var code, msg string
		_ = json.Unmarshal(args[0], &code)
		_ = json.Unmarshal(args[1], &msg)
		select {
		case p.errors <- fmt.Errorf("page error [%s]: %s", code, msg):
		default:
		}
	}
}

// respondBinding resolves the page-side promise a binding call is
// awaiting by evaluating a literal result value back into the calling
// execution context; the adapter script's binding wrapper correlates
// this with the pending call.
func (p *Page) respondBinding(e *runtime.EventBindingCalled, result bool) {
	_ = chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, err := runtime.Evaluate(fmt.Sprintf("window.____resolveBinding && window.____resolveBinding(%q, %t)", e.Name, result)).
			WithContextID(e.ExecutionContextID).
			Do(ctx)
		return err
	}))
}

// seekCSSAnimations implements spec.md §4.4's CSS-animation scheduling:
// pin startTime on first observation (pausing via Animation.setPaused),
// then seek by t-pinned each tick, dropping animations whose
// pinned+delay+duration*iterations has elapsed.
func (p *Page) seekCSSAnimations(ctx context.Context, t float64) {
	for id, track := range p.animations {
		elapsedAt := track.pinnedAt + track.delay + track.duration*track.iterations
		if t >= elapsedAt {
			delete(p.animations, id)
			continue
		}
		_ = chromedp.Run(ctx, animation.SeekAnimations([]string{id}, t-track.pinnedAt))
	}
}

// onAnimationStarted pins a newly observed animation's startTime to the
// current virtual time and pauses it, per spec.md §4.4.
func (p *Page) onAnimationStarted(a *animation.Animation, currentTime float64) {
	if _, seen := p.animations[a.ID]; seen {
		return
	}
	p.animations[a.ID] = animationTrack{
		id:         a.ID,
		pinnedAt:   currentTime,
		delay:      a.Source.Delay,
		duration:   a.Source.Duration,
		iterations: a.Source.Iterations,
	}
	_ = chromedp.Run(p.ctx, animation.SetPaused([]string{a.ID}, true))
}
