package pagedriver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"

	"github.com/webvideocreator/wvc/internal/mediashim"
)

const preprocessPath = "/api/video_preprocess"
const localFontPrefix = "/local_font/"

// handleRequestPaused implements spec.md §4.4's interception table:
// the preprocessor RPC, the local font cache, navigation-during-capture
// rejection, and pass-through for everything else.
func (p *Page) handleRequestPaused(e *fetch.EventRequestPaused) {
	ctx := p.ctx

	if e.ResourceType == "Document" && p.capturing.Load() {
		_ = chromedp.Run(ctx, fetch.FailRequest(e.RequestID, fetch.ErrorReasonAborted))
		return
	}

	switch {
	case e.Request.Method == "POST" && strings.HasSuffix(e.Request.URL, preprocessPath):
		p.servePreprocess(ctx, e)
	case strings.Contains(e.Request.URL, localFontPrefix):
		p.serveLocalFont(ctx, e)
	default:
		_ = chromedp.Run(ctx, fetch.ContinueRequest(e.RequestID))
	}
}

func (p *Page) servePreprocess(ctx context.Context, e *fetch.EventRequestPaused) {
	var cfg mediashim.VideoConfig
	if err := json.Unmarshal([]byte(e.Request.PostData), &cfg); err != nil {
		p.fail500(ctx, e, fmt.Errorf("decode VideoConfig: %w", err))
		return
	}

	result, blob, err := p.preprocess(ctx, cfg)
	if err != nil {
		p.fail500(ctx, e, err)
		return
	}

	payload, err := mediashim.PackPayload(result, blob)
	if err != nil {
		p.fail500(ctx, e, err)
		return
	}

	_ = chromedp.Run(ctx, fetch.FulfillRequest(e.RequestID, 200).
		WithResponseHeaders([]*fetch.HeaderEntry{{Name: "Content-Type", Value: "application/octet-stream"}}).
		WithBody(base64.StdEncoding.EncodeToString(payload)))
}

func (p *Page) serveLocalFont(ctx context.Context, e *fetch.EventRequestPaused) {
	idx := strings.Index(e.Request.URL, localFontPrefix)
	path := e.Request.URL[idx+len(localFontPrefix):]

	data, ok := p.fontLookup(path)
	if !ok {
		_ = chromedp.Run(ctx, fetch.FulfillRequest(e.RequestID, 404))
		return
	}

	_ = chromedp.Run(ctx, fetch.FulfillRequest(e.RequestID, 200).
		WithResponseHeaders([]*fetch.HeaderEntry{{Name: "Cache-Control", Value: "max-age=31536000"}}).
		WithBody(base64.StdEncoding.EncodeToString(data)))
}

func (p *Page) fail500(ctx context.Context, e *fetch.EventRequestPaused, cause error) {
	body := base64.StdEncoding.EncodeToString([]byte(cause.Error()))
	_ = chromedp.Run(ctx, fetch.FulfillRequest(e.RequestID, 500).WithBody(body))
	select {
	case p.errors <- cause:
	default:
	}
}
