package preprocessor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/webvideocreator/wvc/internal/resilience"
)

// contentTypeAllowed is the whitelist spec.md §4.6 names for the
// preprocessor's HEAD probe: video/* or application/octet-stream. A
// missing (empty) Content-Type is also accepted; any other content-type
// is rejected before a GET is attempted.
func contentTypeAllowed(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.HasPrefix(ct, "video/") || ct == "application/octet-stream" || ct == ""
}

// fetchBreakered runs fetchWhitelisted through p.breaker when one is
// configured, so a origin that is down or timing out stops being hit on
// every retry attempt once it trips, the same way pool acquisition stops
// hammering a dead browser once its breaker trips (internal/render).
func (p *Preprocessor) fetchBreakered(ctx context.Context, rawURL string) ([]byte, error) {
	if p.breaker == nil {
		return p.fetchWhitelisted(ctx, rawURL)
	}
	var body []byte
	err := p.breaker.Execute(func() error {
		var fetchErr error
		body, fetchErr = p.fetchWhitelisted(ctx, rawURL)
		return fetchErr
	})
	if err == resilience.ErrCircuitOpen {
		return nil, fmt.Errorf("preprocessor: circuit open for downloads, not attempting %s: %w", rawURL, err)
	}
	return body, err
}

// fetchWhitelisted HEADs rawURL to check its content-type before issuing
// the GET, per spec.md §4.6.
func (p *Preprocessor) fetchWhitelisted(ctx context.Context, rawURL string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("preprocessor: rate limit wait: %w", err)
	}

	headReq, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("preprocessor: build HEAD request: %w", err)
	}
	headResp, err := p.client.Do(headReq)
	if err != nil {
		return nil, fmt.Errorf("preprocessor: HEAD %s: %w", rawURL, err)
	}
	ct := headResp.Header.Get("Content-Type")
	_ = headResp.Body.Close()

	if headResp.StatusCode >= 400 {
		return nil, fmt.Errorf("preprocessor: HEAD %s: status %d", rawURL, headResp.StatusCode)
	}
	if !contentTypeAllowed(ct) {
		return nil, fmt.Errorf("preprocessor: rejected content-type %q for %s", ct, rawURL)
	}

	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("preprocessor: build GET request: %w", err)
	}
	resp, err := p.client.Do(getReq)
	if err != nil {
		return nil, fmt.Errorf("preprocessor: GET %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("preprocessor: GET %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("preprocessor: read body of %s: %w", rawURL, err)
	}
	return body, nil
}
